package types

const (
	NoSpaceErr       ConstError = "no free sectors"
	NotFoundErr      ConstError = "not found"
	TooLargeErr      ConstError = "file too large"
	WriteDeniedErr   ConstError = "write denied"
	MalformedPathErr ConstError = "malformed path"

	ExistsErr        ConstError = "already exists"
	NameTooLongErr   ConstError = "name too long"
	NotADirErr       ConstError = "not a directory"
	IsADirErr        ConstError = "is a directory"
	DirNotEmptyErr   ConstError = "directory not empty"
	BadMagicErr      ConstError = "bad magic"
	InvalidOffsetErr ConstError = "invalid offset"
	HoleErr          ConstError = "unallocated sector within file length"
	ClosedErr        ConstError = "handle is closed"
)
