package types

const (
	// NameMax is the longest name a directory entry can hold, not counting
	// the trailing NUL.
	NameMax = 14

	DirEntrySize Byte = 20

	// RootEntries is the initial entry capacity of a fresh directory.
	RootEntries = 16
)

type DirEntry struct {
	Sector Sector
	Name   string
	InUse  bool
}
