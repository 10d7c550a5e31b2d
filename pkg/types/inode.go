package types

import "fmt"

const (
	DirectCount       Sector = 123
	PointersPerSector Sector = Sector(SectorSize / SectorPointerSize)

	// MaxSectors is the number of data sectors addressable through the
	// direct, singly indirect and doubly indirect tiers.
	MaxSectors Sector = DirectCount + PointersPerSector +
		PointersPerSector*PointersPerSector
	MaxLength Byte = Byte(MaxSectors) * SectorSize

	InodeSize Byte = SectorSize
)

// Inode is the on-disk record of a file or directory. It occupies exactly one
// sector; `Sector` is its identity and is not itself persisted.
type Inode struct {
	Sector         Sector
	Length         Byte
	Kind           Kind
	Parent         Sector
	Direct         [DirectCount]Sector
	SinglyIndirect Sector
	DoublyIndirect Sector
}

// Sectors returns the number of data sectors covered by the inode's length.
func (inode *Inode) Sectors() Sector { return SectorsFor(inode.Length) }

type Kind uint8

const (
	KindInvalid Kind = iota
	KindFile
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindFile:
		return "File"
	case KindDir:
		return "Dir"
	default:
		panic(fmt.Sprintf("invalid kind: `%d`", k))
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	s := k.String()
	out := make([]byte, len(s)+2)
	out[0] = '"'
	out[len(out)-1] = '"'
	copy(out[1:], s)
	return out, nil
}

func (k Kind) Validate() error {
	if k <= KindInvalid || k > KindDir {
		return fmt.Errorf("validating kind `%d`: %w", k, InvalidKindErr)
	}
	return nil
}

const (
	InvalidKindErr ConstError = "invalid inode kind"
)
