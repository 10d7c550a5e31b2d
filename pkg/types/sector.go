package types

// Byte is a byte count or a byte offset into a file or device.
type Byte int64

// Sector is the index of a fixed-size sector on the device. Zero doubles as
// the "unallocated" pointer value since sector zero always holds the
// superblock.
type Sector uint32

const (
	SectorSize        Byte = 512
	SectorPointerSize Byte = 4

	SectorNil Sector = 0

	SuperblockSector Sector = 0
	FreeMapSector    Sector = 1
	RootSector       Sector = 2
)

// SectorsFor returns the number of sectors needed to hold `length` bytes.
func SectorsFor(length Byte) Sector {
	if length <= 0 {
		return 0
	}
	return Sector((length + SectorSize - 1) / SectorSize)
}
