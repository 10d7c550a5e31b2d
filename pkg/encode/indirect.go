package encode

import . "github.com/weberc2/sfs/pkg/types"

// IndirectBlock is the decoded content of an index sector.
type IndirectBlock [PointersPerSector]Sector

func EncodeIndirect(block *IndirectBlock, b *[SectorSize]byte) {
	p := b[:]
	for i, s := range block {
		putSector(p, Byte(i)*SectorPointerSize, s)
	}
}

func DecodeIndirect(block *IndirectBlock, b *[SectorSize]byte) {
	p := b[:]
	for i := range block {
		block[i] = getSector(p, Byte(i)*SectorPointerSize)
	}
}
