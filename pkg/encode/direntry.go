package encode

import (
	"bytes"
	"fmt"

	. "github.com/weberc2/sfs/pkg/types"
)

func EncodeDirEntry(entry *DirEntry, b *[DirEntrySize]byte) error {
	if len(entry.Name) > NameMax {
		return fmt.Errorf(
			"encoding directory entry `%s`: %w",
			entry.Name,
			NameTooLongErr,
		)
	}

	p := b[:]
	for i := range p {
		p[i] = 0
	}
	putSector(p, dirEntrySectorStart, entry.Sector)
	copy(p[dirEntryNameStart:dirEntryNameEnd], entry.Name)
	if entry.InUse {
		putU8(p, dirEntryInUseStart, 1)
	}
	return nil
}

func DecodeDirEntry(entry *DirEntry, b *[DirEntrySize]byte) {
	p := b[:]
	name := p[dirEntryNameStart:dirEntryNameEnd]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	entry.Sector = getSector(p, dirEntrySectorStart)
	entry.Name = string(name)
	entry.InUse = getU8(p, dirEntryInUseStart) != 0
}

const (
	dirEntrySectorStart = 0
	dirEntrySectorSize  = SectorPointerSize
	dirEntrySectorEnd   = dirEntrySectorStart + dirEntrySectorSize

	dirEntryNameStart = dirEntrySectorEnd
	dirEntryNameSize  = NameMax + 1
	dirEntryNameEnd   = dirEntryNameStart + dirEntryNameSize

	dirEntryInUseStart = dirEntryNameEnd
	dirEntryInUseSize  = 1
	dirEntryInUseEnd   = dirEntryInUseStart + dirEntryInUseSize
)
