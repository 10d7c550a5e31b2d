package encode

import (
	"fmt"

	. "github.com/weberc2/sfs/pkg/types"
)

// The magic number doubles as the kind tag.
const (
	MagicFile uint32 = 0x494e4f46 // "INOF"
	MagicDir  uint32 = 0x494e4f44 // "INOD"
)

func EncodeInode(inode *Inode, b *[InodeSize]byte) {
	p := b[:]
	for i := range p {
		p[i] = 0
	}

	putU32(p, inodeLengthStart, uint32(inode.Length))
	putU32(p, inodeMagicStart, kindMagic(inode.Kind))
	putSector(p, inodeParentStart, inode.Parent)

	for i := Byte(0); i < Byte(DirectCount); i++ {
		putSector(
			p,
			inodeDirectStart+i*SectorPointerSize,
			inode.Direct[i],
		)
	}

	putSector(p, inodeSinglyIndStart, inode.SinglyIndirect)
	putSector(p, inodeDoublyIndStart, inode.DoublyIndirect)
}

// DecodeInode decodes the record in `b` into `inode`. The `Sector` field is
// left untouched.
func DecodeInode(inode *Inode, b *[InodeSize]byte) error {
	p := b[:]

	// validate before mutating the `inode` pointee so a failed decode leaves
	// the caller's copy intact.
	magic := getU32(p, inodeMagicStart)
	kind, err := magicKind(magic)
	if err != nil {
		return fmt.Errorf("decoding inode: %w", err)
	}

	inode.Kind = kind
	inode.Length = Byte(getU32(p, inodeLengthStart))
	inode.Parent = getSector(p, inodeParentStart)

	for i := Byte(0); i < Byte(DirectCount); i++ {
		inode.Direct[i] = getSector(p, inodeDirectStart+i*SectorPointerSize)
	}

	inode.SinglyIndirect = getSector(p, inodeSinglyIndStart)
	inode.DoublyIndirect = getSector(p, inodeDoublyIndStart)
	return nil
}

func kindMagic(kind Kind) uint32 {
	switch kind {
	case KindFile:
		return MagicFile
	case KindDir:
		return MagicDir
	default:
		panic(fmt.Sprintf("encoding inode: invalid kind: `%d`", kind))
	}
}

func magicKind(magic uint32) (Kind, error) {
	switch magic {
	case MagicFile:
		return KindFile, nil
	case MagicDir:
		return KindDir, nil
	default:
		return KindInvalid, fmt.Errorf("magic `%#08x`: %w", magic, BadMagicErr)
	}
}

const (
	inodeLengthStart = 0
	inodeLengthSize  = 4
	inodeLengthEnd   = inodeLengthStart + inodeLengthSize

	inodeMagicStart = inodeLengthEnd
	inodeMagicSize  = 4
	inodeMagicEnd   = inodeMagicStart + inodeMagicSize

	inodeParentStart = inodeMagicEnd
	inodeParentSize  = SectorPointerSize
	inodeParentEnd   = inodeParentStart + inodeParentSize

	inodeDirectStart = inodeParentEnd
	inodeDirectSize  = Byte(DirectCount) * SectorPointerSize
	inodeDirectEnd   = inodeDirectStart + inodeDirectSize

	inodeSinglyIndStart = inodeDirectEnd
	inodeSinglyIndSize  = SectorPointerSize
	inodeSinglyIndEnd   = inodeSinglyIndStart + inodeSinglyIndSize

	inodeDoublyIndStart = inodeSinglyIndEnd
	inodeDoublyIndSize  = SectorPointerSize
	inodeDoublyIndEnd   = inodeDoublyIndStart + inodeDoublyIndSize
)
