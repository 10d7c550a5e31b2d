package encode

import (
	"fmt"
	"time"

	. "github.com/weberc2/sfs/pkg/types"
)

func EncodeSuperblock(sb *Superblock, b *[SectorSize]byte) {
	p := b[:]
	for i := range p {
		p[i] = 0
	}
	putU32(p, superblockMagicStart, SuperblockMagic)
	putU32(p, superblockVersionStart, SuperblockVersion)
	putSector(p, superblockSectorsStart, sb.Sectors)
	putSector(p, superblockFreeMapStart, sb.FreeMapSector)
	putSector(p, superblockRootStart, sb.RootSector)
	putU64(p, superblockCreatedStart, uint64(sb.Created.Unix()))
	copy(p[superblockVolumeIDStart:superblockVolumeIDEnd], sb.VolumeID[:])
}

func DecodeSuperblock(sb *Superblock, b *[SectorSize]byte) error {
	p := b[:]
	if magic := getU32(p, superblockMagicStart); magic != SuperblockMagic {
		return fmt.Errorf(
			"decoding superblock: magic `%#08x`: %w",
			magic,
			BadMagicErr,
		)
	}
	if v := getU32(p, superblockVersionStart); v != SuperblockVersion {
		return fmt.Errorf(
			"decoding superblock: unsupported version `%d`",
			v,
		)
	}

	sb.Sectors = getSector(p, superblockSectorsStart)
	sb.FreeMapSector = getSector(p, superblockFreeMapStart)
	sb.RootSector = getSector(p, superblockRootStart)
	sb.Created = time.Unix(int64(getU64(p, superblockCreatedStart)), 0).UTC()
	copy(sb.VolumeID[:], p[superblockVolumeIDStart:superblockVolumeIDEnd])
	return nil
}

const (
	superblockMagicStart = 0
	superblockMagicSize  = 4
	superblockMagicEnd   = superblockMagicStart + superblockMagicSize

	superblockVersionStart = superblockMagicEnd
	superblockVersionSize  = 4
	superblockVersionEnd   = superblockVersionStart + superblockVersionSize

	superblockSectorsStart = superblockVersionEnd
	superblockSectorsSize  = SectorPointerSize
	superblockSectorsEnd   = superblockSectorsStart + superblockSectorsSize

	superblockFreeMapStart = superblockSectorsEnd
	superblockFreeMapSize  = SectorPointerSize
	superblockFreeMapEnd   = superblockFreeMapStart + superblockFreeMapSize

	superblockRootStart = superblockFreeMapEnd
	superblockRootSize  = SectorPointerSize
	superblockRootEnd   = superblockRootStart + superblockRootSize

	superblockCreatedStart = superblockRootEnd
	superblockCreatedSize  = 8
	superblockCreatedEnd   = superblockCreatedStart + superblockCreatedSize

	superblockVolumeIDStart = superblockCreatedEnd
	superblockVolumeIDSize  = 16
	superblockVolumeIDEnd   = superblockVolumeIDStart + superblockVolumeIDSize
)
