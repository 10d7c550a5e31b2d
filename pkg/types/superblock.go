package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	SuperblockMagic   uint32 = 0x53465331
	SuperblockVersion uint32 = 1
)

type Superblock struct {
	Sectors       Sector    `json:"sectors"`
	FreeMapSector Sector    `json:"freeMapSector"`
	RootSector    Sector    `json:"rootSector"`
	Created       time.Time `json:"created"`
	VolumeID      uuid.UUID `json:"volumeID"`
}
