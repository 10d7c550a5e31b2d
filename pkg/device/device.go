// Package device provides the sector-addressed block devices the file system
// is stored on. Transfers are synchronous and always a whole sector.
package device

import (
	"fmt"

	. "github.com/weberc2/sfs/pkg/types"
)

type Device interface {
	ReadSector(sector Sector, b *[SectorSize]byte) error
	WriteSector(sector Sector, b *[SectorSize]byte) error
	Sectors() Sector
}

const (
	OutOfRangeErr ConstError = "sector out of range"
)

func checkRange(d Device, op string, sector Sector) error {
	if sector >= d.Sectors() {
		return fmt.Errorf(
			"%s sector `%d` (device has `%d` sectors): %w",
			op,
			sector,
			d.Sectors(),
			OutOfRangeErr,
		)
	}
	return nil
}

// Zero overwrites `sector` with zeroes.
func Zero(d Device, sector Sector) error {
	var zeroes [SectorSize]byte
	return d.WriteSector(sector, &zeroes)
}
