// Package index maps an inode's logical sectors onto device sectors through
// its direct, singly indirect and doubly indirect pointers, and grows or
// releases that mapping.
package index

import (
	"fmt"

	"github.com/weberc2/sfs/pkg/alloc"
	"github.com/weberc2/sfs/pkg/device"
	"github.com/weberc2/sfs/pkg/encode"
	. "github.com/weberc2/sfs/pkg/types"
)

type Index struct {
	device    device.Device
	allocator alloc.Allocator
}

func New(d device.Device, allocator alloc.Allocator) *Index {
	return &Index{device: d, allocator: allocator}
}

// Translate returns the device sector holding logical sector `logical` of
// `inode`, or `SectorNil` if that sector was never allocated.
func (x *Index) Translate(inode *Inode, logical Sector) (Sector, error) {
	if logical >= MaxSectors {
		return SectorNil, fmt.Errorf(
			"translating logical sector `%d`: %w",
			logical,
			TooLargeErr,
		)
	}

	rest := logical
	for _, r := range roots(inode) {
		if span := r.depth.span(); rest >= span {
			rest -= span
			continue
		}
		physical, err := x.lookup(*r.ptr, r.depth, rest)
		if err != nil {
			return SectorNil, fmt.Errorf(
				"translating logical sector `%d` (%s): %w",
				logical,
				r.depth,
				err,
			)
		}
		return physical, nil
	}

	panic(fmt.Sprintf("logical sector `%d` not covered by any tier", logical))
}

func (x *Index) lookup(ptr Sector, d depth, logical Sector) (Sector, error) {
	if d == depthDirect || ptr == SectorNil {
		return ptr, nil
	}

	var block encode.IndirectBlock
	if err := x.readIndirect(ptr, &block); err != nil {
		return SectorNil, err
	}
	span := (d - 1).span()
	return x.lookup(block[logical/span], d-1, logical%span)
}

func (x *Index) readIndirect(s Sector, block *encode.IndirectBlock) error {
	var buf [SectorSize]byte
	if err := x.device.ReadSector(s, &buf); err != nil {
		return fmt.Errorf("reading index sector `%d`: %w", s, err)
	}
	encode.DecodeIndirect(block, &buf)
	return nil
}

func (x *Index) writeIndirect(s Sector, block *encode.IndirectBlock) error {
	var buf [SectorSize]byte
	encode.EncodeIndirect(block, &buf)
	if err := x.device.WriteSector(s, &buf); err != nil {
		return fmt.Errorf("writing index sector `%d`: %w", s, err)
	}
	return nil
}
