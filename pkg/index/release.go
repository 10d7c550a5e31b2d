package index

import (
	"fmt"

	"github.com/weberc2/sfs/pkg/encode"
	. "github.com/weberc2/sfs/pkg/types"
)

// Release returns every data and index sector of `inode` to the allocator,
// walking the same tiers with the same counts that `Grow` used. The inode's
// pointers are cleared; its own sector is not released.
func (x *Index) Release(inode *Inode) error {
	var released Sector
	if err := partition(
		inode,
		inode.Sectors(),
		func(r root, n Sector) error {
			count, err := x.release(r.ptr, r.depth, n)
			released += count
			return err
		},
	); err != nil {
		return fmt.Errorf(
			"releasing sectors of inode `%d`: %w",
			inode.Sector,
			err,
		)
	}

	if released != inode.Sectors() {
		return fmt.Errorf(
			"releasing sectors of inode `%d`: wanted `%d` data sectors; "+
				"found `%d`: %w",
			inode.Sector,
			inode.Sectors(),
			released,
			HoleErr,
		)
	}
	return nil
}

// release frees the subtree under `ptr` and returns the number of data
// sectors released.
func (x *Index) release(ptr *Sector, d depth, n Sector) (Sector, error) {
	if *ptr == SectorNil {
		return 0, nil
	}

	if d == depthDirect {
		x.allocator.Release(*ptr, 1)
		*ptr = SectorNil
		return 1, nil
	}

	var block encode.IndirectBlock
	if err := x.readIndirect(*ptr, &block); err != nil {
		return 0, err
	}
	var released Sector
	if err := children(d, n, func(slot int, sub Sector) error {
		count, err := x.release(&block[slot], d-1, sub)
		released += count
		return err
	}); err != nil {
		return released, err
	}

	x.allocator.Release(*ptr, 1)
	*ptr = SectorNil
	return released, nil
}
