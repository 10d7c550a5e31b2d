package index

import (
	"fmt"

	"github.com/weberc2/sfs/pkg/device"
	"github.com/weberc2/sfs/pkg/encode"
	. "github.com/weberc2/sfs/pkg/types"
)

// Grow allocates every sector needed for `inode` to cover `length` bytes,
// zero-filling each new sector before it is linked in. Only empty slots are
// filled, so growing to the same length twice allocates nothing the second
// time. The inode's `Length` is left for the caller to update.
//
// Growth is all-or-nothing with respect to the allocator: every sector the
// operation needs is reserved before any pointer is written, so running out
// of space leaves both the free map and `inode` untouched. A device error
// part way through may still strand the sectors that were already linked.
func (x *Index) Grow(inode *Inode, length Byte) error {
	if err := x.grow(inode, length); err != nil {
		return fmt.Errorf(
			"growing inode `%d` to `%d` bytes: %w",
			inode.Sector,
			length,
			err,
		)
	}
	return nil
}

func (x *Index) grow(inode *Inode, length Byte) error {
	if length > MaxLength {
		return TooLargeErr
	}
	target := SectorsFor(length)

	need, err := x.plan(inode, target)
	if err != nil {
		return err
	}
	if need == 0 {
		return nil
	}

	s, err := x.reserve(need)
	if err != nil {
		return err
	}
	defer s.releaseUnused(x)

	clone := *inode
	if err := partition(&clone, target, func(r root, n Sector) error {
		return x.fill(r.ptr, r.depth, n, s)
	}); err != nil {
		return err
	}

	*inode = clone
	return nil
}

// plan counts the empty slots that growing to `target` sectors must fill.
func (x *Index) plan(inode *Inode, target Sector) (Sector, error) {
	var need Sector
	err := partition(inode, target, func(r root, n Sector) error {
		missing, err := x.missing(*r.ptr, r.depth, n)
		need += missing
		return err
	})
	return need, err
}

func (x *Index) missing(ptr Sector, d depth, n Sector) (Sector, error) {
	if ptr == SectorNil {
		return nodes(d, n), nil
	}
	if d == depthDirect {
		return 0, nil
	}

	var block encode.IndirectBlock
	if err := x.readIndirect(ptr, &block); err != nil {
		return 0, err
	}
	var need Sector
	err := children(d, n, func(slot int, sub Sector) error {
		missing, err := x.missing(block[slot], d-1, sub)
		need += missing
		return err
	})
	return need, err
}

func (x *Index) fill(ptr *Sector, d depth, n Sector, s *supply) error {
	fresh := *ptr == SectorNil
	if fresh {
		*ptr = s.next()
	}

	if d == depthDirect {
		if fresh {
			if err := device.Zero(x.device, *ptr); err != nil {
				return fmt.Errorf("zero-filling data sector: %w", err)
			}
		}
		return nil
	}

	var block encode.IndirectBlock
	if !fresh {
		if err := x.readIndirect(*ptr, &block); err != nil {
			return err
		}
	}
	before := block

	if err := children(d, n, func(slot int, sub Sector) error {
		return x.fill(&block[slot], d-1, sub, s)
	}); err != nil {
		return err
	}

	if fresh || block != before {
		return x.writeIndirect(*ptr, &block)
	}
	return nil
}

// supply is the set of sectors reserved up front for one growth.
type supply struct {
	sectors []Sector
	used    int
}

func (x *Index) reserve(n Sector) (*supply, error) {
	s := &supply{sectors: make([]Sector, 0, n)}
	for i := Sector(0); i < n; i++ {
		sector, ok := x.allocator.Allocate(1)
		if !ok {
			s.releaseUnused(x)
			return nil, fmt.Errorf(
				"reserving `%d` sectors (got `%d`): %w",
				n,
				i,
				NoSpaceErr,
			)
		}
		s.sectors = append(s.sectors, sector)
	}
	return s, nil
}

func (s *supply) next() Sector {
	if s.used >= len(s.sectors) {
		panic(fmt.Sprintf(
			"growth consumed more than the `%d` sectors it planned for",
			len(s.sectors),
		))
	}
	sector := s.sectors[s.used]
	s.used++
	return sector
}

func (s *supply) releaseUnused(x *Index) {
	for _, sector := range s.sectors[s.used:] {
		x.allocator.Release(sector, 1)
	}
	s.sectors = s.sectors[:s.used]
}
