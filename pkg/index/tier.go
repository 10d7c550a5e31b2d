package index

import (
	"fmt"

	"github.com/weberc2/sfs/pkg/math"
	. "github.com/weberc2/sfs/pkg/types"
)

// depth is the number of index sectors between an inode's pointer and the
// data sector it leads to.
type depth int

const (
	depthDirect depth = iota
	depthSingly
	depthDoubly
)

func (d depth) String() string {
	switch d {
	case depthDirect:
		return "direct"
	case depthSingly:
		return "singly indirect"
	case depthDoubly:
		return "doubly indirect"
	default:
		panic(fmt.Sprintf("invalid depth: %d", int(d)))
	}
}

// span is the number of data sectors reachable through one pointer of depth
// `d`.
func (d depth) span() Sector {
	span := Sector(1)
	for i := depthDirect; i < d; i++ {
		span *= PointersPerSector
	}
	return span
}

// root is one pointer stored in the inode record itself.
type root struct {
	ptr   *Sector
	depth depth
}

// roots lists the inode's pointers in logical order: each direct pointer,
// then the singly indirect one, then the doubly indirect one.
func roots(inode *Inode) []root {
	out := make([]root, 0, DirectCount+2)
	for i := range inode.Direct {
		out = append(out, root{ptr: &inode.Direct[i], depth: depthDirect})
	}
	return append(
		out,
		root{ptr: &inode.SinglyIndirect, depth: depthSingly},
		root{ptr: &inode.DoublyIndirect, depth: depthDoubly},
	)
}

// partition assigns the first `n` logical sectors to the inode's roots in
// order, calling `f` with each root and the number of sectors it covers. It
// is the single place that decides which tier holds which sectors, and is
// shared by growth, release and planning so they can't disagree.
func partition(inode *Inode, n Sector, f func(r root, n Sector) error) error {
	total := n
	for _, r := range roots(inode) {
		if n == 0 {
			return nil
		}
		sub := math.Min(n, r.depth.span())
		if err := f(r, sub); err != nil {
			return err
		}
		n -= sub
	}
	if n > 0 {
		return fmt.Errorf(
			"partitioning `%d` sectors among tiers: `%d` unassigned: %w",
			total,
			n,
			TooLargeErr,
		)
	}
	return nil
}

// children splits the `n` sectors below an index sector of depth `d` among
// its slots.
func children(d depth, n Sector, f func(slot int, n Sector) error) error {
	span := (d - 1).span()
	for slot := 0; n > 0; slot++ {
		sub := math.Min(n, span)
		if err := f(slot, sub); err != nil {
			return err
		}
		n -= sub
	}
	return nil
}

// nodes returns the number of sectors (data plus index) a fully populated
// subtree of depth `d` covering `n` data sectors occupies.
func nodes(d depth, n Sector) Sector {
	if d == depthDirect {
		return 1
	}
	total := Sector(1)
	children(d, n, func(_ int, sub Sector) error {
		total += nodes(d-1, sub)
		return nil
	})
	return total
}

// Footprint returns the number of sectors, data plus index, that a file of
// `length` bytes occupies on the device.
func Footprint(length Byte) (Sector, error) {
	var (
		inode Inode
		total Sector
	)
	if err := partition(
		&inode,
		SectorsFor(length),
		func(r root, n Sector) error {
			total += nodes(r.depth, n)
			return nil
		},
	); err != nil {
		return 0, fmt.Errorf("footprint of `%d` bytes: %w", length, err)
	}
	return total, nil
}
