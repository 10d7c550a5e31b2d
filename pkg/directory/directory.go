// Package directory implements directories as files of fixed-size entries,
// each binding a name to an inode sector.
package directory

import (
	"fmt"

	"github.com/weberc2/sfs/pkg/inode"
	. "github.com/weberc2/sfs/pkg/types"
)

// Dir is an open directory: a handle on its inode plus a cursor for ReadDir.
type Dir struct {
	table *inode.Table
	inode *inode.Handle
	pos   Byte
}

// Create writes an empty directory inode at `sector` with room for `entries`
// entries before it needs to grow.
func Create(
	table *inode.Table,
	sector Sector,
	entries int,
	parent Sector,
) error {
	if err := table.Create(
		sector,
		Byte(entries)*DirEntrySize,
		KindDir,
		parent,
	); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return nil
}

// Open wraps `h`, which must be a directory. Open takes ownership of `h`: it
// is closed when the Dir is, or immediately if Open fails.
func Open(table *inode.Table, h *inode.Handle) (*Dir, error) {
	if !h.IsDir() {
		sector := h.Sector()
		if err := h.Close(); err != nil {
			return nil, fmt.Errorf("opening directory `%d`: %w", sector, err)
		}
		return nil, fmt.Errorf("opening directory `%d`: %w", sector, NotADirErr)
	}
	return &Dir{table: table, inode: h}, nil
}

func OpenSector(table *inode.Table, sector Sector) (*Dir, error) {
	h, err := table.Open(sector)
	if err != nil {
		return nil, fmt.Errorf("opening directory: %w", err)
	}
	return Open(table, h)
}

func OpenRoot(table *inode.Table) (*Dir, error) {
	return OpenSector(table, RootSector)
}

// Reopen returns a new Dir on the same inode with its cursor at the start.
func (d *Dir) Reopen() *Dir {
	return &Dir{table: d.table, inode: d.inode.Reopen()}
}

func (d *Dir) Close() error {
	if err := d.inode.Close(); err != nil {
		return fmt.Errorf("closing directory: %w", err)
	}
	return nil
}

func (d *Dir) Inode() *inode.Handle { return d.inode }

func (d *Dir) Sector() Sector { return d.inode.Sector() }

func (d *Dir) Parent() Sector { return d.inode.Parent() }

func (d *Dir) IsRoot() bool { return d.inode.Sector() == RootSector }

func (d *Dir) Removed() bool { return d.inode.Removed() }

// OpenParent opens the directory containing `d`. The root is its own parent.
func (d *Dir) OpenParent() (*Dir, error) {
	return OpenSector(d.table, d.Parent())
}
