package directory

import (
	"errors"
	"fmt"
	"io"

	"github.com/weberc2/sfs/pkg/inode"
	. "github.com/weberc2/sfs/pkg/types"
)

// Lookup opens the inode that `name` refers to.
func (d *Dir) Lookup(name string) (*inode.Handle, error) {
	entry, offset, err := d.find(name)
	if err != nil {
		return nil, fmt.Errorf(
			"looking up `%s` in directory `%d`: %w",
			name,
			d.Sector(),
			err,
		)
	}
	if offset < 0 {
		return nil, fmt.Errorf(
			"looking up `%s` in directory `%d`: %w",
			name,
			d.Sector(),
			NotFoundErr,
		)
	}

	h, err := d.table.Open(entry.Sector)
	if err != nil {
		return nil, fmt.Errorf(
			"looking up `%s` in directory `%d`: %w",
			name,
			d.Sector(),
			err,
		)
	}
	return h, nil
}

// Add binds `name` to the inode at `sector`. The first unused slot is
// reused; the directory only grows when every slot is taken.
func (d *Dir) Add(name string, sector Sector) error {
	if err := d.add(name, sector); err != nil {
		return fmt.Errorf(
			"adding `%s` (sector `%d`) to directory `%d`: %w",
			name,
			sector,
			d.Sector(),
			err,
		)
	}
	return nil
}

func (d *Dir) add(name string, sector Sector) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	d.inode.Lock()
	defer d.inode.Unlock()

	// removal of this directory happens under the same lock
	if d.inode.Removed() {
		return NotFoundErr
	}

	_, offset, err := d.find(name)
	if err != nil {
		return err
	}
	if offset >= 0 {
		return ExistsErr
	}

	offset, err = d.scan(func(_ Byte, entry *DirEntry) bool {
		return !entry.InUse
	})
	if err != nil {
		return err
	}
	if offset < 0 {
		offset = d.inode.Length()
	}

	return d.writeEntry(
		offset,
		&DirEntry{Sector: sector, Name: name, InUse: true},
	)
}

// Remove unbinds `name` and marks its inode removed, so that its storage is
// released once nothing holds it open. Non-empty directories can't be
// removed.
func (d *Dir) Remove(name string) error {
	if err := d.remove(name); err != nil {
		return fmt.Errorf(
			"removing `%s` from directory `%d`: %w",
			name,
			d.Sector(),
			err,
		)
	}
	return nil
}

func (d *Dir) remove(name string) error {
	d.inode.Lock()
	defer d.inode.Unlock()

	entry, offset, err := d.find(name)
	if err != nil {
		return err
	}
	if offset < 0 {
		return NotFoundErr
	}

	h, err := d.table.Open(entry.Sector)
	if err != nil {
		return err
	}
	if err := d.unbind(h, offset, &entry); err != nil {
		return errors.Join(err, h.Close())
	}

	// usually the last reference, so this is where reclamation happens
	if err := h.Close(); err != nil {
		return fmt.Errorf("releasing `%s`: %w", name, err)
	}
	return nil
}

// unbind clears the entry at `offset` and marks `h` removed. Holding the
// child's update lock keeps a directory from gaining entries between the
// emptiness check and the removal.
func (d *Dir) unbind(h *inode.Handle, offset Byte, entry *DirEntry) error {
	h.Lock()
	defer h.Unlock()

	if h.IsDir() {
		child := Dir{table: d.table, inode: h}
		empty, err := child.IsEmpty()
		if err != nil {
			return err
		}
		if !empty {
			return DirNotEmptyErr
		}
	}

	entry.InUse = false
	if err := d.writeEntry(offset, entry); err != nil {
		return err
	}
	h.Remove()
	return nil
}

// ReadDir returns the next in-use name after the cursor, or `io.EOF` once
// every entry has been returned.
func (d *Dir) ReadDir() (string, error) {
	var entry DirEntry
	for {
		ok, err := d.readEntry(d.pos, &entry)
		if err != nil {
			return "", fmt.Errorf(
				"reading directory `%d`: %w",
				d.Sector(),
				err,
			)
		}
		if !ok {
			return "", io.EOF
		}
		d.pos += DirEntrySize
		if entry.InUse {
			return entry.Name, nil
		}
	}
}

// Rewind moves the ReadDir cursor back to the first entry.
func (d *Dir) Rewind() { d.pos = 0 }

// Entries returns every in-use entry in slot order.
func (d *Dir) Entries() ([]DirEntry, error) {
	var entries []DirEntry
	if _, err := d.scan(func(_ Byte, entry *DirEntry) bool {
		if entry.InUse {
			entries = append(entries, *entry)
		}
		return false
	}); err != nil {
		return nil, fmt.Errorf(
			"listing directory `%d`: %w",
			d.Sector(),
			err,
		)
	}
	return entries, nil
}

func (d *Dir) IsEmpty() (bool, error) {
	offset, err := d.scan(func(_ Byte, entry *DirEntry) bool {
		return entry.InUse
	})
	if err != nil {
		return false, fmt.Errorf(
			"checking whether directory `%d` is empty: %w",
			d.Sector(),
			err,
		)
	}
	return offset < 0, nil
}

// NameOf returns the name under which `sector` is bound in `d`.
func (d *Dir) NameOf(sector Sector) (string, error) {
	var name string
	offset, err := d.scan(func(_ Byte, entry *DirEntry) bool {
		if entry.InUse && entry.Sector == sector {
			name = entry.Name
			return true
		}
		return false
	})
	if err != nil {
		return "", fmt.Errorf(
			"finding sector `%d` in directory `%d`: %w",
			sector,
			d.Sector(),
			err,
		)
	}
	if offset < 0 {
		return "", fmt.Errorf(
			"finding sector `%d` in directory `%d`: %w",
			sector,
			d.Sector(),
			NotFoundErr,
		)
	}
	return name, nil
}
