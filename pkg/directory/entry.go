package directory

import (
	"fmt"

	"github.com/weberc2/sfs/pkg/encode"
	. "github.com/weberc2/sfs/pkg/types"
)

func (d *Dir) readEntry(offset Byte, entry *DirEntry) (bool, error) {
	var buf [DirEntrySize]byte
	n, err := d.inode.ReadAt(buf[:], offset)
	if err != nil {
		return false, fmt.Errorf("reading entry at offset `%d`: %w", offset, err)
	}
	if n < DirEntrySize {
		return false, nil
	}
	encode.DecodeDirEntry(entry, &buf)
	return true, nil
}

func (d *Dir) writeEntry(offset Byte, entry *DirEntry) error {
	var buf [DirEntrySize]byte
	if err := encode.EncodeDirEntry(entry, &buf); err != nil {
		return err
	}
	if _, err := d.inode.WriteAt(buf[:], offset); err != nil {
		return fmt.Errorf("writing entry at offset `%d`: %w", offset, err)
	}
	return nil
}

// scan calls `f` with every entry slot, used or not, until `f` returns true.
// It returns the offset of that slot, or -1.
func (d *Dir) scan(f func(offset Byte, entry *DirEntry) bool) (Byte, error) {
	var entry DirEntry
	for offset := Byte(0); ; offset += DirEntrySize {
		ok, err := d.readEntry(offset, &entry)
		if err != nil {
			return -1, err
		}
		if !ok {
			return -1, nil
		}
		if f(offset, &entry) {
			return offset, nil
		}
	}
}

// find returns the in-use entry named `name` and its offset, or offset -1.
func (d *Dir) find(name string) (DirEntry, Byte, error) {
	var found DirEntry
	offset, err := d.scan(func(_ Byte, entry *DirEntry) bool {
		if entry.InUse && entry.Name == name {
			found = *entry
			return true
		}
		return false
	})
	return found, offset, err
}

// ValidateName reports whether `name` can be bound in a directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("name `%s`: %w", name, MalformedPathErr)
	case len(name) > NameMax:
		return fmt.Errorf("name `%s`: %w", name, NameTooLongErr)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return fmt.Errorf("name `%s`: %w", name, MalformedPathErr)
		}
	}
	return nil
}
