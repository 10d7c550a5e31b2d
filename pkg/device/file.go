package device

import (
	"fmt"
	"os"

	. "github.com/weberc2/sfs/pkg/types"
)

// File is a device backed by an image file on the host file system.
type File struct {
	f       *os.File
	sectors Sector
}

var _ Device = (*File)(nil)

// OpenFile opens (creating if necessary) the image at `path`. If `sectors` is
// zero, the device size is taken from the existing image; otherwise the image
// is extended to hold at least `sectors` sectors.
func OpenFile(path string, sectors Sector) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening image file `%s`: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening image file `%s`: %w", path, err)
	}

	if sectors == 0 {
		sectors = Sector(Byte(info.Size()) / SectorSize)
		if sectors == 0 {
			f.Close()
			return nil, fmt.Errorf(
				"opening image file `%s`: image is empty and no size was "+
					"given",
				path,
			)
		}
	} else if size := Byte(sectors) * SectorSize; Byte(info.Size()) < size {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf(
				"opening image file `%s`: extending to `%d` bytes: %w",
				path,
				size,
				err,
			)
		}
	}

	return &File{f: f, sectors: sectors}, nil
}

func (file *File) Sectors() Sector { return file.sectors }

func (file *File) ReadSector(sector Sector, b *[SectorSize]byte) error {
	if err := checkRange(file, "reading", sector); err != nil {
		return err
	}
	if _, err := file.f.ReadAt(
		b[:],
		int64(Byte(sector)*SectorSize),
	); err != nil {
		return fmt.Errorf(
			"reading sector `%d` from `%s`: %w",
			sector,
			file.f.Name(),
			err,
		)
	}
	return nil
}

func (file *File) WriteSector(sector Sector, b *[SectorSize]byte) error {
	if err := checkRange(file, "writing", sector); err != nil {
		return err
	}
	if _, err := file.f.WriteAt(
		b[:],
		int64(Byte(sector)*SectorSize),
	); err != nil {
		return fmt.Errorf(
			"writing sector `%d` to `%s`: %w",
			sector,
			file.f.Name(),
			err,
		)
	}
	return nil
}

func (file *File) Sync() error {
	if err := file.f.Sync(); err != nil {
		return fmt.Errorf("syncing `%s`: %w", file.f.Name(), err)
	}
	return nil
}

func (file *File) Close() error {
	if err := file.f.Close(); err != nil {
		return fmt.Errorf("closing `%s`: %w", file.f.Name(), err)
	}
	return nil
}
