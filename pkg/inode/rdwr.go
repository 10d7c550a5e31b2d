package inode

import (
	"fmt"

	"github.com/weberc2/sfs/pkg/math"
	. "github.com/weberc2/sfs/pkg/types"
)

// ReadAt reads up to `len(b)` bytes starting at `offset`, stopping at the end
// of the file. It returns the number of bytes read, which is short only at
// end-of-file.
func (h *Handle) ReadAt(b []byte, offset Byte) (Byte, error) {
	if offset < 0 {
		return 0, fmt.Errorf(
			"reading inode `%d` at offset `%d`: %w",
			h.sector,
			offset,
			InvalidOffsetErr,
		)
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	n, err := h.readAt(b, offset)
	if err != nil {
		return n, fmt.Errorf(
			"reading `%d` bytes from inode `%d` at offset `%d`: %w",
			len(b),
			h.sector,
			offset,
			err,
		)
	}
	return n, nil
}

func (h *Handle) readAt(b []byte, offset Byte) (Byte, error) {
	var (
		buf  [SectorSize]byte
		read Byte
		size = Byte(len(b))
	)
	for size > 0 {
		left := h.inode.Length - offset
		if left <= 0 {
			break
		}
		sectorOffset := offset % SectorSize
		chunk := math.Min(math.Min(size, left), SectorSize-sectorOffset)

		physical, err := h.physical(Sector(offset / SectorSize))
		if err != nil {
			return read, err
		}

		if sectorOffset == 0 && chunk == SectorSize {
			if err := h.table.device.ReadSector(
				physical,
				(*[SectorSize]byte)(b[read:read+SectorSize]),
			); err != nil {
				return read, err
			}
		} else {
			if err := h.table.device.ReadSector(physical, &buf); err != nil {
				return read, err
			}
			copy(b[read:read+chunk], buf[sectorOffset:sectorOffset+chunk])
		}

		size -= chunk
		offset += chunk
		read += chunk
	}
	return read, nil
}

// WriteAt writes `b` at `offset`, first growing the file if the write ends
// past its current length. Bytes between the old end of the file and
// `offset` read back as zeroes.
func (h *Handle) WriteAt(b []byte, offset Byte) (Byte, error) {
	if offset < 0 {
		return 0, fmt.Errorf(
			"writing inode `%d` at offset `%d`: %w",
			h.sector,
			offset,
			InvalidOffsetErr,
		)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	n, err := h.writeAt(b, offset)
	if err != nil {
		return n, fmt.Errorf(
			"writing `%d` bytes to inode `%d` at offset `%d`: %w",
			len(b),
			h.sector,
			offset,
			err,
		)
	}
	return n, nil
}

func (h *Handle) writeAt(b []byte, offset Byte) (Byte, error) {
	if h.denyWrite > 0 {
		return 0, WriteDeniedErr
	}
	if len(b) == 0 {
		return 0, nil
	}

	// sectors at or past `fresh` were zeroed by the growth below and need not
	// be read back before a partial write.
	fresh := h.inode.Sectors()
	if end := offset + Byte(len(b)); end > h.inode.Length {
		if err := h.grow(end); err != nil {
			return 0, err
		}
	}

	var (
		buf     [SectorSize]byte
		written Byte
		size    = Byte(len(b))
	)
	for size > 0 {
		sectorOffset := offset % SectorSize
		chunk := math.Min(size, SectorSize-sectorOffset)
		logical := Sector(offset / SectorSize)

		physical, err := h.physical(logical)
		if err != nil {
			return written, err
		}

		if sectorOffset == 0 && chunk == SectorSize {
			if err := h.table.device.WriteSector(
				physical,
				(*[SectorSize]byte)(b[written:written+SectorSize]),
			); err != nil {
				return written, err
			}
		} else {
			if logical >= fresh {
				buf = [SectorSize]byte{}
			} else if err := h.table.device.ReadSector(
				physical,
				&buf,
			); err != nil {
				return written, err
			}
			copy(buf[sectorOffset:sectorOffset+chunk], b[written:written+chunk])
			if err := h.table.device.WriteSector(physical, &buf); err != nil {
				return written, err
			}
		}

		size -= chunk
		offset += chunk
		written += chunk
	}
	return written, nil
}

// grow extends the file to `length` bytes and persists the new record. The
// cached record only changes once both have succeeded.
func (h *Handle) grow(length Byte) error {
	clone := h.inode
	if err := h.table.index.Grow(&clone, length); err != nil {
		return err
	}
	clone.Length = length
	if err := h.table.writeRecord(&clone); err != nil {
		return err
	}

	h.table.logger.Debug(
		"grew inode",
		"sector", h.sector,
		"from", h.inode.Length,
		"to", length,
	)
	h.inode = clone
	return nil
}

func (h *Handle) physical(logical Sector) (Sector, error) {
	physical, err := h.table.index.Translate(&h.inode, logical)
	if err != nil {
		return SectorNil, err
	}
	if physical == SectorNil {
		return SectorNil, fmt.Errorf(
			"logical sector `%d`: %w",
			logical,
			HoleErr,
		)
	}
	return physical, nil
}
