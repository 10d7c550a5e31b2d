package alloc

import (
	"fmt"

	"github.com/weberc2/sfs/pkg/math"
	. "github.com/weberc2/sfs/pkg/types"
)

const bitsPerByte = 8

// Bitmap tracks one bit per sector; a set bit means the sector is in use.
// Bits are numbered most-significant first within each byte.
type Bitmap struct {
	bytes []byte
	size  Sector
}

func New(size Sector) Bitmap {
	return Bitmap{
		bytes: make([]byte, math.DivRoundUp(size, bitsPerByte)),
		size:  size,
	}
}

func (bm Bitmap) Size() Sector { return bm.size }

// AllocRun finds the first run of `n` clear bits, sets them, and returns the
// index of the first one.
func (bm Bitmap) AllocRun(n Sector) (Sector, bool) {
	if n == 0 {
		return SectorNil, false
	}
	var run Sector
	for s := Sector(0); s < bm.size; s++ {
		if bm.IsSet(s) {
			run = 0
			continue
		}
		run++
		if run == n {
			start := s + 1 - n
			for i := start; i <= s; i++ {
				bm.Reserve(i)
			}
			return start, true
		}
	}
	return SectorNil, false
}

func (bm Bitmap) IsSet(s Sector) bool {
	return !byteIsZero(bm.bytes[s/bitsPerByte], uint8(s%bitsPerByte))
}

func (bm Bitmap) Free(s Sector) {
	b := &bm.bytes[s/bitsPerByte]
	*b = byteSetLow(*b, uint8(s%bitsPerByte))
}

func (bm Bitmap) Reserve(s Sector) {
	b := &bm.bytes[s/bitsPerByte]
	*b = byteSetHigh(*b, uint8(s%bitsPerByte))
}

// CountFree returns the number of clear bits.
func (bm Bitmap) CountFree() Sector {
	var free Sector
	for s := Sector(0); s < bm.size; s++ {
		if !bm.IsSet(s) {
			free++
		}
	}
	return free
}

func (bm Bitmap) Bytes() []byte { return bm.bytes }

// Load replaces the bitmap's content with `data`, which must be exactly as
// long as the bitmap's byte representation.
func (bm Bitmap) Load(data []byte) error {
	if len(data) != len(bm.bytes) {
		return fmt.Errorf(
			"loading bitmap: wanted `%d` bytes; found `%d`",
			len(bm.bytes),
			len(data),
		)
	}
	copy(bm.bytes, data)
	return nil
}

func byteIsZero(byt byte, bit uint8) bool {
	return byt&(0b1000_0000>>bit) == 0
}

func byteSetHigh(byt byte, bit uint8) byte {
	return byt | (0b1000_0000 >> bit)
}

func byteSetLow(byt byte, bit uint8) byte {
	return byt & ^(0b1000_0000 >> bit)
}
