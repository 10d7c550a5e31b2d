package alloc

import (
	"fmt"
	"sync"

	. "github.com/weberc2/sfs/pkg/types"
)

// Allocator hands out and takes back runs of sectors. `Allocate` reports
// `false` when no run of the requested length is free.
type Allocator interface {
	Allocate(n Sector) (Sector, bool)
	Release(start Sector, n Sector)
}

type BitmapStore interface {
	Put(Bitmap) error
}

// FreeMap is the volume's free-sector map. Every call is serialized by a
// single mutex, and changes are written to the store on `Flush`.
type FreeMap struct {
	bitmap Bitmap
	store  BitmapStore
	mutex  sync.Mutex
	dirty  bool
}

var _ Allocator = (*FreeMap)(nil)

func NewFreeMap(sectors Sector) *FreeMap {
	return &FreeMap{bitmap: New(sectors)}
}

// SetStore attaches the store that `Flush` writes to. The free map is usually
// persisted as a file on the very volume it describes, so the store can only
// be attached once that file is open.
func (fm *FreeMap) SetStore(store BitmapStore) {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	fm.store = store
}

func (fm *FreeMap) Allocate(n Sector) (Sector, bool) {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	start, ok := fm.bitmap.AllocRun(n)
	if ok {
		fm.dirty = true
	}
	return start, ok
}

// Release clears `n` sectors starting at `start`. Releasing a sector that
// isn't allocated panics.
func (fm *FreeMap) Release(start Sector, n Sector) {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	for s := start; s < start+n; s++ {
		if s >= fm.bitmap.Size() || !fm.bitmap.IsSet(s) {
			panic(fmt.Sprintf("releasing unallocated sector `%d`", s))
		}
		fm.bitmap.Free(s)
	}
	fm.dirty = true
}

func (fm *FreeMap) Reserve(s Sector) {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	fm.bitmap.Reserve(s)
	fm.dirty = true
}

func (fm *FreeMap) IsAllocated(s Sector) bool {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	return fm.bitmap.IsSet(s)
}

// Free returns the number of unallocated sectors.
func (fm *FreeMap) Free() Sector {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	return fm.bitmap.CountFree()
}

// Size returns the length in bytes of the bitmap's persisted form.
func (fm *FreeMap) Size() Byte {
	return Byte(len(fm.bitmap.Bytes()))
}

func (fm *FreeMap) Load(data []byte) error {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	if err := fm.bitmap.Load(data); err != nil {
		return err
	}
	fm.dirty = false
	return nil
}

func (fm *FreeMap) Flush() error {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	if fm.dirty && fm.store != nil {
		if err := fm.store.Put(fm.bitmap); err != nil {
			return fmt.Errorf("flushing free map: %w", err)
		}
		fm.dirty = false
	}
	return nil
}
