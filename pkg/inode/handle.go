package inode

import (
	"fmt"
	"sync"

	. "github.com/weberc2/sfs/pkg/types"
)

// Handle is the shared in-memory state of one open inode. Reads hold its
// lock shared and writes hold it exclusively, growth included.
type Handle struct {
	table  *Table
	sector Sector

	// guarded by table.mutex
	refs int

	// serializes multi-step updates built on top of the handle, such as
	// directory entry changes
	update sync.Mutex

	mutex     sync.RWMutex
	inode     Inode
	removed   bool
	denyWrite int
}

func (h *Handle) Sector() Sector { return h.sector }

// Reopen adds a reference to `h` and returns it.
func (h *Handle) Reopen() *Handle {
	h.table.reopen(h)
	return h
}

func (h *Handle) Close() error { return h.table.close(h) }

// Remove marks the inode for deletion once its last handle is closed. The
// handle keeps working until then.
func (h *Handle) Remove() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removed = true
}

func (h *Handle) Removed() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.removed
}

// DenyWrite makes writes through any handle on this inode fail with
// `WriteDeniedErr` until a matching `AllowWrite`. Calls nest.
func (h *Handle) DenyWrite() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.denyWrite++
}

func (h *Handle) AllowWrite() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.denyWrite < 1 {
		panic(fmt.Sprintf(
			"allowing writes to inode `%d` that were never denied",
			h.sector,
		))
	}
	h.denyWrite--
}

func (h *Handle) Length() Byte {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.inode.Length
}

func (h *Handle) Kind() Kind {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.inode.Kind
}

func (h *Handle) IsDir() bool { return h.Kind() == KindDir }

func (h *Handle) Parent() Sector {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.inode.Parent
}

func (h *Handle) SetParent(parent Sector) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	clone := h.inode
	clone.Parent = parent
	if err := h.table.writeRecord(&clone); err != nil {
		return fmt.Errorf(
			"setting parent of inode `%d` to `%d`: %w",
			h.sector,
			parent,
			err,
		)
	}
	h.inode = clone
	return nil
}

// Lock serializes a read-modify-write sequence of calls against other such
// sequences on the same inode. It doesn't block plain reads or writes.
func (h *Handle) Lock() { h.update.Lock() }

func (h *Handle) Unlock() { h.update.Unlock() }

// Inode returns a copy of the cached on-disk record.
func (h *Handle) Inode() Inode {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.inode
}
