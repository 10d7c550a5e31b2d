// Package inode keeps the in-memory handles of open inodes and performs
// byte-range I/O against them.
//
// A Table holds at most one Handle per inode sector. Every opener of a sector
// shares that Handle, which is reference counted; the last Close either
// leaves the on-disk record as it is or, when the inode was removed, releases
// all of its sectors.
package inode

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/weberc2/sfs/pkg/alloc"
	"github.com/weberc2/sfs/pkg/device"
	"github.com/weberc2/sfs/pkg/encode"
	"github.com/weberc2/sfs/pkg/index"
	. "github.com/weberc2/sfs/pkg/types"
)

type Table struct {
	mutex     sync.Mutex
	handles   map[Sector]*Handle
	device    device.Device
	allocator alloc.Allocator
	index     *index.Index
	logger    *slog.Logger
}

type Option func(*Table)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) { t.logger = logger }
}

func NewTable(
	d device.Device,
	allocator alloc.Allocator,
	opts ...Option,
) *Table {
	t := &Table{
		handles:   map[Sector]*Handle{},
		device:    d,
		allocator: allocator,
		index:     index.New(d, allocator),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create writes a new inode record of `kind` at `sector` with every sector
// for `length` bytes allocated and zeroed. The caller owns `sector`.
func (t *Table) Create(
	sector Sector,
	length Byte,
	kind Kind,
	parent Sector,
) error {
	inode := Inode{Sector: sector, Kind: kind, Parent: parent}
	if err := t.index.Grow(&inode, length); err != nil {
		return fmt.Errorf("creating inode `%d`: %w", sector, err)
	}
	inode.Length = length

	if err := t.writeRecord(&inode); err != nil {
		if releaseErr := t.index.Release(&inode); releaseErr != nil {
			t.logger.Error(
				"releasing sectors of inode that failed to be created",
				"sector", sector,
				"err", releaseErr,
			)
		}
		return fmt.Errorf("creating inode `%d`: %w", sector, err)
	}

	t.logger.Debug(
		"created inode",
		"sector", sector,
		"kind", kind,
		"length", length,
		"parent", parent,
	)
	return nil
}

// Open returns the handle for the inode at `sector`, reading it from the
// device if no handle for it is live.
func (t *Table) Open(sector Sector) (*Handle, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if h, found := t.handles[sector]; found {
		h.refs++
		return h, nil
	}

	h := &Handle{table: t, sector: sector, refs: 1}
	h.inode.Sector = sector
	if err := t.readRecord(&h.inode); err != nil {
		return nil, fmt.Errorf("opening inode `%d`: %w", sector, err)
	}
	t.handles[sector] = h
	return h, nil
}

// Live returns the number of inodes with at least one open handle.
func (t *Table) Live() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.handles)
}

func (t *Table) reopen(h *Handle) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if h.refs < 1 {
		panic(fmt.Sprintf("reopening closed inode `%d`", h.sector))
	}
	h.refs++
}

func (t *Table) close(h *Handle) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if h.refs < 1 {
		return fmt.Errorf("closing inode `%d`: %w", h.sector, ClosedErr)
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	delete(t.handles, h.sector)

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.removed {
		return nil
	}

	t.logger.Debug(
		"releasing removed inode",
		"sector", h.sector,
		"length", h.inode.Length,
	)
	err := t.index.Release(&h.inode)
	t.allocator.Release(h.sector, 1)
	if err != nil {
		t.logger.Error(
			"leaking sectors of removed inode",
			"sector", h.sector,
			"err", err,
		)
		return fmt.Errorf("closing removed inode `%d`: %w", h.sector, err)
	}
	return nil
}

func (t *Table) readRecord(inode *Inode) error {
	var buf [InodeSize]byte
	if err := t.device.ReadSector(inode.Sector, &buf); err != nil {
		return fmt.Errorf("reading inode record: %w", err)
	}
	if err := encode.DecodeInode(inode, &buf); err != nil {
		return fmt.Errorf("reading inode record: %w", err)
	}
	return nil
}

func (t *Table) writeRecord(inode *Inode) error {
	var buf [InodeSize]byte
	encode.EncodeInode(inode, &buf)
	if err := t.device.WriteSector(inode.Sector, &buf); err != nil {
		return fmt.Errorf("writing inode record: %w", err)
	}
	return nil
}
