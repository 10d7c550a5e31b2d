// Package filesys ties the device, free map, inode table and directories
// together into a mountable file system.
package filesys

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/weberc2/sfs/pkg/alloc"
	"github.com/weberc2/sfs/pkg/device"
	"github.com/weberc2/sfs/pkg/directory"
	"github.com/weberc2/sfs/pkg/encode"
	"github.com/weberc2/sfs/pkg/index"
	"github.com/weberc2/sfs/pkg/inode"
	. "github.com/weberc2/sfs/pkg/types"
)

type FileSystem struct {
	device      device.Device
	freeMap     *alloc.FreeMap
	inodes      *inode.Table
	freeMapFile *inode.Handle
	superblock  Superblock
	logger      *slog.Logger
}

type options struct {
	logger   *slog.Logger
	volumeID uuid.UUID
	now      func() time.Time
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithVolumeID sets the id Format writes to the superblock instead of a
// random one.
func WithVolumeID(id uuid.UUID) Option {
	return func(o *options) { o.volumeID = id }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Format writes an empty file system to `d`: the superblock, the free-map
// file and a root directory that is its own parent.
func Format(d device.Device, opts ...Option) (*FileSystem, error) {
	fs, err := format(d, newOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("formatting device: %w", err)
	}
	return fs, nil
}

func format(d device.Device, o options) (*FileSystem, error) {
	sectors := d.Sectors()
	freeMap := alloc.NewFreeMap(sectors)

	freeMapFootprint, err := index.Footprint(freeMap.Size())
	if err != nil {
		return nil, err
	}
	rootFootprint, err := index.Footprint(RootEntries * DirEntrySize)
	if err != nil {
		return nil, err
	}
	if minimum := 3 + freeMapFootprint + rootFootprint; sectors < minimum {
		return nil, fmt.Errorf(
			"device has `%d` sectors; at least `%d` required: %w",
			sectors,
			minimum,
			NoSpaceErr,
		)
	}

	for _, s := range []Sector{SuperblockSector, FreeMapSector, RootSector} {
		freeMap.Reserve(s)
	}
	inodes := inode.NewTable(d, freeMap, inode.WithLogger(o.logger))

	if err := inodes.Create(
		FreeMapSector,
		freeMap.Size(),
		KindFile,
		RootSector,
	); err != nil {
		return nil, fmt.Errorf("creating free-map file: %w", err)
	}
	if err := directory.Create(
		inodes,
		RootSector,
		RootEntries,
		RootSector,
	); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}

	volumeID := o.volumeID
	if volumeID == uuid.Nil {
		volumeID = uuid.New()
	}
	sb := Superblock{
		Sectors:       sectors,
		FreeMapSector: FreeMapSector,
		RootSector:    RootSector,
		Created:       o.now().UTC().Truncate(time.Second),
		VolumeID:      volumeID,
	}
	var buf [SectorSize]byte
	encode.EncodeSuperblock(&sb, &buf)
	if err := d.WriteSector(SuperblockSector, &buf); err != nil {
		return nil, fmt.Errorf("writing superblock: %w", err)
	}

	fs, err := open(d, sb, freeMap, inodes, o.logger)
	if err != nil {
		return nil, err
	}
	if err := fs.Sync(); err != nil {
		fs.Close()
		return nil, err
	}

	o.logger.Info(
		"formatted volume",
		"volume", volumeID,
		"sectors", sectors,
		"free", freeMap.Free(),
	)
	return fs, nil
}

// Mount opens the file system previously formatted onto `d`.
func Mount(d device.Device, opts ...Option) (*FileSystem, error) {
	fs, err := mount(d, newOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("mounting device: %w", err)
	}
	return fs, nil
}

func mount(d device.Device, o options) (*FileSystem, error) {
	var (
		buf [SectorSize]byte
		sb  Superblock
	)
	if err := d.ReadSector(SuperblockSector, &buf); err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	if err := encode.DecodeSuperblock(&sb, &buf); err != nil {
		return nil, err
	}
	if sb.Sectors != d.Sectors() {
		return nil, fmt.Errorf(
			"superblock describes `%d` sectors but device has `%d`",
			sb.Sectors,
			d.Sectors(),
		)
	}

	freeMap := alloc.NewFreeMap(sb.Sectors)
	inodes := inode.NewTable(d, freeMap, inode.WithLogger(o.logger))
	fs, err := open(d, sb, freeMap, inodes, o.logger)
	if err != nil {
		return nil, err
	}

	data := make([]byte, freeMap.Size())
	n, err := fs.freeMapFile.ReadAt(data, 0)
	if err != nil {
		fs.freeMapFile.Close()
		return nil, fmt.Errorf("reading free map: %w", err)
	}
	if n != freeMap.Size() {
		fs.freeMapFile.Close()
		return nil, fmt.Errorf(
			"reading free map: wanted `%d` bytes; found `%d`",
			freeMap.Size(),
			n,
		)
	}
	if err := freeMap.Load(data); err != nil {
		fs.freeMapFile.Close()
		return nil, err
	}

	root, err := directory.OpenSector(inodes, sb.RootSector)
	if err != nil {
		fs.freeMapFile.Close()
		return nil, fmt.Errorf("checking root directory: %w", err)
	}
	if err := root.Close(); err != nil {
		fs.freeMapFile.Close()
		return nil, err
	}

	o.logger.Debug(
		"mounted volume",
		"volume", sb.VolumeID,
		"sectors", sb.Sectors,
		"free", freeMap.Free(),
	)
	return fs, nil
}

func open(
	d device.Device,
	sb Superblock,
	freeMap *alloc.FreeMap,
	inodes *inode.Table,
	logger *slog.Logger,
) (*FileSystem, error) {
	h, err := inodes.Open(sb.FreeMapSector)
	if err != nil {
		return nil, fmt.Errorf("opening free-map file: %w", err)
	}
	freeMap.SetStore(bitmapFile{h})
	return &FileSystem{
		device:      d,
		freeMap:     freeMap,
		inodes:      inodes,
		freeMapFile: h,
		superblock:  sb,
		logger:      logger,
	}, nil
}

// bitmapFile persists the free map into the free-map file. The file is
// sized at format time, so writing it never needs to allocate.
type bitmapFile struct {
	file *inode.Handle
}

func (bf bitmapFile) Put(bm alloc.Bitmap) error {
	if _, err := bf.file.WriteAt(bm.Bytes(), 0); err != nil {
		return fmt.Errorf("writing free-map file: %w", err)
	}
	return nil
}

func (fs *FileSystem) Superblock() Superblock { return fs.superblock }

func (fs *FileSystem) Device() device.Device { return fs.device }

func (fs *FileSystem) Inodes() *inode.Table { return fs.inodes }

// FreeSectors returns the number of unallocated sectors.
func (fs *FileSystem) FreeSectors() Sector { return fs.freeMap.Free() }

// Sync writes the free map out if it changed.
func (fs *FileSystem) Sync() error {
	if err := fs.freeMap.Flush(); err != nil {
		return fmt.Errorf("syncing file system: %w", err)
	}
	return nil
}

// Close syncs the file system and closes the free-map file. Files and
// sessions should be closed first.
func (fs *FileSystem) Close() error {
	if err := fs.Sync(); err != nil {
		return err
	}
	if err := fs.freeMapFile.Close(); err != nil {
		return fmt.Errorf("closing file system: %w", err)
	}
	if live := fs.inodes.Live(); live > 0 {
		fs.logger.Warn("closing file system with open inodes", "open", live)
	}
	return nil
}
