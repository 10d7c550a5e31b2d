package filesys

import (
	"fmt"
	"io"
	stdmath "math"

	"github.com/weberc2/sfs/pkg/directory"
	"github.com/weberc2/sfs/pkg/index"
	"github.com/weberc2/sfs/pkg/inode"
	. "github.com/weberc2/sfs/pkg/types"
)

// File is an open file or directory with its own position. Several Files
// may share one inode; each keeps its own position.
type File struct {
	fs     *FileSystem
	inode  *inode.Handle
	dir    *directory.Dir // non-nil for directories
	pos    Byte
	closed bool
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.ReaderAt        = (*File)(nil)
	_ io.WriterAt        = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// newFile takes ownership of `h`.
func newFile(fs *FileSystem, h *inode.Handle) (*File, error) {
	f := File{fs: fs, inode: h}
	if h.IsDir() {
		dir, err := directory.Open(fs.inodes, h)
		if err != nil {
			return nil, err
		}
		f.dir = dir
	}
	return &f, nil
}

// Inumber returns the sector of the file's inode, which identifies it for as
// long as it exists.
func (f *File) Inumber() Sector { return f.inode.Sector() }

func (f *File) IsDir() bool { return f.dir != nil }

func (f *File) Length() Byte { return f.inode.Length() }

func (f *File) Tell() int64 { return int64(f.pos) }

// Read reads from the current position and advances it.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, int64(f.pos))
	f.pos += Byte(n)
	return n, err
}

// ReadAt reads from `off` without moving the position. It returns `io.EOF`
// whenever it reads fewer than `len(p)` bytes.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("reading file `%d`: %w", f.Inumber(), ClosedErr)
	}
	n, err := f.inode.ReadAt(p, Byte(off))
	if err != nil {
		return int(n), err
	}
	if int(n) < len(p) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// Write writes at the current position, growing the file as needed, and
// advances the position.
func (f *File) Write(p []byte) (int, error) {
	n, err := f.WriteAt(p, int64(f.pos))
	f.pos += Byte(n)
	return n, err
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("writing file `%d`: %w", f.Inumber(), ClosedErr)
	}
	if f.IsDir() {
		return 0, fmt.Errorf("writing file `%d`: %w", f.Inumber(), IsADirErr)
	}
	n, err := f.inode.WriteAt(p, Byte(off))
	if err != nil {
		return int(n), err
	}
	if err := f.fs.Sync(); err != nil {
		return int(n), err
	}
	return int(n), nil
}

// Seek sets the position for the next Read or Write. Seeking past the end is
// allowed; a later Write there grows the file and zero fills the gap.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var base Byte
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = f.Length()
	default:
		return 0, fmt.Errorf(
			"seeking: invalid whence `%d`: %w",
			whence,
			InvalidOffsetErr,
		)
	}
	if offset > 0 && base > Byte(stdmath.MaxInt64-offset) {
		return 0, fmt.Errorf(
			"seeking `%d` past `%d`: %w",
			offset,
			base,
			InvalidOffsetErr,
		)
	}
	pos := base + Byte(offset)
	if pos < 0 {
		return 0, fmt.Errorf("seeking to `%d`: %w", pos, InvalidOffsetErr)
	}
	f.pos = pos
	return int64(pos), nil
}

// ReadDir returns the next name in a directory, or `io.EOF` once all have
// been returned.
func (f *File) ReadDir() (string, error) {
	if f.dir == nil {
		return "", fmt.Errorf("reading directory `%d`: %w", f.Inumber(), NotADirErr)
	}
	return f.dir.ReadDir()
}

// DenyWrite makes writes to the inode fail for every File open on it until
// AllowWrite is called.
func (f *File) DenyWrite() { f.inode.DenyWrite() }

func (f *File) AllowWrite() { f.inode.AllowWrite() }

type Info struct {
	Inumber Sector `json:"inumber"`
	Kind    Kind   `json:"kind"`
	Length  Byte   `json:"length"`
	Parent  Sector `json:"parent"`

	// Sectors counts data and index sectors, not the inode's own.
	Sectors Sector `json:"sectors"`
}

func (f *File) Stat() (Info, error) {
	length := f.Length()
	sectors, err := index.Footprint(length)
	if err != nil {
		return Info{}, fmt.Errorf("stat file `%d`: %w", f.Inumber(), err)
	}
	return Info{
		Inumber: f.Inumber(),
		Kind:    f.inode.Kind(),
		Length:  length,
		Parent:  f.inode.Parent(),
		Sectors: sectors,
	}, nil
}

// Close releases the File. If its inode was removed and this was the last
// reference, the inode's sectors go back to the free map.
func (f *File) Close() error {
	if f.closed {
		return fmt.Errorf("closing file `%d`: %w", f.Inumber(), ClosedErr)
	}
	f.closed = true

	var err error
	if f.dir != nil {
		err = f.dir.Close()
	} else {
		err = f.inode.Close()
	}
	if err != nil {
		return fmt.Errorf("closing file `%d`: %w", f.Inumber(), err)
	}
	return f.fs.Sync()
}
