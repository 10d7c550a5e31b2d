package filesys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weberc2/sfs/pkg/directory"
	"github.com/weberc2/sfs/pkg/inode"
	"github.com/weberc2/sfs/pkg/math"
	"github.com/weberc2/sfs/pkg/resolve"
	. "github.com/weberc2/sfs/pkg/types"
)

// Session is one caller's view of the file system: relative paths resolve
// against its current directory. A Session is not safe for concurrent use;
// give each goroutine its own.
type Session struct {
	fs *FileSystem

	// nil until the first Chdir; paths then resolve from the root
	cwd *directory.Dir
}

func (fs *FileSystem) Session() *Session { return &Session{fs: fs} }

// Create makes a file or directory of `size` bytes, zero filled, at `path`.
// Directory sizes are rounded up to a whole number of entries.
func (s *Session) Create(path string, size Byte, kind Kind) error {
	if err := s.create(path, size, kind); err != nil {
		return fmt.Errorf("creating `%s`: %w", path, err)
	}
	return nil
}

// Mkdir creates an empty directory with room for the same number of entries
// as the root starts with.
func (s *Session) Mkdir(path string) error {
	return s.Create(path, RootEntries*DirEntrySize, KindDir)
}

func (s *Session) create(path string, size Byte, kind Kind) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if size < 0 {
		return InvalidOffsetErr
	}
	if kind == KindDir {
		size = math.DivRoundUp(size, DirEntrySize) * DirEntrySize
	}

	dir, err := resolve.Resolve(s.fs.inodes, s.cwd, path)
	if err != nil {
		return err
	}
	defer dir.Close()

	name := resolve.Base(path)
	if name == "" {
		return MalformedPathErr
	}
	if err := directory.ValidateName(name); err != nil {
		return err
	}
	if dir.Removed() {
		return fmt.Errorf("directory `%d` was removed: %w", dir.Sector(), NotFoundErr)
	}
	if h, err := dir.Lookup(name); err == nil {
		h.Close()
		return ExistsErr
	} else if !errors.Is(err, NotFoundErr) {
		return err
	}

	sector, ok := s.fs.freeMap.Allocate(1)
	if !ok {
		return NoSpaceErr
	}
	if err := s.fs.inodes.Create(sector, size, kind, dir.Sector()); err != nil {
		s.fs.freeMap.Release(sector, 1)
		return err
	}
	if err := dir.Add(name, sector); err != nil {
		s.discard(sector)
		return err
	}
	return s.fs.Sync()
}

// discard removes an inode that was created but never bound to a name,
// releasing its sectors.
func (s *Session) discard(sector Sector) {
	h, err := s.fs.inodes.Open(sector)
	if err != nil {
		s.fs.logger.Error("opening unbound inode", "sector", sector, "err", err)
		return
	}
	h.Remove()
	if err := h.Close(); err != nil {
		s.fs.logger.Error("releasing unbound inode", "sector", sector, "err", err)
	}
}

// Open opens the file or directory at `path`. A path with no final
// component, or ending in "." or "..", names a directory.
func (s *Session) Open(path string) (*File, error) {
	f, err := s.open(path)
	if err != nil {
		return nil, fmt.Errorf("opening `%s`: %w", path, err)
	}
	return f, nil
}

func (s *Session) open(path string) (*File, error) {
	dir, err := resolve.Resolve(s.fs.inodes, s.cwd, path)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	var h *inode.Handle
	switch name := resolve.Base(path); name {
	case "", ".":
		h = dir.Inode().Reopen()
	case "..":
		if h, err = s.fs.inodes.Open(dir.Parent()); err != nil {
			return nil, err
		}
	default:
		if h, err = dir.Lookup(name); err != nil {
			return nil, err
		}
	}
	return newFile(s.fs, h)
}

// Remove unbinds `path`. Its storage is reclaimed once every File open on it
// has been closed. Directories must be empty.
func (s *Session) Remove(path string) error {
	if err := s.remove(path); err != nil {
		return fmt.Errorf("removing `%s`: %w", path, err)
	}
	return nil
}

func (s *Session) remove(path string) error {
	switch resolve.Base(path) {
	case "", ".", "..":
		return MalformedPathErr
	}

	dir, err := resolve.Resolve(s.fs.inodes, s.cwd, path)
	if err != nil {
		return err
	}
	defer dir.Close()

	if err := dir.Remove(resolve.Base(path)); err != nil {
		// the entry may be gone and sectors released even so
		return errors.Join(err, s.fs.Sync())
	}
	return s.fs.Sync()
}

// Chdir makes the directory at `path` the session's current directory.
func (s *Session) Chdir(path string) error {
	dir, err := s.openDir(path)
	if err != nil {
		return fmt.Errorf("changing directory to `%s`: %w", path, err)
	}
	if s.cwd != nil {
		if err := s.cwd.Close(); err != nil {
			dir.Close()
			return fmt.Errorf("changing directory to `%s`: %w", path, err)
		}
	}
	s.cwd = dir
	return nil
}

func (s *Session) openDir(path string) (*directory.Dir, error) {
	if path == "" {
		return nil, MalformedPathErr
	}
	f, err := s.open(path)
	if err != nil {
		return nil, err
	}
	if f.dir == nil {
		f.Close()
		return nil, NotADirErr
	}
	return f.dir, nil
}

// Cwd returns the absolute path of the current directory, rebuilt by walking
// parent links up to the root.
func (s *Session) Cwd() (string, error) {
	if s.cwd == nil {
		return "/", nil
	}

	var elems []string
	cur := s.cwd.Reopen()
	for !cur.IsRoot() {
		parent, err := cur.OpenParent()
		if err != nil {
			cur.Close()
			return "", fmt.Errorf("finding working directory: %w", err)
		}
		name, err := parent.NameOf(cur.Sector())
		cur.Close()
		if err != nil {
			parent.Close()
			return "", fmt.Errorf("finding working directory: %w", err)
		}
		elems = append(elems, name)
		cur = parent
	}
	if err := cur.Close(); err != nil {
		return "", fmt.Errorf("finding working directory: %w", err)
	}

	for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
		elems[i], elems[j] = elems[j], elems[i]
	}
	return "/" + strings.Join(elems, "/"), nil
}

// Close releases the session's current directory.
func (s *Session) Close() error {
	if s.cwd == nil {
		return nil
	}
	cwd := s.cwd
	s.cwd = nil
	if err := cwd.Close(); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}
