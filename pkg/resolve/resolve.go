// Package resolve walks slash-separated paths through directories.
package resolve

import (
	"fmt"

	"github.com/weberc2/sfs/pkg/directory"
	"github.com/weberc2/sfs/pkg/inode"
	. "github.com/weberc2/sfs/pkg/types"
)

const Separator = '/'

func IsAbs(path string) bool { return path != "" && path[0] == Separator }

// NextElem splits the first component off `path`. Repeated separators are
// treated as one and leading ones are skipped.
func NextElem(path string) (elem, rest string) {
	i := 0
	for i < len(path) && path[i] == Separator {
		i++
	}
	path = path[i:]
	if path == "" {
		return "", ""
	}
	i = 0
	for i < len(path) && path[i] != Separator {
		i++
	}
	elem = path[:i]
	for i < len(path) && path[i] == Separator {
		i++
	}
	return elem, path[i:]
}

// Elems returns every component of `path`.
func Elems(path string) []string {
	var elems []string
	for {
		elem, rest := NextElem(path)
		if elem == "" {
			return elems
		}
		elems = append(elems, elem)
		path = rest
	}
}

// Base returns the final component of `path`, or "" if it has none (as with
// "/" or "").
func Base(path string) string {
	elems := Elems(path)
	if len(elems) == 0 {
		return ""
	}
	return elems[len(elems)-1]
}

// Resolve returns the directory that holds, or would hold, the final
// component of `path`; the final component itself is never inspected.
// Absolute paths start at the root, as do relative ones when `cwd` is nil.
// "." and ".." are followed, ".." by way of each directory's recorded
// parent. A missing component, or one that isn't a directory, fails with
// `NotFoundErr`. The returned Dir belongs to the caller.
func Resolve(
	table *inode.Table,
	cwd *directory.Dir,
	path string,
) (*directory.Dir, error) {
	dir, err := resolve(table, cwd, path)
	if err != nil {
		return nil, fmt.Errorf("resolving `%s`: %w", path, err)
	}
	return dir, nil
}

func resolve(
	table *inode.Table,
	cwd *directory.Dir,
	path string,
) (*directory.Dir, error) {
	var dir *directory.Dir
	if IsAbs(path) || cwd == nil {
		root, err := directory.OpenRoot(table)
		if err != nil {
			return nil, err
		}
		dir = root
	} else {
		dir = cwd.Reopen()
	}

	elems := Elems(path)
	if len(elems) == 0 {
		return dir, nil
	}
	for _, elem := range elems[:len(elems)-1] {
		next, err := step(table, dir, elem)
		if err != nil {
			dir.Close()
			return nil, err
		}
		if next != dir {
			if err := dir.Close(); err != nil {
				next.Close()
				return nil, err
			}
			dir = next
		}
	}
	return dir, nil
}

// step moves from `dir` to the directory named `elem`. It returns `dir`
// itself for ".".
func step(
	table *inode.Table,
	dir *directory.Dir,
	elem string,
) (*directory.Dir, error) {
	switch elem {
	case ".":
		return dir, nil
	case "..":
		return dir.OpenParent()
	}

	h, err := dir.Lookup(elem)
	if err != nil {
		return nil, err
	}
	if !h.IsDir() {
		h.Close()
		return nil, fmt.Errorf("`%s` is not a directory: %w", elem, NotFoundErr)
	}
	return directory.Open(table, h)
}
