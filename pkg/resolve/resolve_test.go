package resolve

import (
	"errors"
	"strings"
	"testing"

	"github.com/weberc2/sfs/pkg/alloc"
	"github.com/weberc2/sfs/pkg/device"
	"github.com/weberc2/sfs/pkg/directory"
	"github.com/weberc2/sfs/pkg/inode"
	. "github.com/weberc2/sfs/pkg/types"
)

func TestNextElem(t *testing.T) {
	for _, tc := range []struct{ path, elem, rest string }{
		{"", "", ""},
		{"/", "", ""},
		{"a", "a", ""},
		{"/a/b", "a", "b"},
		{"//a//b/", "a", "b/"},
		{"a/", "a", ""},
	} {
		elem, rest := NextElem(tc.path)
		if elem != tc.elem || rest != tc.rest {
			t.Fatalf(
				"NextElem(`%s`): wanted (`%s`, `%s`); found (`%s`, `%s`)",
				tc.path,
				tc.elem,
				tc.rest,
				elem,
				rest,
			)
		}
	}
}

func TestBase(t *testing.T) {
	for _, tc := range []struct{ path, wanted string }{
		{"", ""},
		{"/", ""},
		{"///", ""},
		{"a", "a"},
		{"/a/b/c", "c"},
		{"a/b/", "b"},
		{"../x", "x"},
	} {
		if found := Base(tc.path); found != tc.wanted {
			t.Fatalf(
				"Base(`%s`): wanted `%s`; found `%s`",
				tc.path,
				tc.wanted,
				found,
			)
		}
	}
}

// tree builds /a/b/c (directories) plus a regular file /a/f and returns the
// sectors of each directory by path.
func tree(t *testing.T) (*inode.Table, map[string]Sector) {
	t.Helper()
	const sectors = 256
	fm := alloc.NewFreeMap(sectors)
	for _, s := range []Sector{SuperblockSector, FreeMapSector, RootSector} {
		fm.Reserve(s)
	}
	table := inode.NewTable(device.NewMemory(sectors), fm)
	if err := directory.Create(
		table,
		RootSector,
		RootEntries,
		RootSector,
	); err != nil {
		t.Fatalf("creating root: %v", err)
	}

	dirs := map[string]Sector{"/": RootSector}
	mk := func(parentPath, name string, kind Kind) {
		parent, err := directory.OpenSector(table, dirs[parentPath])
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		defer parent.Close()

		sector, ok := fm.Allocate(1)
		if !ok {
			t.Fatal("no space")
		}
		if kind == KindDir {
			err = directory.Create(table, sector, RootEntries, parent.Sector())
		} else {
			err = table.Create(sector, 0, KindFile, parent.Sector())
		}
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if err := parent.Add(name, sector); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		path := strings.TrimSuffix(parentPath, "/") + "/" + name
		if kind == KindDir {
			dirs[path] = sector
		}
	}
	mk("/", "a", KindDir)
	mk("/a", "b", KindDir)
	mk("/a/b", "c", KindDir)
	mk("/a", "f", KindFile)
	return table, dirs
}

func TestResolve(t *testing.T) {
	type testCase struct {
		name   string
		cwd    string
		path   string
		wanted string
	}

	for _, tc := range []testCase{
		{name: "root", path: "/", wanted: "/"},
		{name: "empty", path: "", wanted: "/"},
		{name: "top level", path: "/x", wanted: "/"},
		{name: "absolute", path: "/a/b/c", wanted: "/a/b"},
		{name: "dot dot", path: "/a/b/../b/c", wanted: "/a/b"},
		{name: "dot", path: "/a/./b/./c", wanted: "/a/b"},
		{name: "dot dot at root", path: "/../../a/x", wanted: "/a"},
		{name: "trailing slash", path: "/a/b/", wanted: "/a"},
		{name: "relative", cwd: "/a", path: "b/c", wanted: "/a/b"},
		{name: "relative dot dot", cwd: "/a/b/c", path: "../../f", wanted: "/a"},
		{name: "absolute ignores cwd", cwd: "/a/b", path: "/a/x", wanted: "/a"},
		{name: "no cwd", path: "a/b/c", wanted: "/a/b"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			table, dirs := tree(t)

			var cwd *directory.Dir
			if tc.cwd != "" {
				var err error
				cwd, err = directory.OpenSector(table, dirs[tc.cwd])
				if err != nil {
					t.Fatalf("unexpected err: %v", err)
				}
				defer cwd.Close()
			}

			dir, err := Resolve(table, cwd, tc.path)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if dir.Sector() != dirs[tc.wanted] {
				t.Fatalf(
					"wanted `%s` (sector `%d`); found sector `%d`",
					tc.wanted,
					dirs[tc.wanted],
					dir.Sector(),
				)
			}
			if err := dir.Close(); err != nil {
				t.Fatalf("unexpected err: %v", err)
			}

			live := 0
			if cwd != nil {
				live = 1
			}
			if table.Live() != live {
				t.Fatalf(
					"live handles: wanted `%d`; found `%d`",
					live,
					table.Live(),
				)
			}
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	for _, path := range []string{
		"/missing/x",
		"/a/missing/x",
		"/a/f/x",
		"/a/f/../b/c",
	} {
		t.Run(path, func(t *testing.T) {
			table, _ := tree(t)
			if _, err := Resolve(table, nil, path); !errors.Is(err, NotFoundErr) {
				t.Fatalf("wanted `%v`; found `%v`", NotFoundErr, err)
			}
			if table.Live() != 0 {
				t.Fatalf("live handles: wanted `0`; found `%d`", table.Live())
			}
		})
	}
}
