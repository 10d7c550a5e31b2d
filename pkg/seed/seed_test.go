package seed

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/weberc2/sfs/pkg/device"
	"github.com/weberc2/sfs/pkg/filesys"
	. "github.com/weberc2/sfs/pkg/types"
	"golang.org/x/tools/txtar"
)

func session(t *testing.T) *filesys.Session {
	t.Helper()
	fs, err := filesys.Format(device.NewMemory(1024))
	if err != nil {
		t.Fatalf("formatting: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	s := fs.Session()
	t.Cleanup(func() { s.Close() })
	return s
}

func read(t *testing.T, s *filesys.Session, path string) []byte {
	t.Helper()
	f, err := s.Open(path)
	if err != nil {
		t.Fatalf("opening `%s`: %v", path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("reading `%s`: %v", path, err)
	}
	return data
}

func TestImport(t *testing.T) {
	ar, err := txtar.ParseFile("testdata/tree.txtar")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	s := session(t)
	if err := Import(s, ar); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	for _, testCase := range []struct {
		path   string
		wanted []byte
	}{
		{path: "/etc/motd", wanted: []byte("welcome to sfs\n")},
		{path: "/home/ada/notes", wanted: []byte("grow the index\nzero the gaps\n")},
		{path: "/home/ada/empty", wanted: []byte{}},
		{path: "/bin/blob", wanted: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
	} {
		if found := read(t, s, testCase.path); !bytes.Equal(found, testCase.wanted) {
			t.Fatalf(
				"`%s`: wanted `%q`; found `%q`",
				testCase.path,
				testCase.wanted,
				found,
			)
		}
	}

	f, err := s.Open("/home")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer f.Close()
	if !f.IsDir() {
		t.Fatal("`/home`: wanted a directory")
	}
}

func TestImport_Errors(t *testing.T) {
	for _, testCase := range []struct {
		name    string
		archive string
		wanted  error
	}{
		{
			name:    "file-twice",
			archive: "-- /a --\none\n-- /a --\ntwo\n",
			wanted:  ExistsErr,
		},
		{
			name:    "file-as-dir",
			archive: "-- /a --\none\n-- /a/b --\ntwo\n",
			wanted:  NotADirErr,
		},
		{
			name:    "long-name",
			archive: "-- /a-very-long-file-name --\n",
			wanted:  NameTooLongErr,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			err := Import(session(t), txtar.Parse([]byte(testCase.archive)))
			if !errors.Is(err, testCase.wanted) {
				t.Fatalf("wanted `%v`; found `%v`", testCase.wanted, err)
			}
		})
	}
}

func TestExport_RoundTrip(t *testing.T) {
	ar, err := txtar.ParseFile("testdata/tree.txtar")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	s := session(t)
	if err := Import(s, ar); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	exported, err := Export(s, "/")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	wantedNames := []string{
		"/bin/",
		"/bin/blob base64=1",
		"/etc/",
		"/etc/motd",
		"/home/",
		"/home/ada/",
		"/home/ada/empty",
		"/home/ada/notes",
	}
	if len(exported.Files) != len(wantedNames) {
		t.Fatalf("wanted `%d` files; found `%d`", len(wantedNames), len(exported.Files))
	}
	for i, name := range wantedNames {
		if exported.Files[i].Name != name {
			t.Fatalf("file `%d`: wanted `%s`; found `%s`", i, name, exported.Files[i].Name)
		}
	}

	// importing the export into a fresh volume reproduces the tree
	other := session(t)
	if err := Import(other, txtar.Parse(txtar.Format(exported))); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, p := range []string{"/bin/blob", "/etc/motd", "/home/ada/notes"} {
		if !bytes.Equal(read(t, s, p), read(t, other, p)) {
			t.Fatalf("`%s`: contents differ after round trip", p)
		}
	}

	sub, err := Export(s, "/home")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(sub.Files) != 3 || sub.Files[0].Name != "/ada/" {
		t.Fatalf("exporting `/home`: found `%d` files", len(sub.Files))
	}
}
