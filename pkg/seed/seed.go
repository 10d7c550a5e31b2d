// Package seed loads txtar archives into a file system and dumps file
// systems back out as txtar.
//
// Each archive file name is an absolute or root-relative path, optionally
// followed by `base64=1` when the body is base64 encoded. Names ending in
// "/" are directories; their body is ignored.
package seed

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/weberc2/sfs/pkg/filesys"
	"github.com/weberc2/sfs/pkg/resolve"
	. "github.com/weberc2/sfs/pkg/types"
	"golang.org/x/tools/txtar"
)

// Import creates every directory and file listed in `ar`, making missing
// parent directories along the way. Existing directories are reused;
// existing files are an error.
func Import(s *filesys.Session, ar *txtar.Archive) error {
	for _, file := range ar.Files {
		if err := importFile(s, file); err != nil {
			return fmt.Errorf("importing `%s`: %w", file.Name, err)
		}
	}
	return nil
}

func importFile(s *filesys.Session, file txtar.File) error {
	fields := strings.Fields(file.Name)
	if len(fields) < 1 {
		return MalformedPathErr
	}
	name := fields[0]
	b64 := false
	for _, arg := range fields[1:] {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k != "base64" {
			return fmt.Errorf("invalid txtar k=v: %s", arg)
		}
		b64 = v == "1"
	}

	elems := resolve.Elems(name)
	if len(elems) < 1 {
		return MalformedPathErr
	}
	isDir := strings.HasSuffix(name, "/")
	parents := elems
	if !isDir {
		parents = elems[:len(elems)-1]
	}
	for i := range parents {
		if err := mkdir(s, "/"+strings.Join(elems[:i+1], "/")); err != nil {
			return err
		}
	}
	if isDir {
		return nil
	}

	data := file.Data
	if b64 {
		dec, err := base64.StdEncoding.DecodeString(string(data))
		if err != nil {
			return fmt.Errorf("decoding base64: %w", err)
		}
		data = dec
	}

	p := "/" + strings.Join(elems, "/")
	if err := s.Create(p, 0, KindFile); err != nil {
		return err
	}
	f, err := s.Open(p)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func mkdir(s *filesys.Session, p string) error {
	err := s.Mkdir(p)
	if err == nil || !errors.Is(err, ExistsErr) {
		return err
	}
	f, err := s.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	if !f.IsDir() {
		return fmt.Errorf("`%s`: %w", p, NotADirErr)
	}
	return nil
}

// Export walks the tree under the directory `root` and returns it as an
// archive in path order. Paths in the archive are relative to `root`.
func Export(s *filesys.Session, root string) (*txtar.Archive, error) {
	var ar txtar.Archive
	if err := export(s, root, "", &ar); err != nil {
		return nil, fmt.Errorf("exporting `%s`: %w", root, err)
	}
	return &ar, nil
}

func export(s *filesys.Session, root, rel string, ar *txtar.Archive) error {
	dir, err := s.Open(path.Join(root, rel))
	if err != nil {
		return err
	}
	if !dir.IsDir() {
		dir.Close()
		return NotADirErr
	}
	var names []string
	for {
		name, err := dir.ReadDir()
		if err == io.EOF {
			break
		}
		if err != nil {
			dir.Close()
			return err
		}
		names = append(names, name)
	}
	if err := dir.Close(); err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		child := path.Join(rel, name)
		f, err := s.Open(path.Join(root, child))
		if err != nil {
			return err
		}
		if f.IsDir() {
			if err := f.Close(); err != nil {
				return err
			}
			ar.Files = append(ar.Files, txtar.File{Name: "/" + child + "/"})
			if err := export(s, root, child, ar); err != nil {
				return err
			}
			continue
		}

		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return err
		}
		ar.Files = append(ar.Files, encodeFile("/"+child, data))
	}
	return nil
}

// encodeFile base64 encodes bodies that txtar can't hold verbatim.
func encodeFile(name string, data []byte) txtar.File {
	if utf8.Valid(data) &&
		!bytes.HasPrefix(data, []byte("-- ")) &&
		!bytes.Contains(data, []byte("\n-- ")) &&
		(len(data) == 0 || bytes.HasSuffix(data, []byte("\n"))) {
		return txtar.File{Name: name, Data: data}
	}
	return txtar.File{Name: name + " base64=1", Data: []byte(wrap(base64.StdEncoding.EncodeToString(data)))}
}

func wrap(text string) string {
	var b strings.Builder
	for len(text) > 76 {
		b.WriteString(text[:76])
		b.WriteByte('\n')
		text = text[76:]
	}
	b.WriteString(text)
	b.WriteByte('\n')
	return b.String()
}
