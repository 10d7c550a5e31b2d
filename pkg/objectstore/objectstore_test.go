package objectstore

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/weberc2/sfs/pkg/types"
)

func TestGzipObjectStore(t *testing.T) {
	inner := NewMemory()
	objectStore := GzipObjectStore{inner}
	data := bytes.Repeat([]byte{0}, 64*1024)
	if err := objectStore.PutObject(
		"my-bucket",
		"my-key",
		bytes.NewReader(data),
	); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	raw, err := inner.GetObject("my-bucket", "my-key")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	compressed, err := io.ReadAll(raw)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Fatalf(
			"stored size: wanted less than `%d`; found `%d`",
			len(data),
			len(compressed),
		)
	}

	body, err := objectStore.GetObject("my-bucket", "my-key")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer body.Close()
	found, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !bytes.Equal(found, data) {
		t.Fatalf("wanted `%d` zero bytes; found `%d` bytes", len(data), len(found))
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	for _, key := range []string{"vol/b", "vol/a", "other/c"} {
		if err := m.PutObject("bucket", key, strings.NewReader(key)); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}

	keys, err := m.ListObjects("bucket", "vol/")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(keys) != 2 || keys[0] != "vol/a" || keys[1] != "vol/b" {
		t.Fatalf("wanted `[vol/a vol/b]`; found `%v`", keys)
	}

	if err := m.DeleteObject("bucket", "vol/a"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	var notFound *types.ObjectNotFoundErr
	if _, err := m.GetObject("bucket", "vol/a"); !errors.As(err, &notFound) {
		t.Fatalf("wanted `ObjectNotFoundErr`; found `%v`", err)
	}
	if err := m.DeleteObject("bucket", "vol/a"); !errors.As(err, &notFound) {
		t.Fatalf("deleting twice: wanted `ObjectNotFoundErr`; found `%v`", err)
	}
}
