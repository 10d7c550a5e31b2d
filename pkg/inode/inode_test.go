package inode

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/weberc2/sfs/pkg/alloc"
	"github.com/weberc2/sfs/pkg/device"
	. "github.com/weberc2/sfs/pkg/types"
)

func newTable(t *testing.T, sectors Sector) (*Table, *alloc.FreeMap) {
	t.Helper()
	fm := alloc.NewFreeMap(sectors)
	fm.Reserve(SuperblockSector)
	return NewTable(device.NewMemory(sectors), fm), fm
}

// newFile allocates an inode sector, creates a regular file of `length`
// bytes in it, and opens it.
func newFile(t *testing.T, table *Table, length Byte) *Handle {
	t.Helper()
	sector, ok := table.allocator.Allocate(1)
	if !ok {
		t.Fatal("allocating inode sector: no space")
	}
	if err := table.Create(sector, length, KindFile, RootSector); err != nil {
		t.Fatalf("creating inode: %v", err)
	}
	h, err := table.Open(sector)
	if err != nil {
		t.Fatalf("opening inode: %v", err)
	}
	return h
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%251)
	}
	return b
}

func TestOpen_SharesHandle(t *testing.T) {
	table, _ := newTable(t, 64)
	h := newFile(t, table, 100)

	other, err := table.Open(h.Sector())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if other != h {
		t.Fatal("second open: wanted the same handle")
	}
	if table.Live() != 1 {
		t.Fatalf("live handles: wanted `1`; found `%d`", table.Live())
	}

	if err := h.Close(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if table.Live() != 1 {
		t.Fatalf("live handles: wanted `1`; found `%d`", table.Live())
	}
	if n, err := other.WriteAt([]byte("still open"), 0); err != nil || n != 10 {
		t.Fatalf("writing through remaining handle: n=`%d`, err=`%v`", n, err)
	}

	if err := other.Close(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if table.Live() != 0 {
		t.Fatalf("live handles: wanted `0`; found `%d`", table.Live())
	}
	if err := other.Close(); !errors.Is(err, ClosedErr) {
		t.Fatalf("closing twice: wanted `%v`; found `%v`", ClosedErr, err)
	}
}

func TestOpen_PersistsAcrossHandles(t *testing.T) {
	table, _ := newTable(t, 64)
	h := newFile(t, table, 0)
	sector := h.Sector()

	if _, err := h.WriteAt([]byte("hello"), 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	h, err := table.Open(sector)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer h.Close()
	if h.Length() != 5 {
		t.Fatalf("length: wanted `5`; found `%d`", h.Length())
	}
	if h.Kind() != KindFile || h.Parent() != RootSector {
		t.Fatalf("record: found kind `%s` parent `%d`", h.Kind(), h.Parent())
	}
	b := make([]byte, 5)
	if _, err := h.ReadAt(b, 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("wanted `hello`; found `%s`", b)
	}
}

func TestOpen_BadMagic(t *testing.T) {
	table, _ := newTable(t, 64)
	if _, err := table.Open(10); !errors.Is(err, BadMagicErr) {
		t.Fatalf("wanted `%v`; found `%v`", BadMagicErr, err)
	}
	if table.Live() != 0 {
		t.Fatalf("live handles: wanted `0`; found `%d`", table.Live())
	}
}

func TestReadWrite_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name   string
		offset Byte
		size   int
	}{
		{"aligned single sector", 0, 512},
		{"aligned multi sector", 1024, 2048},
		{"unaligned head", 3, 509},
		{"unaligned both ends", 100, 1500},
		{"within one sector", 700, 20},
		{"spanning into singly indirect", 122*SectorSize + 17, 3 * 512},
		{
			"spanning into doubly indirect",
			Byte(DirectCount+PointersPerSector)*SectorSize - 300,
			1000,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			table, _ := newTable(t, 1024)
			h := newFile(t, table, 0)
			defer h.Close()

			in := pattern(tc.size, byte(tc.offset))
			n, err := h.WriteAt(in, tc.offset)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if n != Byte(tc.size) {
				t.Fatalf("written: wanted `%d`; found `%d`", tc.size, n)
			}
			if wanted := tc.offset + Byte(tc.size); h.Length() != wanted {
				t.Fatalf("length: wanted `%d`; found `%d`", wanted, h.Length())
			}

			out := make([]byte, tc.size)
			n, err = h.ReadAt(out, tc.offset)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if n != Byte(tc.size) {
				t.Fatalf("read: wanted `%d`; found `%d`", tc.size, n)
			}
			if !bytes.Equal(in, out) {
				t.Fatal("read data doesn't match written data")
			}

			head := make([]byte, tc.offset)
			if _, err := h.ReadAt(head, 0); err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !bytes.Equal(head, make([]byte, tc.offset)) {
				t.Fatal("bytes before the write: wanted zeroes")
			}
		})
	}
}

func TestWrite_PreservesSurroundingBytes(t *testing.T) {
	table, _ := newTable(t, 64)
	h := newFile(t, table, 0)
	defer h.Close()

	base := pattern(1536, 1)
	if _, err := h.WriteAt(base, 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := h.WriteAt([]byte("XYZ"), 510); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	copy(base[510:], "XYZ")

	out := make([]byte, 1536)
	if _, err := h.ReadAt(out, 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !bytes.Equal(base, out) {
		t.Fatal("partial overwrite clobbered neighboring bytes")
	}
}

func TestScenario_SparseExtension(t *testing.T) {
	table, _ := newTable(t, 64)
	h := newFile(t, table, 0)
	defer h.Close()

	if _, err := h.WriteAt(pattern(1000, 7), 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if h.Length() != 1000 {
		t.Fatalf("length: wanted `1000`; found `%d`", h.Length())
	}

	if _, err := h.WriteAt(pattern(50, 9), 2000); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if h.Length() != 2050 {
		t.Fatalf("length: wanted `2050`; found `%d`", h.Length())
	}

	gap := make([]byte, 1000)
	n, err := h.ReadAt(gap, 1000)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n != 1000 || !bytes.Equal(gap, make([]byte, 1000)) {
		t.Fatal("bytes [1000, 2000): wanted zeroes")
	}
}

func TestRead_ClampsAtEOF(t *testing.T) {
	table, _ := newTable(t, 64)
	h := newFile(t, table, 0)
	defer h.Close()

	if _, err := h.WriteAt(pattern(600, 0), 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	for _, tc := range []struct {
		offset Byte
		size   int
		wanted Byte
	}{
		{0, 1000, 600},
		{590, 20, 10},
		{600, 10, 0},
		{10000, 10, 0},
	} {
		n, err := h.ReadAt(make([]byte, tc.size), tc.offset)
		if err != nil {
			t.Fatalf("offset `%d`: unexpected err: %v", tc.offset, err)
		}
		if n != tc.wanted {
			t.Fatalf(
				"offset `%d` size `%d`: wanted `%d`; found `%d`",
				tc.offset,
				tc.size,
				tc.wanted,
				n,
			)
		}
	}

	if _, err := h.ReadAt(make([]byte, 1), -1); !errors.Is(err, InvalidOffsetErr) {
		t.Fatalf("wanted `%v`; found `%v`", InvalidOffsetErr, err)
	}
}

func TestCreate_ZeroFilled(t *testing.T) {
	table, _ := newTable(t, 64)
	h := newFile(t, table, 3000)
	defer h.Close()

	out := make([]byte, 3000)
	if n, err := h.ReadAt(out, 0); err != nil || n != 3000 {
		t.Fatalf("reading: n=`%d` err=`%v`", n, err)
	}
	if !bytes.Equal(out, make([]byte, 3000)) {
		t.Fatal("fresh file: wanted zeroes")
	}
}

func TestDenyWrite(t *testing.T) {
	table, _ := newTable(t, 64)
	h := newFile(t, table, 0)
	defer h.Close()

	h.DenyWrite()
	h.DenyWrite()
	if n, err := h.WriteAt([]byte("x"), 0); !errors.Is(err, WriteDeniedErr) || n != 0 {
		t.Fatalf("wanted `(0, %v)`; found `(%d, %v)`", WriteDeniedErr, n, err)
	}

	h.AllowWrite()
	if _, err := h.WriteAt([]byte("x"), 0); !errors.Is(err, WriteDeniedErr) {
		t.Fatalf("nested deny: wanted `%v`; found `%v`", WriteDeniedErr, err)
	}

	h.AllowWrite()
	if _, err := h.WriteAt([]byte("x"), 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if h.Length() != 1 {
		t.Fatalf("length: wanted `1`; found `%d`", h.Length())
	}
}

func TestRemove_DefersReclamation(t *testing.T) {
	table, fm := newTable(t, 256)
	free := fm.Free()

	h := newFile(t, table, 0)
	other := h.Reopen()

	h.Remove()
	if err := h.Close(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if _, err := other.WriteAt(pattern(5000, 3), 0); err != nil {
		t.Fatalf("writing removed inode: unexpected err: %v", err)
	}
	out := make([]byte, 5000)
	if _, err := other.ReadAt(out, 0); err != nil {
		t.Fatalf("reading removed inode: unexpected err: %v", err)
	}
	if !bytes.Equal(out, pattern(5000, 3)) {
		t.Fatal("reading removed inode: data mismatch")
	}
	if fm.Free() >= free {
		t.Fatal("sectors released while a handle is still open")
	}

	if err := other.Close(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if fm.Free() != free {
		t.Fatalf(
			"free sectors after last close: wanted `%d`; found `%d`",
			free,
			fm.Free(),
		)
	}
}

func TestWrite_NoSpace(t *testing.T) {
	table, fm := newTable(t, 32)
	h := newFile(t, table, 0)
	defer h.Close()

	if _, err := h.WriteAt(pattern(1000, 0), 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	free := fm.Free()

	n, err := h.WriteAt(pattern(64*512, 0), 1000)
	if !errors.Is(err, NoSpaceErr) || n != 0 {
		t.Fatalf("wanted `(0, %v)`; found `(%d, %v)`", NoSpaceErr, n, err)
	}
	if h.Length() != 1000 {
		t.Fatalf("length: wanted `1000`; found `%d`", h.Length())
	}
	if fm.Free() != free {
		t.Fatalf("free sectors: wanted `%d`; found `%d`", free, fm.Free())
	}
}

func TestWrite_TooLarge(t *testing.T) {
	table, _ := newTable(t, 32)
	h := newFile(t, table, 0)
	defer h.Close()

	if _, err := h.WriteAt([]byte("x"), MaxLength); !errors.Is(err, TooLargeErr) {
		t.Fatalf("wanted `%v`; found `%v`", TooLargeErr, err)
	}
	if h.Length() != 0 {
		t.Fatalf("length: wanted `0`; found `%d`", h.Length())
	}
}

func TestConcurrentAccess(t *testing.T) {
	table, _ := newTable(t, 512)
	h := newFile(t, table, 0)
	sector := h.Sector()
	defer h.Close()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			other, err := table.Open(sector)
			if err != nil {
				errs <- err
				return
			}
			defer other.Close()
			if _, err := other.WriteAt(
				pattern(512, byte(i)),
				Byte(i)*SectorSize,
			); err != nil {
				errs <- err
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := h.ReadAt(make([]byte, 4096), 0); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected err: %v", err)
	}

	if h.Length() != workers*SectorSize {
		t.Fatalf(
			"length: wanted `%d`; found `%d`",
			workers*SectorSize,
			h.Length(),
		)
	}
	for i := 0; i < workers; i++ {
		out := make([]byte, 512)
		if _, err := h.ReadAt(out, Byte(i)*SectorSize); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !bytes.Equal(out, pattern(512, byte(i))) {
			t.Fatalf("sector `%d`: data mismatch", i)
		}
	}
	if table.Live() != 1 {
		t.Fatalf("live handles: wanted `1`; found `%d`", table.Live())
	}
}

func TestSetParent(t *testing.T) {
	table, _ := newTable(t, 64)
	h := newFile(t, table, 0)
	sector := h.Sector()
	if err := h.SetParent(9); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	h, err := table.Open(sector)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer h.Close()
	if h.Parent() != 9 {
		t.Fatalf("parent: wanted `9`; found `%d`", h.Parent())
	}
}
