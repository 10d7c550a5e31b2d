package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/weberc2/sfs/pkg/types"
)

func testDevice(t *testing.T, d Device) {
	t.Helper()

	var zeroes, in, out [SectorSize]byte
	for i := range in {
		in[i] = byte(i)
	}

	if err := d.ReadSector(3, &out); err != nil {
		t.Fatalf("reading unwritten sector: unexpected err: %v", err)
	}
	if out != zeroes {
		t.Fatal("reading unwritten sector: wanted zeroes")
	}

	if err := d.WriteSector(3, &in); err != nil {
		t.Fatalf("writing sector `3`: unexpected err: %v", err)
	}
	if err := d.ReadSector(3, &out); err != nil {
		t.Fatalf("reading sector `3`: unexpected err: %v", err)
	}
	if out != in {
		t.Fatal("reading sector `3`: data mismatch")
	}

	if err := Zero(d, 3); err != nil {
		t.Fatalf("zeroing sector `3`: unexpected err: %v", err)
	}
	if err := d.ReadSector(3, &out); err != nil {
		t.Fatalf("reading sector `3`: unexpected err: %v", err)
	}
	if out != zeroes {
		t.Fatal("reading zeroed sector: wanted zeroes")
	}

	if err := d.WriteSector(d.Sectors(), &in); !errors.Is(err, OutOfRangeErr) {
		t.Fatalf("writing past end: wanted `%v`; found `%v`", OutOfRangeErr, err)
	}
	if err := d.ReadSector(d.Sectors(), &out); !errors.Is(err, OutOfRangeErr) {
		t.Fatalf("reading past end: wanted `%v`; found `%v`", OutOfRangeErr, err)
	}
}

func TestMemory(t *testing.T) {
	d := NewMemory(16)
	if d.Sectors() != 16 {
		t.Fatalf("sectors: wanted `16`; found `%d`", d.Sectors())
	}
	testDevice(t, d)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	d, err := OpenFile(path, 16)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	testDevice(t, d)

	var in [SectorSize]byte
	in[0] = 'x'
	if err := d.WriteSector(15, &in); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if info.Size() != 16*int64(SectorSize) {
		t.Fatalf(
			"image size: wanted `%d`; found `%d`",
			16*SectorSize,
			info.Size(),
		)
	}

	// reopening without a size picks the size up from the image
	d, err = OpenFile(path, 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer d.Close()
	if d.Sectors() != 16 {
		t.Fatalf("sectors: wanted `16`; found `%d`", d.Sectors())
	}
	var out [SectorSize]byte
	if err := d.ReadSector(15, &out); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out != in {
		t.Fatal("reading sector `15` after reopen: data mismatch")
	}
}

func TestOpenFile_EmptyWithoutSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.img")
	if _, err := OpenFile(path, 0); err == nil {
		t.Fatal("wanted error opening empty image without a size")
	}
}

func TestPostgres(t *testing.T) {
	if os.Getenv("PG_HOST") == "" {
		t.Skip("PG_HOST not set")
	}

	db, err := OpenPostgresEnv()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer db.Close()

	const volume = "device-test"
	if err := EnsureTables(db); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := DropVolume(db, volume); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if _, err := OpenPostgres(db, volume, 0); !errors.Is(err, NotFoundErr) {
		t.Fatalf("wanted `%v`; found `%v`", NotFoundErr, err)
	}

	d, err := OpenPostgres(db, volume, 16)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	testDevice(t, d)

	reopened, err := OpenPostgres(db, volume, 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if reopened.Sectors() != 16 {
		t.Fatalf("sectors: wanted `16`; found `%d`", reopened.Sectors())
	}
}
