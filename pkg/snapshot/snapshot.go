// Package snapshot copies whole device images to and from an object store.
// Each image object `key` is paired with `key.b2sum`, the hex BLAKE2b-256
// digest of the uncompressed image.
package snapshot

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/weberc2/sfs/pkg/device"
	. "github.com/weberc2/sfs/pkg/types"
	"golang.org/x/crypto/blake2b"
)

const (
	ChecksumSuffix = ".b2sum"

	ChecksumMismatchErr ConstError = "snapshot checksum mismatch"
	SizeMismatchErr     ConstError = "snapshot size does not match device"
)

type Snapshots struct {
	Store  ObjectStore
	Bucket string
}

// Push reads every sector of `d` and stores the image under `key`.
func (s *Snapshots) Push(d device.Device, key string) (Digest, error) {
	image, err := readImage(d)
	if err != nil {
		return Digest{}, fmt.Errorf("pushing snapshot `%s`: %w", key, err)
	}
	digest := Digest(blake2b.Sum256(image))

	if err := s.Store.PutObject(
		s.Bucket,
		key,
		bytes.NewReader(image),
	); err != nil {
		return Digest{}, fmt.Errorf("pushing snapshot `%s`: %w", key, err)
	}
	if err := s.Store.PutObject(
		s.Bucket,
		key+ChecksumSuffix,
		strings.NewReader(digest.String()),
	); err != nil {
		return Digest{}, fmt.Errorf("pushing snapshot `%s`: %w", key, err)
	}
	return digest, nil
}

// Pull writes the image stored under `key` onto `d`. The image must have
// exactly as many sectors as `d` and must match its recorded digest; nothing
// is written otherwise.
func (s *Snapshots) Pull(d device.Device, key string) (Digest, error) {
	digest, err := s.pull(d, key)
	if err != nil {
		return Digest{}, fmt.Errorf("pulling snapshot `%s`: %w", key, err)
	}
	return digest, nil
}

func (s *Snapshots) pull(d device.Device, key string) (Digest, error) {
	wanted, err := s.digest(key)
	if err != nil {
		return Digest{}, err
	}

	body, err := s.Store.GetObject(s.Bucket, key)
	if err != nil {
		return Digest{}, err
	}
	defer body.Close()
	image, err := io.ReadAll(body)
	if err != nil {
		return Digest{}, fmt.Errorf("reading image: %w", err)
	}

	if found := Digest(blake2b.Sum256(image)); found != wanted {
		return Digest{}, fmt.Errorf(
			"wanted `%s`; found `%s`: %w",
			wanted,
			found,
			ChecksumMismatchErr,
		)
	}
	if Byte(len(image)) != Byte(d.Sectors())*SectorSize {
		return Digest{}, fmt.Errorf(
			"image has `%d` bytes; device has `%d` sectors: %w",
			len(image),
			d.Sectors(),
			SizeMismatchErr,
		)
	}

	if err := writeImage(d, image); err != nil {
		return Digest{}, err
	}
	return wanted, nil
}

func (s *Snapshots) digest(key string) (Digest, error) {
	body, err := s.Store.GetObject(s.Bucket, key+ChecksumSuffix)
	if err != nil {
		return Digest{}, fmt.Errorf("getting checksum: %w", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return Digest{}, fmt.Errorf("reading checksum: %w", err)
	}
	return ParseDigest(strings.TrimSpace(string(data)))
}

// List returns the keys of the snapshots under `prefix`.
func (s *Snapshots) List(prefix string) ([]string, error) {
	keys, err := s.Store.ListObjects(s.Bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	var snapshots []string
	for _, key := range keys {
		if strings.HasSuffix(key, ChecksumSuffix) {
			snapshots = append(snapshots, strings.TrimSuffix(key, ChecksumSuffix))
		}
	}
	return snapshots, nil
}

// Delete removes a snapshot's image and digest.
func (s *Snapshots) Delete(key string) error {
	if err := s.Store.DeleteObject(s.Bucket, key+ChecksumSuffix); err != nil {
		return fmt.Errorf("deleting snapshot `%s`: %w", key, err)
	}
	if err := s.Store.DeleteObject(s.Bucket, key); err != nil {
		var notFound *ObjectNotFoundErr
		if !errors.As(err, &notFound) {
			return fmt.Errorf("deleting snapshot `%s`: %w", key, err)
		}
	}
	return nil
}

func readImage(d device.Device) ([]byte, error) {
	image := make([]byte, Byte(d.Sectors())*SectorSize)
	for s := Sector(0); s < d.Sectors(); s++ {
		start := Byte(s) * SectorSize
		if err := d.ReadSector(
			s,
			(*[SectorSize]byte)(image[start:start+SectorSize]),
		); err != nil {
			return nil, fmt.Errorf("reading image: %w", err)
		}
	}
	return image, nil
}

func writeImage(d device.Device, image []byte) error {
	for s := Sector(0); s < d.Sectors(); s++ {
		start := Byte(s) * SectorSize
		if err := d.WriteSector(
			s,
			(*[SectorSize]byte)(image[start:start+SectorSize]),
		); err != nil {
			return fmt.Errorf("writing image: %w", err)
		}
	}
	return nil
}

type Digest [blake2b.Size256]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != hex.EncodedLen(len(d)) {
		return Digest{}, fmt.Errorf(
			"parsing digest `%s`: wanted `%d` hex digits",
			s,
			hex.EncodedLen(len(d)),
		)
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return Digest{}, fmt.Errorf("parsing digest `%s`: %w", s, err)
	}
	return d, nil
}
