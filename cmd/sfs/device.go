package main

import (
	"fmt"

	"github.com/weberc2/sfs/pkg/device"
	"github.com/weberc2/sfs/pkg/objectstore"
	"github.com/weberc2/sfs/pkg/snapshot"
	. "github.com/weberc2/sfs/pkg/types"
)

// openDevice opens the configured backend. `sectors` sizes a new image or
// volume; zero means the device must already exist.
func openDevice(c *Config, sectors Sector) (device.Device, func() error, error) {
	switch c.Backend {
	case BackendFile:
		f, err := device.OpenFile(c.Image, sectors)
		if err != nil {
			return nil, nil, err
		}
		return f, func() error {
			if err := f.Sync(); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}, nil
	case BackendMemory:
		return device.NewMemory(Sector(c.Sectors)), func() error { return nil }, nil
	case BackendPostgres:
		db, err := device.OpenPostgresEnv()
		if err != nil {
			return nil, nil, err
		}
		pg, err := device.OpenPostgres(db, c.Volume, sectors)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return pg, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend `%s`", c.Backend)
	}
}

// dropVolume deletes a postgres volume and every sector row it owns.
func dropVolume(c *Config) error {
	if c.Backend != BackendPostgres {
		return fmt.Errorf("dropping volume: backend is `%s`, not `postgres`", c.Backend)
	}
	db, err := device.OpenPostgresEnv()
	if err != nil {
		return err
	}
	defer db.Close()
	return device.DropVolume(db, c.Volume)
}

func openSnapshots(c *Config) (*snapshot.Snapshots, error) {
	if err := c.ValidateSnapshots(); err != nil {
		return nil, err
	}
	s3, err := objectstore.NewS3ObjectStore(c.Region, c.Endpoint)
	if err != nil {
		return nil, err
	}
	var store ObjectStore = s3
	if *c.Compress {
		store = &objectstore.GzipObjectStore{ObjectStore: s3}
	}
	return &snapshot.Snapshots{Store: store, Bucket: c.Bucket}, nil
}
