package device

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	. "github.com/weberc2/sfs/pkg/types"
)

// Postgres stores each sector of a named volume as a row. Sectors that were
// never written have no row and read back as zeroes.
type Postgres struct {
	db      *sql.DB
	volume  string
	sectors Sector
}

var _ Device = (*Postgres)(nil)

// OpenPostgresEnv connects using the `PG_*` environment variables.
func OpenPostgresEnv() (*sql.DB, error) {
	db, err := sql.Open(
		"postgres",
		fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("PG_HOST", "localhost"),
			getEnv("PG_PORT", "5432"),
			getEnv("PG_USER", "postgres"),
			getEnv("PG_PASS", ""),
			getEnv("PG_DB_NAME", "postgres"),
			getEnv("PG_SSL_MODE", "disable"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres database: %w", err)
	}

	return db, nil
}

func getEnv(env, def string) string {
	x := os.Getenv(env)
	if x == "" {
		return def
	}
	return x
}

// OpenPostgres opens volume `volume`, registering it with `sectors` sectors
// if it doesn't exist yet. Passing zero opens an existing volume at its
// registered size.
func OpenPostgres(db *sql.DB, volume string, sectors Sector) (*Postgres, error) {
	if err := EnsureTables(db); err != nil {
		return nil, err
	}

	var registered int64
	err := db.QueryRow(
		"SELECT sectors FROM sfs_volumes WHERE volume = $1",
		volume,
	).Scan(&registered)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if sectors == 0 {
			return nil, fmt.Errorf(
				"opening postgres volume `%s`: %w",
				volume,
				NotFoundErr,
			)
		}
		if _, err := db.Exec(
			"INSERT INTO sfs_volumes (volume, sectors) VALUES ($1, $2)",
			volume,
			int64(sectors),
		); err != nil {
			return nil, fmt.Errorf(
				"registering postgres volume `%s`: %w",
				volume,
				err,
			)
		}
		registered = int64(sectors)
	case err != nil:
		return nil, fmt.Errorf(
			"opening postgres volume `%s`: %w",
			volume,
			err,
		)
	}

	return &Postgres{db: db, volume: volume, sectors: Sector(registered)}, nil
}

func EnsureTables(db *sql.DB) error {
	if _, err := db.Exec(
		"CREATE TABLE IF NOT EXISTS sfs_volumes (" +
			"volume VARCHAR(255) NOT NULL PRIMARY KEY, " +
			"sectors BIGINT NOT NULL)",
	); err != nil {
		return fmt.Errorf("creating `sfs_volumes` postgres table: %w", err)
	}
	if _, err := db.Exec(
		"CREATE TABLE IF NOT EXISTS sfs_sectors (" +
			"volume VARCHAR(255) NOT NULL, " +
			"sector BIGINT NOT NULL, " +
			"data BYTEA NOT NULL, " +
			"PRIMARY KEY (volume, sector))",
	); err != nil {
		return fmt.Errorf("creating `sfs_sectors` postgres table: %w", err)
	}
	return nil
}

// DropVolume deletes every sector of `volume` and its registration.
func DropVolume(db *sql.DB, volume string) error {
	if _, err := db.Exec(
		"DELETE FROM sfs_sectors WHERE volume = $1",
		volume,
	); err != nil {
		return fmt.Errorf("dropping postgres volume `%s`: %w", volume, err)
	}
	if _, err := db.Exec(
		"DELETE FROM sfs_volumes WHERE volume = $1",
		volume,
	); err != nil {
		return fmt.Errorf("dropping postgres volume `%s`: %w", volume, err)
	}
	return nil
}

func (pg *Postgres) Sectors() Sector { return pg.sectors }

func (pg *Postgres) ReadSector(sector Sector, b *[SectorSize]byte) error {
	if err := checkRange(pg, "reading", sector); err != nil {
		return err
	}

	var data []byte
	if err := pg.db.QueryRow(
		"SELECT data FROM sfs_sectors WHERE volume = $1 AND sector = $2",
		pg.volume,
		int64(sector),
	).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			*b = [SectorSize]byte{}
			return nil
		}
		return fmt.Errorf(
			"reading sector `%d` of postgres volume `%s`: %w",
			sector,
			pg.volume,
			err,
		)
	}

	if Byte(len(data)) != SectorSize {
		return fmt.Errorf(
			"reading sector `%d` of postgres volume `%s`: wanted `%d` "+
				"bytes; found `%d`",
			sector,
			pg.volume,
			SectorSize,
			len(data),
		)
	}
	copy(b[:], data)
	return nil
}

func (pg *Postgres) WriteSector(sector Sector, b *[SectorSize]byte) error {
	if err := checkRange(pg, "writing", sector); err != nil {
		return err
	}

	if _, err := pg.db.Exec(
		"INSERT INTO sfs_sectors (volume, sector, data) VALUES ($1, $2, $3) "+
			"ON CONFLICT (volume, sector) DO UPDATE SET data = EXCLUDED.data",
		pg.volume,
		int64(sector),
		b[:],
	); err != nil {
		return fmt.Errorf(
			"writing sector `%d` of postgres volume `%s`: %w",
			sector,
			pg.volume,
			err,
		)
	}
	return nil
}
