// Package snapshot implements the durable on-device key/value store backing
// local mode. Values are full-collection JSON snapshots; the store enforces
// a hard byte-capacity ceiling so callers can react to quota exhaustion the
// way a browser localStorage consumer would.
package snapshot

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrQuotaExceeded is returned by Save when a write would push the store
// past its configured capacity ceiling.
var ErrQuotaExceeded = errors.New("snapshot: storage quota exceeded")

// Snapshot is one persisted key/value row.
type Snapshot struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value;not null"`
}

func (Snapshot) TableName() string {
	return "snapshots"
}

// Store is a synchronous key -> string durable store with a capacity
// ceiling, backed by a single sqlite table.
type Store struct {
	db       *gorm.DB
	maxBytes int64
}

// Open opens (creating if needed) the snapshot database at path and applies
// pending schema migrations. maxBytes is the hard capacity ceiling across
// all keys.
func Open(path string, maxBytes int64) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &Store{db: db, maxBytes: maxBytes}, nil
}

func migrate(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("snapshot: unwrap db: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("snapshot: set dialect: %w", err)
	}
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return fmt.Errorf("snapshot: migrate: %w", err)
	}
	return nil
}

// Migrate applies pending snapshot-store migrations without keeping the
// database open. Used by the migrate subcommand.
func Migrate(path string) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}()
	return migrate(db)
}

// Load returns the value stored under key. ok is false when the key is
// absent; absence is not an error.
func (s *Store) Load(key string) (value string, ok bool, err error) {
	var row Snapshot
	if err := s.db.First(&row, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("snapshot: load %s: %w", key, err)
	}
	return row.Value, true, nil
}

// Save writes value under key, replacing any previous value. It fails with
// ErrQuotaExceeded when the projected total size of all values would exceed
// the capacity ceiling; the previous value is left untouched in that case.
func (s *Store) Save(key, value string) error {
	var others int64
	err := s.db.Model(&Snapshot{}).
		Select("COALESCE(SUM(LENGTH(value)), 0)").
		Where("key <> ?", key).
		Scan(&others).Error
	if err != nil {
		return fmt.Errorf("snapshot: usage query: %w", err)
	}

	if others+int64(len(value)) > s.maxBytes {
		return fmt.Errorf("snapshot: save %s (%d bytes): %w", key, len(value), ErrQuotaExceeded)
	}

	row := Snapshot{Key: key, Value: value}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("snapshot: save %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	if err := s.db.Delete(&Snapshot{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("snapshot: delete %s: %w", key, err)
	}
	return nil
}

// Ping verifies the database handle is still usable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
