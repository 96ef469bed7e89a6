package database

import (
	"fmt"
	"os"
	"path/filepath"

	"lcb-go/internal/config"
	"lcb-go/internal/lcb"
)

// NewDatabaseFromConfig opens the journal described by cfg. A database that
// has never been migrated is initialized; one at an older or newer schema
// version is returned as is and rejected later by CheckMigrations.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, hostID string) (lcb.Database, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		path = filepath.Join(cfg.DataDir, hostID+".db")
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	version, err := db.SchemaVersion()
	if err != nil {
		db.Close()
		return nil, err
	}
	if version == 0 {
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing %s: %w", path, err)
		}
	}
	return db, nil
}
