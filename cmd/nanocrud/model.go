package main

import (
	"time"

	"github.com/arthur-debert/nanocrud/nanocrud/config"
	"github.com/arthur-debert/nanocrud/nanocrud/storage"
	"github.com/arthur-debert/nanocrud/nanocrud/store"
)

// Item is the table served by the sqlite backend. The json backend is
// schemaless and accepts any scalar fields.
type Item struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255" json:"name"`
	Description string    `json:"description"`
	Quantity    int64     `json:"quantity"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// openModel opens the record store selected by settings
func openModel(s *config.Settings) (storage.Model, error) {
	switch s.Backend {
	case config.BackendSQLite:
		db, err := store.OpenSQLite(s.DB)
		if err != nil {
			return nil, err
		}
		model, err := store.NewGorm[Item](db, store.WithAutoMigrate(), store.WithCloseDB())
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, err
		}
		return model, nil
	default:
		return store.NewJSON(s.DB)
	}
}
