// Package storage defines the record store contract the controller talks to.
// A record store plays the ORM role: it filters records by id, creates new
// records from a field mapping, and lists every record. Writes on a filtered
// result set update or delete the matching records.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/arthur-debert/nanocrud/types"
)

// ErrClosed is returned by stores used after Close
var ErrClosed = errors.New("record store is closed")

// ErrInvalidFields marks store errors caused by the caller's fields rather
// than by the store itself. Wrap it so errors.Is finds it.
var ErrInvalidFields = errors.New("invalid fields")

// Model is the record store for a single record type
type Model interface {
	// Filter returns the records whose id matches. An empty result set is
	// not an error.
	Filter(ctx context.Context, id int64) (ResultSet, error)

	// Create persists a new record built from fields and returns it with
	// its assigned id
	Create(ctx context.Context, fields types.Fields) (types.Record, error)

	// All lists every record in id order
	All(ctx context.Context) ([]types.Record, error)

	// Close releases any resources held by the store
	Close() error
}

// ResultSet is the outcome of Filter. Update and Delete apply to exactly the
// records that matched when the set was built.
type ResultSet interface {
	Len() int
	Records() []types.Record

	// Update applies fields to every matching record and returns how many
	// were changed
	Update(ctx context.Context, fields types.Fields) (int, error)

	// Delete removes every matching record and returns how many were removed
	Delete(ctx context.Context) (int, error)
}

// StoreData is the on-disk layout of a file-backed record store
type StoreData struct {
	Records  []types.Record `json:"records"`
	Metadata Metadata       `json:"metadata"`
}

// Metadata contains storage metadata
type Metadata struct {
	Version   string    `json:"version"`
	NextID    int64     `json:"next_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentVersion is written into new data files
const CurrentVersion = "1.0"

// NewStoreData returns an empty data set stamped with now
func NewStoreData(now time.Time) *StoreData {
	return &StoreData{
		Records: []types.Record{},
		Metadata: Metadata{
			Version:   CurrentVersion,
			NextID:    1,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
