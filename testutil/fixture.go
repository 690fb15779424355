// Package testutil provides record-store fixtures and envelope assertions
// shared by the package tests.
package testutil

import (
	_ "embed"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/nanocrud/nanocrud/store"
	"github.com/arthur-debert/nanocrud/types"
)

//go:embed testdata/widgets.json
var widgetsFixture []byte

// FixedTime is the clock used by fixture stores
var FixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// WidgetIDs are the ids present in the widget fixture. Id 4 was deleted, so
// the next allocated id is 6.
var WidgetIDs = []int64{1, 2, 3, 5}

// MissingWidgetID is never present in the fixture
const MissingWidgetID int64 = 4

// NewStore returns an empty JSON store in a temp dir with a fixed clock
func NewStore(t *testing.T) *store.JSONStore {
	t.Helper()
	return openStore(t, filepath.Join(t.TempDir(), "records.json"))
}

// LoadWidgets returns a JSON store pre-populated with the widget fixture
func LoadWidgets(t *testing.T) *store.JSONStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "widgets.json")
	if err := os.WriteFile(path, widgetsFixture, 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return openStore(t, path)
}

// WidgetsPath writes the widget fixture to a temp file and returns its path
func WidgetsPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "widgets.json")
	if err := os.WriteFile(path, widgetsFixture, 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func openStore(t *testing.T, path string) *store.JSONStore {
	t.Helper()
	s, err := store.NewJSON(path, store.WithTimeFunc(func() time.Time { return FixedTime }))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Widget builds the fields of a widget the way a form would submit them
func Widget(name, color string) types.Fields {
	return types.Fields{"name": name, "color": color}
}
