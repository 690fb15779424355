// Package store provides the record store backends: a flock-guarded JSON
// file and a gorm model over SQLite.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arthur-debert/nanocrud/internal/validation"
	"github.com/arthur-debert/nanocrud/nanocrud/storage"
	"github.com/arthur-debert/nanocrud/types"
)

// ErrDuplicateID is returned when a record is created with an id that is
// already taken
var ErrDuplicateID = fmt.Errorf("%w: record id already exists", storage.ErrInvalidFields)

// JSONStore is a storage.Model backed by a single JSON file.
//
// Every operation re-reads the file while holding the cross-process file
// lock, so several processes (a server and the CLI, say) can share one file.
// Writes are atomic: the new content goes to a temp file that is then
// renamed over the original.
type JSONStore struct {
	filePath    string
	lockManager *storage.LockManager
	fs          FileSystem
	lockFactory FileLockFactory
	fileLock    FileLock
	// fileMu serializes file-lock sections; flock state is per process
	fileMu      sync.Mutex
	lockTimeout time.Duration
	timeFunc    func() time.Time
	closed      bool
}

var _ storage.Model = (*JSONStore)(nil)

// NewJSON opens (or lazily creates) the JSON record store at filePath
func NewJSON(filePath string, opts ...JSONStoreOption) (*JSONStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("store path is required")
	}

	s := &JSONStore{
		filePath:    filePath,
		lockManager: storage.NewLockManager(),
		lockTimeout: defaultLockTimeout,
		timeFunc:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.fs == nil {
		s.fs = OSFileSystem{}
	}
	if s.lockFactory == nil {
		s.lockFactory = FlockFactory{}
	}
	s.fileLock = s.lockFactory.New(lockPath(filePath))

	// Fail fast on unreadable or corrupt files
	if _, err := s.read(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return s, nil
}

// Path returns the data file location
func (s *JSONStore) Path() string {
	return s.filePath
}

// Filter implements storage.Model
func (s *JSONStore) Filter(ctx context.Context, id int64) (storage.ResultSet, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	rs := &jsonResultSet{store: s}
	for _, rec := range data.Records {
		if rec.ID() == id {
			rs.records = append(rs.records, rec.Clone())
		}
	}
	return rs, nil
}

// Create implements storage.Model
func (s *JSONStore) Create(ctx context.Context, fields types.Fields) (types.Record, error) {
	fields = fields.Clone()
	explicitID, err := fields.PopID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidFields, err)
	}
	if explicitID < 0 {
		return nil, fmt.Errorf("%w: negative id %d", storage.ErrInvalidFields, explicitID)
	}
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	var created types.Record
	err = s.mutate(ctx, func(data *storage.StoreData) error {
		id := explicitID
		if id != 0 {
			for _, rec := range data.Records {
				if rec.ID() == id {
					return fmt.Errorf("%w: %d", ErrDuplicateID, id)
				}
			}
		} else {
			id = data.Metadata.NextID
		}
		if id >= data.Metadata.NextID {
			data.Metadata.NextID = id + 1
		}

		now := s.timestamp()
		rec := make(types.Record, len(fields)+3)
		for k, v := range fields {
			rec[k] = normalizeValue(v)
		}
		rec[types.IDField] = id
		rec["created_at"] = now
		rec["updated_at"] = now

		data.Records = append(data.Records, rec)
		sortRecords(data.Records)
		created = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// All implements storage.Model
func (s *JSONStore) All(ctx context.Context) ([]types.Record, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Record, 0, len(data.Records))
	for _, rec := range data.Records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

// Close marks the store unusable. The lock file stays on disk: other
// handles may still hold a lock on it.
func (s *JSONStore) Close() error {
	return s.lockManager.Execute(storage.WriteOperation, func() error {
		s.closed = true
		return nil
	})
}

func (s *JSONStore) timestamp() string {
	return s.timeFunc().UTC().Format(time.RFC3339Nano)
}

// read loads the current file content under a read lock
func (s *JSONStore) read(ctx context.Context) (*storage.StoreData, error) {
	var data *storage.StoreData
	err := s.lockManager.Execute(storage.ReadOperation, func() error {
		if s.closed {
			return storage.ErrClosed
		}
		return s.withFileLock(ctx, func() error {
			loaded, err := s.load()
			if err != nil {
				return err
			}
			data = loaded
			return nil
		})
	})
	return data, err
}

// mutate runs fn against freshly loaded data and saves the result, all under
// the write lock and the file lock
func (s *JSONStore) mutate(ctx context.Context, fn func(data *storage.StoreData) error) error {
	return s.lockManager.Execute(storage.WriteOperation, func() error {
		if s.closed {
			return storage.ErrClosed
		}
		return s.withFileLock(ctx, func() error {
			data, err := s.load()
			if err != nil {
				return err
			}
			if err := fn(data); err != nil {
				return err
			}
			return s.save(data)
		})
	})
}

func (s *JSONStore) withFileLock(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if err := acquire(ctx, s.fileLock); err != nil {
		return err
	}
	defer func() { _ = s.fileLock.Unlock() }()

	return fn()
}

// load reads the JSON file. Caller must hold the locks.
func (s *JSONStore) load() (*storage.StoreData, error) {
	found, err := exists(s.fs, s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !found {
		return storage.NewStoreData(s.timeFunc()), nil
	}

	raw, err := s.fs.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Empty file is OK
	if len(bytes.TrimSpace(raw)) == 0 {
		return storage.NewStoreData(s.timeFunc()), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data storage.StoreData
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	var maxID int64
	for i, rec := range data.Records {
		for k, v := range rec {
			rec[k] = normalizeValue(v)
		}
		data.Records[i] = rec
		if id := rec.ID(); id > maxID {
			maxID = id
		}
	}
	if data.Records == nil {
		data.Records = []types.Record{}
	}
	// Hand-edited files may lack next_id
	if data.Metadata.NextID <= maxID {
		data.Metadata.NextID = maxID + 1
	}
	if data.Metadata.Version == "" {
		data.Metadata.Version = storage.CurrentVersion
	}

	return &data, nil
}

// save writes data to the JSON file atomically. Caller must hold the locks.
func (s *JSONStore) save(data *storage.StoreData) error {
	data.Metadata.UpdatedAt = s.timeFunc()

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return writeAtomic(s.fs, s.filePath, raw)
}

// jsonResultSet is the storage.ResultSet returned by JSONStore.Filter
type jsonResultSet struct {
	store   *JSONStore
	records []types.Record
}

func (rs *jsonResultSet) Len() int {
	return len(rs.records)
}

func (rs *jsonResultSet) Records() []types.Record {
	out := make([]types.Record, len(rs.records))
	for i, rec := range rs.records {
		out[i] = rec.Clone()
	}
	return out
}

func (rs *jsonResultSet) ids() map[int64]bool {
	ids := make(map[int64]bool, len(rs.records))
	for _, rec := range rs.records {
		ids[rec.ID()] = true
	}
	return ids
}

// Update applies fields to the matched records. The id field is never
// rewritten.
func (rs *jsonResultSet) Update(ctx context.Context, fields types.Fields) (int, error) {
	fields = fields.Clone()
	delete(fields, types.IDField)
	if err := validateFields(fields); err != nil {
		return 0, err
	}
	if len(rs.records) == 0 {
		return 0, nil
	}

	ids := rs.ids()
	updated := 0
	err := rs.store.mutate(ctx, func(data *storage.StoreData) error {
		now := rs.store.timestamp()
		for _, rec := range data.Records {
			if !ids[rec.ID()] {
				continue
			}
			for k, v := range fields {
				rec[k] = normalizeValue(v)
			}
			rec["updated_at"] = now
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// Delete removes the matched records
func (rs *jsonResultSet) Delete(ctx context.Context) (int, error) {
	if len(rs.records) == 0 {
		return 0, nil
	}

	ids := rs.ids()
	deleted := 0
	err := rs.store.mutate(ctx, func(data *storage.StoreData) error {
		kept := make([]types.Record, 0, len(data.Records))
		for _, rec := range data.Records {
			if ids[rec.ID()] {
				deleted++
				continue
			}
			kept = append(kept, rec)
		}
		data.Records = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func validateFields(fields types.Fields) error {
	for name, value := range fields {
		if err := validation.ValidateFieldName(name); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrInvalidFields, err)
		}
		if err := validation.ValidateSimpleType(value, name); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrInvalidFields, err)
		}
	}
	return nil
}

func sortRecords(records []types.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID() < records[j].ID()
	})
}

// normalizeValue keeps integers as int64 so values compare the same before
// and after a round trip through the file
func normalizeValue(v interface{}) interface{} {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case time.Time:
		return n.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
