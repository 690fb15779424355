package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-viper/mapstructure/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/arthur-debert/nanocrud/internal/validation"
	"github.com/arthur-debert/nanocrud/nanocrud/storage"
	"github.com/arthur-debert/nanocrud/types"
)

// ErrUnknownField is returned when a write names a field the model lacks
var ErrUnknownField = fmt.Errorf("%w: unknown field", storage.ErrInvalidFields)

// GormOption configures a GormStore
type GormOption func(*gormOptions)

type gormOptions struct {
	autoMigrate bool
	closeDB     bool
}

// WithAutoMigrate creates or updates the model's table on construction
func WithAutoMigrate() GormOption {
	return func(o *gormOptions) { o.autoMigrate = true }
}

// WithCloseDB makes Close also close the underlying connection pool. Leave it
// off when several stores share one *gorm.DB.
func WithCloseDB() GormOption {
	return func(o *gormOptions) { o.closeDB = true }
}

// OpenSQLite opens a pure-Go SQLite database through gorm
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", dsn, err)
	}
	return db, nil
}

// GormStore is a storage.Model over the gorm model type T.
//
// T must be a struct with an integer primary key whose json tag is "id".
// Field names on the wire are the json tag names of T.
type GormStore[T any] struct {
	db      *gorm.DB
	schema  *schema.Schema
	pk      *schema.Field
	byJSON  map[string]*schema.Field
	closeDB bool
}

// NewGorm builds a record store for T on db
func NewGorm[T any](db *gorm.DB, opts ...GormOption) (*GormStore[T], error) {
	var o gormOptions
	for _, opt := range opts {
		opt(&o)
	}

	var model T
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(&model); err != nil {
		return nil, fmt.Errorf("failed to parse model %T: %w", model, err)
	}

	pk := stmt.Schema.PrioritizedPrimaryField
	if pk == nil {
		return nil, fmt.Errorf("model %T has no primary key", model)
	}
	if jsonName(pk) != types.IDField {
		return nil, fmt.Errorf("model %T: primary key must have json tag %q", model, types.IDField)
	}

	byJSON := make(map[string]*schema.Field, len(stmt.Schema.Fields))
	for _, f := range stmt.Schema.Fields {
		if name := jsonName(f); name != "" && name != "-" {
			byJSON[name] = f
		}
	}

	if o.autoMigrate {
		if err := db.AutoMigrate(&model); err != nil {
			return nil, fmt.Errorf("failed to migrate %s: %w", stmt.Schema.Table, err)
		}
	}

	return &GormStore[T]{
		db:      db,
		schema:  stmt.Schema,
		pk:      pk,
		byJSON:  byJSON,
		closeDB: o.closeDB,
	}, nil
}

var _ storage.Model = (*GormStore[struct{ ID int64 }])(nil)

// DB returns the connection bound to ctx
func (s *GormStore[T]) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return s.db
	}
	return s.db.WithContext(ctx)
}

// Table returns the table name of T
func (s *GormStore[T]) Table() string {
	return s.schema.Table
}

// Filter implements storage.Model
func (s *GormStore[T]) Filter(ctx context.Context, id int64) (storage.ResultSet, error) {
	var rows []T
	if err := s.DB(ctx).Where(s.pk.DBName+" = ?", id).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to filter %s: %w", s.schema.Table, err)
	}

	records, err := s.toRecords(rows)
	if err != nil {
		return nil, err
	}
	return &gormResultSet[T]{store: s, records: records}, nil
}

// Create implements storage.Model
func (s *GormStore[T]) Create(ctx context.Context, fields types.Fields) (types.Record, error) {
	fields = fields.Clone()
	id, err := fields.PopID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidFields, err)
	}
	if id < 0 {
		return nil, fmt.Errorf("%w: negative id %d", storage.ErrInvalidFields, id)
	}
	if id > 0 {
		fields[types.IDField] = id
	}

	row, err := s.decode(fields)
	if err != nil {
		return nil, err
	}
	if err := s.DB(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.schema.Table, err)
	}
	return toRecord(row)
}

// All implements storage.Model
func (s *GormStore[T]) All(ctx context.Context) ([]types.Record, error) {
	var rows []T
	if err := s.DB(ctx).Order(s.pk.DBName).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.schema.Table, err)
	}
	return s.toRecords(rows)
}

// Close implements storage.Model
func (s *GormStore[T]) Close() error {
	if !s.closeDB {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// decode builds a T from loosely typed fields (form strings included)
func (s *GormStore[T]) decode(fields types.Fields) (*T, error) {
	for name := range fields {
		if _, ok := s.byJSON[name]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, s.schema.Table, name)
		}
		if name != types.IDField {
			if err := validation.ValidateFieldName(name); err != nil {
				return nil, fmt.Errorf("%w: %w", storage.ErrInvalidFields, err)
			}
		}
	}

	row := new(T)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           row,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(fields)); err != nil {
		return nil, fmt.Errorf("%w for %s: %w", storage.ErrInvalidFields, s.schema.Table, err)
	}
	return row, nil
}

// updates converts fields into a column->value map typed like T's columns
func (s *GormStore[T]) updates(ctx context.Context, fields types.Fields) (map[string]interface{}, error) {
	row, err := s.decode(fields)
	if err != nil {
		return nil, err
	}

	rv := reflect.ValueOf(row).Elem()
	out := make(map[string]interface{}, len(fields))
	for name := range fields {
		f := s.byJSON[name]
		value, _ := f.ValueOf(ctx, rv)
		out[f.DBName] = value
	}
	return out, nil
}

func (s *GormStore[T]) toRecords(rows []T) ([]types.Record, error) {
	out := make([]types.Record, 0, len(rows))
	for i := range rows {
		rec, err := toRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// gormResultSet is the storage.ResultSet returned by GormStore.Filter
type gormResultSet[T any] struct {
	store   *GormStore[T]
	records []types.Record
}

func (rs *gormResultSet[T]) Len() int {
	return len(rs.records)
}

func (rs *gormResultSet[T]) Records() []types.Record {
	out := make([]types.Record, len(rs.records))
	for i, rec := range rs.records {
		out[i] = rec.Clone()
	}
	return out
}

func (rs *gormResultSet[T]) ids() []int64 {
	ids := make([]int64, 0, len(rs.records))
	for _, rec := range rs.records {
		ids = append(ids, rec.ID())
	}
	return ids
}

// Update applies fields to the matched rows; the primary key is never written
func (rs *gormResultSet[T]) Update(ctx context.Context, fields types.Fields) (int, error) {
	fields = fields.Clone()
	delete(fields, types.IDField)
	if len(rs.records) == 0 || len(fields) == 0 {
		return 0, nil
	}

	values, err := rs.store.updates(ctx, fields)
	if err != nil {
		return 0, err
	}

	s := rs.store
	result := s.DB(ctx).Model(new(T)).Where(s.pk.DBName+" IN ?", rs.ids()).Updates(values)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update %s: %w", s.schema.Table, result.Error)
	}
	return int(result.RowsAffected), nil
}

// Delete removes the matched rows
func (rs *gormResultSet[T]) Delete(ctx context.Context) (int, error) {
	if len(rs.records) == 0 {
		return 0, nil
	}

	s := rs.store
	result := s.DB(ctx).Where(s.pk.DBName+" IN ?", rs.ids()).Delete(new(T))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", s.schema.Table, result.Error)
	}
	return int(result.RowsAffected), nil
}

// toRecord renders a row through its json tags
func toRecord(row interface{}) (types.Record, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var rec types.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	for k, v := range rec {
		rec[k] = normalizeValue(v)
	}
	return rec, nil
}

func jsonName(f *schema.Field) string {
	tag := f.StructField.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}
