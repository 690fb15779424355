package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// IDField is the name of the primary key field in every record
const IDField = "id"

// ErrInvalidID is returned when an id value is not a base-10 integer
var ErrInvalidID = errors.New("invalid id")

// Fields is the field-name to value mapping derived from a request.
// Values are strings (form data) or integers.
type Fields map[string]interface{}

// FieldsFromForm builds Fields from form values. When a key is repeated the
// last value wins.
func FieldsFromForm(form url.Values) Fields {
	fields := make(Fields, len(form))
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		fields[key] = values[len(values)-1]
	}
	return fields
}

// Clone returns a shallow copy
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ID returns the integer value of the id field, or 0 when it is absent or
// blank. Strings are read as base-10 integers; "010" is 10. Floats with a
// fractional part and booleans are errors.
func (f Fields) ID() (int64, error) {
	raw, ok := f[IDField]
	if !ok || raw == nil {
		return 0, nil
	}

	switch v := raw.(type) {
	case string:
		return parseDecimalID(v)
	case json.Number:
		return parseDecimalID(v.String())
	case float64:
		return wholeID(v)
	case float32:
		return wholeID(float64(v))
	case bool:
		return 0, fmt.Errorf("%w: %v", ErrInvalidID, v)
	}

	id, err := cast.ToInt64E(raw)
	if err != nil {
		return 0, fmt.Errorf("%w %v: %v", ErrInvalidID, raw, err)
	}
	return id, nil
}

func parseDecimalID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidID, s, err)
	}
	return id, nil
}

func wholeID(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidID, f)
	}
	return int64(f), nil
}

// PopID extracts the id and removes it from the mapping
func (f Fields) PopID() (int64, error) {
	id, err := f.ID()
	delete(f, IDField)
	return id, err
}

// Record is a persisted row as seen by the controller. It always carries an
// integer id under IDField.
type Record map[string]interface{}

// ID returns the record's primary key, 0 if missing
func (r Record) ID() int64 {
	return cast.ToInt64(r[IDField])
}

// Clone returns a shallow copy
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
