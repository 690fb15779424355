// Package validation holds the checks shared by the controller and the
// record stores: route names, field names and field values.
package validation

import (
	"fmt"
	"strings"
	"time"
)

// maxRouteNameLen bounds route names so generated paths stay readable
const maxRouteNameLen = 64

// ValidateRouteName checks that a route name is usable inside
// "<operation>-<route_name>" paths
func ValidateRouteName(name string) error {
	if name == "" {
		return fmt.Errorf("route name cannot be empty")
	}
	if len(name) > maxRouteNameLen {
		return fmt.Errorf("route name too long: %d (maximum %d)", len(name), maxRouteNameLen)
	}
	for _, r := range name {
		if !isRouteRune(r) {
			return fmt.Errorf("route name %q contains invalid character %q", name, r)
		}
	}
	return nil
}

func isRouteRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}

// IsReservedColumnName checks if a column name is maintained by the store
// and therefore cannot be written by callers
func IsReservedColumnName(name string) bool {
	switch strings.ToLower(name) {
	case "created_at", "updated_at":
		return true
	}
	return false
}

// ValidateFieldName checks a field name supplied by a caller
func ValidateFieldName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if IsReservedColumnName(name) {
		return fmt.Errorf("'%s' is a reserved column name", name)
	}
	return nil
}

// ValidateSimpleType ensures a field value is a simple type (string, number, bool, time)
func ValidateSimpleType(value interface{}, fieldName string) error {
	if value == nil {
		return nil
	}

	switch value.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time:
		return nil
	default:
		return fmt.Errorf("field %s: unsupported value type %T", fieldName, value)
	}
}
