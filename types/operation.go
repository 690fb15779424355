// Package types holds the data model shared by the controller, the record
// stores and the HTTP surface: operations, request fields, records and the
// response envelope.
package types

import (
	"fmt"
	"strings"
)

// Operation identifies one of the CRUD actions a controller can dispatch
type Operation int

const (
	// OpDefault is the fallback for unmatched operation names
	OpDefault Operation = iota
	OpAdd
	OpDelete
	OpUpdate
	OpQuery
)

// CRUDOperations lists every dispatchable operation in registration order
var CRUDOperations = []Operation{OpAdd, OpDelete, OpUpdate, OpQuery}

// String returns the lowercase name used in route names
func (op Operation) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	case OpUpdate:
		return "update"
	case OpQuery:
		return "query"
	default:
		return "default"
	}
}

// ParseOperation maps a name to its Operation.
// Unknown names resolve to OpDefault rather than failing.
func ParseOperation(name string) Operation {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "add":
		return OpAdd
	case "delete":
		return OpDelete
	case "update":
		return OpUpdate
	case "query":
		return OpQuery
	default:
		return OpDefault
	}
}

// ParseOperations converts a list of names, rejecting anything that is not a
// CRUD operation. Used for configuration where a typo must not silently
// become the fallback route.
func ParseOperations(names []string) ([]Operation, error) {
	ops := make([]Operation, 0, len(names))
	for _, name := range names {
		op := ParseOperation(name)
		if op == OpDefault {
			return nil, fmt.Errorf("unknown operation: %q", name)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// MarshalText implements encoding.TextMarshaler
func (op Operation) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (op *Operation) UnmarshalText(text []byte) error {
	parsed := ParseOperation(string(text))
	if parsed == OpDefault && strings.ToLower(string(text)) != "default" {
		return fmt.Errorf("unknown operation: %q", string(text))
	}
	*op = parsed
	return nil
}
