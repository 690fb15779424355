// Package nanocrud provides a generic CRUD controller that maps a named
// operation (add, delete, update, query) plus request fields onto a record
// store and answers with a JSON-shaped envelope.
//
// The controller is stateless across requests. Storage is delegated to a
// storage.Model, routing to the routes package.
package nanocrud

import (
	"github.com/arthur-debert/nanocrud/nanocrud/storage"
	"github.com/arthur-debert/nanocrud/types"
)

// Model is the record store contract
type Model = storage.Model

// ResultSet is what Model.Filter returns
type ResultSet = storage.ResultSet

// Fields is the request field mapping
type Fields = types.Fields

// Record is a persisted row
type Record = types.Record

// Envelope is the normalized response
type Envelope = types.Envelope

// Operation identifies a CRUD action
type Operation = types.Operation

// Operations re-exported for callers that only import this package
const (
	OpDefault = types.OpDefault
	OpAdd     = types.OpAdd
	OpDelete  = types.OpDelete
	OpUpdate  = types.OpUpdate
	OpQuery   = types.OpQuery
)

// Messages carried in envelope data
const (
	MsgIDEmpty     = "id must not be empty"
	MsgIDInvalid   = "id must be an integer"
	MsgIDNegative  = "id must not be negative"
	MsgNotExist    = "record does not exist"
	MsgDeleted     = "deleted successfully"
	MsgUpdated     = "updated successfully"
	MsgAdded       = "added successfully"
	MsgUnmatched   = "error url path"
	MsgNotLoggedIn = "not logged in"
)
