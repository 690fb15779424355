package nanocrud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arthur-debert/nanocrud/internal/validation"
	"github.com/arthur-debert/nanocrud/nanocrud/response"
	"github.com/arthur-debert/nanocrud/nanocrud/storage"
	"github.com/arthur-debert/nanocrud/types"
)

// Handler serves one operation. The error is reserved for record-store
// failures; every other outcome is an envelope.
type Handler func(ctx context.Context, fields Fields) (Envelope, error)

// Middleware decorates a Handler
type Middleware func(Handler) Handler

// FieldProcessor transforms request fields before add and update. Returning a
// *ValidationError rejects the request with an error envelope.
type FieldProcessor func(ctx context.Context, fields Fields) (Fields, error)

// DefaultRestricted is the operation set registered under Protect
var DefaultRestricted = []Operation{OpAdd, OpQuery}

// Config binds a controller to a model and a route
type Config struct {
	// Model is the record store. Required.
	Model Model
	// RouteName identifies the resource in route names. Required.
	RouteName string
	// Operations registered when Protect is false. Defaults to all four.
	Operations []Operation
	// Protect limits registration to Restricted
	Protect bool
	// Restricted is the operation set used under Protect. Defaults to
	// DefaultRestricted.
	Restricted []Operation
	// Preprocessors run in order on add and update fields
	Preprocessors []FieldProcessor
	// Middleware wraps every CRUD handler, first element outermost. The
	// default handler is never wrapped.
	Middleware []Middleware
	Logger     *slog.Logger
}

// Controller dispatches CRUD operations onto a Model. It holds only
// immutable configuration and is safe for concurrent use.
type Controller struct {
	model         Model
	routeName     string
	operations    []Operation
	preprocessors []FieldProcessor
	handlers      map[Operation]Handler
	logger        *slog.Logger
}

// New validates cfg and builds the dispatch table
func New(cfg Config) (*Controller, error) {
	if cfg.Model == nil {
		return nil, &ConfigurationError{Field: "Model", Reason: "model is required"}
	}
	if err := validation.ValidateRouteName(cfg.RouteName); err != nil {
		return nil, &ConfigurationError{Field: "RouteName", Reason: err.Error()}
	}

	scope := cfg.Operations
	field := "Operations"
	if cfg.Protect {
		scope = cfg.Restricted
		field = "Restricted"
		if len(scope) == 0 {
			scope = DefaultRestricted
		}
	} else if len(scope) == 0 {
		scope = types.CRUDOperations
	}
	operations, err := normalizeScope(scope)
	if err != nil {
		return nil, &ConfigurationError{Field: field, Reason: err.Error()}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		model:         cfg.Model,
		routeName:     cfg.RouteName,
		operations:    operations,
		preprocessors: append([]FieldProcessor(nil), cfg.Preprocessors...),
		logger:        logger.With("route", cfg.RouteName),
	}

	base := map[Operation]Handler{
		OpAdd:    c.Add,
		OpDelete: c.Delete,
		OpUpdate: c.Update,
		OpQuery:  c.Query,
	}
	c.handlers = make(map[Operation]Handler, len(base)+1)
	for op, h := range base {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			h = cfg.Middleware[i](h)
		}
		c.handlers[op] = h
	}
	c.handlers[OpDefault] = c.Default

	return c, nil
}

func normalizeScope(ops []Operation) ([]Operation, error) {
	seen := make(map[Operation]bool, len(ops))
	out := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if op == OpDefault {
			return nil, errors.New("default is not a routable operation")
		}
		if seen[op] {
			continue
		}
		seen[op] = true
		out = append(out, op)
	}
	return out, nil
}

// RouteName returns the configured route identifier
func (c *Controller) RouteName() string {
	return c.routeName
}

// Operations returns the operations in registration scope
func (c *Controller) Operations() []Operation {
	return append([]Operation(nil), c.operations...)
}

// RouteFor returns the route name for op, "<op>-<route_name>"
func (c *Controller) RouteFor(op Operation) string {
	return op.String() + "-" + c.routeName
}

// Handler returns the dispatch-table entry for op; unknown operations get
// the default handler
func (c *Controller) Handler(op Operation) Handler {
	if h, ok := c.handlers[op]; ok {
		return h
	}
	return c.handlers[OpDefault]
}

// Dispatch runs op against fields
func (c *Controller) Dispatch(ctx context.Context, op Operation, fields Fields) (Envelope, error) {
	if err := c.check(); err != nil {
		return Envelope{}, err
	}
	c.logger.Debug("dispatch", "operation", op.String())
	return c.Handler(op)(ctx, fields)
}

// DispatchName resolves name with types.ParseOperation and dispatches it
func (c *Controller) DispatchName(ctx context.Context, name string, fields Fields) (Envelope, error) {
	return c.Dispatch(ctx, types.ParseOperation(name), fields)
}

func (c *Controller) check() error {
	if c == nil || c.model == nil {
		return &ConfigurationError{Field: "Model", Reason: "controller is not bound to a model"}
	}
	if c.routeName == "" || c.handlers == nil {
		return &ConfigurationError{Field: "RouteName", Reason: "controller is not bound to a route"}
	}
	return nil
}

// Query returns every record. No filtering, no pagination.
func (c *Controller) Query(ctx context.Context, _ Fields) (Envelope, error) {
	if err := c.check(); err != nil {
		return Envelope{}, err
	}
	records, err := c.model.All(ctx)
	if err != nil {
		return c.storeFailure(OpQuery, err)
	}
	if records == nil {
		records = []Record{}
	}
	return response.Success(records), nil
}

// Delete removes the record(s) matching the id field
func (c *Controller) Delete(ctx context.Context, fields Fields) (Envelope, error) {
	if err := c.check(); err != nil {
		return Envelope{}, err
	}
	id, env, ok := requireID(fields)
	if !ok {
		return env, nil
	}

	rs, err := c.model.Filter(ctx, id)
	if err != nil {
		return c.storeFailure(OpDelete, err)
	}
	if rs.Len() == 0 {
		return response.Error(MsgNotExist), nil
	}
	if _, err := rs.Delete(ctx); err != nil {
		return c.storeFailure(OpDelete, err)
	}
	return response.Success(MsgDeleted), nil
}

// Update applies the non-id fields to the record(s) matching the id field
func (c *Controller) Update(ctx context.Context, fields Fields) (Envelope, error) {
	if err := c.check(); err != nil {
		return Envelope{}, err
	}
	fields, err := c.preprocess(ctx, fields)
	if err != nil {
		return c.rejectOrFail(OpUpdate, err)
	}
	id, env, ok := requireID(fields)
	if !ok {
		return env, nil
	}
	delete(fields, types.IDField)

	rs, err := c.model.Filter(ctx, id)
	if err != nil {
		return c.storeFailure(OpUpdate, err)
	}
	if rs.Len() == 0 {
		return response.Error(MsgNotExist), nil
	}
	if _, err := rs.Update(ctx, fields); err != nil {
		return c.storeFailure(OpUpdate, err)
	}
	return response.Success(MsgUpdated), nil
}

// Add creates one record from the full field mapping
func (c *Controller) Add(ctx context.Context, fields Fields) (Envelope, error) {
	if err := c.check(); err != nil {
		return Envelope{}, err
	}
	fields, err := c.preprocess(ctx, fields)
	if err != nil {
		return c.rejectOrFail(OpAdd, err)
	}
	id, err := fields.ID()
	if err != nil {
		return response.Error(MsgIDInvalid), nil
	}
	if id < 0 {
		return response.Error(MsgIDNegative), nil
	}

	if _, err := c.model.Create(ctx, fields); err != nil {
		return c.storeFailure(OpAdd, err)
	}
	return response.Success(MsgAdded), nil
}

// Default answers unmatched paths and operations
func (c *Controller) Default(_ context.Context, _ Fields) (Envelope, error) {
	return response.NotFound(MsgUnmatched), nil
}

// preprocess copies fields and runs the configured processors over the copy
func (c *Controller) preprocess(ctx context.Context, fields Fields) (Fields, error) {
	out := fields.Clone()
	for _, p := range c.preprocessors {
		next, err := p(ctx, out)
		if err != nil {
			return nil, err
		}
		if next != nil {
			out = next
		}
	}
	return out, nil
}

// rejectOrFail turns a ValidationError into an error envelope and anything
// else into a failure
func (c *Controller) rejectOrFail(op Operation, err error) (Envelope, error) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return response.Error(vErr.Message), nil
	}
	c.logger.Error("field processor failed", "operation", op.String(), "error", err)
	return Envelope{}, fmt.Errorf("%s %s: %w", op, c.routeName, err)
}

// requireID reads a positive integer id or builds the rejection envelope
func requireID(fields Fields) (int64, Envelope, bool) {
	id, err := fields.ID()
	if err != nil {
		return 0, response.Error(MsgIDInvalid), false
	}
	if id == 0 {
		return 0, response.Error(MsgIDEmpty), false
	}
	if id < 0 {
		return 0, response.Error(MsgIDNegative), false
	}
	return id, Envelope{}, true
}

// storeFailure turns a store error into the operation's result. Field
// errors the store reports become a rejection envelope.
func (c *Controller) storeFailure(op Operation, err error) (Envelope, error) {
	if errors.Is(err, storage.ErrInvalidFields) {
		c.logger.Warn("record store rejected fields", "operation", op.String(), "error", err)
		return response.Error(err.Error()), nil
	}
	c.logger.Error("record store failed", "operation", op.String(), "error", err)
	return Envelope{}, fmt.Errorf("%s %s: %w", op, c.routeName, err)
}
