// Package routes registers a controller's operations on a gin URL table.
//
// Each operation in scope gets one POST route named "<op>-<route_name>" at
// path "/<op>-<route_name>". The request form is decoded into types.Fields,
// the controller runs, and the envelope is written as JSON.
package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arthur-debert/nanocrud/nanocrud"
	"github.com/arthur-debert/nanocrud/nanocrud/response"
	"github.com/arthur-debert/nanocrud/types"
)

// maxFormMemory bounds the in-memory part of multipart forms
const maxFormMemory = 8 << 20

// Messages for failures outside the controller
const (
	MsgInvalidForm = "invalid form data"
	MsgInternal    = "internal server error"
)

// Route is one registered operation
type Route struct {
	Name      string          `json:"name" yaml:"name"`
	Method    string          `json:"method" yaml:"method"`
	Path      string          `json:"path" yaml:"path"`
	Operation types.Operation `json:"operation" yaml:"operation"`
}

// Observer is told about every dispatch a route handler makes
type Observer interface {
	Observe(route string, op types.Operation, env types.Envelope, err error, elapsed time.Duration)
}

// Plan lists the routes c would register, without touching a router
func Plan(c *nanocrud.Controller) []Route {
	ops := c.Operations()
	out := make([]Route, 0, len(ops))
	for _, op := range ops {
		name := c.RouteFor(op)
		out = append(out, Route{
			Name:      name,
			Method:    http.MethodPost,
			Path:      "/" + name,
			Operation: op,
		})
	}
	return out
}

// Register adds c's routes to r and returns them
func Register(r gin.IRoutes, c *nanocrud.Controller, observers ...Observer) []Route {
	planned := Plan(c)
	for _, route := range planned {
		r.Handle(route.Method, route.Path, Handle(c, route.Operation, observers...))
	}
	return planned
}

// NoRoute answers every unmatched path with the controller's default handler
func NoRoute(engine *gin.Engine, c *nanocrud.Controller, observers ...Observer) {
	engine.NoRoute(Handle(c, types.OpDefault, observers...))
}

// Handle adapts one controller operation to gin
func Handle(c *nanocrud.Controller, op types.Operation, observers ...Observer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		fields, err := formFields(ctx.Request)
		if err != nil {
			_ = ctx.Error(err).SetType(gin.ErrorTypeBind)
			ctx.AbortWithStatusJSON(http.StatusBadRequest, response.Error(MsgInvalidForm))
			return
		}

		start := time.Now()
		env, err := c.Dispatch(ctx.Request.Context(), op, fields)
		for _, o := range observers {
			o.Observe(c.RouteName(), op, env, err, time.Since(start))
		}
		if err != nil {
			_ = ctx.Error(err)
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(MsgInternal))
			return
		}
		ctx.JSON(env.Status(), env)
	}
}

// formFields decodes url-encoded and multipart bodies. Query string values
// are ignored.
func formFields(r *http.Request) (types.Fields, error) {
	err := r.ParseMultipartForm(maxFormMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	return types.FieldsFromForm(r.PostForm), nil
}
