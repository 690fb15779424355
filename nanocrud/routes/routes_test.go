package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/arthur-debert/nanocrud/nanocrud"
	"github.com/arthur-debert/nanocrud/nanocrud/auth"
	"github.com/arthur-debert/nanocrud/nanocrud/response"
	"github.com/arthur-debert/nanocrud/testutil"
	"github.com/arthur-debert/nanocrud/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type wireEnvelope struct {
	State int             `json:"state"`
	Data  json.RawMessage `json:"data"`
	Code  int             `json:"code"`
}

func (e wireEnvelope) message(t *testing.T) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		t.Fatalf("data is not a string: %s", e.Data)
	}
	return s
}

func newServer(t *testing.T, model nanocrud.Model, mutate ...func(*nanocrud.Config)) (*gin.Engine, []Route) {
	t.Helper()
	cfg := nanocrud.Config{Model: model, RouteName: "widget"}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := nanocrud.New(cfg)
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	engine := NewRouter(nil)
	registered := Register(engine, c)
	NoRoute(engine, c)
	return engine, registered
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) (*httptest.ResponseRecorder, wireEnvelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(t, h, req)
}

func serve(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, wireEnvelope) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env wireEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, w.Body.String())
	}
	return w, env
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*nanocrud.Config)
		want   []string
	}{
		{
			name:   "unrestricted",
			mutate: func(*nanocrud.Config) {},
			want:   []string{"add-widget", "delete-widget", "update-widget", "query-widget"},
		},
		{
			name:   "protected",
			mutate: func(c *nanocrud.Config) { c.Protect = true },
			want:   []string{"add-widget", "query-widget"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, registered := newServer(t, testutil.NewStore(t), tt.mutate)

			var names []string
			for _, r := range registered {
				names = append(names, r.Name)
				if r.Path != "/"+r.Name || r.Method != http.MethodPost {
					t.Errorf("unexpected route %+v", r)
				}
			}
			if diff := cmp.Diff(tt.want, names); diff != "" {
				t.Errorf("route names mismatch (-want +got):\n%s", diff)
			}

			var mounted []string
			for _, info := range engine.Routes() {
				mounted = append(mounted, strings.TrimPrefix(info.Path, "/"))
			}
			if diff := cmp.Diff(tt.want, mounted, sortStrings); diff != "" {
				t.Errorf("mounted routes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

var sortStrings = cmpopts.SortSlices(func(a, b string) bool { return a < b })

func TestRoundTrip(t *testing.T) {
	s := testutil.NewStore(t)
	engine, _ := newServer(t, s)

	w, env := postForm(t, engine, "/add-widget", url.Values{"name": {"bolt"}, "size": {"4"}})
	if w.Code != http.StatusOK || env.State != 0 || env.message(t) != nanocrud.MsgAdded {
		t.Fatalf("add: %d %+v", w.Code, env)
	}

	_, env = postForm(t, engine, "/query-widget", nil)
	var records []map[string]interface{}
	if err := json.Unmarshal(env.Data, &records); err != nil {
		t.Fatalf("query data is not a list: %s", env.Data)
	}
	if len(records) != 1 || records[0]["name"] != "bolt" || records[0]["id"] != float64(1) {
		t.Fatalf("unexpected records: %v", records)
	}

	_, env = postForm(t, engine, "/update-widget", url.Values{"id": {"1"}, "name": {"nut"}})
	if env.State != 0 || env.message(t) != nanocrud.MsgUpdated {
		t.Fatalf("update: %+v", env)
	}
	if got := testutil.FindRecord(t, s, 1)["name"]; got != "nut" {
		t.Errorf("expected nut, got %v", got)
	}

	_, env = postForm(t, engine, "/delete-widget", url.Values{"id": {"1"}})
	if env.State != 0 || env.message(t) != nanocrud.MsgDeleted {
		t.Fatalf("delete: %+v", env)
	}
	testutil.AssertRecordCount(t, s, 0)

	_, env = postForm(t, engine, "/delete-widget", url.Values{"id": {"1"}})
	if env.State != 1 || env.message(t) != nanocrud.MsgNotExist {
		t.Errorf("second delete: %+v", env)
	}
}

func TestEmptyQueryIsList(t *testing.T) {
	engine, _ := newServer(t, testutil.NewStore(t))

	_, env := postForm(t, engine, "/query-widget", nil)
	if env.State != 0 || string(env.Data) != "[]" {
		t.Errorf("expected empty list, got %+v (%s)", env, env.Data)
	}
}

func TestMultipartForm(t *testing.T) {
	s := testutil.NewStore(t)
	engine, _ := newServer(t, s)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("name", "washer")
	_ = mw.WriteField("color", "grey")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/add-widget", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	_, env := serve(t, engine, req)

	if env.State != 0 {
		t.Fatalf("add failed: %+v", env)
	}
	rec := testutil.FindRecord(t, s, 1)
	if rec["name"] != "washer" || rec["color"] != "grey" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestUnmatchedPaths(t *testing.T) {
	engine, _ := newServer(t, testutil.NewStore(t), func(c *nanocrud.Config) { c.Protect = true })

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "unknown path", method: http.MethodPost, path: "/purge-widget"},
		{name: "protected operation", method: http.MethodPost, path: "/delete-widget"},
		{name: "wrong method", method: http.MethodGet, path: "/query-widget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w, env := serve(t, engine, req)
			if w.Code != http.StatusNotFound {
				t.Errorf("expected 404, got %d", w.Code)
			}
			if env.State != 1 || env.message(t) != nanocrud.MsgUnmatched {
				t.Errorf("unexpected envelope: %+v", env)
			}
		})
	}
}

type brokenModel struct{}

var errBroken = errors.New("store unavailable")

func (brokenModel) Filter(context.Context, int64) (nanocrud.ResultSet, error) { return nil, errBroken }
func (brokenModel) Create(context.Context, types.Fields) (types.Record, error) {
	return nil, errBroken
}
func (brokenModel) All(context.Context) ([]types.Record, error) { return nil, errBroken }
func (brokenModel) Close() error                                { return nil }

func TestStoreFailureIs500(t *testing.T) {
	c, err := nanocrud.New(nanocrud.Config{Model: brokenModel{}, RouteName: "widget"})
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}

	var collected []error
	engine := gin.New()
	engine.Use(func(ctx *gin.Context) {
		ctx.Next()
		for _, e := range ctx.Errors {
			collected = append(collected, e.Err)
		}
	})
	Register(engine, c)

	w, env := postForm(t, engine, "/query-widget", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if env.State != 1 || env.message(t) != MsgInternal {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if len(collected) != 1 || !errors.Is(collected[0], errBroken) {
		t.Errorf("expected store error on gin context, got %v", collected)
	}
}

func TestFieldErrorsAreRejections(t *testing.T) {
	s := testutil.LoadWidgets(t)
	engine, _ := newServer(t, s)

	w, env := postForm(t, engine, "/add-widget", url.Values{"name": {"x"}, "created_at": {"yesterday"}})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if env.State != 1 || !strings.Contains(env.message(t), "reserved") {
		t.Errorf("unexpected envelope: %+v", env)
	}

	_, env = postForm(t, engine, "/delete-widget", url.Values{"id": {"005"}})
	if env.State != 0 || env.message(t) != nanocrud.MsgDeleted {
		t.Errorf("expected leading-zero id to delete record 5, got %+v", env)
	}
	testutil.AssertRecordMissing(t, s, 5)
}

func TestLoginGateOverHTTP(t *testing.T) {
	a, err := auth.NewJWT([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to create authenticator: %v", err)
	}
	token, _ := a.Issue("alice", time.Hour)

	c, err := nanocrud.New(nanocrud.Config{
		Model:      testutil.LoadWidgets(t),
		RouteName:  "widget",
		Middleware: []nanocrud.Middleware{nanocrud.LoginRequired},
	})
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	engine := NewRouter(nil, auth.Middleware(a, nil))
	Register(engine, c)

	t.Run("anonymous", func(t *testing.T) {
		w, env := postForm(t, engine, "/query-widget", nil)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
		if env.State != 1 || env.Code != response.CodeNotLoggedIn || env.message(t) != nanocrud.MsgNotLoggedIn {
			t.Errorf("unexpected envelope: %+v", env)
		}
	})

	t.Run("bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/query-widget", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		_, env := serve(t, engine, req)
		if env.State != 0 {
			t.Errorf("expected state 0, got %+v", env)
		}
	})
}

func TestRequestID(t *testing.T) {
	engine, _ := newServer(t, testutil.NewStore(t))

	t.Run("assigned when absent", func(t *testing.T) {
		w, _ := postForm(t, engine, "/query-widget", nil)
		if _, err := uuidFrom(w); err != nil {
			t.Errorf("expected uuid request id, got %q", w.Header().Get(RequestIDHeader))
		}
	})

	t.Run("caller id is kept", func(t *testing.T) {
		const id = "6f1c8a0e-4a57-4c1b-9d2e-3f4a5b6c7d8e"
		req := httptest.NewRequest(http.MethodPost, "/query-widget", nil)
		req.Header.Set(RequestIDHeader, id)
		w, _ := serve(t, engine, req)
		if got := w.Header().Get(RequestIDHeader); got != id {
			t.Errorf("expected %q, got %q", id, got)
		}
	})

	t.Run("malformed caller id is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/query-widget", nil)
		req.Header.Set(RequestIDHeader, "not-a-uuid")
		w, _ := serve(t, engine, req)
		if got := w.Header().Get(RequestIDHeader); got == "not-a-uuid" {
			t.Error("malformed id should be replaced")
		}
	})
}

type recordingObserver struct {
	ops    []types.Operation
	states []types.State
	errs   int
}

func (o *recordingObserver) Observe(_ string, op types.Operation, env types.Envelope, err error, _ time.Duration) {
	o.ops = append(o.ops, op)
	o.states = append(o.states, env.State)
	if err != nil {
		o.errs++
	}
}

func TestObservers(t *testing.T) {
	c, err := nanocrud.New(nanocrud.Config{Model: testutil.LoadWidgets(t), RouteName: "widget"})
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	obs := &recordingObserver{}
	engine := NewRouter(nil)
	Register(engine, c, obs)
	NoRoute(engine, c, obs)

	postForm(t, engine, "/query-widget", nil)
	postForm(t, engine, "/delete-widget", url.Values{"id": {"4"}})
	postForm(t, engine, "/nowhere", nil)

	wantOps := []types.Operation{types.OpQuery, types.OpDelete, types.OpDefault}
	if diff := cmp.Diff(wantOps, obs.ops); diff != "" {
		t.Errorf("observed operations mismatch (-want +got):\n%s", diff)
	}
	wantStates := []types.State{types.StateOK, types.StateError, types.StateError}
	if diff := cmp.Diff(wantStates, obs.states); diff != "" {
		t.Errorf("observed states mismatch (-want +got):\n%s", diff)
	}
	if obs.errs != 0 {
		t.Errorf("expected no failures, got %d", obs.errs)
	}
}
