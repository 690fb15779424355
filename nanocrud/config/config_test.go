package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanocrud/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nanocrud.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// isolate keeps discovery away from the developer's real config files
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigEnv, "")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func TestDefaults(t *testing.T) {
	isolate(t)
	v := New()
	if err := ReadConfigFile(v); err != nil {
		t.Fatalf("read config failed: %v", err)
	}

	s, err := Load(v)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want := Defaults()
	if diff := cmp.Diff(&want, s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
backend: sqlite
db: widgets.db
route: widget
protect: true
restricted: [query]
format: yaml
`)
	t.Setenv(ConfigEnv, path)

	v := New()
	if err := ReadConfigFile(v); err != nil {
		t.Fatalf("read config failed: %v", err)
	}
	s, err := Load(v)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if s.Backend != BackendSQLite || s.DB != "widgets.db" || s.Route != "widget" || !s.Protect || s.Format != FormatYAML {
		t.Errorf("unexpected settings: %+v", s)
	}
	ops, err := s.RestrictedOperations()
	if err != nil {
		t.Fatalf("restricted failed: %v", err)
	}
	if diff := cmp.Diff([]types.Operation{types.OpQuery}, ops); diff != "" {
		t.Errorf("restricted mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoveredConfigFile(t *testing.T) {
	isolate(t)
	if err := os.WriteFile("nanocrud.yaml", []byte("route: gadget\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	v := New()
	if err := ReadConfigFile(v); err != nil {
		t.Fatalf("read config failed: %v", err)
	}
	if got := v.GetString(KeyRoute); got != "gadget" {
		t.Errorf("expected route gadget, got %q", got)
	}
}

func TestMissingExplicitConfigFile(t *testing.T) {
	isolate(t)
	t.Setenv(ConfigEnv, filepath.Join(t.TempDir(), "absent.yaml"))

	if err := ReadConfigFile(New()); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	isolate(t)
	t.Setenv(ConfigEnv, writeConfig(t, "db: from-file.json\nroute: widget\n"))
	t.Setenv("NANOCRUD_DB", "from-env.json")
	t.Setenv("NANOCRUD_JWT_SECRET", "s3cret")
	t.Setenv("NANOCRUD_RESTRICTED", "add,delete")

	v := New()
	if err := ReadConfigFile(v); err != nil {
		t.Fatalf("read config failed: %v", err)
	}
	s, err := Load(v)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if s.DB != "from-env.json" {
		t.Errorf("expected env db, got %q", s.DB)
	}
	if s.Route != "widget" {
		t.Errorf("expected file route, got %q", s.Route)
	}
	if s.JWTSecret != "s3cret" {
		t.Errorf("expected jwt secret from env, got %q", s.JWTSecret)
	}
	if diff := cmp.Diff([]string{"add", "delete"}, s.Restricted); diff != "" {
		t.Errorf("restricted mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Settings) {}},
		{name: "unknown backend", mutate: func(s *Settings) { s.Backend = "postgres" }, wantErr: "backend"},
		{name: "empty db", mutate: func(s *Settings) { s.DB = " " }, wantErr: "db"},
		{name: "bad route", mutate: func(s *Settings) { s.Route = "No Spaces" }, wantErr: "route"},
		{name: "unknown restricted op", mutate: func(s *Settings) { s.Restricted = []string{"purge"} }, wantErr: "restricted"},
		{name: "bad log level", mutate: func(s *Settings) { s.LogLevel = "loud" }, wantErr: "log-level"},
		{name: "uppercase log level", mutate: func(s *Settings) { s.LogLevel = "DEBUG" }},
		{name: "bad format", mutate: func(s *Settings) { s.Format = "csv" }, wantErr: "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	s := Defaults()
	s.JWTSecret = "s3cret"

	r := s.Redacted()
	if r.JWTSecret == "s3cret" {
		t.Error("secret should be masked")
	}
	if s.JWTSecret != "s3cret" {
		t.Error("original settings should be untouched")
	}
}
