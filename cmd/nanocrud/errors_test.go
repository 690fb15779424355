package main

import (
	"errors"
	"strings"
	"testing"
)

func TestCLIError(t *testing.T) {
	underlying := errors.New("open widgets.json: permission denied")

	tests := []struct {
		name      string
		err       *CLIError
		wantParts []string
	}{
		{
			name:      "store error classifies cause",
			err:       NewStoreError("add", underlying, CommonSuggestions.CheckPerms),
			wantParts: []string{"Failed to add", "insufficient permissions", "permission denied", "1. Check file permissions"},
		},
		{
			name:      "rejected envelope",
			err:       NewRejectedError("delete", "record does not exist"),
			wantParts: []string{"Failed to delete: record does not exist"},
		},
		{
			name:      "validation",
			err:       NewValidationError("add", "field assignment", "name"),
			wantParts: []string{`invalid field assignment: "name"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(msg, part) {
					t.Errorf("expected %q in %q", part, msg)
				}
			}
		})
	}

	t.Run("unwrap", func(t *testing.T) {
		if !errors.Is(NewStoreError("add", underlying), underlying) {
			t.Error("expected underlying error in chain")
		}
	})

	t.Run("wrap keeps existing CLIError", func(t *testing.T) {
		orig := &CLIError{Cause: "boom"}
		wrapped := WrapError("query", orig)
		if wrapped != orig || orig.Operation != "query" {
			t.Errorf("expected operation filled in on original, got %v", wrapped)
		}
		if WrapError("query", nil) != nil {
			t.Error("nil should stay nil")
		}
	})
}

func TestParseAssignments(t *testing.T) {
	fields, err := parseAssignments("add", []string{"name=a=b", "color=", " size =3"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if fields["name"] != "a=b" || fields["color"] != "" || fields["size"] != "3" {
		t.Errorf("unexpected fields: %v", fields)
	}

	if _, err := parseAssignments("add", []string{"=x"}); err == nil {
		t.Error("expected error for empty key")
	}
}
