package render

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tpl := domain.Template{
		Key:    "ticket_status",
		Title:  "Ticket {no} status changed",
		Body:   "Ticket {no} moved from {old} to {new}.",
		Active: true,
	}

	tests := []struct {
		name      string
		tpl       domain.Template
		vars      map[string]any
		wantTitle string
		wantBody  string
		wantErr   string
	}{
		{
			name:      "all fields supplied",
			tpl:       tpl,
			vars:      map[string]any{"no": "T-42", "old": "pending", "new": "closed"},
			wantTitle: "Ticket T-42 status changed",
			wantBody:  "Ticket T-42 moved from pending to closed.",
		},
		{
			name:      "extra fields are ignored and values formatted",
			tpl:       tpl,
			vars:      map[string]any{"no": 42, "old": "a", "new": "b", "unused": true},
			wantTitle: "Ticket 42 status changed",
			wantBody:  "Ticket 42 moved from a to b.",
		},
		{
			name:    "missing field",
			tpl:     tpl,
			vars:    map[string]any{"no": "T-1", "old": "a"},
			wantErr: "new",
		},
		{
			name:    "nil value counts as missing",
			tpl:     tpl,
			vars:    map[string]any{"no": "T-1", "old": "a", "new": nil},
			wantErr: "new",
		},
		{
			name:    "inactive template",
			tpl:     domain.Template{Key: "off", Title: "x", Body: "y"},
			vars:    map[string]any{},
			wantErr: "inactive",
		},
		{
			name:    "unterminated placeholder",
			tpl:     domain.Template{Key: "bad", Title: "x", Body: "hello {name", Active: true},
			vars:    map[string]any{"name": "n"},
			wantErr: "body",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Render(tt.tpl, tt.vars)
			if tt.wantErr != "" {
				if !errors.Is(err, domain.ErrTemplate) {
					t.Fatalf("Render() error = %v, want ErrTemplate", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Render() error = %q, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render() unexpected error = %v", err)
			}
			if got.Title != tt.wantTitle || got.Body != tt.wantBody {
				t.Fatalf("Render() = %+v, want title %q body %q", got, tt.wantTitle, tt.wantBody)
			}
		})
	}
}

func TestRequiredFields(t *testing.T) {
	t.Parallel()

	got, err := RequiredFields(domain.Template{Title: "{b} and {a}", Body: "{a} { c }"})
	if err != nil {
		t.Fatalf("RequiredFields() unexpected error = %v", err)
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RequiredFields() = %v, want %v", got, want)
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	if err := Check(domain.Template{Title: "ok {x}", Body: "fine"}); err != nil {
		t.Fatalf("Check() unexpected error = %v", err)
	}
	if err := Check(domain.Template{Title: "bad {}", Body: "b"}); !errors.Is(err, domain.ErrTemplate) {
		t.Fatalf("Check() error = %v, want ErrTemplate", err)
	}
	if err := Check(domain.Template{Title: "t", Body: "open {x"}); !errors.Is(err, domain.ErrTemplate) {
		t.Fatalf("Check() error = %v, want ErrTemplate", err)
	}
}

func TestDefaultTemplatesRender(t *testing.T) {
	t.Parallel()

	for _, tpl := range domain.DefaultTemplates() {
		fields, err := RequiredFields(tpl)
		if err != nil {
			t.Fatalf("RequiredFields(%s) unexpected error = %v", tpl.Key, err)
		}
		vars := map[string]any{}
		for _, f := range fields {
			vars[f] = "v"
		}
		if _, err := Render(tpl, vars); err != nil {
			t.Fatalf("Render(%s) unexpected error = %v", tpl.Key, err)
		}
	}
}
