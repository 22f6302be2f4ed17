package tools

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pulu-ai/pulu/internal/store"
)

const testUser = "user_1"

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "pulu.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	r := NewRegistry(st, testUser, slog.Default())
	r.now = func() time.Time {
		return time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	}
	return r
}

func TestExecuteUnknownTool(t *testing.T) {
	r := newTestRegistry(t)

	out, ok := r.Execute(context.Background(), "launch_missiles", nil)
	if ok {
		t.Error("unknown tool reported ok")
	}
	if out != "Tool not found" {
		t.Errorf("out = %q", out)
	}
}

func TestExecuteMissingRequired(t *testing.T) {
	r := newTestRegistry(t)

	out, ok := r.Execute(context.Background(), "handle_alarm", map[string]any{})
	if ok {
		t.Error("missing required argument reported ok")
	}
	if !strings.Contains(out, "missing required argument") || !strings.Contains(out, "action") {
		t.Errorf("out = %q", out)
	}

	// Blank strings count as missing too.
	out, ok = r.Execute(context.Background(), "manage_memory", map[string]any{"action": "add", "key": "  "})
	if ok {
		t.Error("blank required argument reported ok")
	}
	if !strings.Contains(out, "key") {
		t.Errorf("out = %q", out)
	}
}

func TestExecuteHandlerErrorBecomesText(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(&Tool{
		Name: "broken",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", context.DeadlineExceeded
		},
	})

	out, ok := r.Execute(context.Background(), "broken", nil)
	if ok {
		t.Error("failing handler reported ok")
	}
	if !strings.HasPrefix(out, "Error: ") {
		t.Errorf("out = %q", out)
	}
}

func TestDeclarationsShape(t *testing.T) {
	r := newTestRegistry(t)

	decls := r.Declarations()
	if len(decls) != 2 {
		t.Fatalf("got %d declaration groups, want 2", len(decls))
	}
	if _, ok := decls[0]["google_search"]; !ok {
		t.Error("first group is not the google_search built-in")
	}

	fns, ok := decls[1]["function_declarations"].([]map[string]any)
	if !ok {
		t.Fatalf("second group = %+v", decls[1])
	}

	wantOrder := []string{"handle_alarm", "handle_timer", "update_profile", "manage_memory"}
	if len(fns) != len(wantOrder) {
		t.Fatalf("got %d function declarations, want %d", len(fns), len(wantOrder))
	}
	for i, want := range wantOrder {
		if fns[i]["name"] != want {
			t.Errorf("declaration %d = %v, want %s", i, fns[i]["name"], want)
		}
		params, ok := fns[i]["parameters"].(map[string]any)
		if !ok || params["type"] != "OBJECT" {
			t.Errorf("declaration %s parameters = %+v", want, fns[i]["parameters"])
		}
	}
}
