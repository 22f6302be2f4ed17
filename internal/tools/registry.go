// Package tools defines the tool catalog the model may invoke and
// executes calls against the store.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pulu-ai/pulu/internal/store"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Required    []string
	Handler     func(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the fixed tool catalog for one user.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	store  *store.Store
	userID string
	logger *slog.Logger

	// now is swapped in tests for deterministic time parsing.
	now func() time.Time
}

// NewRegistry creates the tool registry backed by the given store.
func NewRegistry(st *store.Store, userID string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		store:  st,
		userID: userID,
		logger: logger,
		now:    time.Now,
	}
	r.registerBuiltins()
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Execute dispatches one call by name. Unknown tools and handler
// failures are reported as plain result text with ok=false — they are
// spoken back to the user, never raised as session faults.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, bool) {
	t, found := r.tools[name]
	if !found {
		r.logger.Warn("unknown tool requested", "tool", name)
		return "Tool not found", false
	}

	if missing := missingRequired(t, args); len(missing) > 0 {
		return fmt.Sprintf("Error: missing required argument(s): %s.", strings.Join(missing, ", ")), false
	}

	out, err := t.Handler(ctx, args)
	if err != nil {
		r.logger.Error("tool execution failed", "tool", name, "error", err)
		return fmt.Sprintf("Error: %v", err), false
	}
	return out, true
}

func missingRequired(t *Tool, args map[string]any) []string {
	var missing []string
	for _, name := range t.Required {
		v, ok := args[name]
		if !ok || v == nil {
			missing = append(missing, name)
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Declarations returns the catalog sent in the setup frame: the
// google_search built-in plus every registered function declaration,
// in registration order.
func (r *Registry) Declarations() []map[string]any {
	decls := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		params := map[string]any{
			"type":       "OBJECT",
			"properties": t.Parameters,
		}
		if len(t.Required) > 0 {
			params["required"] = t.Required
		}
		decls = append(decls, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  params,
		})
	}

	return []map[string]any{
		{"google_search": map[string]any{}},
		{"function_declarations": decls},
	}
}

func (r *Registry) registerBuiltins() {
	r.Register(&Tool{
		Name: "handle_alarm",
		Description: "Create, read, update, or delete alarms. To cancel a specific alarm, " +
			"provide 'time', 'label', or 'alarm_id'. Deleting with no criteria only stops ringing alarms.",
		Parameters: map[string]any{
			"action": map[string]any{
				"type": "STRING",
				"enum": []string{"create", "read", "update", "delete"},
			},
			"time": map[string]any{
				"type":        "STRING",
				"description": "Natural language time (e.g. '7am', 'tomorrow noon')",
			},
			"label": map[string]any{
				"type":        "STRING",
				"description": "Name of the alarm",
			},
			"alarm_id": map[string]any{
				"type":        "STRING",
				"description": "ID of the alarm to update or delete",
			},
			"new_time": map[string]any{
				"type":        "STRING",
				"description": "Replacement time for the update action",
			},
			"new_label": map[string]any{
				"type":        "STRING",
				"description": "Replacement label for the update action",
			},
		},
		Required: []string{"action"},
		Handler:  r.handleAlarm,
	})

	r.Register(&Tool{
		Name: "handle_timer",
		Description: "Set, read, extend, or delete countdown timers. Durations are natural " +
			"language ('5 minutes', '1 hour 30 seconds') or a bare number of seconds.",
		Parameters: map[string]any{
			"action": map[string]any{
				"type": "STRING",
				"enum": []string{"create", "read", "extend", "delete"},
			},
			"duration": map[string]any{
				"type":        "STRING",
				"description": "Duration phrase or seconds (create and extend)",
			},
			"label": map[string]any{
				"type": "STRING",
			},
			"timer_id": map[string]any{
				"type": "STRING",
			},
		},
		Required: []string{"action"},
		Handler:  r.handleTimer,
	})

	r.Register(&Tool{
		Name:        "update_profile",
		Description: "Update user profile details. Only the fields provided are changed.",
		Parameters: map[string]any{
			"name":     map[string]any{"type": "STRING"},
			"city":     map[string]any{"type": "STRING"},
			"timezone": map[string]any{"type": "STRING", "description": "IANA timezone, e.g. Europe/Helsinki"},
			"gender":   map[string]any{"type": "STRING"},
		},
		Handler: r.handleProfile,
	})

	r.Register(&Tool{
		Name:        "manage_memory",
		Description: "Remember or forget facts about the user.",
		Parameters: map[string]any{
			"action": map[string]any{
				"type": "STRING",
				"enum": []string{"add", "delete"},
			},
			"key":   map[string]any{"type": "STRING"},
			"value": map[string]any{"type": "STRING"},
		},
		Required: []string{"action", "key"},
		Handler:  r.handleMemory,
	})
}

// strArg extracts a trimmed string argument, or fallback when absent.
func strArg(args map[string]any, name, fallback string) string {
	if v, ok := args[name].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
