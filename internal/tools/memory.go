package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pulu-ai/pulu/internal/store"
)

// NormalizeKey folds a fact key to its canonical form: lowercase, with
// runs of whitespace collapsed to single underscores. "Door Code" and
// "door  code" identify the same fact.
func NormalizeKey(key string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(key))), "_")
}

func (r *Registry) handleMemory(ctx context.Context, args map[string]any) (string, error) {
	key := strArg(args, "key", "")
	norm := NormalizeKey(key)
	if norm == "" {
		return "Error: missing required argument(s): key.", nil
	}

	switch action := strArg(args, "action", ""); action {
	case "add", "remember":
		value := strArg(args, "value", "")
		if value == "" {
			return "Error: Value required to store a fact.", nil
		}
		if err := r.store.SetMemory(r.userID, norm, key, value); err != nil {
			return "", err
		}
		return "Fact stored.", nil

	case "delete", "forget":
		if err := r.store.DeleteMemory(r.userID, norm); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("No fact stored for %q.", key), nil
			}
			return "", err
		}
		return "Fact forgotten.", nil

	default:
		return fmt.Sprintf("Unknown memory action %q.", action), nil
	}
}
