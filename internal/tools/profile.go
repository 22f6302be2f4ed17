package tools

import (
	"context"
	"fmt"
	"time"
)

// handleProfile merges the provided fields into the user profile.
// Fields absent from the argument map are left untouched.
func (r *Registry) handleProfile(ctx context.Context, args map[string]any) (string, error) {
	fields := make(map[string]string)
	for _, name := range []string{"name", "city", "timezone", "gender"} {
		if v := strArg(args, name, ""); v != "" {
			fields[name] = v
		}
	}

	if len(fields) == 0 {
		return "Nothing to update.", nil
	}

	if tz, ok := fields["timezone"]; ok {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Sprintf("Unknown timezone %q.", tz), nil
		}
	}

	if err := r.store.UpdateUser(r.userID, fields); err != nil {
		return "", err
	}
	return "Profile updated.", nil
}
