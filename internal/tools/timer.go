package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pulu-ai/pulu/internal/store"
	"github.com/pulu-ai/pulu/internal/timeparse"
)

func (r *Registry) handleTimer(ctx context.Context, args map[string]any) (string, error) {
	user, err := r.store.GetUser(r.userID)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}
	loc := user.Location()

	switch action := strArg(args, "action", ""); action {
	case "create":
		return r.createTimer(args)
	case "read":
		return r.readTimers(loc)
	case "extend":
		return r.extendTimer(args)
	case "delete":
		return r.deleteTimer(args)
	default:
		return fmt.Sprintf("Unknown timer action %q.", action), nil
	}
}

// durationArg accepts either a JSON number of seconds or a natural
// language duration phrase.
func durationArg(args map[string]any, name string) (int, bool, error) {
	switch v := args[name].(type) {
	case float64:
		return int(v), true, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, false, nil
		}
		secs, err := timeparse.ParseDurationPhrase(v)
		return secs, true, err
	default:
		return 0, false, nil
	}
}

func (r *Registry) createTimer(args map[string]any) (string, error) {
	secs, given, err := durationArg(args, "duration")
	if !given {
		return "Error: Duration required.", nil
	}
	var perr *timeparse.ParseError
	if errors.As(err, &perr) {
		return "Could not understand the duration.", nil
	}
	if err != nil {
		return "", err
	}
	if secs <= 0 {
		return "Error: Duration required.", nil
	}

	timer := &store.Timer{
		DurationSeconds: secs,
		EndTime:         r.now().UTC().Add(time.Duration(secs) * time.Second),
		Label:           strArg(args, "label", "Timer"),
		Status:          store.StatusActive,
	}
	if err := r.store.CreateTimer(timer); err != nil {
		return "", err
	}

	return fmt.Sprintf("Timer set for %d seconds.", secs), nil
}

func (r *Registry) readTimers(loc *time.Location) (string, error) {
	timers, err := r.store.ListTimers(store.StatusActive, store.StatusRinging)
	if err != nil {
		return "", err
	}
	if len(timers) == 0 {
		return "No active timers.", nil
	}

	now := r.now().UTC()
	lines := make([]string, 0, len(timers))
	for _, t := range timers {
		if t.Status == store.StatusRinging {
			lines = append(lines, fmt.Sprintf("[%s] %s: RINGING", t.ID, t.Label))
			continue
		}
		remaining := int(t.EndTime.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: ends at %s (%ds left)",
			t.ID, t.Label, t.EndTime.In(loc).Format(clockFormat), remaining))
	}
	return "Current Timers:\n" + strings.Join(lines, "\n"), nil
}

// findTimer locates one timer by id or label substring. With no criteria
// and exactly one live timer, that timer is assumed.
func (r *Registry) findTimer(args map[string]any) (*store.Timer, string, error) {
	timers, err := r.store.ListTimers(store.StatusActive, store.StatusRinging)
	if err != nil {
		return nil, "", err
	}

	if id := strArg(args, "timer_id", ""); id != "" {
		for _, t := range timers {
			if t.ID == id {
				return t, "", nil
			}
		}
		return nil, "Timer not found.", nil
	}

	if label := strArg(args, "label", ""); label != "" {
		needle := strings.ToLower(label)
		for _, t := range timers {
			if strings.Contains(strings.ToLower(t.Label), needle) {
				return t, "", nil
			}
		}
		return nil, fmt.Sprintf("No timer named %q found.", label), nil
	}

	if len(timers) == 1 {
		return timers[0], "", nil
	}
	return nil, "", nil
}

func (r *Registry) extendTimer(args map[string]any) (string, error) {
	secs, given, err := durationArg(args, "duration")
	if !given {
		return "Error: Duration required.", nil
	}
	var perr *timeparse.ParseError
	if errors.As(err, &perr) {
		return "Could not understand the duration.", nil
	}
	if err != nil {
		return "", err
	}
	if secs <= 0 {
		return "Error: Duration required.", nil
	}

	timer, reason, err := r.findTimer(args)
	if err != nil {
		return "", err
	}
	if reason != "" {
		return reason, nil
	}
	if timer == nil {
		return "Which timer should be extended? Provide a label or ID.", nil
	}

	if err := r.store.ExtendTimer(timer.ID, secs); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "Timer not found.", nil
		}
		return "", err
	}
	return fmt.Sprintf("Timer extended by %d seconds.", secs), nil
}

// deleteTimer removes a single identified timer, or — with no criteria —
// every ringing timer, leaving pending ones untouched.
func (r *Registry) deleteTimer(args map[string]any) (string, error) {
	if strArg(args, "timer_id", "") != "" || strArg(args, "label", "") != "" {
		timer, reason, err := r.findTimer(args)
		if err != nil {
			return "", err
		}
		if reason != "" {
			return reason, nil
		}
		if err := r.store.DeleteTimer(timer.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "Timer not found.", nil
			}
			return "", err
		}
		return "Timer deleted.", nil
	}

	ringing, err := r.store.ListTimers(store.StatusRinging)
	if err != nil {
		return "", err
	}

	count := 0
	for _, t := range ringing {
		if err := r.store.DeleteTimer(t.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return "", err
		}
		count++
	}

	if count > 0 {
		return fmt.Sprintf("Stopped %d ringing timer(s).", count), nil
	}
	return "No ringing timers found.", nil
}
