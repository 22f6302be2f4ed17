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

// clockFormat renders an instant the way it is spoken back to the user.
const clockFormat = "03:04 PM"

// matchTolerance is how far a spoken time may be from an alarm's trigger
// instant and still identify it.
const matchTolerance = 60 * time.Second

func (r *Registry) handleAlarm(ctx context.Context, args map[string]any) (string, error) {
	user, err := r.store.GetUser(r.userID)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}
	loc := user.Location()

	switch action := strArg(args, "action", ""); action {
	case "create":
		return r.createAlarm(args, loc)
	case "read":
		return r.readAlarms(loc)
	case "update":
		return r.updateAlarm(args, loc)
	case "delete":
		return r.deleteAlarm(args, loc)
	default:
		return fmt.Sprintf("Unknown alarm action %q.", action), nil
	}
}

func (r *Registry) createAlarm(args map[string]any, loc *time.Location) (string, error) {
	timeStr := strArg(args, "time", "")
	if timeStr == "" {
		return "Error: Time required.", nil
	}

	when, err := timeparse.ParseClock(timeStr, loc, r.now())
	var perr *timeparse.ParseError
	if errors.As(err, &perr) {
		return "Could not understand the time.", nil
	}
	if err != nil {
		return "", err
	}

	alarm := &store.Alarm{
		Time:   when,
		Label:  strArg(args, "label", "Alarm"),
		Status: store.StatusActive,
	}
	if err := r.store.CreateAlarm(alarm); err != nil {
		return "", err
	}

	return fmt.Sprintf("Alarm set for %s.", when.In(loc).Format(clockFormat)), nil
}

func (r *Registry) readAlarms(loc *time.Location) (string, error) {
	alarms, err := r.store.ListAlarms(store.StatusActive, store.StatusRinging)
	if err != nil {
		return "", err
	}
	if len(alarms) == 0 {
		return "No active alarms.", nil
	}

	lines := make([]string, 0, len(alarms))
	for _, a := range alarms {
		line := fmt.Sprintf("[%s] %s at %s", a.ID, a.Label, a.Time.In(loc).Format(clockFormat))
		if a.Status == store.StatusRinging {
			line += " (RINGING)"
		}
		lines = append(lines, line)
	}
	return "Current Alarms:\n" + strings.Join(lines, "\n"), nil
}

// findAlarm locates exactly one alarm by id, spoken time (within the
// match tolerance), or case-insensitive label substring — in that
// priority order. It returns nil with a reason string when criteria were
// given but nothing matched, and (nil, "") when no criteria were given.
func (r *Registry) findAlarm(args map[string]any, loc *time.Location) (*store.Alarm, string, error) {
	alarms, err := r.store.ListAlarms(store.StatusActive, store.StatusRinging)
	if err != nil {
		return nil, "", err
	}

	if id := strArg(args, "alarm_id", ""); id != "" {
		for _, a := range alarms {
			if a.ID == id {
				return a, "", nil
			}
		}
		return nil, "Alarm not found.", nil
	}

	if timeStr := strArg(args, "time", ""); timeStr != "" {
		target, err := timeparse.ParseClock(timeStr, loc, r.now())
		var perr *timeparse.ParseError
		if errors.As(err, &perr) {
			return nil, "Could not understand the time.", nil
		}
		if err != nil {
			return nil, "", err
		}
		for _, a := range alarms {
			diff := a.Time.Sub(target)
			if diff < 0 {
				diff = -diff
			}
			if diff < matchTolerance {
				return a, "", nil
			}
		}
		return nil, fmt.Sprintf("No alarm found at %s.", timeStr), nil
	}

	if label := strArg(args, "label", ""); label != "" {
		needle := strings.ToLower(label)
		for _, a := range alarms {
			if strings.Contains(strings.ToLower(a.Label), needle) {
				return a, "", nil
			}
		}
		return nil, fmt.Sprintf("No alarm named %q found.", label), nil
	}

	return nil, "", nil
}

func (r *Registry) updateAlarm(args map[string]any, loc *time.Location) (string, error) {
	alarm, reason, err := r.findAlarm(args, loc)
	if err != nil {
		return "", err
	}
	if reason != "" {
		return reason, nil
	}
	if alarm == nil {
		return "Which alarm should be updated? Provide a time, label, or ID.", nil
	}

	newTime := alarm.Time
	if s := strArg(args, "new_time", ""); s != "" {
		parsed, err := timeparse.ParseClock(s, loc, r.now())
		var perr *timeparse.ParseError
		if errors.As(err, &perr) {
			return "Could not understand the new time.", nil
		}
		if err != nil {
			return "", err
		}
		newTime = parsed
	}

	newLabel := strArg(args, "new_label", alarm.Label)

	if err := r.store.UpdateAlarm(alarm.ID, newTime, newLabel); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "Alarm not found.", nil
		}
		return "", err
	}
	return fmt.Sprintf("Alarm updated to %s.", newTime.In(loc).Format(clockFormat)), nil
}

// deleteAlarm removes a single identified alarm, or — with no criteria —
// every ringing alarm. Pending (ACTIVE) alarms are never swept
// implicitly; silencing the noise must not cancel tomorrow's wake-up.
func (r *Registry) deleteAlarm(args map[string]any, loc *time.Location) (string, error) {
	alarm, reason, err := r.findAlarm(args, loc)
	if err != nil {
		return "", err
	}
	if reason != "" {
		return reason, nil
	}

	if alarm != nil {
		if err := r.store.DeleteAlarm(alarm.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "Alarm not found.", nil
			}
			return "", err
		}
		return "Alarm deleted.", nil
	}

	ringing, err := r.store.ListAlarms(store.StatusRinging)
	if err != nil {
		return "", err
	}

	count := 0
	for _, a := range ringing {
		if err := r.store.DeleteAlarm(a.ID); err != nil {
			// Already gone is fine: the scheduler or another session
			// may race us here.
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return "", err
		}
		count++
	}

	if count > 0 {
		return fmt.Sprintf("Stopped %d ringing alarm(s).", count), nil
	}
	return "No ringing alarms found.", nil
}
