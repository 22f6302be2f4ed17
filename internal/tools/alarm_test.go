package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pulu-ai/pulu/internal/store"
)

func alarmCall(t *testing.T, r *Registry, args map[string]any) string {
	t.Helper()
	out, ok := r.Execute(context.Background(), "handle_alarm", args)
	if !ok {
		t.Fatalf("handle_alarm(%v) not ok: %s", args, out)
	}
	return out
}

func TestAlarmCreateAndRead(t *testing.T) {
	r := newTestRegistry(t)

	out := alarmCall(t, r, map[string]any{"action": "create", "time": "7:30pm", "label": "meds"})
	if out != "Alarm set for 07:30 PM." {
		t.Errorf("create out = %q", out)
	}

	out = alarmCall(t, r, map[string]any{"action": "read"})
	if !strings.Contains(out, "meds at 07:30 PM") {
		t.Errorf("read out = %q", out)
	}
}

func TestAlarmCreatePastTimeRollsForward(t *testing.T) {
	r := newTestRegistry(t)

	// Registry "now" is 08:00 UTC, so 7am resolves to tomorrow.
	alarmCall(t, r, map[string]any{"action": "create", "time": "7am"})

	alarms, err := r.store.ListAlarms()
	if err != nil {
		t.Fatalf("ListAlarms: %v", err)
	}
	if len(alarms) != 1 {
		t.Fatalf("got %d alarms, want 1", len(alarms))
	}
	want := time.Date(2025, 6, 11, 7, 0, 0, 0, time.UTC)
	if !alarms[0].Time.Equal(want) {
		t.Errorf("alarm time = %v, want %v", alarms[0].Time, want)
	}
}

func TestAlarmCreateUnparseableTime(t *testing.T) {
	r := newTestRegistry(t)

	out := alarmCall(t, r, map[string]any{"action": "create", "time": "whenever"})
	if out != "Could not understand the time." {
		t.Errorf("out = %q", out)
	}
	alarms, _ := r.store.ListAlarms()
	if len(alarms) != 0 {
		t.Errorf("unparseable time still created %d alarm(s)", len(alarms))
	}
}

func TestAlarmReadEmpty(t *testing.T) {
	r := newTestRegistry(t)

	if out := alarmCall(t, r, map[string]any{"action": "read"}); out != "No active alarms." {
		t.Errorf("out = %q", out)
	}
}

func TestAlarmUpdate(t *testing.T) {
	r := newTestRegistry(t)

	alarmCall(t, r, map[string]any{"action": "create", "time": "9am", "label": "standup"})

	out := alarmCall(t, r, map[string]any{"action": "update", "label": "standup", "new_time": "9:15am"})
	if out != "Alarm updated to 09:15 AM." {
		t.Errorf("update out = %q", out)
	}

	alarms, _ := r.store.ListAlarms()
	want := time.Date(2025, 6, 10, 9, 15, 0, 0, time.UTC)
	if len(alarms) != 1 || !alarms[0].Time.Equal(want) {
		t.Errorf("alarms = %+v, want time %v", alarms, want)
	}
}

func TestAlarmDeleteByCriteria(t *testing.T) {
	r := newTestRegistry(t)

	alarmCall(t, r, map[string]any{"action": "create", "time": "9am", "label": "standup"})
	alarmCall(t, r, map[string]any{"action": "create", "time": "10am", "label": "dentist"})

	// Spoken time within a minute of the stored instant identifies it.
	out := alarmCall(t, r, map[string]any{"action": "delete", "time": "9am"})
	if out != "Alarm deleted." {
		t.Errorf("delete out = %q", out)
	}

	alarms, _ := r.store.ListAlarms()
	if len(alarms) != 1 || alarms[0].Label != "dentist" {
		t.Errorf("remaining alarms = %+v", alarms)
	}

	out = alarmCall(t, r, map[string]any{"action": "delete", "label": "DENT"})
	if out != "Alarm deleted." {
		t.Errorf("label delete out = %q", out)
	}
}

func TestAlarmDeleteUnmatchedCriteria(t *testing.T) {
	r := newTestRegistry(t)

	alarmCall(t, r, map[string]any{"action": "create", "time": "9am", "label": "standup"})

	out := alarmCall(t, r, map[string]any{"action": "delete", "label": "dentist"})
	if out != `No alarm named "dentist" found.` {
		t.Errorf("out = %q", out)
	}
	out = alarmCall(t, r, map[string]any{"action": "delete", "alarm_id": "nope"})
	if out != "Alarm not found." {
		t.Errorf("out = %q", out)
	}

	// Unmatched criteria never fall through to the ringing sweep.
	alarms, _ := r.store.ListAlarms()
	if len(alarms) != 1 {
		t.Errorf("alarm count = %d, want 1", len(alarms))
	}
}

func TestAlarmDeleteSweepsOnlyRinging(t *testing.T) {
	r := newTestRegistry(t)

	alarmCall(t, r, map[string]any{"action": "create", "time": "9am", "label": "pending"})
	alarmCall(t, r, map[string]any{"action": "create", "time": "10am", "label": "loud one"})
	alarmCall(t, r, map[string]any{"action": "create", "time": "11am", "label": "louder one"})

	alarms, _ := r.store.ListAlarms()
	for _, a := range alarms {
		if a.Label != "pending" {
			if err := r.store.SetAlarmStatus(a.ID, store.StatusRinging); err != nil {
				t.Fatalf("SetAlarmStatus: %v", err)
			}
		}
	}

	out := alarmCall(t, r, map[string]any{"action": "delete"})
	if out != "Stopped 2 ringing alarm(s)." {
		t.Errorf("sweep out = %q", out)
	}

	// The pending alarm survives the sweep.
	left, _ := r.store.ListAlarms()
	if len(left) != 1 || left[0].Label != "pending" || left[0].Status != store.StatusActive {
		t.Errorf("remaining alarms = %+v", left)
	}
}

func TestAlarmDeleteSweepNothingRinging(t *testing.T) {
	r := newTestRegistry(t)

	alarmCall(t, r, map[string]any{"action": "create", "time": "9am"})

	out := alarmCall(t, r, map[string]any{"action": "delete"})
	if out != "No ringing alarms found." {
		t.Errorf("out = %q", out)
	}
	alarms, _ := r.store.ListAlarms()
	if len(alarms) != 1 {
		t.Errorf("pending alarm was deleted")
	}
}

func TestAlarmReadShowsUserLocalTime(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.store.UpdateUser(testUser, map[string]string{"timezone": "Europe/Helsinki"}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	// 7:30pm Helsinki in June is 16:30 UTC.
	alarmCall(t, r, map[string]any{"action": "create", "time": "7:30pm"})

	alarms, _ := r.store.ListAlarms()
	want := time.Date(2025, 6, 10, 16, 30, 0, 0, time.UTC)
	if len(alarms) != 1 || !alarms[0].Time.Equal(want) {
		t.Fatalf("alarms = %+v, want %v", alarms, want)
	}

	out := alarmCall(t, r, map[string]any{"action": "read"})
	if !strings.Contains(out, "07:30 PM") {
		t.Errorf("read out = %q, want local rendering", out)
	}
}
