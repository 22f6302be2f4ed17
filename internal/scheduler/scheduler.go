// Package scheduler runs the process-wide loop that fires due alarms
// and timers and fans notifications out to every live session.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulu-ai/pulu/internal/relay"
	"github.com/pulu-ai/pulu/internal/store"
)

// Broadcaster delivers one frame to every live client transport and
// reports how many deliveries succeeded.
type Broadcaster interface {
	Broadcast(v any) int
}

// EventPublisher receives ring events for external integrations.
// Implementations must tolerate being called from the scheduler loop.
type EventPublisher interface {
	PublishRing(ctx context.Context, kind, label string)
}

// Scheduler polls the store for due alarms and timers. One instance runs
// per process, independent of any session's lifetime.
type Scheduler struct {
	store    *store.Store
	sink     Broadcaster
	events   EventPublisher
	interval time.Duration
	logger   *slog.Logger
}

// New creates a scheduler with the default one-second poll interval.
func New(logger *slog.Logger, st *store.Store, sink Broadcaster) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    st,
		sink:     sink,
		interval: time.Second,
		logger:   logger,
	}
}

// SetInterval overrides the poll interval.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// SetEvents attaches an external event publisher for ring events.
func (s *Scheduler) SetEvents(p EventPublisher) {
	s.events = p
}

// Run polls until ctx is cancelled. A single tick's failure is logged
// and the loop continues; only process shutdown stops it.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("notification scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("notification scheduler stopped")
			return
		case <-ticker.C:
			if err := s.tick(ctx, time.Now().UTC()); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// tick fires everything due at a single consistent instant. Entries a
// session deletes between our list and update simply vanish from the
// next scan; that race is accepted and harmless.
func (s *Scheduler) tick(ctx context.Context, now time.Time) error {
	alarms, err := s.store.ListAlarms(store.StatusActive)
	if err != nil {
		return fmt.Errorf("list alarms: %w", err)
	}
	for _, a := range alarms {
		if a.Time.After(now) {
			continue
		}
		s.fire(ctx, "alarm", a.ID, a.Label, s.store.SetAlarmStatus)
	}

	timers, err := s.store.ListTimers(store.StatusActive)
	if err != nil {
		return fmt.Errorf("list timers: %w", err)
	}
	for _, t := range timers {
		if t.EndTime.After(now) {
			continue
		}
		s.fire(ctx, "timer", t.ID, t.Label, s.store.SetTimerStatus)
	}

	return nil
}

// fire transitions one due entry to RINGING and fans the notification
// out. The status write happens first so a crash between the two can at
// worst drop a notification, never ring twice.
func (s *Scheduler) fire(ctx context.Context, kind, id, label string, setStatus func(id, status string) error) {
	if err := setStatus(id, store.StatusRinging); err != nil {
		// Deleted out from under us by a session; skip quietly.
		s.logger.Debug("skipping vanished entry", "kind", kind, "id", id, "error", err)
		return
	}

	text := fmt.Sprintf("%s: %s", kindTag(kind), label)
	delivered := s.sink.Broadcast(relay.NewNotification(text))
	s.logger.Info("ringing", "kind", kind, "id", id, "label", label, "delivered", delivered)

	if s.events != nil {
		s.events.PublishRing(ctx, kind, label)
	}
}

func kindTag(kind string) string {
	if kind == "timer" {
		return "TIMER"
	}
	return "ALARM"
}
