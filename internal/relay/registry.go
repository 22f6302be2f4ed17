package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Notification is the out-of-band frame pushed to clients when an alarm
// or timer fires. It is interleaved with normal model traffic.
type Notification struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewNotification builds a notification frame.
func NewNotification(text string) Notification {
	return Notification{Type: "notification", Text: text}
}

// Registry is the process-wide set of live client transports. Sessions
// register on connect and deregister on any terminal condition; the
// scheduler broadcasts to a snapshot so a transport closing mid-fan-out
// cannot disturb iteration.
type Registry struct {
	mu     sync.Mutex
	conns  map[Transport]struct{}
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:  make(map[Transport]struct{}),
		logger: logger,
	}
}

// Register adds a live client transport.
func (g *Registry) Register(t Transport) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[t] = struct{}{}
}

// Deregister removes a transport. Removing an absent transport is a no-op.
func (g *Registry) Deregister(t Transport) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, t)
}

// Len reports the number of registered transports.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Snapshot returns a stable copy of the membership for iteration.
func (g *Registry) Snapshot() []Transport {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Transport, 0, len(g.conns))
	for t := range g.conns {
		out = append(out, t)
	}
	return out
}

// Broadcast sends v to every registered transport and returns the number
// of successful deliveries. Individual send failures are logged and
// skipped — a broken transport must not block the rest of the fan-out.
func (g *Registry) Broadcast(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		g.logger.Error("marshal broadcast frame", "error", err)
		return 0
	}

	delivered := 0
	for _, t := range g.Snapshot() {
		if err := t.WriteFrame(data); err != nil {
			g.logger.Debug("broadcast send failed, skipping transport", "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
