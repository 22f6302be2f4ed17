package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pulu-ai/pulu/internal/gemini"
	"github.com/pulu-ai/pulu/internal/store"
)

// ToolExecutor runs one tool call and describes the catalog for the
// setup frame.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (string, bool)
	Declarations() []map[string]any
}

// DialFunc opens the model-facing transport for a new session.
type DialFunc func(ctx context.Context) (Transport, error)

// Relay opens and runs conversation sessions.
type Relay struct {
	store  *store.Store
	tools  ToolExecutor
	dial   DialFunc
	model  string
	userID string
	logger *slog.Logger
}

// New creates a Relay. model is the identifier placed in the setup frame.
func New(logger *slog.Logger, st *store.Store, tools ToolExecutor, dial DialFunc, model, userID string) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		store:  st,
		tools:  tools,
		dial:   dial,
		model:  model,
		userID: userID,
		logger: logger,
	}
}

// instructionTemplate is the assistant persona. The stop-the-noise rule
// exists because a ringing alarm drowns out any clarifying question the
// model might otherwise ask.
const instructionTemplate = `You are Pulu, a helpful, voice-based AI assistant. You are talking to %s. Context: %s

CRITICAL IDENTITY:
- You are a Private Personal Assistant.
- You are Authorized and Expected to remember personal details (e.g., Door Codes, Wi-Fi Passwords, Favorite Colors, Car details) when the user asks.
- Time Awareness: Always use the 'User Timezone' from the context for current time, dates, and scheduling.
- Privacy: This data is stored locally for the user's convenience. Do NOT refuse to store this information.

Talk in a friendly and concise manner.

CRITICAL RULE:
If an alarm or timer is ringing (status='RINGING', or the user implies it's noisy), and the user says 'Stop', 'Silence', 'Quiet', or 'Dismiss', you MUST call handle_alarm(action='delete') AND handle_timer(action='delete') immediately. Do NOT ask for clarification. Just assume they want to stop the noise.`

// systemInstruction builds the persona text from the current profile and
// memory snapshot. The snapshot is taken once per session; mid-session
// profile edits reach the model only through tool results.
func (r *Relay) systemInstruction() string {
	userName := "User"
	userContext := "User Context Unavailable"

	user, err := r.store.GetUser(r.userID)
	if err != nil {
		r.logger.Error("fetch user context", "error", err)
	} else {
		userName = user.Name

		var facts []string
		mems, err := r.store.ListMemories(r.userID)
		if err != nil {
			r.logger.Error("fetch memories", "error", err)
		}
		for _, m := range mems {
			facts = append(facts, fmt.Sprintf("%s: %s", m.Label, m.Value))
		}

		userContext = fmt.Sprintf("User Name: %s. User City: %s. User Timezone: %s. User Gender: %s. %s",
			user.Name, user.City, user.Timezone, user.Gender, strings.Join(facts, ". "))
	}

	return fmt.Sprintf(instructionTemplate, userName, userContext)
}

// Open establishes the model-facing transport and performs the setup
// handshake. The caller runs the returned session and is responsible
// for registering/deregistering the client transport.
func (r *Relay) Open(ctx context.Context, client Transport) (*Session, error) {
	model, err := r.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("open model transport: %w", err)
	}

	setup := gemini.SetupFrame{
		Setup: gemini.Setup{
			Model:            r.model,
			GenerationConfig: gemini.GenerationConfig{ResponseModalities: []string{"AUDIO"}},
			Tools:            r.tools.Declarations(),
			SystemInstruction: &gemini.Content{
				Parts: []gemini.Part{{Text: r.systemInstruction()}},
			},
		},
	}
	if err := writeJSON(model, setup); err != nil {
		model.Close()
		return nil, fmt.Errorf("send setup frame: %w", err)
	}

	return &Session{
		client: client,
		model:  model,
		tools:  r.tools,
		logger: r.logger,
	}, nil
}

// Session is one live conversation: a client transport, a model
// transport, and the two pumps between them.
type Session struct {
	client Transport
	model  Transport
	tools  ToolExecutor
	logger *slog.Logger

	closeOnce sync.Once
}

// Run pumps frames in both directions until either side terminates,
// then tears the whole session down: both transports are closed and
// both pumps have exited before Run returns. A normal client disconnect
// returns nil.
func (s *Session) Run(ctx context.Context) error {
	errc := make(chan error, 2)

	go func() { errc <- s.pumpInbound() }()
	go func() { errc <- s.pumpOutbound(ctx) }()

	err := <-errc
	s.close()
	<-errc

	if err != nil {
		s.logger.Info("session ended", "error", err)
	} else {
		s.logger.Info("session ended")
	}
	return err
}

// close tears down both transports. Closing unblocks any pump still
// waiting in ReadFrame.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.model.Close()
		s.client.Close()
	})
}

// pumpInbound forwards recognized client frames to the model. Frames
// without the realtime input envelope are dropped so malformed client
// data never leaks upstream.
func (s *Session) pumpInbound() error {
	for {
		raw, err := s.client.ReadFrame()
		if err != nil {
			// Client closing is the normal way a session ends.
			s.logger.Debug("client read ended", "error", err)
			return nil
		}

		if !gemini.IsRealtimeInput(raw) {
			s.logger.Debug("dropping unrecognized client frame", "bytes", len(raw))
			continue
		}

		if err := s.model.WriteFrame(raw); err != nil {
			return fmt.Errorf("forward to model: %w", err)
		}
	}
}

// pumpOutbound relays model frames to the client, executing any embedded
// tool calls first. Calls in one frame run sequentially in arrival order
// and each response is written back to the model before the next call —
// the endpoint correlates responses to calls and may stall awaiting them.
func (s *Session) pumpOutbound(ctx context.Context) error {
	for {
		raw, err := s.model.ReadFrame()
		if err != nil {
			return fmt.Errorf("model read: %w", err)
		}

		calls, err := gemini.ExtractFunctionCalls(raw)
		if err != nil {
			s.logger.Warn("skipping undecodable model frame", "error", err)
			continue
		}

		for _, call := range calls {
			output, ok := s.tools.Execute(ctx, call.Name, call.Args)
			s.logger.Info("tool call handled", "tool", call.Name, "ok", ok)

			if err := writeJSON(s.model, gemini.NewToolResponse(call, output)); err != nil {
				return fmt.Errorf("send tool response: %w", err)
			}
		}

		// The original frame still goes to the client, tool calls and
		// all; audio or text parts ride alongside the calls.
		if err := s.client.WriteFrame(raw); err != nil {
			s.logger.Debug("client gone, stopping outbound pump", "error", err)
			return nil
		}
	}
}
