package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pulu-ai/pulu/internal/store"
)

// seqLog records writes across transports so tests can assert ordering
// between the model side and the client side.
type seqLog struct {
	mu     sync.Mutex
	events []string
}

func (l *seqLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *seqLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeTransport scripts inbound frames from a channel and records
// outbound ones.
type fakeTransport struct {
	name string
	log  *seqLog
	in   chan []byte

	mu       sync.Mutex
	writes   [][]byte
	writeErr error

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport(name string, log *seqLog) *fakeTransport {
	return &fakeTransport{
		name:   name,
		log:    log,
		in:     make(chan []byte, 8),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadFrame() ([]byte, error) {
	select {
	case raw, ok := <-f.in:
		if !ok {
			return nil, io.EOF
		}
		return raw, nil
	case <-f.closed:
		return nil, errors.New("transport closed")
	}
}

func (f *fakeTransport) WriteFrame(raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), raw...))
	if f.log != nil {
		f.log.add(fmt.Sprintf("%s:%d", f.name, len(f.writes)))
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

// fakeExecutor records calls in order and answers with canned text.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args map[string]any) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.fail {
		return "Error: broken", false
	}
	return "done " + name, true
}

func (f *fakeExecutor) Declarations() []map[string]any {
	return []map[string]any{{"google_search": map[string]any{}}}
}

func newTestSession(client, model Transport, tools ToolExecutor) *Session {
	return &Session{client: client, model: model, tools: tools, logger: slog.Default()}
}

func TestSessionAnswersCallsInOrderBeforeForwarding(t *testing.T) {
	log := &seqLog{}
	client := newFakeTransport("client", log)
	model := newFakeTransport("model", log)
	exec := &fakeExecutor{}

	frame := []byte(`{"serverContent":{"modelTurn":{"parts":[
		{"functionCall":{"name":"handle_alarm","args":{"action":"read"},"id":"c1"}},
		{"functionCall":{"name":"handle_timer","args":{"action":"read"},"id":"c2"}}
	]}}}`)
	model.in <- frame
	close(model.in)

	// Model stream ending is reported as a session error.
	if err := newTestSession(client, model, exec).Run(context.Background()); err == nil {
		t.Error("expected error when model stream ends")
	}

	if got := strings.Join(exec.calls, ","); got != "handle_alarm,handle_timer" {
		t.Errorf("calls = %s", got)
	}

	// Two tool responses back to the model, in call order.
	responses := model.written()
	if len(responses) != 2 {
		t.Fatalf("model got %d frames, want 2", len(responses))
	}
	for i, wantID := range []string{"c1", "c2"} {
		var fr struct {
			ToolResponse struct {
				FunctionResponses []struct {
					Name     string `json:"name"`
					ID       string `json:"id"`
					Response struct {
						Result struct {
							Output string `json:"output"`
						} `json:"result"`
					} `json:"response"`
				} `json:"functionResponses"`
			} `json:"toolResponse"`
		}
		if err := json.Unmarshal(responses[i], &fr); err != nil {
			t.Fatalf("decode response %d: %v", i, err)
		}
		if len(fr.ToolResponse.FunctionResponses) != 1 {
			t.Fatalf("response %d carries %d entries", i, len(fr.ToolResponse.FunctionResponses))
		}
		if fr.ToolResponse.FunctionResponses[0].ID != wantID {
			t.Errorf("response %d id = %s, want %s", i, fr.ToolResponse.FunctionResponses[0].ID, wantID)
		}
		if out := fr.ToolResponse.FunctionResponses[0].Response.Result.Output; !strings.HasPrefix(out, "done ") {
			t.Errorf("response %d output = %q", i, out)
		}
	}

	// The original frame reaches the client, after both responses.
	forwarded := client.written()
	if len(forwarded) != 1 || string(forwarded[0]) != string(frame) {
		t.Fatalf("client got %d frames", len(forwarded))
	}
	if got := strings.Join(log.all(), " "); got != "model:1 model:2 client:1" {
		t.Errorf("write order = %s", got)
	}
}

func TestSessionForwardsFailedCallsAsText(t *testing.T) {
	client := newFakeTransport("client", nil)
	model := newFakeTransport("model", nil)
	exec := &fakeExecutor{fail: true}

	model.in <- []byte(`{"toolCall":{"functionCalls":[{"name":"handle_alarm","id":"x"}]}}`)
	close(model.in)

	newTestSession(client, model, exec).Run(context.Background())

	responses := model.written()
	if len(responses) != 1 {
		t.Fatalf("model got %d frames, want 1", len(responses))
	}
	if !strings.Contains(string(responses[0]), "Error: broken") {
		t.Errorf("response = %s", responses[0])
	}
}

func TestSessionForwardsOnlyRealtimeInput(t *testing.T) {
	client := newFakeTransport("client", nil)
	model := newFakeTransport("model", nil)

	client.in <- []byte(`{"type":"ping"}`)
	client.in <- []byte(`{"realtime_input":{"media_chunks":[]}}`)
	close(client.in)

	// Client hanging up is a normal session end.
	if err := newTestSession(client, model, &fakeExecutor{}).Run(context.Background()); err != nil {
		t.Errorf("Run: %v", err)
	}

	upstream := model.written()
	if len(upstream) != 1 {
		t.Fatalf("model got %d frames, want 1", len(upstream))
	}
	if !strings.Contains(string(upstream[0]), "realtime_input") {
		t.Errorf("forwarded frame = %s", upstream[0])
	}
}

func TestSessionSkipsUndecodableModelFrames(t *testing.T) {
	client := newFakeTransport("client", nil)
	model := newFakeTransport("model", nil)

	model.in <- []byte(`not json`)
	model.in <- []byte(`{"serverContent":{"modelTurn":{"parts":[{"text":"hi"}]}}}`)
	close(model.in)

	newTestSession(client, model, &fakeExecutor{}).Run(context.Background())

	forwarded := client.written()
	if len(forwarded) != 1 {
		t.Fatalf("client got %d frames, want 1", len(forwarded))
	}
	if !strings.Contains(string(forwarded[0]), "hi") {
		t.Errorf("forwarded frame = %s", forwarded[0])
	}
}

func TestSessionTeardownClosesBothSides(t *testing.T) {
	client := newFakeTransport("client", nil)
	model := newFakeTransport("model", nil)

	close(client.in)

	if err := newTestSession(client, model, &fakeExecutor{}).Run(context.Background()); err != nil {
		t.Errorf("Run: %v", err)
	}

	select {
	case <-client.closed:
	default:
		t.Error("client transport left open")
	}
	select {
	case <-model.closed:
	default:
		t.Error("model transport left open")
	}
}

func TestRelayOpenSendsSetupFrame(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "pulu.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.UpdateUser("user_1", map[string]string{"name": "Maija", "city": "Helsinki"}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if err := st.SetMemory("user_1", "door_code", "Door Code", "4512"); err != nil {
		t.Fatalf("SetMemory: %v", err)
	}

	model := newFakeTransport("model", nil)
	dial := func(ctx context.Context) (Transport, error) { return model, nil }

	r := New(slog.Default(), st, &fakeExecutor{}, dial, "models/test-model", "user_1")
	client := newFakeTransport("client", nil)
	if _, err := r.Open(context.Background(), client); err != nil {
		t.Fatalf("Open: %v", err)
	}

	frames := model.written()
	if len(frames) != 1 {
		t.Fatalf("model got %d frames, want 1 setup frame", len(frames))
	}

	var setup struct {
		Setup struct {
			Model            string `json:"model"`
			GenerationConfig struct {
				ResponseModalities []string `json:"response_modalities"`
			} `json:"generation_config"`
			Tools             []map[string]any `json:"tools"`
			SystemInstruction struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"system_instruction"`
		} `json:"setup"`
	}
	if err := json.Unmarshal(frames[0], &setup); err != nil {
		t.Fatalf("decode setup: %v", err)
	}
	if setup.Setup.Model != "models/test-model" {
		t.Errorf("model = %q", setup.Setup.Model)
	}
	if len(setup.Setup.GenerationConfig.ResponseModalities) != 1 || setup.Setup.GenerationConfig.ResponseModalities[0] != "AUDIO" {
		t.Errorf("modalities = %v", setup.Setup.GenerationConfig.ResponseModalities)
	}
	if len(setup.Setup.Tools) != 1 {
		t.Errorf("tools = %v", setup.Setup.Tools)
	}
	if len(setup.Setup.SystemInstruction.Parts) != 1 {
		t.Fatalf("instruction parts = %+v", setup.Setup.SystemInstruction.Parts)
	}
	text := setup.Setup.SystemInstruction.Parts[0].Text
	for _, want := range []string{"Pulu", "Maija", "Helsinki", "Door Code: 4512"} {
		if !strings.Contains(text, want) {
			t.Errorf("system instruction missing %q", want)
		}
	}
}

func TestRelayOpenDialFailure(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "pulu.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	dialErr := errors.New("endpoint unreachable")
	dial := func(ctx context.Context) (Transport, error) { return nil, dialErr }

	r := New(slog.Default(), st, &fakeExecutor{}, dial, "models/test-model", "user_1")
	if _, err := r.Open(context.Background(), newFakeTransport("client", nil)); !errors.Is(err, dialErr) {
		t.Errorf("Open err = %v, want wrapped dial error", err)
	}
}
