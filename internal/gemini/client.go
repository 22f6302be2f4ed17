package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultHost is the public Gemini Live endpoint.
const DefaultHost = "generativelanguage.googleapis.com"

// bidiPath is the BidiGenerateContent websocket path.
const bidiPath = "/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"

// Config holds the connection settings for the Live endpoint.
type Config struct {
	APIKey         string
	Model          string
	Host           string
	ConnectTimeout time.Duration
}

// Dialer opens Live websocket connections.
type Dialer struct {
	cfg    Config
	logger *slog.Logger
}

// NewDialer creates a Dialer. A nil logger falls back to slog.Default.
func NewDialer(cfg Config, logger *slog.Logger) *Dialer {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{cfg: cfg, logger: logger}
}

// Model returns the configured model identifier.
func (d *Dialer) Model() string {
	return d.cfg.Model
}

// Dial connects to the Live endpoint. The handshake is bounded by the
// configured connect timeout; no per-frame timeout is applied after that.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	u := url.URL{
		Scheme:   "wss",
		Host:     d.cfg.Host,
		Path:     bidiPath,
		RawQuery: url.Values{"key": []string{d.cfg.APIKey}}.Encode(),
	}

	d.logger.Info("connecting to Gemini Live", "host", d.cfg.Host, "model", d.cfg.Model)

	dialer := websocket.Dialer{HandshakeTimeout: d.cfg.ConnectTimeout}
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial gemini: %w", err)
	}

	return &Conn{ws: ws}, nil
}

// Conn is one Live websocket connection. Writes are serialized so the
// relay's pumps can send relayed input and tool responses concurrently.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// ReadFrame blocks until the next frame arrives.
func (c *Conn) ReadFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// WriteFrame sends one frame of raw JSON.
func (c *Conn) WriteFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying websocket.
func (c *Conn) Close() error {
	return c.ws.Close()
}
