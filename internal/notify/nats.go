package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/steptrack/internal/logfields"
)

// statusMessage is the wire form published on the status subject.
type statusMessage struct {
	Visible   bool      `json:"visible"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSRenderer publishes the status surface to a NATS subject so external UI
// processes can mirror the persistent notification. Hide publishes a
// visible=false message rather than nothing, keeping the surface replaceable.
type NATSRenderer struct {
	conn    *nats.Conn
	subject string
	owned   bool
}

// NewNATSRenderer connects to NATS and returns a renderer publishing on subject.
func NewNATSRenderer(url, subject string) (*NATSRenderer, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	conn, err := nats.Connect(url,
		nats.Name("steptrack-notify"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("NATS notification renderer initialized",
		slog.String("url", url), logfields.Subject(subject))

	return &NATSRenderer{conn: conn, subject: subject, owned: true}, nil
}

// NewNATSRendererWithConn wraps an existing connection; Close leaves it open.
func NewNATSRendererWithConn(conn *nats.Conn, subject string) *NATSRenderer {
	return &NATSRenderer{conn: conn, subject: subject}
}

func (r *NATSRenderer) publish(msg statusMessage) error {
	msg.Timestamp = time.Now()
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal status message: %w", err)
	}
	if err := r.conn.Publish(r.subject, raw); err != nil {
		return fmt.Errorf("publish status message: %w", err)
	}
	return nil
}

func (r *NATSRenderer) Show(text string) error {
	return r.publish(statusMessage{Visible: true, Text: text})
}

func (r *NATSRenderer) Update(text string) error {
	return r.publish(statusMessage{Visible: true, Text: text})
}

func (r *NATSRenderer) Hide() error {
	return r.publish(statusMessage{Visible: false})
}

// Close drains the connection if this renderer owns it.
func (r *NATSRenderer) Close() {
	if r.owned && r.conn != nil {
		r.conn.Close()
	}
}
