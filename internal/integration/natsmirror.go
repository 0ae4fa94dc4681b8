package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

// Mirror republishes delivered messages to a secondary sink.
type Mirror interface {
	Publish(ctx context.Context, msg models.Message) error
	Close()
}

// natsPublisher is the part of *nats.Conn the mirror uses.
type natsPublisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	IsClosed() bool
	Close()
}

func dialNATS(url string, timeout time.Duration) (natsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("graphiti-hook"),
		nats.Timeout(timeout),
		nats.MaxReconnects(0),
	)
	if err != nil {
		return nil, err
	}
	return nc, nil
}

// natsMirror publishes messages as JSON on a NATS subject. The connection is
// opened on first publish so hook invocations that never deliver pay nothing.
type natsMirror struct {
	url     string
	prefix  string
	timeout time.Duration
	dial    func(url string, timeout time.Duration) (natsPublisher, error)

	mu sync.Mutex
	nc natsPublisher
}

// NewNATSMirror creates a Mirror publishing to {prefix}.{group_id} on url.
func NewNATSMirror(url, prefix string, timeout time.Duration) Mirror {
	if prefix == "" {
		prefix = "graphiti.messages"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &natsMirror{url: url, prefix: prefix, timeout: timeout, dial: dialNATS}
}

// MirrorSubject returns the subject a message for groupID is published on.
// Characters that are special in NATS subjects are replaced with '_'.
func MirrorSubject(prefix, groupID string) string {
	if groupID == "" {
		groupID = "default"
	}
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, groupID)
	return prefix + "." + token
}

func (m *natsMirror) conn() (natsPublisher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nc != nil && !m.nc.IsClosed() {
		return m.nc, nil
	}
	nc, err := m.dial(m.url, m.timeout)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	m.nc = nc
	return nc, nil
}

func (m *natsMirror) Publish(ctx context.Context, msg models.Message) error {
	nc, err := m.conn()
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling mirror message: %w", err)
	}

	subject := MirrorSubject(m.prefix, msg.GroupID)
	if err := nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}

	fctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := nc.FlushWithContext(fctx); err != nil {
		return fmt.Errorf("flushing %s: %w", subject, err)
	}
	return nil
}

func (m *natsMirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nc != nil {
		m.nc.Close()
		m.nc = nil
	}
}
