// Package eventbus fans gameplay events out over NATS.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/wfunc/quantumquest/logger"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher publishes JSON events under "<subject>.<kind>".
type Publisher struct {
	conn    Conn
	subject string
}

// Connect dials NATS with reconnects enabled.
func Connect(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("quantumquest"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Log.Warnf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Log.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewPublisher(nc, subject), nil
}

func NewPublisher(conn Conn, subject string) *Publisher {
	if subject == "" {
		subject = "quantumquest"
	}
	return &Publisher{conn: conn, subject: subject}
}

// Subject returns the full subject for an event kind.
func (p *Publisher) Subject(kind string) string {
	return p.subject + "." + kind
}

func (p *Publisher) Publish(kind string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}
	return p.conn.Publish(p.Subject(kind), data)
}

// Close drains pending messages before closing.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
