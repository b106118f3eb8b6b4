// Package nats provides an eventstream publisher that publishes events to a
// NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/papercomputeco/taperelay/pkg/eventstream"
)

const (
	defaultFlushTimeout = 5 * time.Second

	headerEventType     = "event_type"
	headerSchemaVersion = "schema_version"
	headerRecordID      = "record_id"
)

// Config configures the NATS publisher.
type Config struct {
	URL     string
	Subject string

	// FlushTimeout bounds the server round trip after each publish.
	// Defaults to 5s.
	FlushTimeout time.Duration

	Logger *zap.Logger
}

// msgConn is the subset of *natsgo.Conn used by the publisher.
type msgConn interface {
	PublishMsg(m *natsgo.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// Publisher publishes RecordPersistedEvents as JSON messages.
type Publisher struct {
	conn         msgConn
	subject      string
	flushTimeout time.Duration
	logger       *zap.Logger
}

// NewPublisher connects to c.URL and publishes to c.Subject.
func NewPublisher(c Config) (*Publisher, error) {
	if c.URL == "" {
		return nil, errors.New("nats publisher requires a server URL")
	}
	if c.Subject == "" {
		return nil, errors.New("nats publisher requires a subject")
	}

	conn, err := natsgo.Connect(c.URL,
		natsgo.Name("taperelay"),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", c.URL, err)
	}

	return newPublisher(conn, c.Subject, c.FlushTimeout, c.Logger), nil
}

func newPublisher(conn msgConn, subject string, flushTimeout time.Duration, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if flushTimeout == 0 {
		flushTimeout = defaultFlushTimeout
	}

	return &Publisher{
		conn:         conn,
		subject:      subject,
		flushTimeout: flushTimeout,
		logger:       logger,
	}
}

// PublishRecord encodes event, publishes it and waits for the server to
// acknowledge the flush.
func (p *Publisher) PublishRecord(ctx context.Context, event *eventstream.RecordPersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.EventID, err)
	}

	msg := natsgo.NewMsg(p.subject)
	msg.Data = payload
	msg.Header.Set(headerEventType, event.EventType)
	msg.Header.Set(headerSchemaVersion, strconv.Itoa(event.SchemaVersion))
	msg.Header.Set(headerRecordID, event.RecordID)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing event %s to %s: %w", event.EventID, p.subject, err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, p.flushTimeout)
	defer cancel()

	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("flushing event %s: %w", event.EventID, err)
	}

	p.logger.Debug("published event",
		zap.String("subject", p.subject),
		zap.String("event_id", event.EventID),
		zap.String("record_id", event.RecordID),
	)

	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
