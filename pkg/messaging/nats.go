package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/tendant/simple-emailchange/pkg/emailchange"
	"go.uber.org/zap"
)

// Conn is the part of *nats.Conn the publisher uses
type Conn interface {
	Publish(subj string, data []byte) error
	Close()
}

// NATSPublisher sends email change events to "<prefix>.<event type>" as JSON
type NATSPublisher struct {
	conn   Conn
	prefix string
	logger *zap.Logger
}

// Connect dials the server and returns a publisher on the connection
func Connect(url, clientName, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name(clientName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", zap.String("url", url))
	return NewNATSPublisher(conn, prefix, logger), nil
}

func NewNATSPublisher(conn Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logger,
	}
}

// Subject returns the subject an event type is published on
func (p *NATSPublisher) Subject(eventType emailchange.EventType) string {
	if p.prefix == "" {
		return string(eventType)
	}
	return p.prefix + "." + string(eventType)
}

func (p *NATSPublisher) Publish(ctx context.Context, event emailchange.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal email change event", zap.Error(err))
		return fmt.Errorf("failed to marshal email change event: %w", err)
	}

	subject := p.Subject(event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish email change event",
			zap.Error(err),
			zap.String("subject", subject),
			zap.String("event_id", event.ID.String()))
		return fmt.Errorf("failed to publish email change event: %w", err)
	}

	p.logger.Debug("email change event published",
		zap.String("subject", subject),
		zap.String("event_id", event.ID.String()))
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		p.logger.Info("NATS connection closed")
	}
}
