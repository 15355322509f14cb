package emailchange

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType names a step of the email change lifecycle
type EventType string

const (
	EventInitiated           EventType = "initiated"
	EventNewEmailConfirmed   EventType = "new_email_confirmed"
	EventOldEmailConfirmed   EventType = "old_email_confirmed"
	EventConfirmed           EventType = "confirmed"
	EventCancelled           EventType = "cancelled"
	EventFailedVerification  EventType = "failed_verification"
	EventMaxAttemptsExceeded EventType = "max_attempts_exceeded"
	EventExpiredAccess       EventType = "expired_access"
)

// Event describes something that happened to an email change request.
// Events never carry selectors, tokens or codes.
type Event struct {
	ID                uuid.UUID         `json:"id"`
	Type              EventType         `json:"type"`
	AccountIdentifier string            `json:"account_identifier"`
	NewEmail          string            `json:"new_email,omitempty"`
	OldEmail          string            `json:"old_email,omitempty"`
	Attempts          int               `json:"attempts,omitempty"`
	OccurredAt        time.Time         `json:"occurred_at"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// EventPublisher receives lifecycle events. Publishing is best effort and a failure
// never changes the outcome of the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// MultiPublisher fans an event out to several publishers
type MultiPublisher []EventPublisher

// Publish delivers to every publisher and returns the first error
func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RequestMetadata is attached to events raised while handling a request
type RequestMetadata struct {
	IPAddress string
	UserAgent string
}

type requestMetadataKey struct{}

// WithRequestMetadata stores client details on the context for event metadata
func WithRequestMetadata(ctx context.Context, md RequestMetadata) context.Context {
	return context.WithValue(ctx, requestMetadataKey{}, md)
}

// RequestMetadataFromContext returns the metadata stored by WithRequestMetadata
func RequestMetadataFromContext(ctx context.Context) (RequestMetadata, bool) {
	md, ok := ctx.Value(requestMetadataKey{}).(RequestMetadata)
	return md, ok
}

type eventEmitter struct {
	publisher EventPublisher
	now       func() time.Time
}

func (e eventEmitter) emit(ctx context.Context, eventType EventType, request *EmailChangeRequest, oldEmail string) {
	if e.publisher == nil {
		return
	}

	event := Event{
		ID:                uuid.New(),
		Type:              eventType,
		AccountIdentifier: request.AccountIdentifier,
		NewEmail:          request.NewEmail,
		OldEmail:          oldEmail,
		Attempts:          request.Attempts,
		OccurredAt:        e.now().UTC(),
	}
	if md, ok := RequestMetadataFromContext(ctx); ok {
		event.Metadata = map[string]string{
			"ip_address": md.IPAddress,
			"user_agent": md.UserAgent,
		}
	}

	if err := e.publisher.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish email change event", "type", eventType, "account", request.AccountIdentifier, "error", err)
	}
}
