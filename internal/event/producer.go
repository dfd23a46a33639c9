package event

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/carebridge/webgateway/internal/domain"
	"github.com/carebridge/webgateway/pkg/kafka"
	"github.com/carebridge/webgateway/pkg/logger"
)

const (
	TopicSignedIn   = "carebridge.session.signed_in"
	TopicRegistered = "carebridge.session.registered"
	TopicSignedOut  = "carebridge.session.signed_out"

	aggregateType = "session"
	source        = "webgateway"
)

// sessionEvent is the payload shared by all session lifecycle events.
type sessionEvent struct {
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	UserType string `json:"user_type,omitempty"`
}

// newSessionPayload builds the event payload and aggregate ID for a user.
// Logout may race identity resolution, so a nil user is valid and yields
// an anonymous event.
func newSessionPayload(user *domain.User) (sessionEvent, string) {
	if user == nil {
		return sessionEvent{}, "anonymous"
	}
	return sessionEvent{
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.FullName(),
		UserType: user.UserType,
	}, strconv.FormatInt(user.ID, 10)
}

// AuditProducer publishes session lifecycle events to Kafka. A nil
// receiver is a no-op, so environments without a broker skip auditing
// without branching at every call site.
type AuditProducer struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

func NewAuditProducer(producer *kafka.Producer, logger *slog.Logger) *AuditProducer {
	return &AuditProducer{producer: producer, logger: logger}
}

func (p *AuditProducer) SignedIn(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicSignedIn, "session.signed_in", user)
}

func (p *AuditProducer) Registered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicRegistered, "session.registered", user)
}

func (p *AuditProducer) SignedOut(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicSignedOut, "session.signed_out", user)
}

func (p *AuditProducer) publish(ctx context.Context, topic, eventType string, user *domain.User) error {
	if p == nil || p.producer == nil {
		return nil
	}

	payload, aggregateID := newSessionPayload(user)
	evt, err := kafka.NewEvent(eventType, aggregateID, aggregateType, source, payload)
	if err != nil {
		return err
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		evt = evt.WithCorrelationID(cid)
	}
	return p.producer.Publish(ctx, topic, evt)
}

func (p *AuditProducer) Ping(ctx context.Context) error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Ping(ctx)
}

func (p *AuditProducer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
