package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
	"github.com/campusops/tenant-guard/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountLocked publishes guard.account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		UserID       string         `json:"user_id"`
		Email        string         `json:"email"`
		LockedUntil  time.Time      `json:"locked_until"`
		Reason       string         `json:"reason"`
		AttemptCount int            `json:"attempt_count"`
		IPAddress    *string        `json:"ip_address,omitempty"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		Email:        event.Email,
		LockedUntil:  event.LockedUntil.UTC(),
		Reason:       event.Reason,
		AttemptCount: event.AttemptCount,
		IPAddress:    event.IPAddress,
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "guard.account.locked", event.UserID, time.Time{}, payload)
}

// PublishAccountUnlocked publishes guard.account.unlocked events.
func (p *EventPublisher) PublishAccountUnlocked(ctx context.Context, event domain.AccountUnlockedEvent) error {
	payload := struct {
		UserID     string         `json:"user_id"`
		UnlockedAt time.Time      `json:"unlocked_at"`
		UnlockedBy string         `json:"unlocked_by"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		UserID:     event.UserID,
		UnlockedAt: event.UnlockedAt.UTC(),
		UnlockedBy: event.UnlockedBy,
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "guard.account.unlocked", event.UserID, event.UnlockedAt, payload)
}

// PublishPasswordRecorded publishes guard.password.recorded events.
func (p *EventPublisher) PublishPasswordRecorded(ctx context.Context, event domain.PasswordRecordedEvent) error {
	payload := struct {
		UserID     string         `json:"user_id"`
		TenantID   *string        `json:"tenant_id,omitempty"`
		RecordedAt time.Time      `json:"recorded_at"`
		Retained   int            `json:"retained"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		UserID:     event.UserID,
		TenantID:   event.TenantID,
		RecordedAt: event.RecordedAt.UTC(),
		Retained:   event.Retained,
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "guard.password.recorded", event.UserID, event.RecordedAt, payload)
}

// PublishMfaDeviceEnrolled publishes guard.mfa.device.enrolled events.
func (p *EventPublisher) PublishMfaDeviceEnrolled(ctx context.Context, event domain.MfaDeviceEnrolledEvent) error {
	payload := struct {
		DeviceID   string         `json:"device_id"`
		UserID     string         `json:"user_id"`
		DeviceType string         `json:"device_type"`
		EnrolledAt time.Time      `json:"enrolled_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		DeviceID:   event.DeviceID,
		UserID:     event.UserID,
		DeviceType: event.DeviceType,
		EnrolledAt: event.EnrolledAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "guard.mfa.device.enrolled", event.UserID, event.EnrolledAt, payload)
}

// PublishMfaVerification publishes guard.mfa.verification events.
func (p *EventPublisher) PublishMfaVerification(ctx context.Context, event domain.MfaVerificationEvent) error {
	payload := struct {
		DeviceID   string         `json:"device_id"`
		UserID     string         `json:"user_id"`
		DeviceType string         `json:"device_type"`
		Succeeded  bool           `json:"succeeded"`
		Method     string         `json:"method"`
		VerifiedAt time.Time      `json:"verified_at"`
		IPAddress  *string        `json:"ip_address,omitempty"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		DeviceID:   event.DeviceID,
		UserID:     event.UserID,
		DeviceType: event.DeviceType,
		Succeeded:  event.Succeeded,
		Method:     event.Method,
		VerifiedAt: event.VerifiedAt.UTC(),
		IPAddress:  event.IPAddress,
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "guard.mfa.verification", event.UserID, event.VerifiedAt, payload)
}

// PublishIPRejected publishes guard.whitelist.rejected events.
func (p *EventPublisher) PublishIPRejected(ctx context.Context, event domain.IPRejectedEvent) error {
	payload := struct {
		TenantID   string         `json:"tenant_id"`
		IPAddress  string         `json:"ip_address"`
		RejectedAt time.Time      `json:"rejected_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		TenantID:   event.TenantID,
		IPAddress:  event.IPAddress,
		RejectedAt: event.RejectedAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "guard.whitelist.rejected", "", event.RejectedAt, payload)
}

// PublishQuotaReset publishes guard.quota.reset events.
func (p *EventPublisher) PublishQuotaReset(ctx context.Context, event domain.QuotaResetEvent) error {
	payload := struct {
		TenantID     string         `json:"tenant_id"`
		ResourceType string         `json:"resource_type"`
		Amount       int64          `json:"amount"`
		PeriodStart  time.Time      `json:"period_start"`
		PeriodEnd    time.Time      `json:"period_end"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		TenantID:     event.TenantID,
		ResourceType: event.ResourceType,
		Amount:       event.Amount,
		PeriodStart:  event.PeriodStart.UTC(),
		PeriodEnd:    event.PeriodEnd.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "guard.quota.reset", "", event.PeriodEnd, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
