package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

const serviceName = "M04-User-Service"

func appLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "application",
		"layer", "application",
	)
}

// normalizeEmail canonicalizes and validates email format before persistence/comparison.
func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

func (s *Service) coopOrDefault(coop string) string {
	if trimmed := strings.TrimSpace(coop); trimmed != "" {
		return trimmed
	}
	return s.cfg.DefaultCoop
}

// callbackURL substitutes the configured template.
func (s *Service) callbackURL(coop string, userID uuid.UUID) string {
	r := strings.NewReplacer("{coop}", coop, "{user}", userID.String())
	return r.Replace(s.cfg.CallbackURLTemplate)
}

func newOutboxEvent(eventType, partitionKey string, payload map[string]any, at time.Time) ports.OutboxEvent {
	eventID := uuid.New()
	envelope := map[string]any{
		"event_id":    eventID.String(),
		"event_type":  eventType,
		"occurred_at": at.Format(time.RFC3339Nano),
		"data":        payload,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		raw = []byte(`{}`)
	}
	return ports.OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      raw,
		OccurredAt:   at,
	}
}

func logOperation(ctx context.Context, level slog.Level, msg, operation, outcome string, fields ...any) {
	args := append([]any{"operation", operation, "outcome", outcome}, fields...)
	appLogger().Log(ctx, level, msg, args...)
}
