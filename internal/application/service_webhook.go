package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

// HandleWebhook authenticates, classifies and applies one provider notification.
// kind is the notification type implied by the route; an empty kind accepts either.
func (s *Service) HandleWebhook(ctx context.Context, kind domain.WebhookKind, body []byte, clientID, signature string) error {
	verdict := s.webhooks.Verify(body, clientID, signature)
	if !verdict.Authentic {
		logOperation(ctx, slog.LevelWarn, "webhook rejected", "handle_webhook", "failure",
			"kind", string(kind), "reason", verdict.Reason)
		return fmt.Errorf("%w: %s", domain.ErrAuthenticationFailure, verdict.Reason)
	}

	notification, err := domain.ClassifyWebhook(body)
	if err != nil {
		return err
	}
	if kind != "" && notification.Kind != kind {
		return fmt.Errorf("%w: %s payload posted to %s route", domain.ErrInvalidInput, notification.Kind, kind)
	}

	switch notification.Kind {
	case domain.WebhookKindEvent:
		return s.applyEvent(ctx, *notification.Event)
	case domain.WebhookKindDecision:
		return s.applyDecision(ctx, *notification.Decision)
	default:
		return fmt.Errorf("%w: unsupported webhook kind", domain.ErrInvalidInput)
	}
}

func (s *Service) applyEvent(ctx context.Context, event domain.WebhookEvent) error {
	coop, err := s.sessions.ResolveCoop(ctx, event.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		logOperation(ctx, slog.LevelWarn, "event for unknown session ignored", "apply_event", "noop",
			"session_id", event.SessionID, "action", event.Action)
		return nil
	}
	if err != nil {
		return err
	}

	next, ok := domain.EventActionState(event.Action)
	if !ok {
		logOperation(ctx, slog.LevelInfo, "unknown event action ignored", "apply_event", "noop",
			"coop", coop, "session_id", event.SessionID, "action", event.Action)
		return nil
	}

	session, err := s.sessions.GetByID(ctx, coop, event.SessionID)
	if err != nil {
		return err
	}
	if !session.State.CanAdvanceTo(next) {
		logOperation(ctx, slog.LevelInfo, "stale event ignored", "apply_event", "noop",
			"coop", coop, "session_id", session.ID, "state", string(session.State), "action", event.Action)
		return nil
	}

	now := s.nowFn()
	outboxEvent := newOutboxEvent(domain.EventVerificationStateChanged, session.UserID.String(), map[string]any{
		"coop":       coop,
		"user_id":    session.UserID.String(),
		"session_id": session.ID,
		"from_state": string(session.State),
		"state":      string(next),
		"source":     "event",
	}, now)
	_, changed, err := s.sessions.AdvanceState(ctx, coop, session.ID, ports.AdvanceStateParams{
		Next:           next,
		ProviderStatus: event.Action,
		At:             now,
		Event:          &outboxEvent,
	})
	if err != nil {
		return err
	}
	outcome := "success"
	if !changed {
		outcome = "noop"
	}
	logOperation(ctx, slog.LevelInfo, "verification event applied", "apply_event", outcome,
		"coop", coop, "session_id", session.ID, "state", string(next))
	return nil
}

func (s *Service) applyDecision(ctx context.Context, decision domain.WebhookDecision) error {
	userID, err := uuid.Parse(decision.VendorData)
	if err != nil {
		return fmt.Errorf("%w: vendor data is not a user id", domain.ErrUnresolvableWebhook)
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: unknown user", domain.ErrUnresolvableWebhook)
	}
	if err != nil {
		return err
	}
	session, err := s.sessions.GetByID(ctx, user.Coop, decision.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: unknown session", domain.ErrUnresolvableWebhook)
	}
	if err != nil {
		return err
	}
	if session.UserID != user.UUID {
		return fmt.Errorf("%w: session does not belong to user", domain.ErrUnresolvableWebhook)
	}
	return s.recordDecision(ctx, user, session, decision)
}

// recordDecision stores the decision, moves the session and links identity data in
// one store transaction. A replayed decision is a successful no-op.
func (s *Service) recordDecision(ctx context.Context, user domain.User, session domain.VerificationSession, in domain.WebhookDecision) error {
	now := s.nowFn()
	coop := session.Coop

	next, moves := in.Status.SessionState()
	if !moves {
		logOperation(ctx, slog.LevelInfo, "decision status leaves session unchanged", "record_decision", "warning",
			"coop", coop, "session_id", session.ID, "status", in.RawStatus)
	}

	decision := domain.VerificationDecision{
		SessionID:    session.ID,
		Coop:         coop,
		Status:       in.Status,
		Code:         in.Code,
		Reason:       in.Reason,
		ReasonCode:   in.ReasonCode,
		ActsAt:       in.ActsAt,
		DecisionTime: in.DecisionTime,
		CreatedAt:    now,
	}
	partitionKey := user.UUID.String()
	params := ports.RecordDecisionTxParams{
		Decision: decision,
		UserID:   user.UUID,
		DecisionEvent: newOutboxEvent(domain.EventVerificationDecisionRecorded, partitionKey, map[string]any{
			"coop":       coop,
			"user_id":    partitionKey,
			"session_id": session.ID,
			"status":     string(in.Status),
			"acts_at":    in.ActsAt,
		}, now),
	}
	if moves {
		params.NextState = next
		stateEvent := newOutboxEvent(domain.EventVerificationStateChanged, partitionKey, map[string]any{
			"coop":       coop,
			"user_id":    partitionKey,
			"session_id": session.ID,
			"from_state": string(session.State),
			"state":      string(next),
			"source":     "decision",
		}, now)
		params.StateEvent = &stateEvent
	}
	if in.Status == domain.DecisionApproved && in.Person != nil {
		info := userInfoFromDecision(in, now)
		params.UserInfo = &info
		infoEvent := newOutboxEvent(domain.EventUserInfoConnected, partitionKey, map[string]any{
			"coop":         coop,
			"user_id":      partitionKey,
			"session_id":   session.ID,
			"user_info_id": info.UUID.String(),
		}, now)
		params.InfoEvent = &infoEvent
	}

	result, err := s.decisions.RecordTx(ctx, coop, params)
	if errors.Is(err, domain.ErrDuplicateNotification) {
		logOperation(ctx, slog.LevelInfo, "duplicate decision ignored", "record_decision", "noop",
			"coop", coop, "session_id", session.ID, "acts_at", in.ActsAt)
		return nil
	}
	if err != nil {
		logOperation(ctx, slog.LevelError, "decision persistence failed", "record_decision", "failure",
			"coop", coop, "session_id", session.ID, "error", err)
		return err
	}
	logOperation(ctx, slog.LevelInfo, "verification decision recorded", "record_decision", "success",
		"coop", coop, "session_id", session.ID, "status", string(result.Decision.Status),
		"state", string(result.Session.State), "state_changed", result.StateChanged, "info_linked", result.InfoLinked)
	return nil
}

func userInfoFromDecision(in domain.WebhookDecision, now time.Time) domain.UserInfo {
	info := domain.UserInfo{
		UUID:         uuid.New(),
		SessionID:    in.SessionID,
		FirstName:    in.Person.FirstName,
		LastName:     in.Person.LastName,
		IDNumber:     in.Person.IDNumber,
		DateOfBirth:  in.Person.DateOfBirth,
		Nationality:  in.Person.Nationality,
		PlaceOfBirth: in.Person.PlaceOfBirth,
		Address:      in.Person.Address,
		Connected:    true,
		CreatedAt:    now,
	}
	if in.Document != nil {
		info.Document = *in.Document
	}
	return info
}
