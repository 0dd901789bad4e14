package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

// GetVerification returns the caller's usable session together with the newest
// decision recorded for them.
func (s *Service) GetVerification(ctx context.Context, actor Actor) (VerificationResponse, error) {
	if actor.UserID == uuid.Nil {
		return VerificationResponse{}, domain.ErrUnauthorized
	}
	session, err := s.GetOrCreateSession(ctx, actor.Coop, actor.UserID)
	if err != nil {
		return VerificationResponse{}, err
	}
	decision, err := s.GetLatestDecision(ctx, actor.Coop, actor.UserID)
	if err != nil {
		return VerificationResponse{}, err
	}
	res := VerificationResponse{
		SessionID:       session.ID,
		VerificationURL: session.URL,
		State:           string(session.State),
	}
	if decision != nil {
		res.Decision = NewDecisionView(*decision)
	}
	return res, nil
}

// GetOrCreateSession hands back a reusable session or creates a new one through the provider.
func (s *Service) GetOrCreateSession(ctx context.Context, coop string, userID uuid.UUID) (domain.VerificationSession, error) {
	coop = s.coopOrDefault(coop)
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.VerificationSession{}, err
	}
	if user.Coop != coop {
		return domain.VerificationSession{}, domain.ErrNotFound
	}

	active, err := s.sessions.GetActiveByUser(ctx, coop, userID)
	switch {
	case err == nil:
		active, err = s.reconcileWithLatestDecision(ctx, coop, active)
		if err != nil {
			return domain.VerificationSession{}, err
		}
		if active.State == domain.SessionSubmitted || (active.State.Reusable() && !active.IsFinished) {
			logOperation(ctx, slog.LevelInfo, "verification session reused", "get_or_create_session", "success",
				"coop", coop, "user_id", userID.String(), "session_id", active.ID, "state", string(active.State))
			return active, nil
		}
		if !active.State.Terminal() {
			// Finished at the provider but never concluded here.
			if _, _, err := s.sessions.AdvanceState(ctx, coop, active.ID, ports.AdvanceStateParams{
				Next:           domain.SessionExpired,
				ProviderStatus: active.ProviderStatus,
				At:             s.nowFn(),
			}); err != nil {
				return domain.VerificationSession{}, err
			}
		}
	case errors.Is(err, domain.ErrNotFound):
	default:
		return domain.VerificationSession{}, err
	}

	created, err := s.provider.CreateSession(ctx, ports.CreateProviderSessionRequest{
		UserID:      userID,
		VendorData:  userID.String(),
		CallbackURL: s.callbackURL(coop, userID),
		FirstName:   user.FirstName,
		LastName:    user.LastName,
	})
	if err != nil {
		logOperation(ctx, slog.LevelError, "verification provider create session failed", "get_or_create_session", "failure",
			"coop", coop, "user_id", userID.String(), "error", err)
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return domain.VerificationSession{}, err
	}

	now := s.nowFn()
	session := domain.VerificationSession{
		ID:             created.ID,
		Coop:           coop,
		UserID:         userID,
		URL:            created.URL,
		VendorData:     created.VendorData,
		Host:           created.Host,
		ProviderStatus: created.Status,
		State:          domain.SessionCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	event := newOutboxEvent(domain.EventVerificationSessionCreated, userID.String(), map[string]any{
		"coop":       coop,
		"user_id":    userID.String(),
		"session_id": created.ID,
		"state":      string(domain.SessionCreated),
	}, now)

	stored, alreadyExisted, err := s.sessions.InsertIfAbsent(ctx, coop, userID, session, event)
	if err != nil {
		return domain.VerificationSession{}, err
	}
	if alreadyExisted {
		logOperation(ctx, slog.LevelWarn, "concurrent session creation resolved to existing session", "get_or_create_session", "noop",
			"coop", coop, "user_id", userID.String(), "session_id", stored.ID, "discarded_session_id", created.ID)
		return stored, nil
	}
	logOperation(ctx, slog.LevelInfo, "verification session created", "get_or_create_session", "success",
		"coop", coop, "user_id", userID.String(), "session_id", stored.ID)
	return stored, nil
}

// reconcileWithLatestDecision brings a non-terminal session in line with a decision
// that was stored without moving the session.
func (s *Service) reconcileWithLatestDecision(ctx context.Context, coop string, session domain.VerificationSession) (domain.VerificationSession, error) {
	if session.State.Terminal() {
		return session, nil
	}
	latest, err := s.decisions.LatestBySession(ctx, coop, session.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return session, nil
	}
	if err != nil {
		return domain.VerificationSession{}, err
	}
	next, ok := latest.Status.SessionState()
	if !ok || !session.State.CanAdvanceTo(next) {
		return session, nil
	}
	updated, _, err := s.sessions.AdvanceState(ctx, coop, session.ID, ports.AdvanceStateParams{
		Next:           next,
		ProviderStatus: string(latest.Status),
		At:             s.nowFn(),
	})
	if err != nil {
		return domain.VerificationSession{}, err
	}
	return updated, nil
}

// GetLatestDecision returns nil when nothing has been decided for the user yet.
func (s *Service) GetLatestDecision(ctx context.Context, coop string, userID uuid.UUID) (*domain.VerificationDecision, error) {
	coop = s.coopOrDefault(coop)
	decision, err := s.decisions.LatestByUser(ctx, coop, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &decision, nil
}

// SyncDecision asks the provider for the decision of the caller's submitted session
// and records it through the same path a decision webhook takes. It is a manual
// catch-up for lost webhooks; there is no background polling.
func (s *Service) SyncDecision(ctx context.Context, actor Actor) (*domain.VerificationDecision, error) {
	coop := s.coopOrDefault(actor.Coop)
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.GetActiveByUser(ctx, coop, actor.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.GetLatestDecision(ctx, coop, actor.UserID)
	}
	if err != nil {
		return nil, err
	}

	remote, err := s.provider.FetchDecision(ctx, session.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.GetLatestDecision(ctx, coop, actor.UserID)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return nil, err
	}
	actsAt := remote.AcceptanceTime
	if actsAt == "" && remote.DecisionTime != nil {
		actsAt = *remote.DecisionTime
	}
	if actsAt == "" {
		return nil, fmt.Errorf("%w: provider decision has no acceptance time", domain.ErrProviderUnavailable)
	}
	if err := s.recordDecision(ctx, user, session, domain.WebhookDecision{
		SessionID:    session.ID,
		VendorData:   remote.VendorData,
		Status:       domain.ParseDecisionStatus(remote.Status),
		RawStatus:    remote.Status,
		Code:         remote.Code,
		Reason:       remote.Reason,
		ReasonCode:   remote.ReasonCode,
		ActsAt:       actsAt,
		DecisionTime: remote.DecisionTime,
	}); err != nil {
		return nil, err
	}
	return s.GetLatestDecision(ctx, coop, actor.UserID)
}
