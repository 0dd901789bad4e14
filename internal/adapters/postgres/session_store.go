package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sessionStore struct {
	db *gorm.DB
}

func activeStates() []string {
	states := make([]string, 0, len(domain.ActiveSessionStates))
	for _, s := range domain.ActiveSessionStates {
		states = append(states, string(s))
	}
	return states
}

// InsertIfAbsent relies on uq_verification_sessions_active. A conflicting insert
// writes nothing and the winner's row is returned instead.
func (s *sessionStore) InsertIfAbsent(ctx context.Context, coop string, userID uuid.UUID, session domain.VerificationSession, event ports.OutboxEvent) (domain.VerificationSession, bool, error) {
	session.Coop = coop
	session.UserID = userID
	row := fromDomainSession(session)

	var existing verificationSessionModel
	alreadyExisted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			alreadyExisted = true
			return tx.Where("coop = ? AND user_id = ? AND state IN ?", coop, userID, activeStates()).
				Order("created_at DESC").
				Take(&existing).Error
		}
		return enqueueTx(tx, event)
	})
	if err != nil {
		return domain.VerificationSession{}, false, notFound(err)
	}
	if alreadyExisted {
		return toDomainSession(existing), true, nil
	}
	return toDomainSession(row), false, nil
}

func (s *sessionStore) GetActiveByUser(ctx context.Context, coop string, userID uuid.UUID) (domain.VerificationSession, error) {
	var row verificationSessionModel
	if err := s.db.WithContext(ctx).
		Where("coop = ? AND user_id = ? AND state IN ?", coop, userID, activeStates()).
		Order("created_at DESC").
		Take(&row).Error; err != nil {
		return domain.VerificationSession{}, notFound(err)
	}
	return toDomainSession(row), nil
}

func (s *sessionStore) GetByID(ctx context.Context, coop, sessionID string) (domain.VerificationSession, error) {
	var row verificationSessionModel
	if err := s.db.WithContext(ctx).Where("coop = ? AND session_id = ?", coop, sessionID).Take(&row).Error; err != nil {
		return domain.VerificationSession{}, notFound(err)
	}
	return toDomainSession(row), nil
}

func (s *sessionStore) ResolveCoop(ctx context.Context, sessionID string) (string, error) {
	var row verificationSessionModel
	if err := s.db.WithContext(ctx).Select("coop").Where("session_id = ?", sessionID).Take(&row).Error; err != nil {
		return "", notFound(err)
	}
	return row.Coop, nil
}

func (s *sessionStore) AdvanceState(ctx context.Context, coop, sessionID string, params ports.AdvanceStateParams) (domain.VerificationSession, bool, error) {
	var (
		result  domain.VerificationSession
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockSession(tx, coop, sessionID)
		if err != nil {
			return err
		}
		result, changed, err = advanceLocked(tx, row, params.Next, params.ProviderStatus, params.At)
		if err != nil || !changed || params.Event == nil {
			return err
		}
		return enqueueTx(tx, *params.Event)
	})
	if err != nil {
		return domain.VerificationSession{}, false, err
	}
	return result, changed, nil
}

func lockSession(tx *gorm.DB, coop, sessionID string) (verificationSessionModel, error) {
	var row verificationSessionModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("coop = ? AND session_id = ?", coop, sessionID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, domain.ErrNotFound
	}
	return row, err
}

// advanceLocked applies a forward-only transition to a row already locked by tx.
func advanceLocked(tx *gorm.DB, row verificationSessionModel, next domain.SessionState, providerStatus string, at time.Time) (domain.VerificationSession, bool, error) {
	current := domain.SessionState(row.State)
	if !current.CanAdvanceTo(next) {
		return toDomainSession(row), false, nil
	}
	row.State = string(next)
	row.IsFinished = row.IsFinished || next.Finished()
	if providerStatus != "" {
		row.ProviderStatus = providerStatus
	}
	row.UpdatedAt = at
	if err := tx.Model(&verificationSessionModel{}).
		Where("session_id = ?", row.SessionID).
		Updates(map[string]any{
			"state":           row.State,
			"is_finished":     row.IsFinished,
			"provider_status": row.ProviderStatus,
			"updated_at":      row.UpdatedAt,
		}).Error; err != nil {
		return domain.VerificationSession{}, false, err
	}
	return toDomainSession(row), true, nil
}
