package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type decisionStore struct {
	db *gorm.DB
}

// RecordTx stores one decision and applies its side effects under the session row
// lock. A second delivery of the same (session, acts_at) writes nothing.
func (d *decisionStore) RecordTx(ctx context.Context, coop string, params ports.RecordDecisionTxParams) (ports.RecordDecisionResult, error) {
	var result ports.RecordDecisionResult
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessionRow, err := lockSession(tx, coop, params.Decision.SessionID)
		if err != nil {
			return err
		}

		row := verificationDecisionModel{
			SessionID:    params.Decision.SessionID,
			Coop:         coop,
			Status:       string(params.Decision.Status),
			Code:         params.Decision.Code,
			Reason:       params.Decision.Reason,
			ReasonCode:   params.Decision.ReasonCode,
			ActsAt:       params.Decision.ActsAt,
			DecisionTime: params.Decision.DecisionTime,
			CreatedAt:    params.Decision.CreatedAt,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "acts_at"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrDuplicateNotification
		}
		if err := enqueueTx(tx, params.DecisionEvent); err != nil {
			return err
		}
		result.Decision = toDomainDecision(row)
		result.Session = toDomainSession(sessionRow)

		if params.NextState != "" {
			session, changed, err := advanceLocked(tx, sessionRow, params.NextState, string(params.Decision.Status), params.Decision.CreatedAt)
			if err != nil {
				return err
			}
			result.Session = session
			result.StateChanged = changed
			if changed && params.StateEvent != nil {
				if err := enqueueTx(tx, *params.StateEvent); err != nil {
					return err
				}
			}
		}

		if params.UserInfo != nil {
			linked, err := linkUserInfo(tx, *params.UserInfo, params.UserID)
			if err != nil {
				return err
			}
			result.InfoLinked = linked
			if linked && params.InfoEvent != nil {
				if err := enqueueTx(tx, *params.InfoEvent); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return ports.RecordDecisionResult{}, err
	}
	return result, nil
}

// linkUserInfo stores the identity row once per session and attaches it to the user
// unless the user already carries verified identity data.
func linkUserInfo(tx *gorm.DB, info domain.UserInfo, userID uuid.UUID) (bool, error) {
	row := fromDomainUserInfo(info)
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		if err := tx.Where("session_id = ?", info.SessionID).Take(&row).Error; err != nil {
			return false, err
		}
	}

	update := tx.Model(&userModel{}).
		Where("uuid = ? AND user_info_uuid IS NULL", userID).
		Updates(map[string]any{
			"user_info_uuid": row.UUID,
			"first_name":     row.FirstName,
			"last_name":      row.LastName,
		})
	if update.Error != nil {
		return false, update.Error
	}
	if update.RowsAffected == 0 {
		return false, nil
	}
	if err := tx.Model(&userInfoModel{}).Where("uuid = ?", row.UUID).Update("connected", true).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (d *decisionStore) LatestBySession(ctx context.Context, coop, sessionID string) (domain.VerificationDecision, error) {
	var row verificationDecisionModel
	if err := d.db.WithContext(ctx).
		Where("coop = ? AND session_id = ?", coop, sessionID).
		Order("created_at DESC").Order("id DESC").
		Take(&row).Error; err != nil {
		return domain.VerificationDecision{}, notFound(err)
	}
	return toDomainDecision(row), nil
}

// LatestByUser looks across every session the user ever had in the coop.
func (d *decisionStore) LatestByUser(ctx context.Context, coop string, userID uuid.UUID) (domain.VerificationDecision, error) {
	var row verificationDecisionModel
	if err := d.db.WithContext(ctx).
		Joins("JOIN verification_sessions vs ON vs.session_id = verification_decisions.session_id").
		Where("verification_decisions.coop = ? AND vs.coop = ? AND vs.user_id = ?", coop, coop, userID).
		Order("verification_decisions.created_at DESC").Order("verification_decisions.id DESC").
		Take(&row).Error; err != nil {
		return domain.VerificationDecision{}, notFound(err)
	}
	return toDomainDecision(row), nil
}

func (d *decisionStore) ListBySession(ctx context.Context, coop, sessionID string) ([]domain.VerificationDecision, error) {
	var rows []verificationDecisionModel
	if err := d.db.WithContext(ctx).
		Where("coop = ? AND session_id = ?", coop, sessionID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.VerificationDecision, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainDecision(row))
	}
	return out, nil
}
