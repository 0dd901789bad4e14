package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
	"gorm.io/gorm"
)

type mailTokenRepository struct {
	db *gorm.DB
}

// Replace drops every outstanding token of the user before storing the new one.
func (r *mailTokenRepository) Replace(ctx context.Context, token domain.MailToken, event ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_uuid = ?", token.UserUUID).Delete(&mailTokenModel{}).Error; err != nil {
			return err
		}
		row := mailTokenModel{Token: token.Token, UserUUID: token.UserUUID, CreatedAt: token.CreatedAt}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return enqueueTx(tx, event)
	})
}

func (r *mailTokenRepository) Get(ctx context.Context, token uuid.UUID) (domain.MailToken, error) {
	var row mailTokenModel
	if err := r.db.WithContext(ctx).Where("token = ?", token).Take(&row).Error; err != nil {
		return domain.MailToken{}, notFound(err)
	}
	return domain.MailToken{Token: row.Token, UserUUID: row.UserUUID, CreatedAt: row.CreatedAt}, nil
}

func (r *mailTokenRepository) Delete(ctx context.Context, token uuid.UUID) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&mailTokenModel{}).Error
}
