package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"gorm.io/gorm"
)

type userInfoRepository struct {
	db *gorm.DB
}

func (r *userInfoRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.UserInfo, error) {
	var row userInfoModel
	if err := r.db.WithContext(ctx).Where("uuid = ?", id).Take(&row).Error; err != nil {
		return domain.UserInfo{}, notFound(err)
	}
	return toDomainUserInfo(row), nil
}

func (r *userInfoRepository) GetBySessionID(ctx context.Context, sessionID string) (domain.UserInfo, error) {
	var row userInfoModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&row).Error; err != nil {
		return domain.UserInfo{}, notFound(err)
	}
	return toDomainUserInfo(row), nil
}
