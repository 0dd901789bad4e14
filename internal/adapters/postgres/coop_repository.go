package postgres

import (
	"context"
	"strings"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"gorm.io/gorm"
)

type coopRepository struct {
	db *gorm.DB
}

func (r *coopRepository) Create(ctx context.Context, coop domain.Coop) (domain.Coop, error) {
	row := fromDomainCoop(coop)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Coop{}, domain.ErrConflict
		}
		return domain.Coop{}, err
	}
	return toDomainCoop(row), nil
}

func (r *coopRepository) GetByIdentifier(ctx context.Context, identifier string) (domain.Coop, error) {
	var row coopModel
	if err := r.db.WithContext(ctx).Where("identifier = ?", identifier).Take(&row).Error; err != nil {
		return domain.Coop{}, notFound(err)
	}
	return toDomainCoop(row), nil
}

func (r *coopRepository) GetByHostname(ctx context.Context, hostname string) (domain.Coop, error) {
	var row coopModel
	if err := r.db.WithContext(ctx).Where("hostname = ?", strings.ToLower(hostname)).Take(&row).Error; err != nil {
		return domain.Coop{}, notFound(err)
	}
	return toDomainCoop(row), nil
}
