package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

// CreateWithOutboxTx inserts the user, its mail token and outbox rows atomically.
// With PromoteFirst the first account of a coop becomes ADMIN. The advisory lock
// serializes concurrent first signups inside one coop.
func (r *userRepository) CreateWithOutboxTx(ctx context.Context, params ports.CreateUserTxParams) (domain.User, error) {
	user := params.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if params.PromoteFirst {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", user.Coop).Error; err != nil {
				return err
			}
			var count int64
			if err := tx.Model(&userModel{}).Where("coop = ?", user.Coop).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				user.Role = domain.RoleAdmin
			}
		}

		row := fromDomainUser(user)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		if params.MailToken != nil {
			token := mailTokenModel{
				Token:     params.MailToken.Token,
				UserUUID:  params.MailToken.UserUUID,
				CreatedAt: params.MailToken.CreatedAt,
			}
			if err := tx.Create(&token).Error; err != nil {
				return err
			}
		}
		for _, event := range params.Events {
			if err := enqueueTx(tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var row userModel
	if err := r.db.WithContext(ctx).Where("uuid = ?", userID).Take(&row).Error; err != nil {
		return domain.User{}, notFound(err)
	}
	return toDomainUser(row), nil
}

func (r *userRepository) GetByIDs(ctx context.Context, userIDs []uuid.UUID) ([]domain.User, error) {
	if len(userIDs) == 0 {
		return []domain.User{}, nil
	}
	var rows []userModel
	if err := r.db.WithContext(ctx).Where("uuid IN ?", userIDs).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainUsers(rows), nil
}

func (r *userRepository) GetByCoopEmail(ctx context.Context, coop, email string) (domain.User, error) {
	var row userModel
	if err := r.db.WithContext(ctx).Where("coop = ? AND email = ?", coop, email).Take(&row).Error; err != nil {
		return domain.User{}, notFound(err)
	}
	return toDomainUser(row), nil
}

func (r *userRepository) CountByCoop(ctx context.Context, coop string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Where("coop = ?", coop).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *userRepository) ListByCoopRoles(ctx context.Context, coop string, roles []domain.Role) ([]domain.User, error) {
	if len(roles) == 0 {
		return []domain.User{}, nil
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	var rows []userModel
	if err := r.db.WithContext(ctx).
		Where("coop = ? AND role IN ?", coop, names).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainUsers(rows), nil
}

func (r *userRepository) UpdateRole(ctx context.Context, coop string, userID uuid.UUID, role domain.Role, event ports.OutboxEvent) (domain.User, error) {
	var row userModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ? AND coop = ?", userID, coop).
			Take(&row).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Model(&userModel{}).Where("uuid = ?", userID).Update("role", string(role)).Error; err != nil {
			return err
		}
		row.Role = string(role)
		return enqueueTx(tx, event)
	})
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(row), nil
}

func (r *userRepository) Enable(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	res := r.db.WithContext(ctx).Model(&userModel{}).Where("uuid = ?", userID).Update("enabled", true)
	if res.Error != nil {
		return domain.User{}, fmt.Errorf("enable user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.User{}, domain.ErrNotFound
	}
	return r.GetByID(ctx, userID)
}

func toDomainUsers(rows []userModel) []domain.User {
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, toDomainUser(row))
	}
	return users
}
