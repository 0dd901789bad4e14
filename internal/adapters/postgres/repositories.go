package postgres

import (
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Users      ports.UserRepository
	UserInfos  ports.UserInfoRepository
	MailTokens ports.MailTokenRepository
	Coops      ports.CoopRepository
	Sessions   ports.VerificationSessionStore
	Decisions  ports.VerificationDecisionStore
	Outbox     ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:      &userRepository{db: db},
		UserInfos:  &userInfoRepository{db: db},
		MailTokens: &mailTokenRepository{db: db},
		Coops:      &coopRepository{db: db},
		Sessions:   &sessionStore{db: db},
		Decisions:  &decisionStore{db: db},
		Outbox:     &outboxRepository{db: db},
	}
}

// enqueueTx writes an outbox row inside the caller's transaction.
func enqueueTx(tx *gorm.DB, event ports.OutboxEvent) error {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	rec := userOutboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(payload),
		CreatedAt:    event.OccurredAt,
		FirstSeenAt:  event.OccurredAt,
	}
	return tx.Create(&rec).Error
}
