package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
)

// CreateUserTxParams captures atomic user-creation inputs.
// The mail token and outbox events are written in the same transaction as the user row.
type CreateUserTxParams struct {
	User         domain.User
	MailToken    *domain.MailToken
	PromoteFirst bool
	Events       []OutboxEvent
}

// UserRepository persists coop-scoped accounts.
type UserRepository interface {
	CreateWithOutboxTx(ctx context.Context, params CreateUserTxParams) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	GetByIDs(ctx context.Context, userIDs []uuid.UUID) ([]domain.User, error)
	GetByCoopEmail(ctx context.Context, coop, email string) (domain.User, error)
	CountByCoop(ctx context.Context, coop string) (int64, error)
	ListByCoopRoles(ctx context.Context, coop string, roles []domain.Role) ([]domain.User, error)
	UpdateRole(ctx context.Context, coop string, userID uuid.UUID, role domain.Role, event OutboxEvent) (domain.User, error)
	Enable(ctx context.Context, userID uuid.UUID) (domain.User, error)
}

// UserInfoRepository stores identity data captured from approved decisions.
type UserInfoRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.UserInfo, error)
	GetBySessionID(ctx context.Context, sessionID string) (domain.UserInfo, error)
}

// MailTokenRepository owns email confirmation tokens.
type MailTokenRepository interface {
	Replace(ctx context.Context, token domain.MailToken, event OutboxEvent) error
	Get(ctx context.Context, token uuid.UUID) (domain.MailToken, error)
	Delete(ctx context.Context, token uuid.UUID) error
}

// CoopRepository is the source of truth for tenant configuration.
type CoopRepository interface {
	Create(ctx context.Context, coop domain.Coop) (domain.Coop, error)
	GetByIdentifier(ctx context.Context, identifier string) (domain.Coop, error)
	GetByHostname(ctx context.Context, hostname string) (domain.Coop, error)
}

// VerificationSessionStore holds provider sessions. Every call is scoped to a coop.
//
// InsertIfAbsent enforces one non-terminal session per (coop, user). When another
// non-terminal row already exists it returns that row with alreadyExisted=true and
// writes nothing.
type VerificationSessionStore interface {
	InsertIfAbsent(ctx context.Context, coop string, userID uuid.UUID, session domain.VerificationSession, event OutboxEvent) (domain.VerificationSession, bool, error)
	GetActiveByUser(ctx context.Context, coop string, userID uuid.UUID) (domain.VerificationSession, error)
	GetByID(ctx context.Context, coop, sessionID string) (domain.VerificationSession, error)
	// ResolveCoop locates the tenant of a provider session id. Webhooks carry no
	// tenant context, so this is the only unscoped read.
	ResolveCoop(ctx context.Context, sessionID string) (string, error)
	// AdvanceState moves the session forward inside one transaction. changed is false
	// when the transition would not move the session forward.
	AdvanceState(ctx context.Context, coop, sessionID string, params AdvanceStateParams) (domain.VerificationSession, bool, error)
}

type AdvanceStateParams struct {
	Next           domain.SessionState
	ProviderStatus string
	At             time.Time
	Event          *OutboxEvent
}

// RecordDecisionTxParams bundles everything one decision webhook writes.
type RecordDecisionTxParams struct {
	Decision domain.VerificationDecision
	// NextState is empty for statuses that do not move the session.
	NextState domain.SessionState
	// UserInfo is set for approved decisions that carry person data.
	UserInfo *domain.UserInfo
	UserID   uuid.UUID

	DecisionEvent OutboxEvent
	// StateEvent is enqueued only when the session actually moved.
	StateEvent *OutboxEvent
	// InfoEvent is enqueued only when UserInfo was linked to the user.
	InfoEvent *OutboxEvent
}

type RecordDecisionResult struct {
	Decision     domain.VerificationDecision
	Session      domain.VerificationSession
	StateChanged bool
	InfoLinked   bool
}

// VerificationDecisionStore keeps the append-only decision history.
type VerificationDecisionStore interface {
	// RecordTx returns domain.ErrDuplicateNotification when (session, acts-at) already exists.
	RecordTx(ctx context.Context, coop string, params RecordDecisionTxParams) (RecordDecisionResult, error)
	LatestBySession(ctx context.Context, coop, sessionID string) (domain.VerificationDecision, error)
	LatestByUser(ctx context.Context, coop string, userID uuid.UUID) (domain.VerificationDecision, error)
	ListBySession(ctx context.Context, coop, sessionID string) ([]domain.VerificationDecision, error)
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	FirstSeenAt    time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for domain events.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
