package application

import (
	"time"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

type Service struct {
	cfg         Config
	users       ports.UserRepository
	userInfos   ports.UserInfoRepository
	mailTokens  ports.MailTokenRepository
	coops       ports.CoopRepository
	sessions    ports.VerificationSessionStore
	decisions   ports.VerificationDecisionStore
	coopCache   ports.CoopCache
	provider    ports.VerificationProvider
	webhooks    ports.WebhookVerifier
	social      ports.SocialIdentityProvider
	hasher      ports.PasswordHasher
	tokenSigner ports.TokenSigner
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Users       ports.UserRepository
	UserInfos   ports.UserInfoRepository
	MailTokens  ports.MailTokenRepository
	Coops       ports.CoopRepository
	Sessions    ports.VerificationSessionStore
	Decisions   ports.VerificationDecisionStore
	CoopCache   ports.CoopCache
	Provider    ports.VerificationProvider
	Webhooks    ports.WebhookVerifier
	Social      ports.SocialIdentityProvider
	Hasher      ports.PasswordHasher
	TokenSigner ports.TokenSigner
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.DefaultCoop == "" {
		cfg.DefaultCoop = "ampnet"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.MailTokenTTL <= 0 {
		cfg.MailTokenTTL = 24 * time.Hour
	}
	return &Service{
		cfg:         cfg,
		users:       deps.Users,
		userInfos:   deps.UserInfos,
		mailTokens:  deps.MailTokens,
		coops:       deps.Coops,
		sessions:    deps.Sessions,
		decisions:   deps.Decisions,
		coopCache:   deps.CoopCache,
		provider:    deps.Provider,
		webhooks:    deps.Webhooks,
		social:      deps.Social,
		hasher:      deps.Hasher,
		tokenSigner: deps.TokenSigner,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Tests use it to pin timestamps.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.nowFn = now
	}
}
