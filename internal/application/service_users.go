package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

const minPasswordLength = 8

// Signup registers a coop-scoped account. The user row, the optional mail token and
// the outbox events are written in one transaction.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (UserResponse, error) {
	method, ok := domain.ParseAuthMethod(req.Method)
	if !ok {
		return UserResponse{}, fmt.Errorf("%w: unknown signup method", domain.ErrInvalidInput)
	}
	coop, err := s.signupCoop(ctx, req.Coop)
	if err != nil {
		return UserResponse{}, err
	}

	user := domain.User{
		UUID:       uuid.New(),
		Coop:       coop.Identifier,
		AuthMethod: method,
		Role:       domain.RoleUser,
		CreatedAt:  s.nowFn(),
	}
	switch method {
	case domain.AuthMethodEmail:
		if err := s.fillEmailSignup(&user, req.UserInfo); err != nil {
			return UserResponse{}, err
		}
	case domain.AuthMethodGoogle:
		if err := s.fillSocialSignup(ctx, &user, req.UserInfo); err != nil {
			return UserResponse{}, err
		}
	default:
		return UserResponse{}, fmt.Errorf("%w: signup method %s is not supported", domain.ErrInvalidInput, method)
	}

	if _, err := s.users.GetByCoopEmail(ctx, user.Coop, user.Email); err == nil {
		return UserResponse{}, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return UserResponse{}, err
	}

	needsConfirmation := method == domain.AuthMethodEmail && s.cfg.MailConfirmationNeeded
	user.Enabled = !needsConfirmation

	partitionKey := user.UUID.String()
	params := ports.CreateUserTxParams{
		User:         user,
		PromoteFirst: s.cfg.FirstUserAdmin,
		Events: []ports.OutboxEvent{newOutboxEvent(domain.EventUserRegistered, partitionKey, map[string]any{
			"coop":        user.Coop,
			"user_id":     partitionKey,
			"email":       user.Email,
			"auth_method": string(method),
		}, user.CreatedAt)},
	}
	if needsConfirmation {
		token := domain.MailToken{UserUUID: user.UUID, Token: uuid.New(), CreatedAt: user.CreatedAt}
		params.MailToken = &token
		params.Events = append(params.Events, mailConfirmationEvent(user, token))
	}

	created, err := s.users.CreateWithOutboxTx(ctx, params)
	if err != nil {
		return UserResponse{}, err
	}
	logOperation(ctx, slog.LevelInfo, "user registered", "signup", "success",
		"coop", created.Coop, "user_id", created.UUID.String(), "auth_method", string(method), "role", string(created.Role))
	return toUserResponse(created, coop.NeedUserVerification), nil
}

func (s *Service) signupCoop(ctx context.Context, identifier string) (domain.Coop, error) {
	coop, err := s.coops.GetByIdentifier(ctx, s.coopOrDefault(identifier))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Coop{}, domain.ErrCoopMissing
	}
	if err != nil {
		return domain.Coop{}, err
	}
	if coop.DisableSignUp {
		return domain.Coop{}, domain.ErrSignupDisabled
	}
	return coop, nil
}

func (s *Service) fillEmailSignup(user *domain.User, info SignupUserInfo) error {
	email, err := normalizeEmail(info.Email)
	if err != nil {
		return err
	}
	if len(info.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}
	firstName := strings.TrimSpace(info.FirstName)
	lastName := strings.TrimSpace(info.LastName)
	if firstName == "" || lastName == "" {
		return fmt.Errorf("%w: first and last name are required", domain.ErrInvalidInput)
	}
	hash, err := s.hasher.Hash(info.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Email = email
	user.FirstName = firstName
	user.LastName = lastName
	user.PasswordHash = hash
	return nil
}

func (s *Service) fillSocialSignup(ctx context.Context, user *domain.User, info SignupUserInfo) error {
	token := strings.TrimSpace(info.Token)
	if token == "" {
		return fmt.Errorf("%w: social token is required", domain.ErrInvalidInput)
	}
	if s.social == nil {
		return fmt.Errorf("%w: social signup is not configured", domain.ErrInvalidInput)
	}
	identity, err := s.social.Lookup(ctx, token)
	if err != nil {
		logOperation(ctx, slog.LevelWarn, "social identity lookup failed", "signup", "failure", "error", err)
		return fmt.Errorf("%w: social token rejected", domain.ErrUnauthorized)
	}
	email, err := normalizeEmail(identity.Email)
	if err != nil {
		return err
	}
	user.Email = email
	user.FirstName = strings.TrimSpace(identity.FirstName)
	user.LastName = strings.TrimSpace(identity.LastName)
	return nil
}

func mailConfirmationEvent(user domain.User, token domain.MailToken) ports.OutboxEvent {
	return newOutboxEvent(domain.EventUserMailConfirmationRequired, user.UUID.String(), map[string]any{
		"coop":    user.Coop,
		"user_id": user.UUID.String(),
		"email":   user.Email,
		"token":   token.Token.String(),
	}, token.CreatedAt)
}

// ConfirmEmail enables the owner of the token and consumes it.
func (s *Service) ConfirmEmail(ctx context.Context, rawToken string) (UserResponse, error) {
	token, err := uuid.Parse(strings.TrimSpace(rawToken))
	if err != nil {
		return UserResponse{}, fmt.Errorf("%w: malformed token", domain.ErrInvalidInput)
	}
	stored, err := s.mailTokens.Get(ctx, token)
	if err != nil {
		return UserResponse{}, err
	}
	if stored.Expired(s.nowFn(), s.cfg.MailTokenTTL) {
		return UserResponse{}, domain.ErrTokenExpired
	}
	user, err := s.users.Enable(ctx, stored.UserUUID)
	if err != nil {
		return UserResponse{}, err
	}
	if err := s.mailTokens.Delete(ctx, token); err != nil {
		logOperation(ctx, slog.LevelWarn, "mail token cleanup failed", "confirm_email", "warning",
			"user_id", user.UUID.String(), "error", err)
	}
	logOperation(ctx, slog.LevelInfo, "email confirmed", "confirm_email", "success",
		"coop", user.Coop, "user_id", user.UUID.String())
	return toUserResponse(user, s.needUserVerification(ctx, user.Coop)), nil
}

// ResendConfirmation replaces the caller's mail token with a fresh one.
func (s *Service) ResendConfirmation(ctx context.Context, actor Actor) error {
	user, err := s.actorUser(ctx, actor)
	if err != nil {
		return err
	}
	if user.AuthMethod != domain.AuthMethodEmail {
		return fmt.Errorf("%w: account has no email confirmation", domain.ErrInvalidInput)
	}
	if user.Enabled {
		return fmt.Errorf("%w: email already confirmed", domain.ErrInvalidInput)
	}
	token := domain.MailToken{UserUUID: user.UUID, Token: uuid.New(), CreatedAt: s.nowFn()}
	if err := s.mailTokens.Replace(ctx, token, mailConfirmationEvent(user, token)); err != nil {
		return err
	}
	logOperation(ctx, slog.LevelInfo, "mail confirmation resent", "resend_confirmation", "success",
		"coop", user.Coop, "user_id", user.UUID.String())
	return nil
}

func (s *Service) MailCheck(ctx context.Context, req MailCheckRequest) (MailCheckResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return MailCheckResponse{}, err
	}
	_, err = s.users.GetByCoopEmail(ctx, s.coopOrDefault(req.Coop), email)
	switch {
	case err == nil:
		return MailCheckResponse{Email: email, UserExists: true}, nil
	case errors.Is(err, domain.ErrNotFound):
		return MailCheckResponse{Email: email, UserExists: false}, nil
	default:
		return MailCheckResponse{}, err
	}
}

// Login exchanges email credentials for an access token. Every credential failure
// collapses into ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return TokenResponse{}, domain.ErrInvalidCredentials
	}
	coop := s.coopOrDefault(req.Coop)
	user, err := s.users.GetByCoopEmail(ctx, coop, email)
	if errors.Is(err, domain.ErrNotFound) {
		return TokenResponse{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return TokenResponse{}, err
	}
	if user.AuthMethod != domain.AuthMethodEmail || user.PasswordHash == "" {
		return TokenResponse{}, domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		logOperation(ctx, slog.LevelInfo, "login rejected", "login", "failure", "coop", coop)
		return TokenResponse{}, domain.ErrInvalidCredentials
	}
	if !user.Enabled {
		return TokenResponse{}, domain.ErrUserDisabled
	}

	now := s.nowFn()
	token, err := s.tokenSigner.Sign(ports.AuthClaims{
		UserID:    user.UUID,
		Email:     user.Email,
		Role:      string(user.Role),
		Coop:      user.Coop,
		Verified:  user.UserInfoID != nil,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	})
	if err != nil {
		return TokenResponse{}, fmt.Errorf("sign access token: %w", err)
	}
	logOperation(ctx, slog.LevelInfo, "access token issued", "login", "success",
		"coop", coop, "user_id", user.UUID.String())
	return TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.TokenTTL.Seconds()),
	}, nil
}

// ValidateToken resolves a bearer token into the calling actor.
func (s *Service) ValidateToken(ctx context.Context, token string) (Actor, error) {
	if strings.TrimSpace(token) == "" {
		return Actor{}, domain.ErrUnauthorized
	}
	claims, err := s.tokenSigner.ParseAndValidate(token)
	if err != nil {
		return Actor{}, domain.ErrUnauthorized
	}
	if claims.UserID == uuid.Nil {
		return Actor{}, domain.ErrUnauthorized
	}
	return Actor{
		UserID: claims.UserID,
		Coop:   s.coopOrDefault(claims.Coop),
		Role:   claims.Role,
	}, nil
}

func (s *Service) GetMe(ctx context.Context, actor Actor) (UserResponse, error) {
	user, err := s.actorUser(ctx, actor)
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(user, s.needUserVerification(ctx, user.Coop)), nil
}

func (s *Service) CountUsers(ctx context.Context, coop string) (CountResponse, error) {
	count, err := s.users.CountByCoop(ctx, s.coopOrDefault(coop))
	if err != nil {
		return CountResponse{}, err
	}
	return CountResponse{Registered: count}, nil
}

// actorUser loads the caller and hides users of other coops.
func (s *Service) actorUser(ctx context.Context, actor Actor) (domain.User, error) {
	if actor.UserID == uuid.Nil {
		return domain.User{}, domain.ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return domain.User{}, err
	}
	if user.Coop != s.coopOrDefault(actor.Coop) {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}
