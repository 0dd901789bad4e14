package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
)

func requireAdmin(actor Actor) error {
	if actor.UserID == uuid.Nil {
		return domain.ErrUnauthorized
	}
	if role, ok := domain.ParseRole(actor.Role); !ok || role != domain.RoleAdmin {
		return domain.ErrForbidden
	}
	return nil
}

// CreateCoop registers a new tenant. Only admins may call it.
func (s *Service) CreateCoop(ctx context.Context, actor Actor, req CoopRequest) (CoopResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return CoopResponse{}, err
	}
	identifier := strings.TrimSpace(req.Identifier)
	name := strings.TrimSpace(req.Name)
	if identifier == "" || name == "" {
		return CoopResponse{}, fmt.Errorf("%w: identifier and name are required", domain.ErrInvalidInput)
	}
	if len(req.Config) > 0 && !json.Valid(req.Config) {
		return CoopResponse{}, fmt.Errorf("%w: config must be valid json", domain.ErrInvalidInput)
	}
	coop := domain.Coop{
		Identifier:           identifier,
		Name:                 name,
		Config:               req.Config,
		Logo:                 req.Logo,
		NeedUserVerification: true,
		DisableSignUp:        req.DisableSignUp,
		CreatedAt:            s.nowFn(),
	}
	if req.NeedUserVerification != nil {
		coop.NeedUserVerification = *req.NeedUserVerification
	}
	if req.Hostname != nil {
		if host := strings.ToLower(strings.TrimSpace(*req.Hostname)); host != "" {
			coop.Hostname = &host
		}
	}

	created, err := s.coops.Create(ctx, coop)
	if err != nil {
		return CoopResponse{}, err
	}
	if s.coopCache != nil {
		keys := []string{coopIdentifierKey(created.Identifier)}
		if created.Hostname != nil {
			keys = append(keys, coopHostnameKey(*created.Hostname))
		}
		if err := s.coopCache.Invalidate(ctx, keys...); err != nil {
			logOperation(ctx, slog.LevelWarn, "coop cache invalidation failed", "create_coop", "warning",
				"coop", created.Identifier, "error", err)
		}
	}
	logOperation(ctx, slog.LevelInfo, "coop created", "create_coop", "success",
		"coop", created.Identifier, "actor_id", actor.UserID.String())
	return toCoopResponse(created), nil
}

// ChangeUserRole is the admin REST entry point; the target must live in the admin's coop.
func (s *Service) ChangeUserRole(ctx context.Context, actor Actor, userID uuid.UUID, role string) (UserResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return UserResponse{}, err
	}
	return s.SetUserRole(ctx, s.coopOrDefault(actor.Coop), userID, role)
}

// SetUserRole changes the role of a user inside coop. A user of another coop is
// rejected as invalid input rather than hidden.
func (s *Service) SetUserRole(ctx context.Context, coop string, userID uuid.UUID, rawRole string) (UserResponse, error) {
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return UserResponse{}, fmt.Errorf("%w: unknown role", domain.ErrInvalidInput)
	}
	coop = s.coopOrDefault(coop)
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return UserResponse{}, err
	}
	if user.Coop != coop {
		return UserResponse{}, fmt.Errorf("%w: user is not part of coop %s", domain.ErrInvalidInput, coop)
	}

	event := newOutboxEvent(domain.EventUserRoleChanged, userID.String(), map[string]any{
		"coop":      coop,
		"user_id":   userID.String(),
		"from_role": string(user.Role),
		"role":      string(role),
	}, s.nowFn())
	updated, err := s.users.UpdateRole(ctx, coop, userID, role, event)
	if err != nil {
		return UserResponse{}, err
	}
	logOperation(ctx, slog.LevelInfo, "user role changed", "set_user_role", "success",
		"coop", coop, "user_id", userID.String(), "role", string(role))
	return toUserResponse(updated, s.needUserVerification(ctx, coop)), nil
}

func (s *Service) ListUsersByRole(ctx context.Context, actor Actor, rawRole string) ([]UserResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role", domain.ErrInvalidInput)
	}
	return s.usersByRoles(ctx, s.coopOrDefault(actor.Coop), role)
}

func (s *Service) GetPlatformManagers(ctx context.Context, coop string) ([]UserResponse, error) {
	return s.usersByRoles(ctx, s.coopOrDefault(coop), domain.RoleAdmin, domain.RolePlatformManager)
}

func (s *Service) GetTokenIssuers(ctx context.Context, coop string) ([]UserResponse, error) {
	return s.usersByRoles(ctx, s.coopOrDefault(coop), domain.RoleAdmin, domain.RoleTokenIssuer)
}

func (s *Service) usersByRoles(ctx context.Context, coop string, roles ...domain.Role) ([]UserResponse, error) {
	users, err := s.users.ListByCoopRoles(ctx, coop, roles)
	if err != nil {
		return nil, err
	}
	needVerification := s.needUserVerification(ctx, coop)
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u, needVerification))
	}
	return out, nil
}

// GetUsers returns the users found among ids. Missing ids are skipped.
func (s *Service) GetUsers(ctx context.Context, ids []uuid.UUID) ([]UserResponse, error) {
	if len(ids) == 0 {
		return []UserResponse{}, nil
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u, s.needUserVerification(ctx, u.Coop)))
	}
	return out, nil
}

func (s *Service) GetUserWithInfo(ctx context.Context, userID uuid.UUID) (UserWithInfo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return UserWithInfo{}, err
	}
	out := UserWithInfo{User: user}
	if user.UserInfoID == nil {
		return out, nil
	}
	info, err := s.userInfos.GetByID(ctx, *user.UserInfoID)
	if err != nil {
		return UserWithInfo{}, err
	}
	out.Info = &info
	return out, nil
}
