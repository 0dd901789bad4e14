package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
)

const serviceName = "viralforge.user.v1.UserService"

// UserService is the internal RPC surface other mesh services use to read users
// and manage roles. Messages are structpb documents.
type UserService interface {
	GetUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetUserRole(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPlatformManagers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTokenIssuers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUserWithInfo(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type UserServer struct {
	service *application.Service
}

func NewUserServer(service *application.Service) *UserServer {
	return &UserServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc UserService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*UserService)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "GetUsers", Handler: unaryHandler("GetUsers", svc.GetUsers)},
			{MethodName: "SetUserRole", Handler: unaryHandler("SetUserRole", svc.SetUserRole)},
			{MethodName: "GetPlatformManagers", Handler: unaryHandler("GetPlatformManagers", svc.GetPlatformManagers)},
			{MethodName: "GetTokenIssuers", Handler: unaryHandler("GetTokenIssuers", svc.GetTokenIssuers)},
			{MethodName: "GetUserWithInfo", Handler: unaryHandler("GetUserWithInfo", svc.GetUserWithInfo)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "user/v1/user_service.proto",
	}, svc)
}

// GetUsers skips malformed ids instead of failing the whole batch.
func (s *UserServer) GetUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw := req.GetFields()["uuids"].GetListValue().GetValues()
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		id, err := uuid.Parse(v.GetStringValue())
		if err != nil {
			grpcLogger().WarnContext(ctx, "skipping invalid user id",
				"operation", "get_users",
				"outcome", "warning",
				"user_id", v.GetStringValue(),
			)
			continue
		}
		ids = append(ids, id)
	}
	users, err := s.service.GetUsers(ctx, ids)
	if err != nil {
		return nil, statusFromError(err)
	}
	return usersResponse(users)
}

func (s *UserServer) SetUserRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	userID, err := uuid.Parse(fields["uuid"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "uuid must be a valid UUID")
	}
	role := fields["role"].GetStringValue()
	if role == "" {
		return nil, status.Error(codes.InvalidArgument, "missing role")
	}
	user, err := s.service.SetUserRole(ctx, fields["coop"].GetStringValue(), userID, role)
	if err != nil {
		return nil, statusFromError(err)
	}
	resp, err := structpb.NewStruct(userFields(user))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *UserServer) GetPlatformManagers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	users, err := s.service.GetPlatformManagers(ctx, req.GetFields()["coop"].GetStringValue())
	if err != nil {
		return nil, statusFromError(err)
	}
	return usersResponse(users)
}

func (s *UserServer) GetTokenIssuers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	users, err := s.service.GetTokenIssuers(ctx, req.GetFields()["coop"].GetStringValue())
	if err != nil {
		return nil, statusFromError(err)
	}
	return usersResponse(users)
}

func (s *UserServer) GetUserWithInfo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := uuid.Parse(req.GetFields()["uuid"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "uuid must be a valid UUID")
	}
	res, err := s.service.GetUserWithInfo(ctx, userID)
	if err != nil {
		return nil, statusFromError(err)
	}
	user := res.User
	out := map[string]any{
		"uuid":       user.UUID.String(),
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"role":       string(user.Role),
		"enabled":    user.Enabled,
		"verified":   user.UserInfoID != nil,
		"coop":       user.Coop,
		"language":   user.Language,
		"created_at": user.CreatedAt.UTC().Format(time.RFC3339),
	}
	if res.Info != nil {
		out["address"] = res.Info.Address
		out["info_created_at"] = res.Info.CreatedAt.UTC().Format(time.RFC3339)
	}
	resp, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func userFields(u application.UserResponse) map[string]any {
	return map[string]any{
		"uuid":        u.UUID.String(),
		"email":       u.Email,
		"first_name":  u.FirstName,
		"last_name":   u.LastName,
		"role":        u.Role,
		"enabled":     u.Enabled,
		"verified":    u.Verified,
		"coop":        u.Coop,
		"language":    u.Language,
		"auth_method": u.AuthMethod,
		"created_at":  u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func usersResponse(users []application.UserResponse) (*structpb.Struct, error) {
	list := make([]any, 0, len(users))
	for _, u := range users {
		list = append(list, userFields(u))
	}
	resp, err := structpb.NewStruct(map[string]any{"users": list})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func statusFromError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func unaryHandler(method string, call func(context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func grpcLogger() *slog.Logger {
	return slog.Default().With(
		"service", "M04-User-Service",
		"module", "grpc",
		"layer", "adapter",
	)
}
