package application

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
)

type Config struct {
	DefaultCoop            string
	FirstUserAdmin         bool
	MailConfirmationNeeded bool
	MailTokenTTL           time.Duration
	TokenTTL               time.Duration
	// CallbackURLTemplate may contain {coop} and {user} placeholders.
	CallbackURLTemplate string
	CoopCacheTTL        time.Duration
}

// Actor is the authenticated caller as resolved by a transport adapter.
type Actor struct {
	UserID    uuid.UUID
	Coop      string
	Role      string
	RequestID string
}

type SignupRequest struct {
	Method   string         `json:"signup_method" validate:"required"`
	Coop     string         `json:"coop" validate:"omitempty,max=64"`
	UserInfo SignupUserInfo `json:"user_info"`
}

type SignupUserInfo struct {
	Email     string `json:"email" validate:"omitempty,email"`
	Password  string `json:"password" validate:"omitempty,min=8"`
	FirstName string `json:"first_name" validate:"omitempty,max=128"`
	LastName  string `json:"last_name" validate:"omitempty,max=128"`
	// Token is the social provider access token for GOOGLE signups.
	Token string `json:"token"`
}

type UserResponse struct {
	UUID             uuid.UUID `json:"uuid"`
	Email            string    `json:"email"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Role             string    `json:"role"`
	Enabled          bool      `json:"enabled"`
	Verified         bool      `json:"verified"`
	Coop             string    `json:"coop"`
	Language         string    `json:"language,omitempty"`
	AuthMethod       string    `json:"auth_method"`
	NeedVerification bool      `json:"need_verification"`
	CreatedAt        time.Time `json:"created_at"`
}

type MailCheckRequest struct {
	Email string `json:"email" validate:"required,email"`
	Coop  string `json:"coop"`
}

type MailCheckResponse struct {
	Email      string `json:"email"`
	UserExists bool   `json:"user_exists"`
}

type TokenRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Coop     string `json:"coop"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type CoopRequest struct {
	Identifier           string          `json:"identifier" validate:"required,max=64"`
	Name                 string          `json:"name" validate:"required,max=256"`
	Hostname             *string         `json:"hostname" validate:"omitempty,hostname"`
	Config               json.RawMessage `json:"config"`
	Logo                 *string         `json:"logo" validate:"omitempty,url"`
	NeedUserVerification *bool           `json:"need_user_verification"`
	DisableSignUp        bool            `json:"disable_sign_up"`
}

type RoleChangeRequest struct {
	Role string `json:"role" validate:"required"`
}

type CountResponse struct {
	Registered int64 `json:"registered"`
}

type CoopResponse struct {
	Identifier           string          `json:"identifier"`
	Name                 string          `json:"name"`
	CreatedAt            time.Time       `json:"created_at"`
	Hostname             *string         `json:"hostname"`
	Config               json.RawMessage `json:"config,omitempty"`
	Logo                 *string         `json:"logo"`
	NeedUserVerification bool            `json:"need_user_verification"`
	DisableSignUp        bool            `json:"disable_sign_up"`
}

type DecisionView struct {
	SessionID    string    `json:"session_id"`
	Status       string    `json:"status"`
	Code         *int      `json:"code"`
	Reason       *string   `json:"reason"`
	ReasonCode   *int      `json:"reason_code"`
	ActsAt       string    `json:"acts_at"`
	DecisionTime *string   `json:"decision_time"`
	CreatedAt    time.Time `json:"created_at"`
}

// VerificationResponse is returned by the session endpoint: the usable session plus
// the newest decision the user has, which may belong to an earlier session.
type VerificationResponse struct {
	SessionID       string        `json:"session_id"`
	VerificationURL string        `json:"verification_url"`
	State           string        `json:"state"`
	Decision        *DecisionView `json:"decision"`
}

type UserWithInfo struct {
	User domain.User
	Info *domain.UserInfo
}

func toUserResponse(u domain.User, needVerification bool) UserResponse {
	return UserResponse{
		UUID:             u.UUID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Role:             string(u.Role),
		Enabled:          u.Enabled,
		Verified:         u.UserInfoID != nil,
		Coop:             u.Coop,
		Language:         u.Language,
		AuthMethod:       string(u.AuthMethod),
		NeedVerification: needVerification,
		CreatedAt:        u.CreatedAt,
	}
}

func toCoopResponse(c domain.Coop) CoopResponse {
	return CoopResponse{
		Identifier:           c.Identifier,
		Name:                 c.Name,
		CreatedAt:            c.CreatedAt,
		Hostname:             c.Hostname,
		Config:               c.Config,
		Logo:                 c.Logo,
		NeedUserVerification: c.NeedUserVerification,
		DisableSignUp:        c.DisableSignUp,
	}
}

func NewDecisionView(d domain.VerificationDecision) *DecisionView {
	return &DecisionView{
		SessionID:    d.SessionID,
		Status:       string(d.Status),
		Code:         d.Code,
		Reason:       d.Reason,
		ReasonCode:   d.ReasonCode,
		ActsAt:       d.ActsAt,
		DecisionTime: d.DecisionTime,
		CreatedAt:    d.CreatedAt,
	}
}
