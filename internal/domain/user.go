package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin           Role = "ADMIN"
	RolePlatformManager Role = "PLATFORM_MANAGER"
	RoleTokenIssuer     Role = "TOKEN_ISSUER"
	RoleUser            Role = "USER"
)

// ParseRole accepts role names case-insensitively.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RolePlatformManager:
		return RolePlatformManager, true
	case RoleTokenIssuer:
		return RoleTokenIssuer, true
	case RoleUser:
		return RoleUser, true
	default:
		return "", false
	}
}

type AuthMethod string

const (
	AuthMethodEmail    AuthMethod = "EMAIL"
	AuthMethodGoogle   AuthMethod = "GOOGLE"
	AuthMethodFacebook AuthMethod = "FACEBOOK"
)

func ParseAuthMethod(raw string) (AuthMethod, bool) {
	switch AuthMethod(strings.ToUpper(strings.TrimSpace(raw))) {
	case AuthMethodEmail:
		return AuthMethodEmail, true
	case AuthMethodGoogle:
		return AuthMethodGoogle, true
	case AuthMethodFacebook:
		return AuthMethodFacebook, true
	default:
		return "", false
	}
}

// User is a coop-scoped account. Email is unique inside a coop only.
type User struct {
	UUID         uuid.UUID
	Coop         string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	AuthMethod   AuthMethod
	UserInfoID   *uuid.UUID
	Role         Role
	Enabled      bool
	Language     string
	CreatedAt    time.Time
}

// UserInfo is identity data captured from an approved verification decision.
type UserInfo struct {
	UUID         uuid.UUID
	SessionID    string
	FirstName    string
	LastName     string
	IDNumber     string
	DateOfBirth  string
	Nationality  string
	PlaceOfBirth string
	Address      string
	Document     Document
	Connected    bool
	CreatedAt    time.Time
}

type Document struct {
	Type       string `json:"type"`
	Number     string `json:"number"`
	Country    string `json:"country"`
	ValidUntil string `json:"valid_until"`
	ValidFrom  string `json:"valid_from"`
}

// MailToken confirms ownership of a signup email.
type MailToken struct {
	UserUUID  uuid.UUID
	Token     uuid.UUID
	CreatedAt time.Time
}

func (t MailToken) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && t.CreatedAt.Add(ttl).Before(now)
}
