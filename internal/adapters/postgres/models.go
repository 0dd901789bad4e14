package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type coopModel struct {
	Identifier           string         `gorm:"column:identifier;primaryKey"`
	Name                 string         `gorm:"column:name"`
	Hostname             *string        `gorm:"column:hostname"`
	Config               datatypes.JSON `gorm:"column:config;type:jsonb"`
	Logo                 *string        `gorm:"column:logo"`
	NeedUserVerification bool           `gorm:"column:need_user_verification"`
	DisableSignUp        bool           `gorm:"column:disable_sign_up"`
	CreatedAt            time.Time      `gorm:"column:created_at"`
}

func (coopModel) TableName() string { return "coops" }

type userModel struct {
	UUID         uuid.UUID  `gorm:"column:uuid;type:uuid;primaryKey"`
	Coop         string     `gorm:"column:coop"`
	Email        string     `gorm:"column:email"`
	FirstName    string     `gorm:"column:first_name"`
	LastName     string     `gorm:"column:last_name"`
	Password     *string    `gorm:"column:password"`
	AuthMethod   string     `gorm:"column:auth_method"`
	UserInfoUUID *uuid.UUID `gorm:"column:user_info_uuid;type:uuid"`
	Role         string     `gorm:"column:role"`
	Enabled      bool       `gorm:"column:enabled"`
	Language     string     `gorm:"column:language"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
}

func (userModel) TableName() string { return "users" }

type userInfoModel struct {
	UUID         uuid.UUID                          `gorm:"column:uuid;type:uuid;primaryKey"`
	SessionID    string                             `gorm:"column:session_id"`
	FirstName    string                             `gorm:"column:first_name"`
	LastName     string                             `gorm:"column:last_name"`
	IDNumber     string                             `gorm:"column:id_number"`
	DateOfBirth  string                             `gorm:"column:date_of_birth"`
	Nationality  string                             `gorm:"column:nationality"`
	PlaceOfBirth string                             `gorm:"column:place_of_birth"`
	Address      string                             `gorm:"column:address"`
	Document     datatypes.JSONType[documentColumn] `gorm:"column:document;type:jsonb"`
	Connected    bool                               `gorm:"column:connected"`
	CreatedAt    time.Time                          `gorm:"column:created_at"`
}

func (userInfoModel) TableName() string { return "user_infos" }

type documentColumn struct {
	Type       string `json:"type"`
	Number     string `json:"number"`
	Country    string `json:"country"`
	ValidUntil string `json:"valid_until"`
	ValidFrom  string `json:"valid_from"`
}

type mailTokenModel struct {
	Token     uuid.UUID `gorm:"column:token;type:uuid;primaryKey"`
	UserUUID  uuid.UUID `gorm:"column:user_uuid;type:uuid"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (mailTokenModel) TableName() string { return "mail_tokens" }

type verificationSessionModel struct {
	SessionID      string    `gorm:"column:session_id;primaryKey"`
	Coop           string    `gorm:"column:coop"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid"`
	URL            string    `gorm:"column:url"`
	VendorData     string    `gorm:"column:vendor_data"`
	Host           string    `gorm:"column:host"`
	ProviderStatus string    `gorm:"column:provider_status"`
	IsFinished     bool      `gorm:"column:is_finished"`
	State          string    `gorm:"column:state"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (verificationSessionModel) TableName() string { return "verification_sessions" }

type verificationDecisionModel struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID    string    `gorm:"column:session_id"`
	Coop         string    `gorm:"column:coop"`
	Status       string    `gorm:"column:status"`
	Code         *int      `gorm:"column:code"`
	Reason       *string   `gorm:"column:reason"`
	ReasonCode   *int      `gorm:"column:reason_code"`
	ActsAt       string    `gorm:"column:acts_at"`
	DecisionTime *string   `gorm:"column:decision_time"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (verificationDecisionModel) TableName() string { return "verification_decisions" }

type userOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (userOutboxModel) TableName() string { return "user_outbox" }
