package postgres

import (
	"encoding/json"
	"errors"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func toDomainUser(row userModel) domain.User {
	u := domain.User{
		UUID:       row.UUID,
		Coop:       row.Coop,
		Email:      row.Email,
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		AuthMethod: domain.AuthMethod(row.AuthMethod),
		UserInfoID: row.UserInfoUUID,
		Role:       domain.Role(row.Role),
		Enabled:    row.Enabled,
		Language:   row.Language,
		CreatedAt:  row.CreatedAt,
	}
	if row.Password != nil {
		u.PasswordHash = *row.Password
	}
	return u
}

func fromDomainUser(u domain.User) userModel {
	row := userModel{
		UUID:         u.UUID,
		Coop:         u.Coop,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		AuthMethod:   string(u.AuthMethod),
		UserInfoUUID: u.UserInfoID,
		Role:         string(u.Role),
		Enabled:      u.Enabled,
		Language:     u.Language,
		CreatedAt:    u.CreatedAt,
	}
	if u.PasswordHash != "" {
		hash := u.PasswordHash
		row.Password = &hash
	}
	return row
}

func toDomainUserInfo(row userInfoModel) domain.UserInfo {
	doc := row.Document.Data()
	return domain.UserInfo{
		UUID:         row.UUID,
		SessionID:    row.SessionID,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		IDNumber:     row.IDNumber,
		DateOfBirth:  row.DateOfBirth,
		Nationality:  row.Nationality,
		PlaceOfBirth: row.PlaceOfBirth,
		Address:      row.Address,
		Document: domain.Document{
			Type:       doc.Type,
			Number:     doc.Number,
			Country:    doc.Country,
			ValidUntil: doc.ValidUntil,
			ValidFrom:  doc.ValidFrom,
		},
		Connected: row.Connected,
		CreatedAt: row.CreatedAt,
	}
}

func fromDomainUserInfo(info domain.UserInfo) userInfoModel {
	return userInfoModel{
		UUID:         info.UUID,
		SessionID:    info.SessionID,
		FirstName:    info.FirstName,
		LastName:     info.LastName,
		IDNumber:     info.IDNumber,
		DateOfBirth:  info.DateOfBirth,
		Nationality:  info.Nationality,
		PlaceOfBirth: info.PlaceOfBirth,
		Address:      info.Address,
		Document: datatypes.NewJSONType(documentColumn{
			Type:       info.Document.Type,
			Number:     info.Document.Number,
			Country:    info.Document.Country,
			ValidUntil: info.Document.ValidUntil,
			ValidFrom:  info.Document.ValidFrom,
		}),
		Connected: info.Connected,
		CreatedAt: info.CreatedAt,
	}
}

func toDomainCoop(row coopModel) domain.Coop {
	c := domain.Coop{
		Identifier:           row.Identifier,
		Name:                 row.Name,
		Hostname:             row.Hostname,
		Logo:                 row.Logo,
		NeedUserVerification: row.NeedUserVerification,
		DisableSignUp:        row.DisableSignUp,
		CreatedAt:            row.CreatedAt,
	}
	if len(row.Config) > 0 {
		c.Config = json.RawMessage(row.Config)
	}
	return c
}

func fromDomainCoop(c domain.Coop) coopModel {
	row := coopModel{
		Identifier:           c.Identifier,
		Name:                 c.Name,
		Hostname:             c.Hostname,
		Logo:                 c.Logo,
		NeedUserVerification: c.NeedUserVerification,
		DisableSignUp:        c.DisableSignUp,
		CreatedAt:            c.CreatedAt,
	}
	if len(c.Config) > 0 {
		row.Config = datatypes.JSON(c.Config)
	}
	return row
}

func toDomainSession(row verificationSessionModel) domain.VerificationSession {
	return domain.VerificationSession{
		ID:             row.SessionID,
		Coop:           row.Coop,
		UserID:         row.UserID,
		URL:            row.URL,
		VendorData:     row.VendorData,
		Host:           row.Host,
		ProviderStatus: row.ProviderStatus,
		IsFinished:     row.IsFinished,
		State:          domain.SessionState(row.State),
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func fromDomainSession(s domain.VerificationSession) verificationSessionModel {
	return verificationSessionModel{
		SessionID:      s.ID,
		Coop:           s.Coop,
		UserID:         s.UserID,
		URL:            s.URL,
		VendorData:     s.VendorData,
		Host:           s.Host,
		ProviderStatus: s.ProviderStatus,
		IsFinished:     s.IsFinished,
		State:          string(s.State),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func toDomainDecision(row verificationDecisionModel) domain.VerificationDecision {
	return domain.VerificationDecision{
		ID:           row.ID,
		SessionID:    row.SessionID,
		Coop:         row.Coop,
		Status:       domain.DecisionStatus(row.Status),
		Code:         row.Code,
		Reason:       row.Reason,
		ReasonCode:   row.ReasonCode,
		ActsAt:       row.ActsAt,
		DecisionTime: row.DecisionTime,
		CreatedAt:    row.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// notFound maps gorm's missing-row error onto the domain sentinel.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
