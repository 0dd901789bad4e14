package domain

const (
	EventUserRegistered               = "user.registered"
	EventUserMailConfirmationRequired = "user.mail_confirmation_requested"
	EventUserInfoConnected            = "user.info.connected"
	EventUserRoleChanged              = "user.role_changed"
	EventVerificationSessionCreated   = "verification.session.created"
	EventVerificationStateChanged     = "verification.session.state_changed"
	EventVerificationDecisionRecorded = "verification.decision.recorded"
)

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventUserRegistered, EventUserMailConfirmationRequired, EventUserInfoConnected, EventUserRoleChanged,
		EventVerificationSessionCreated, EventVerificationStateChanged, EventVerificationDecisionRecorded:
		return true
	default:
		return false
	}
}
