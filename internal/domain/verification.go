package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionState is the normalized lifecycle of a verification session.
type SessionState string

const (
	SessionCreated               SessionState = "CREATED"
	SessionStarted               SessionState = "STARTED"
	SessionSubmitted             SessionState = "SUBMITTED"
	SessionApproved              SessionState = "APPROVED"
	SessionDeclined              SessionState = "DECLINED"
	SessionResubmissionRequested SessionState = "RESUBMISSION_REQUESTED"
	SessionExpired               SessionState = "EXPIRED"
	SessionAbandoned             SessionState = "ABANDONED"
)

// ActiveSessionStates are the states covered by the one-active-session-per-user constraint.
var ActiveSessionStates = []SessionState{SessionCreated, SessionStarted, SessionSubmitted}

func (s SessionState) rank() int {
	switch s {
	case SessionCreated:
		return 0
	case SessionStarted:
		return 1
	case SessionSubmitted:
		return 2
	case SessionApproved, SessionDeclined, SessionResubmissionRequested, SessionExpired, SessionAbandoned:
		return 3
	default:
		return -1
	}
}

func (s SessionState) Valid() bool { return s.rank() >= 0 }

func (s SessionState) Terminal() bool { return s.rank() == 3 }

// Reusable reports whether a session in this state may be handed back to the user
// instead of creating a new one.
func (s SessionState) Reusable() bool {
	return s == SessionCreated || s == SessionStarted
}

// Finished reports whether the user is done with the provider flow in this state.
func (s SessionState) Finished() bool { return s.rank() >= 2 }

// CanAdvanceTo allows strictly forward moves only. A terminal state never changes,
// not even to another terminal state.
func (s SessionState) CanAdvanceTo(next SessionState) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// VerificationSession is one provider session owned by a user.
type VerificationSession struct {
	ID             string
	Coop           string
	UserID         uuid.UUID
	URL            string
	VendorData     string
	Host           string
	ProviderStatus string
	IsFinished     bool
	State          SessionState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DecisionStatus is the provider verdict carried by a decision webhook.
type DecisionStatus string

const (
	DecisionApproved              DecisionStatus = "approved"
	DecisionDeclined              DecisionStatus = "declined"
	DecisionResubmissionRequested DecisionStatus = "resubmission_requested"
	DecisionReview                DecisionStatus = "review"
	DecisionExpired               DecisionStatus = "expired"
	DecisionAbandoned             DecisionStatus = "abandoned"
	DecisionUnknown               DecisionStatus = "unknown"
)

// ParseDecisionStatus normalizes provider spellings. Unrecognized values become DecisionUnknown.
func ParseDecisionStatus(raw string) DecisionStatus {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch DecisionStatus(normalized) {
	case DecisionApproved, DecisionDeclined, DecisionResubmissionRequested, DecisionReview,
		DecisionExpired, DecisionAbandoned:
		return DecisionStatus(normalized)
	default:
		return DecisionUnknown
	}
}

// SessionState maps a decision onto the session lifecycle. The bool is false for
// statuses that leave the session untouched (review, unknown).
func (d DecisionStatus) SessionState() (SessionState, bool) {
	switch d {
	case DecisionApproved:
		return SessionApproved, true
	case DecisionDeclined:
		return SessionDeclined, true
	case DecisionResubmissionRequested:
		return SessionResubmissionRequested, true
	case DecisionExpired:
		return SessionExpired, true
	case DecisionAbandoned:
		return SessionAbandoned, true
	default:
		return "", false
	}
}

// VerificationDecision is an immutable verdict row. (SessionID, ActsAt) identifies it.
type VerificationDecision struct {
	ID           int64
	SessionID    string
	Coop         string
	Status       DecisionStatus
	Code         *int
	Reason       *string
	ReasonCode   *int
	ActsAt       string
	DecisionTime *string
	CreatedAt    time.Time
}

// EventActionState maps the coarse action string of an event notification.
func EventActionState(action string) (SessionState, bool) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "started":
		return SessionStarted, true
	case "submitted":
		return SessionSubmitted, true
	case "approved":
		return SessionApproved, true
	case "declined":
		return SessionDeclined, true
	case "resubmission_requested":
		return SessionResubmissionRequested, true
	case "expired":
		return SessionExpired, true
	case "abandoned":
		return SessionAbandoned, true
	default:
		return "", false
	}
}
