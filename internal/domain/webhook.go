package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type WebhookKind string

const (
	WebhookKindEvent    WebhookKind = "event"
	WebhookKindDecision WebhookKind = "decision"
)

// WebhookNotification is the tagged union of provider notifications.
// Exactly one of Event or Decision is set, matching Kind.
//
// Discrimination is structural:
//   - decision: a top-level "verification" object with non-empty "id" and "status".
//   - event: top-level "id" and "action" strings and no "verification" object.
//
// Anything else is rejected as invalid input.
type WebhookNotification struct {
	Kind     WebhookKind
	Event    *WebhookEvent
	Decision *WebhookDecision
}

type WebhookEvent struct {
	SessionID  string
	Action     string
	Code       *int
	VendorData string
}

type WebhookDecision struct {
	SessionID    string
	VendorData   string
	Status       DecisionStatus
	RawStatus    string
	Code         *int
	Reason       *string
	ReasonCode   *int
	ActsAt       string
	DecisionTime *string
	Person       *DecisionPerson
	Document     *Document
}

type DecisionPerson struct {
	FirstName    string
	LastName     string
	IDNumber     string
	DateOfBirth  string
	Nationality  string
	PlaceOfBirth string
	Address      string
}

type rawWebhook struct {
	ID           *string          `json:"id"`
	Action       *string          `json:"action"`
	Code         *int             `json:"code"`
	VendorData   string           `json:"vendorData"`
	Verification *json.RawMessage `json:"verification"`
}

type rawVerification struct {
	ID             string  `json:"id"`
	Code           *int    `json:"code"`
	Status         string  `json:"status"`
	Reason         *string `json:"reason"`
	ReasonCode     *int    `json:"reasonCode"`
	VendorData     string  `json:"vendorData"`
	AcceptanceTime string  `json:"acceptanceTime"`
	DecisionTime   *string `json:"decisionTime"`
	Person         *struct {
		FirstName    string `json:"firstName"`
		LastName     string `json:"lastName"`
		IDNumber     string `json:"idNumber"`
		DateOfBirth  string `json:"dateOfBirth"`
		Nationality  string `json:"nationality"`
		PlaceOfBirth string `json:"placeOfBirth"`
		Addresses    []struct {
			FullAddress string `json:"fullAddress"`
		} `json:"addresses"`
	} `json:"person"`
	Document *struct {
		Type       string `json:"type"`
		Number     string `json:"number"`
		Country    string `json:"country"`
		ValidUntil string `json:"validUntil"`
		ValidFrom  string `json:"validFrom"`
	} `json:"document"`
}

// ClassifyWebhook parses a provider body into an event or a decision.
func ClassifyWebhook(body []byte) (WebhookNotification, error) {
	var raw rawWebhook
	if err := json.Unmarshal(body, &raw); err != nil {
		return WebhookNotification{}, fmt.Errorf("%w: malformed webhook body", ErrInvalidInput)
	}

	if raw.Verification != nil && !bytes.Equal(bytes.TrimSpace(*raw.Verification), []byte("null")) {
		var v rawVerification
		if err := json.Unmarshal(*raw.Verification, &v); err != nil {
			return WebhookNotification{}, fmt.Errorf("%w: malformed verification object", ErrInvalidInput)
		}
		decision, err := v.toDecision()
		if err != nil {
			return WebhookNotification{}, err
		}
		return WebhookNotification{Kind: WebhookKindDecision, Decision: &decision}, nil
	}

	if raw.ID != nil && raw.Action != nil {
		sessionID := strings.TrimSpace(*raw.ID)
		action := strings.TrimSpace(*raw.Action)
		if sessionID == "" || action == "" {
			return WebhookNotification{}, fmt.Errorf("%w: event requires id and action", ErrInvalidInput)
		}
		return WebhookNotification{Kind: WebhookKindEvent, Event: &WebhookEvent{
			SessionID:  sessionID,
			Action:     action,
			Code:       raw.Code,
			VendorData: strings.TrimSpace(raw.VendorData),
		}}, nil
	}

	return WebhookNotification{}, fmt.Errorf("%w: unrecognized webhook payload", ErrInvalidInput)
}

func (v rawVerification) toDecision() (WebhookDecision, error) {
	sessionID := strings.TrimSpace(v.ID)
	if sessionID == "" || strings.TrimSpace(v.Status) == "" {
		return WebhookDecision{}, fmt.Errorf("%w: decision requires verification id and status", ErrInvalidInput)
	}
	actsAt := strings.TrimSpace(v.AcceptanceTime)
	if actsAt == "" && v.DecisionTime != nil {
		actsAt = strings.TrimSpace(*v.DecisionTime)
	}
	if actsAt == "" {
		return WebhookDecision{}, fmt.Errorf("%w: decision requires acceptanceTime", ErrInvalidInput)
	}

	out := WebhookDecision{
		SessionID:    sessionID,
		VendorData:   strings.TrimSpace(v.VendorData),
		Status:       ParseDecisionStatus(v.Status),
		RawStatus:    v.Status,
		Code:         v.Code,
		Reason:       v.Reason,
		ReasonCode:   v.ReasonCode,
		ActsAt:       actsAt,
		DecisionTime: v.DecisionTime,
	}
	if v.Person != nil {
		p := &DecisionPerson{
			FirstName:    v.Person.FirstName,
			LastName:     v.Person.LastName,
			IDNumber:     v.Person.IDNumber,
			DateOfBirth:  v.Person.DateOfBirth,
			Nationality:  v.Person.Nationality,
			PlaceOfBirth: v.Person.PlaceOfBirth,
		}
		if len(v.Person.Addresses) > 0 {
			p.Address = v.Person.Addresses[0].FullAddress
		}
		out.Person = p
	}
	if v.Document != nil {
		out.Document = &Document{
			Type:       v.Document.Type,
			Number:     v.Document.Number,
			Country:    v.Document.Country,
			ValidUntil: v.Document.ValidUntil,
			ValidFrom:  v.Document.ValidFrom,
		}
	}
	return out, nil
}
