package domain

import (
	"errors"
	"testing"
)

func TestClassifyWebhookDecision(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"status": "success",
		"verification": {
			"id": "S1",
			"code": 9102,
			"status": "declined",
			"reason": "Physical document not used",
			"reasonCode": 101,
			"vendorData": "U1",
			"acceptanceTime": "2020-12-04T10:45:37.907Z",
			"decisionTime": "2020-12-04T10:45:31.000Z",
			"person": {"firstName": "Ana", "lastName": "Horvat", "addresses": [{"fullAddress": "Ilica 1"}]},
			"document": {"type": "ID_CARD", "number": "123", "country": "HR"}
		},
		"technicalData": {"ip": "127.0.0.1"}
	}`)

	n, err := ClassifyWebhook(body)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if n.Kind != WebhookKindDecision || n.Decision == nil || n.Event != nil {
		t.Fatalf("expected decision notification, got %+v", n)
	}
	d := n.Decision
	if d.SessionID != "S1" || d.VendorData != "U1" || d.Status != DecisionDeclined {
		t.Fatalf("unexpected decision identity: %+v", d)
	}
	if d.ActsAt != "2020-12-04T10:45:37.907Z" {
		t.Fatalf("unexpected acts-at: %s", d.ActsAt)
	}
	if d.Code == nil || *d.Code != 9102 || d.ReasonCode == nil || *d.ReasonCode != 101 {
		t.Fatalf("unexpected codes: %+v", d)
	}
	if d.Person == nil || d.Person.Address != "Ilica 1" || d.Document == nil || d.Document.Type != "ID_CARD" {
		t.Fatalf("expected person and document to be parsed: %+v", d)
	}
}

func TestClassifyWebhookEvent(t *testing.T) {
	t.Parallel()

	n, err := ClassifyWebhook([]byte(`{"id":"S2","attemptId":"a-1","feature":"selfid","code":7002,"action":"submitted","vendorData":"U2"}`))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if n.Kind != WebhookKindEvent || n.Event == nil {
		t.Fatalf("expected event notification, got %+v", n)
	}
	if n.Event.SessionID != "S2" || n.Event.Action != "submitted" {
		t.Fatalf("unexpected event: %+v", n.Event)
	}
}

func TestClassifyWebhookRejectsAmbiguousPayloads(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":                  `{"id":`,
		"empty object":              `{}`,
		"event without action":      `{"id":"S3"}`,
		"decision without status":   `{"verification":{"id":"S3","acceptanceTime":"2020-01-01T00:00:00Z"}}`,
		"decision without acts-at":  `{"verification":{"id":"S3","status":"approved"}}`,
		"verification not object":   `{"verification":"approved"}`,
		"null verification no id":   `{"verification":null,"action":"submitted"}`,
		"blank event identifiers":   `{"id":" ","action":"submitted"}`,
	}
	for name, body := range cases {
		if _, err := ClassifyWebhook([]byte(body)); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}
