package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

// WebhookSignatureVerifier authenticates provider webhooks: the client header must
// equal the configured API key and the signature header must be the hex HMAC-SHA256
// of the raw body under the shared secret.
type WebhookSignatureVerifier struct {
	clientID []byte
	secret   []byte
}

func NewWebhookSignatureVerifier(clientID, secret string) *WebhookSignatureVerifier {
	return &WebhookSignatureVerifier{clientID: []byte(clientID), secret: []byte(secret)}
}

func (v *WebhookSignatureVerifier) Verify(body []byte, clientID, signature string) ports.WebhookVerdict {
	if len(v.clientID) == 0 || subtle.ConstantTimeCompare(v.clientID, []byte(strings.TrimSpace(clientID))) != 1 {
		return ports.WebhookVerdict{Reason: ports.RejectBadClientID}
	}
	claimed, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil || len(claimed) == 0 {
		return ports.WebhookVerdict{Reason: ports.RejectBadSignature}
	}
	if !hmac.Equal(claimed, computeHMAC(v.secret, body)) {
		return ports.WebhookVerdict{Reason: ports.RejectBadSignature}
	}
	return ports.WebhookVerdict{Authentic: true}
}

// SignHex returns hex(HMAC-SHA256(secret, payload)), the provider's signature format.
func SignHex(secret string, payload []byte) string {
	return hex.EncodeToString(computeHMAC([]byte(secret), payload))
}

func computeHMAC(secret, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
