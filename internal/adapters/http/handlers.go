package http

import (
	"net/http"
	"strconv"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) decisionWebhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, domain.WebhookKindDecision, "decision_webhook")
}

func (h *Handler) eventWebhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, domain.WebhookKindEvent, "event_webhook")
}

// webhook passes the untouched body through; the signature covers the raw bytes.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request, kind domain.WebhookKind, operation string) {
	body, err := readWebhookBody(w, r)
	if err != nil {
		writeValidationError(r.Context(), w, operation, err)
		return
	}
	err = h.service.HandleWebhook(r.Context(), kind, body,
		r.Header.Get("X-AUTH-CLIENT"),
		r.Header.Get("X-SIGNATURE"),
	)
	if err != nil {
		writeMappedError(r.Context(), w, operation, err)
		return
	}
	writeMessage(w, http.StatusOK, "accepted")
}

func (h *Handler) verificationSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "verification_session")
		return
	}
	res, err := h.service.GetVerification(r.Context(), actor)
	if err != nil {
		writeMappedError(r.Context(), w, "verification_session", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

// verificationDecision returns the newest decision. With sync=true the provider is
// asked first for a decision that may not have been delivered by webhook.
func (h *Handler) verificationDecision(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "verification_decision")
		return
	}
	sync, _ := strconv.ParseBool(r.URL.Query().Get("sync"))

	var (
		decision *domain.VerificationDecision
		err      error
	)
	if sync {
		decision, err = h.service.SyncDecision(r.Context(), actor)
	} else {
		decision, err = h.service.GetLatestDecision(r.Context(), actor.Coop, actor.UserID)
	}
	if err != nil {
		writeMappedError(r.Context(), w, "verification_decision", err)
		return
	}
	if decision == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no decision recorded")
		return
	}
	writeSuccess(w, http.StatusOK, application.NewDecisionView(*decision))
}
