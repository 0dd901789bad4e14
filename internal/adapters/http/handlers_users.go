package http

import (
	"net/http"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/application"
)

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req application.SignupRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeValidationError(r.Context(), w, "signup", err)
		return
	}
	res, err := h.service.Signup(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "signup", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) mailConfirmation(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ConfirmEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeMappedError(r.Context(), w, "mail_confirmation", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) resendMailConfirmation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "resend_mail_confirmation")
		return
	}
	if err := h.service.ResendConfirmation(r.Context(), actor); err != nil {
		writeMappedError(r.Context(), w, "resend_mail_confirmation", err)
		return
	}
	writeMessage(w, http.StatusOK, "confirmation mail requested")
}

func (h *Handler) mailCheck(w http.ResponseWriter, r *http.Request) {
	var req application.MailCheckRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeValidationError(r.Context(), w, "mail_check", err)
		return
	}
	res, err := h.service.MailCheck(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "mail_check", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	var req application.TokenRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeValidationError(r.Context(), w, "token", err)
		return
	}
	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "token", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "me")
		return
	}
	res, err := h.service.GetMe(r.Context(), actor)
	if err != nil {
		writeMappedError(r.Context(), w, "me", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
