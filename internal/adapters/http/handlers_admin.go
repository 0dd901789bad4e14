package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/application"
)

func (h *Handler) createCoop(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "create_coop")
		return
	}
	var req application.CoopRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_coop", err)
		return
	}
	res, err := h.service.CreateCoop(r.Context(), actor, req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_coop", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) changeUserRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "change_user_role")
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		writeValidationError(r.Context(), w, "change_user_role", errors.New("uuid must be a valid UUID"))
		return
	}
	var req application.RoleChangeRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeValidationError(r.Context(), w, "change_user_role", err)
		return
	}
	res, err := h.service.ChangeUserRole(r.Context(), actor, userID, req.Role)
	if err != nil {
		writeMappedError(r.Context(), w, "change_user_role", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) usersByRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "users_by_role")
		return
	}
	res, err := h.service.ListUsersByRole(r.Context(), actor, chi.URLParam(r, "role"))
	if err != nil {
		writeMappedError(r.Context(), w, "users_by_role", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"users": res})
}
