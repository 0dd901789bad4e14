package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) userCount(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.CountUsers(r.Context(), r.URL.Query().Get("coop"))
	if err != nil {
		writeMappedError(r.Context(), w, "user_count", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) coopByIdentifier(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetCoopByIdentifier(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		writeMappedError(r.Context(), w, "coop_by_identifier", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) coopByHostname(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetCoopByHostname(r.Context(), chi.URLParam(r, "hostname"))
	if err != nil {
		writeMappedError(r.Context(), w, "coop_by_hostname", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
