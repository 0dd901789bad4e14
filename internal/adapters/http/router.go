package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/application"
)

// Handler is the HTTP adapter entrypoint for user and verification use-cases.
type Handler struct {
	service  *application.Service
	validate *validator.Validate
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service, validate: newValidator()}
}

// NewRouter registers the REST surface. Provider webhooks authenticate by
// signature; everything under the auth group needs a bearer token.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/verification/webhook", func(r chi.Router) {
		r.Post("/decision", handler.decisionWebhook)
		r.Post("/event", handler.eventWebhook)
	})

	r.Post("/signup", handler.signup)
	r.Get("/mail-confirmation", handler.mailConfirmation)
	r.Post("/mail-check", handler.mailCheck)
	r.Post("/token", handler.token)

	r.Route("/public", func(r chi.Router) {
		r.Get("/user/count", handler.userCount)
		r.Get("/app/config/identifier/{identifier}", handler.coopByIdentifier)
		r.Get("/app/config/hostname/{hostname}", handler.coopByHostname)
	})

	r.Group(func(r chi.Router) {
		r.Use(handler.authMiddleware)
		r.Get("/verification/session", handler.verificationSession)
		r.Get("/verification/decision", handler.verificationDecision)
		r.Get("/mail-confirmation/resend", handler.resendMailConfirmation)
		r.Get("/me", handler.me)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/coop", handler.createCoop)
			r.Post("/user/{uuid}/role", handler.changeUserRole)
			r.Get("/user/role/{role}", handler.usersByRole)
		})
	})

	return r
}
