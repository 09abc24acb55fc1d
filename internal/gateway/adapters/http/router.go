// Package http is the gateway's public HTTP surface.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teajhaney/shopstack-microservices/internal/gateway/adapters/security"
	"github.com/teajhaney/shopstack-microservices/internal/gateway/application"
)

const defaultMaxUploadBytes = 5 << 20

type Handler struct {
	service        *application.Service
	verifier       *security.JWTVerifier
	limit          RateLimit
	maxUploadBytes int64
	logger         *slog.Logger
}

type Options struct {
	Verifier       *security.JWTVerifier
	RateLimit      RateLimit
	MaxUploadBytes int64
	Logger         *slog.Logger
}

func NewHandler(service *application.Service, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Handler{
		service:        service,
		verifier:       opts.Verifier,
		limit:          opts.RateLimit,
		maxUploadBytes: maxUpload,
		logger:         logger.With("module", "gateway", "layer", "http"),
	}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(handler.recoverMiddleware)
	r.Use(handler.loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health", handler.health)

	r.Group(func(r chi.Router) {
		r.Use(handler.rateLimitMiddleware)

		r.Get("/search", handler.search)

		r.With(handler.authMiddleware).Get("/auth/me", handler.me)

		r.Route("/products", func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/list", handler.listProducts)
			r.Get("/{id}", handler.getProduct)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/", handler.createProduct)
				r.Patch("/{id}", handler.updateProduct)
				r.Delete("/{id}", handler.deleteProduct)
			})
		})
	})
	return r
}
