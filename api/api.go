// Package api exposes the certificate request lifecycle over REST. Handlers
// are thin: they decode, call the engine, and map domain errors to status
// codes. Authentication is bearer-token based; tokens are minted at
// registration and verified against an Argon2id hash.
package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/signet/request"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	engine *request.Engine
	users  UserSaver
	certs  request.CertificateRepository
	tokens *tokenStore
	audit  *auditLogger
}

// UserSaver is the write side of the user directory, needed by registration.
// Every storage backend's user directory implements it.
type UserSaver interface {
	request.UserDirectory
	Save(ctx context.Context, user request.User) (request.User, error)
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// New creates a new API instance.
func New(engine *request.Engine, users UserSaver, certs request.CertificateRepository, opts ...Option) *API {
	a := &API{
		engine: engine,
		users:  users,
		certs:  certs,
		tokens: newTokenStore(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/auth/register", a.Register)

	r.Route("/requests", func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Post("/", a.CreateRequest)
		r.Get("/", a.ListAllRequests)
		r.Get("/mine", a.ListMyRequests)
		r.Get("/pending", a.ListPendingRequests)
		r.Post("/{requestID}/accept", a.AcceptRequest)
		r.Post("/{requestID}/reject", a.RejectRequest)
	})

	r.With(a.AuthMiddleware).Get("/certificates/{serial}", a.GetCertificate)

	return r
}
