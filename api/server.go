// Package api implements the HTTP surface of mailtrack: status queries, the
// suppression list, the suppression-gated send path and credential
// verification.
//
// Authentication is the front door's job (an external identity provider
// validates the bearer token before requests reach this service); handlers
// here only consume the already-vetted Authorization header.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mailtrack/mailtrack/creds"
	"github.com/mailtrack/mailtrack/dynamodb"
	"github.com/mailtrack/mailtrack/mailer"
)

// EventStore is the status-store read surface the API serves from. It is
// satisfied by [github.com/mailtrack/mailtrack/dynamodb.Client].
type EventStore interface {
	QueryEvents(ctx context.Context, spec dynamodb.QuerySpec) (*dynamodb.Page, error)
	HasSuppression(ctx context.Context, recipient string) (bool, error)
}

// CredentialVendor vends tenant credentials for the send and verify paths.
type CredentialVendor interface {
	Vend(ctx context.Context, authorization string) (*creds.Credentials, error)
}

// MailSender performs the outbound send call.
type MailSender interface {
	Send(ctx context.Context, c *creds.Credentials, input *sesv2.SendEmailInput) (*mailer.Result, error)
}

// Handler holds all API handler state.
type Handler struct {
	store  EventStore
	vendor CredentialVendor
	sender MailSender
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(store EventStore, vendor CredentialVendor, sender MailSender, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		vendor: vendor,
		sender: sender,
		logger: logger.With("component", "api"),
	}
}

// NewRouter builds the service router: the tracked-mail API plus health and
// metrics endpoints.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(h.requestLog)

	r.Get("/events", h.GetEvents)
	r.Get("/suppression-list", h.GetSuppressionList)
	r.Post("/mail", h.SendMail)
	r.Get("/verify-sts", h.VerifySTS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestLog logs one line per request with method, path, status and
// duration.
func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
