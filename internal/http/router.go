package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"voting-platform/internal/domain/election"
	"voting-platform/internal/domain/user"
	"voting-platform/internal/domain/vote"
	"voting-platform/internal/platform/apperr"
	jwtpkg "voting-platform/internal/platform/jwt"
	"voting-platform/internal/worker"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// VoteLimits bounds how often one client may submit votes.
type VoteLimits struct {
	PerMinute int
	Burst     int
}

type Handler struct {
	userSvc     *user.Service
	electionSvc *election.Service
	voteSvc     *vote.Service
	jwtMgr      *jwtpkg.Manager
	voteCh      chan<- worker.VoteEvent
	db          Pinger
}

func NewRouter(
	userSvc *user.Service,
	electionSvc *election.Service,
	voteSvc *vote.Service,
	jwtMgr *jwtpkg.Manager,
	voteCh chan<- worker.VoteEvent,
	db Pinger,
	limits VoteLimits,
) http.Handler {
	h := &Handler{
		userSvc:     userSvc,
		electionSvc: electionSvc,
		voteSvc:     voteSvc,
		jwtMgr:      jwtMgr,
		voteCh:      voteCh,
		db:          db,
	}
	if limits.PerMinute <= 0 {
		limits.PerMinute = 30
	}
	if limits.Burst <= 0 {
		limits.Burst = 5
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.handleReady)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtMgr, userSvc))

			r.Get("/auth/me", h.handleMe)
			r.Put("/auth/verify-fingerprint", h.handleSelfVerify)
			r.Put("/auth/fingerprint", h.handleEnrollFingerprint)

			r.Get("/elections", h.handleListElections)
			r.Get("/elections/{id}", h.handleGetElection)
			r.With(RateLimitVotes(rate.Every(time.Minute/time.Duration(limits.PerMinute)), limits.Burst)).
				Post("/elections/{id}/vote", h.handleVote)
			r.Get("/elections/{id}/results", h.handleResults)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(user.RoleAdmin))
				r.Post("/elections", h.handleCreateElection)
				r.Put("/elections/{id}", h.handleUpdateElection)
				r.Delete("/elections/{id}", h.handleDeleteElection)
				r.Get("/users", h.handleListUsers)
				r.Get("/users/{id}", h.handleGetUser)
				r.Put("/users/{id}/role", h.handleUpdateUserRole)
				r.Put("/users/{id}/verify-fingerprint", h.handleSetUserVerified)
				r.Delete("/users/{id}", h.handleDeleteUser)
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into v. An empty body is accepted only
// when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return apperr.BadRequest("invalid_body", "invalid request body", err)
	}
	return nil
}

// Timestamps without a zone offset, as sent by HTML date and time inputs, are read as UTC.
var localTimeLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

// parseTime reads an ISO 8601 timestamp; a malformed value is reported under field.
func parseTime(fe apperr.FieldErrors, field string, s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, *s); err == nil {
		return &t
	}
	for _, layout := range localTimeLayouts {
		if t, err := time.ParseInLocation(layout, *s, time.UTC); err == nil {
			return &t
		}
	}
	fe.Add(field, field+" must be an ISO 8601 timestamp")
	return nil
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
