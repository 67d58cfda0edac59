package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"reply-assistant/internal/config"
	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/infra/logging"
)

const maxBodyBytes = 1 << 20

const (
	msgPolicyBlocked = "api.policy_blocked"
	msgUnavailable   = "api.unavailable"
	msgExpired       = "api.expired"
	msgLimitReached  = "api.limit_reached"
)

// Messages resolves user-facing texts by key.
type Messages interface {
	T(key string, args ...any) string
}

// Enqueuer submits a job to the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload model.Payload) (string, error)
}

type Refiner interface {
	Refine(ctx context.Context, req model.RefineRequest) (*model.Suggestion, error)
}

// SuggestionCache resolves the text of earlier suggestions for refinement.
type SuggestionCache interface {
	Lookup(ctx context.Context, req *model.RefineRequest) error
	Store(ctx context.Context, job model.GenerationJob, s *model.Suggestion) error
}

// HealthCheck is probed by /healthz. A failing check turns the response 503.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Jobs        Enqueuer
	Refiner     Refiner
	Suggestions SuggestionCache
	Messages    Messages
	Checks      []HealthCheck
}

// Server exposes the generation queue and synchronous refinement over HTTP.
type Server struct {
	deps   Deps
	cfg    config.HTTPConfig
	apiKey string
	log    *zerolog.Logger
	srv    *http.Server
}

func NewServer(deps Deps, cfg config.HTTPConfig, apiKey string, logger *zerolog.Logger) *Server {
	return &Server{deps: deps, cfg: cfg, apiKey: apiKey, log: logging.Component(logger, "http")}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID())
	r.Use(Recover(s.log))
	r.Use(RequestLog(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKey(s.apiKey))
		r.Use(Timeout(30 * time.Second))
		r.Post("/generations", s.handleEnqueue)
		r.Post("/suggestions/refine", s.handleRefine)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	code := http.StatusOK
	for _, c := range s.deps.Checks {
		if err := c.Check(ctx); err != nil {
			status[c.Name] = "down"
			code = http.StatusServiceUnavailable
			continue
		}
		status[c.Name] = "ok"
	}
	respondJSON(w, code, map[string]any{"status": http.StatusText(code), "checks": status})
}

type enqueueResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var job model.GenerationJob
	if err := decodeBody(w, r, &job); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := job.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := logging.WithUserID(logging.WithTenantID(r.Context(), job.TenantID), job.UserID)
	id, err := s.deps.Jobs.Enqueue(ctx, job)
	if err != nil {
		l := logging.With(ctx, s.log)
		l.Error().Err(err).Msg("enqueue generation job")
		respondError(w, http.StatusServiceUnavailable, s.deps.Messages.T(msgUnavailable))
		return
	}
	respondJSON(w, http.StatusAccepted, enqueueResponse{JobID: id})
}

type refineResponse struct {
	SuggestionID     string   `json:"suggestion_id"`
	Text             string   `json:"text"`
	Warnings         []string `json:"warnings,omitempty"`
	ProcessingTimeMS int64    `json:"processing_time_ms"`
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req model.RefineRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := logging.WithUserID(logging.WithTenantID(r.Context(), req.TenantID), req.UserID)
	l := logging.With(ctx, s.log)

	if req.Previous == "" && req.SuggestionID != "" {
		if err := s.deps.Suggestions.Lookup(ctx, &req); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				respondError(w, http.StatusNotFound, s.deps.Messages.T(msgExpired))
				return
			}
			l.Error().Err(err).Str("suggestion_id", req.SuggestionID).Msg("suggestion lookup")
			respondError(w, http.StatusServiceUnavailable, s.deps.Messages.T(msgUnavailable))
			return
		}
	}

	sug, err := s.deps.Refiner.Refine(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrUsageDenied):
		msg := s.deps.Messages.T(msgLimitReached)
		if sug != nil && sug.DenialReason != "" {
			msg = sug.DenialReason
		}
		respondError(w, http.StatusPaymentRequired, msg)
		return
	case errors.Is(err, domain.ErrPolicyBlocked):
		respondError(w, http.StatusUnprocessableEntity, s.deps.Messages.T(msgPolicyBlocked))
		return
	default:
		l.Error().Err(err).Msg("refine failed")
		respondError(w, http.StatusServiceUnavailable, s.deps.Messages.T(msgUnavailable))
		return
	}

	if err := s.deps.Suggestions.Store(ctx, model.GenerationJob{
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	}, sug); err != nil {
		l.Warn().Err(err).Str("suggestion_id", sug.ID).Msg("cache refined suggestion")
	}
	respondJSON(w, http.StatusOK, refineResponse{
		SuggestionID:     sug.ID,
		Text:             sug.Text,
		Warnings:         sug.Warnings,
		ProcessingTimeMS: sug.ProcessingTime.Milliseconds(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
