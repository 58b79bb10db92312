package httpadapter

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"

	"filingwatch/internal/domain"
	"filingwatch/internal/ports"
	"filingwatch/internal/services/monitoring"
)

const (
	maxBodyBytes      = 64 << 10
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// Server exposes the entity, assessment and scheduled-job endpoints.
type Server struct {
	entities    ports.Entities
	assessments ports.Assessments
	states      ports.StateRepository
	events      ports.EventRepository
	evaluator   ports.Evaluator
	dispatcher  ports.Dispatcher
	cronSecret  string
	now         func() time.Time
	logger      *slog.Logger
	metrics     http.Handler
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// New wires the server. cronSecret guards /v1/jobs; when empty those routes
// always answer 401.
func New(entities ports.Entities, assessments ports.Assessments, states ports.StateRepository, events ports.EventRepository,
	evaluator ports.Evaluator, dispatcher ports.Dispatcher, cronSecret string, opts ...Option) *Server {
	s := &Server{
		entities:    entities,
		assessments: assessments,
		states:      states,
		events:      events,
		evaluator:   evaluator,
		dispatcher:  dispatcher,
		cronSecret:  cronSecret,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns a chi.Router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/entities", s.postEntity)
		r.Route("/entities/{entityID}", func(r chi.Router) {
			r.Get("/", s.getEntity)
			r.Post("/assessments", s.postAssessment)
			r.Get("/assessments/latest", s.getLatestAssessment)
			r.Get("/compliance-state", s.getComplianceState)
			r.Get("/events", s.getEvents)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.requireCronSecret)
			r.Post("/jobs/evaluate", s.postEvaluate)
			r.Post("/jobs/dispatch", s.postDispatch)
		})
	})
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postEntity(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, &domain.ValidationError{Reason: "body is not valid JSON"})
		return
	}
	e, err := s.entities.Create(r.Context(), req.OwnerUserID, req.DisplayName, req.EntityType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntityResponse(e))
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	id, err := entityIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.entities.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityResponse(e))
}

func (s *Server) postAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := entityIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.assessments.Create(r.Context(), id, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSnapshotResponse(snap))
}

func (s *Server) getLatestAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := entityIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, stale, err := s.assessments.Latest(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := toSnapshotResponse(snap)
	resp.Stale = &stale
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getComplianceState(w http.ResponseWriter, r *http.Request) {
	id, err := entityIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.entities.Get(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, found, err := s.states.GetState(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	// The stored state lags a new assessment until the next tick. Hide it once
	// the latest snapshot no longer carries its deadline.
	snap, _, err := s.assessments.Latest(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !tracksDeadline(snap, st) {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(st))
}

func tracksDeadline(snap domain.AssessmentSnapshot, st domain.ComplianceState) bool {
	due := st.DueDate.Format(time.DateOnly)
	for _, d := range snap.Deadlines {
		if d.Form == st.Form && d.DueDateISO() == due {
			return true
		}
	}
	return false
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	id, err := entityIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit := defaultEventLimit
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		s.writeError(w, r, &domain.ValidationError{Field: "limit", Reason: "must be an integer"})
		return
	}
	if limit < 1 || limit > maxEventLimit {
		s.writeError(w, r, &domain.ValidationError{Field: "limit", Reason: "must be between 1 and 500"})
		return
	}
	if _, err := s.entities.Get(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.events.ListEvents(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) postEvaluate(w http.ResponseWriter, r *http.Request) {
	summary, err := s.evaluator.EvaluateAll(r.Context(), s.now())
	if errors.Is(err, monitoring.ErrTickInProgress) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "tick_in_progress", Description: err.Error()})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) postDispatch(w http.ResponseWriter, r *http.Request) {
	summary, err := s.dispatcher.Dispatch(r.Context(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// requireCronSecret checks the shared-secret bearer used by the scheduler.
func (s *Server) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || s.cronSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cronSecret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func entityIDParam(r *http.Request) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "entityID", chi.URLParam(r, "entityID"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", &domain.ValidationError{Field: "entityID", Reason: "is required"}
	}
	return id, nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.ValidationError{Reason: "body too large or unreadable"}
	}
	return body, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_error", Description: ve.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflict"})
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
