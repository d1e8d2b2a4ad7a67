// internal/api/server.go

// Package api exposes the lookup views and the two mutations over HTTP as
// JSON. Rendering is left to the clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"exam-queue/internal/archive"
	apperrors "exam-queue/internal/common/errors"
	apphttp "exam-queue/internal/common/http"
	"exam-queue/internal/common/logger"
	"exam-queue/internal/importer"
	"exam-queue/internal/lookup"
	"exam-queue/internal/models"
	"exam-queue/internal/syncer"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxImportBytes = 4 << 20

// Mutator applies imports and evaluations; *syncer.Syncer in production.
type Mutator interface {
	Import(ctx context.Context, candidates []models.Student) (syncer.ImportResult, error)
	Evaluate(ctx context.Context, studentID int, evaluation models.Evaluation) (syncer.EvaluationResult, error)
}

// EvaluationLister reads the evaluation archive.
type EvaluationLister interface {
	ListByCommittee(ctx context.Context, committeeID int) ([]archive.Record, error)
}

type Server struct {
	router   *mux.Router
	facade   *lookup.Facade
	mutator  Mutator
	archive  EvaluationLister
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
	metrics  http.Handler
	shutdown time.Duration
}

// NewServer builds the router. lister may be nil when no archive is
// configured; its route is then not registered.
func NewServer(facade *lookup.Facade, mutator Mutator, lister EvaluationLister, log logger.Logger) *Server {
	log = log.Component("api")
	s := &Server{
		router:   mux.NewRouter(),
		facade:   facade,
		mutator:  mutator,
		archive:  lister,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
		metrics:  promhttp.Handler(),
		shutdown: 10 * time.Second,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.requestID, s.logRequests)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", s.dashboard).Methods(http.MethodGet)
	api.HandleFunc("/criteria", s.criteria).Methods(http.MethodGet)
	api.HandleFunc("/committees", s.committees).Methods(http.MethodGet)
	api.HandleFunc("/committees/{id}", s.committee).Methods(http.MethodGet)
	api.HandleFunc("/committees/{id}/students", s.committeeStudents).Methods(http.MethodGet)
	api.HandleFunc("/committees/{id}/display", s.display).Methods(http.MethodGet)
	api.HandleFunc("/committees/{id}/terminal", s.terminal).Methods(http.MethodGet)
	if s.archive != nil {
		api.HandleFunc("/committees/{id}/evaluations", s.evaluations).Methods(http.MethodGet)
	}
	api.HandleFunc("/students/import", s.importStudents).Methods(http.MethodPost)
	api.HandleFunc("/students/{id}", s.student).Methods(http.MethodGet)
	api.HandleFunc("/students/{id}/status", s.studentStatus).Methods(http.MethodGet)
	api.HandleFunc("/students/{id}/evaluate", s.evaluate).Methods(http.MethodPost)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", map[string]interface{}{"address": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

// ==========================
// Middleware
// ==========================

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(apphttp.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(apphttp.RequestIDHeader, id)
		}
		w.Header().Set(apphttp.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Request served", map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    rec.status,
			"duration":  time.Since(start).String(),
			"requestId": r.Header.Get(apphttp.RequestIDHeader),
		})
	})
}

// ==========================
// Read handlers
// ==========================

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.facade.Version(),
	})
}

func (s *Server) dashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.Dashboard())
}

func (s *Server) criteria(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.Criteria())
}

func (s *Server) committees(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.Committees())
}

func (s *Server) committee(w http.ResponseWriter, r *http.Request) {
	id, ok := s.committeeID(w, r)
	if !ok {
		return
	}
	c, found := s.facade.CommitteeByID(id)
	if !found {
		s.errors.HandleHTTPError(w, r, apperrors.NewCommitteeNotFoundError(mux.Vars(r)["id"]))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) committeeStudents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.existingCommittee(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.facade.StudentsByCommittee(id))
}

func (s *Server) display(w http.ResponseWriter, r *http.Request) {
	id, ok := s.committeeID(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.errors.HandleHTTPError(w, r, apperrors.NewBadRequestError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	view, found := s.facade.Display(id, limit)
	if !found {
		s.errors.HandleHTTPError(w, r, apperrors.NewCommitteeNotFoundError(mux.Vars(r)["id"]))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) terminal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.committeeID(w, r)
	if !ok {
		return
	}
	view, found := s.facade.Terminal(id)
	if !found {
		s.errors.HandleHTTPError(w, r, apperrors.NewCommitteeNotFoundError(mux.Vars(r)["id"]))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) evaluations(w http.ResponseWriter, r *http.Request) {
	id, ok := s.existingCommittee(w, r)
	if !ok {
		return
	}
	records, err := s.archive.ListByCommittee(r.Context(), id)
	if err != nil {
		s.errors.HandleHTTPError(w, r, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) student(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	st, found := s.facade.FindStudent(raw)
	if !found {
		s.errors.HandleHTTPError(w, r, apperrors.NewStudentNotFoundError(raw))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) studentStatus(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	status, found := s.facade.QueueStatus(raw)
	if !found {
		s.errors.HandleHTTPError(w, r, apperrors.NewStudentNotFoundError(raw))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ==========================
// Mutation handlers
// ==========================

func (s *Server) importStudents(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	defer body.Close()

	opts := importer.Options{
		KnownIDs:   s.facade.StudentIDs(),
		Committees: s.facade.CommitteeIDs(),
	}
	if r.URL.Query().Get("delimiter") == "semicolon" {
		opts.Comma = ';'
	}

	candidates, err := importer.Parse(body, opts)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}

	result, err := s.mutator.Import(r.Context(), candidates)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	id, ok := lookup.ParseStudentID(raw)
	if !ok {
		s.errors.HandleHTTPError(w, r, apperrors.NewStudentNotFoundError(raw))
		return
	}

	var ev models.Evaluation
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		s.errors.HandleHTTPError(w, r, apperrors.NewBadRequestError("invalid evaluation body: "+err.Error()))
		return
	}

	result, err := s.mutator.Evaluate(r.Context(), id, ev)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	if !result.Found {
		s.errors.HandleHTTPError(w, r, apperrors.NewStudentNotFoundError(raw))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ==========================
// Helpers
// ==========================

func (s *Server) committeeID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.Atoi(raw)
	if err != nil {
		s.errors.HandleHTTPError(w, r, apperrors.NewCommitteeNotFoundError(raw))
		return 0, false
	}
	return id, true
}

func (s *Server) existingCommittee(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := s.committeeID(w, r)
	if !ok {
		return 0, false
	}
	if _, found := s.facade.CommitteeByID(id); !found {
		s.errors.HandleHTTPError(w, r, apperrors.NewCommitteeNotFoundError(mux.Vars(r)["id"]))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
