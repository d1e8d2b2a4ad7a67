// Package examapitest provides an in-memory exam API for tests.
package examapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"exam-queue/internal/models"
	"exam-queue/internal/queue"

	"github.com/gorilla/mux"
)

// Server serves the exam API over httptest using the queue engine for its
// own state transitions.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	data         models.Dataset
	down         bool
	failing      map[string]bool
	rejectImport string
	calls        map[string]int
}

func NewServer(ds models.Dataset) *Server {
	s := &Server{
		data:    ds.Clone(),
		failing: make(map[string]bool),
		calls:   make(map[string]int),
	}

	r := mux.NewRouter()
	r.HandleFunc("/committees", s.handleCommittees).Methods(http.MethodGet)
	r.HandleFunc("/criteria", s.handleCriteria).Methods(http.MethodGet)
	r.HandleFunc("/students", s.handleStudents).Methods(http.MethodGet)
	r.HandleFunc("/students/import", s.handleImport).Methods(http.MethodPost)
	r.HandleFunc("/students/{id:[0-9]+}/evaluate", s.handleEvaluate).Methods(http.MethodPost)
	r.Use(s.track)

	s.Server = httptest.NewServer(r)
	return s
}

// SetDown makes every endpoint answer 503.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// FailPath makes one route template (e.g. "/criteria") answer 503.
func (s *Server) FailPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[path] = true
}

// RejectImports makes the import endpoint answer 400 with message.
func (s *Server) RejectImports(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectImport = message
}

func (s *Server) Students() []models.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneStudents(s.data.Students)
}

func (s *Server) SetStudents(students []models.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Students = models.CloneStudents(students)
}

// Calls returns how many requests hit the route template.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tmpl := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if t, err := route.GetPathTemplate(); err == nil {
				tmpl = t
			}
		}

		s.mu.Lock()
		s.calls[tmpl]++
		unavailable := s.down || s.failing[tmpl]
		s.mu.Unlock()

		if unavailable {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "service unavailable"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCommittees(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.data.Committees)
}

func (s *Server) handleCriteria(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.data.Criteria)
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.data.Students)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var records []models.ImportRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed import payload"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectImport != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": s.rejectImport})
		return
	}

	known := make(map[int]bool, len(s.data.Students))
	for _, st := range s.data.Students {
		known[st.ID] = true
	}
	candidates := make([]models.Student, 0, len(records))
	for _, rec := range records {
		if known[rec.ID] {
			writeJSON(w, http.StatusConflict, map[string]string{
				"message": fmt.Sprintf("Student with ID %d already exists", rec.ID),
			})
			return
		}
		candidates = append(candidates, models.Student{
			ID: rec.ID, Name: rec.Name, Specialty: rec.Specialty, CommitteeID: rec.CommitteeID,
		})
	}

	s.data.Students, _ = queue.AppendStudents(s.data.Students, candidates)
	writeJSON(w, http.StatusCreated, map[string]int{"imported": len(candidates)})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	var ev models.Evaluation
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed evaluation"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, outcome := queue.CompleteEvaluation(s.data.Students, id, ev.WithFinalScore())
	if !outcome.Found {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Student not found"})
		return
	}
	s.data.Students = next
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
