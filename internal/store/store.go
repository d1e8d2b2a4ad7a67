// internal/store/store.go

// Package store owns the authoritative in-memory collections. Writers are
// serialized; readers get an immutable, versioned snapshot.
package store

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"exam-queue/internal/common/logger"
	"exam-queue/internal/common/metrics"
	"exam-queue/internal/models"
	"exam-queue/internal/queue"
)

// Persister receives the full student collection after every mutation.
type Persister interface {
	SaveStudents(ctx context.Context, students []models.Student) error
}

// Snapshot is one immutable version of the store. Callers must not modify
// the slices or the evaluations they point to.
type Snapshot struct {
	Version    uint64
	Students   []models.Student
	Committees []models.Committee
	Criteria   []models.Criterion
}

// Committee returns the committee with id, if any.
func (s *Snapshot) Committee(id int) (models.Committee, bool) {
	for _, c := range s.Committees {
		if c.ID == id {
			return c, true
		}
	}
	return models.Committee{}, false
}

// Student returns the student with id, if any.
func (s *Snapshot) Student(id int) (models.Student, bool) {
	for _, st := range s.Students {
		if st.ID == id {
			return st, true
		}
	}
	return models.Student{}, false
}

type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	persist Persister
	logger  logger.Logger
}

// New returns an empty store at version 0. persist may be nil.
func New(persist Persister, log logger.Logger) *Store {
	s := &Store{
		persist: persist,
		logger:  log.Component("store"),
	}
	s.current.Store(&Snapshot{
		Students:   []models.Student{},
		Committees: []models.Committee{},
		Criteria:   []models.Criterion{},
	})
	return s
}

// Snapshot returns the current version. It never blocks on writers.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

func (s *Store) Version() uint64 {
	return s.current.Load().Version
}

// Load replaces all three collections. It does not persist; the caller
// knows whether the data already came from the cache.
func (s *Store) Load(ds models.Dataset) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds = ds.Clone()
	return s.publish(&Snapshot{
		Students:   nonNil(ds.Students),
		Committees: nonNil(ds.Committees),
		Criteria:   nonNil(ds.Criteria),
	})
}

// ReplaceStudents swaps in a fresh student list, e.g. from a remote
// refresh, and persists it. Callers go through Syncer, whose lock keeps
// a refresh from landing between a mutation and its mirror.
func (s *Store) ReplaceStudents(ctx context.Context, students []models.Student) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.publish(s.withStudents(models.CloneStudents(students)))
	s.save(ctx, snap)
	return snap
}

// AdoptStudents swaps in a student list read from the shared cache.
// Writing it back would only echo another process's write. Callers go
// through Syncer.
func (s *Store) AdoptStudents(students []models.Student) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.publish(s.withStudents(models.CloneStudents(students)))
}

// AddStudents appends the candidates whose ids are unknown and persists
// the result. Known ids are dropped silently. It returns the accepted
// students with their assigned positions. Callers go through
// Syncer.Import so the change cannot race a refresh.
func (s *Store) AddStudents(ctx context.Context, candidates []models.Student) []models.Student {
	s.mu.Lock()
	defer s.mu.Unlock()

	combined, accepted := queue.AppendStudents(s.current.Load().Students, candidates)
	if len(accepted) == 0 {
		return accepted
	}

	snap := s.publish(s.withStudents(combined))
	s.save(ctx, snap)
	metrics.StudentsImported.Add(float64(len(accepted)))

	s.logger.Info("Students added", map[string]interface{}{
		"accepted": len(accepted),
		"dropped":  len(candidates) - len(accepted),
		"version":  snap.Version,
	})
	return accepted
}

// CompleteEvaluation runs the queue transition and persists the result.
// An unknown id leaves the store untouched. Callers go through
// Syncer.Evaluate so the change cannot race a refresh.
func (s *Store) CompleteEvaluation(ctx context.Context, studentID int, evaluation models.Evaluation) queue.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, outcome := queue.CompleteEvaluation(s.current.Load().Students, studentID, evaluation)
	if !outcome.Found {
		metrics.QueueTransitions.WithLabelValues("unknown", "not_found").Inc()
		s.logger.Warn("Evaluation for unknown student ignored", map[string]interface{}{
			"studentId": studentID,
		})
		return outcome
	}

	snap := s.publish(s.withStudents(next))
	s.save(ctx, snap)

	metrics.QueueTransitions.WithLabelValues(strconv.Itoa(outcome.CommitteeID), transitionResult(outcome)).Inc()
	s.logger.Info("Evaluation completed", map[string]interface{}{
		"studentId":   studentID,
		"committeeId": outcome.CommitteeID,
		"promotedId":  outcome.PromotedID,
		"reevaluated": outcome.Reevaluated,
		"idle":        outcome.Idle,
		"version":     snap.Version,
	})
	return outcome
}

// withStudents builds the next snapshot sharing the immutable committee and
// criterion slices. Caller holds mu.
func (s *Store) withStudents(students []models.Student) *Snapshot {
	prev := s.current.Load()
	return &Snapshot{
		Students:   nonNil(students),
		Committees: prev.Committees,
		Criteria:   prev.Criteria,
	}
}

// publish stamps the next version and makes snap visible. Caller holds mu.
func (s *Store) publish(snap *Snapshot) *Snapshot {
	snap.Version = s.current.Load().Version + 1
	s.current.Store(snap)
	metrics.RecordQueueState(snap.Version, snap.Students)
	return snap
}

// save writes through to the cache under mu so cache writes keep version
// order. Failures are logged; the in-memory state stays authoritative.
func (s *Store) save(ctx context.Context, snap *Snapshot) {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveStudents(ctx, snap.Students); err != nil {
		metrics.CacheWriteFailures.Inc()
		s.logger.Warn("Failed to persist snapshot", map[string]interface{}{
			"version": snap.Version,
			"error":   err,
		})
	}
}

func transitionResult(o queue.Outcome) string {
	switch {
	case o.Reevaluated:
		return "reevaluated"
	case o.Promoted():
		return "promoted"
	case o.Idle:
		return "idle"
	default:
		return "completed"
	}
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
