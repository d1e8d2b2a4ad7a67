// internal/syncer/syncer.go

// Package syncer keeps the store in step with the remote exam API and the
// shared local cache: startup fallback chain, periodic refresh, cross
// process reloads and mirroring of local mutations.
package syncer

import (
	"context"
	"reflect"
	"sync"
	"time"

	"exam-queue/internal/common/cache"
	apperrors "exam-queue/internal/common/errors"
	"exam-queue/internal/common/logger"
	"exam-queue/internal/common/metrics"
	"exam-queue/internal/common/observability"
	"exam-queue/internal/common/validation"
	"exam-queue/internal/models"
	"exam-queue/internal/queue"
	"exam-queue/internal/store"
)

// Remote is the exam API. A nil Remote means offline mode.
type Remote interface {
	Dataset(ctx context.Context) (models.Dataset, error)
	Students(ctx context.Context) ([]models.Student, error)
	ImportStudents(ctx context.Context, records []models.ImportRecord) error
	Evaluate(ctx context.Context, studentID int, evaluation models.Evaluation) error
}

// Cache is the local snapshot cache shared with other processes.
type Cache interface {
	LoadDataset(ctx context.Context) (models.Dataset, error)
	LoadStudents(ctx context.Context) ([]models.Student, error)
	SaveDataset(ctx context.Context, ds models.Dataset) error
	Watch(ctx context.Context) (<-chan cache.Notification, error)
}

// Archive keeps a durable record of completed evaluations.
type Archive interface {
	RecordEvaluation(ctx context.Context, student models.Student) error
}

type Config struct {
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
}

// Syncer is the single serialization point for refreshes and mirrored
// mutations. Remote, Cache and Archive are optional; pass untyped nil to
// leave one out.
type Syncer struct {
	cfg     Config
	store   *store.Store
	remote  Remote
	cache   Cache
	archive Archive
	obs     *observability.Observability
	logger  logger.Logger

	mu sync.Mutex

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func New(cfg Config, st *store.Store, remote Remote, c Cache, archive Archive, obs *observability.Observability, log logger.Logger) *Syncer {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &Syncer{
		cfg:     cfg,
		store:   st,
		remote:  remote,
		cache:   c,
		archive: archive,
		obs:     obs,
		logger:  log.Component("sync"),
	}
}

// Online reports whether a remote API is configured.
func (s *Syncer) Online() bool {
	return s.remote != nil
}

// ==========================
// Startup
// ==========================

func (s *Syncer) providers() []Provider {
	var out []Provider
	if s.remote != nil {
		out = append(out, remoteProvider{remote: s.remote})
	}
	if s.cache != nil {
		out = append(out, cacheProvider{cache: s.cache})
	}
	return append(out, seedProvider{})
}

// Bootstrap populates the store from the first provider that succeeds:
// remote, then cache, then seed. Unless the data came from the cache it is
// written back to the cache.
func (s *Syncer) Bootstrap(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, report, err := Resolve(ctx, s.providers(), s.obs)
	if err != nil {
		return report, err
	}
	for _, a := range report.Attempts {
		if a.Error != "" {
			s.logger.Warn("Data source unavailable, falling back", map[string]interface{}{
				"provider": a.Provider,
				"error":    a.Error,
			})
		}
	}

	snap := s.store.Load(ds)
	report.Version = snap.Version
	metrics.StartupSource.WithLabelValues(report.Source).Inc()

	if report.Source != SourceCache && s.cache != nil {
		if err := s.cache.SaveDataset(ctx, ds); err != nil {
			metrics.CacheWriteFailures.Inc()
			s.logger.Warn("Failed to cache startup dataset", map[string]interface{}{"error": err})
		}
	}

	s.logger.Info("Store populated", map[string]interface{}{
		"source":     report.Source,
		"students":   len(snap.Students),
		"committees": len(snap.Committees),
		"criteria":   len(snap.Criteria),
		"version":    snap.Version,
	})
	return report, nil
}

// ==========================
// Background work
// ==========================

// Start launches the refresh timer (when online) and the cache watcher
// (when a cache is configured). Close stops both.
func (s *Syncer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.cache != nil {
		notes, err := s.cache.Watch(ctx)
		if err != nil {
			s.logger.Warn("Cache notifications unavailable", map[string]interface{}{"error": err})
		} else {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.watchLoop(ctx, notes)
			}()
		}
	}

	if s.remote != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.refreshLoop(ctx)
		}()
	}
}

// Close cancels background work and waits for it. In-flight requests are
// not aborted; their results are dropped.
func (s *Syncer) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

func (s *Syncer) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}

func (s *Syncer) watchLoop(ctx context.Context, notes <-chan cache.Notification) {
	for note := range notes {
		if !note.Touches(cache.CollectionStudents) {
			continue
		}
		metrics.CacheNotifications.Inc()
		_ = s.Reload(ctx)
	}
}

// Refresh re-fetches the students from the remote API and replaces the
// store's list. On failure the last known snapshot is kept. A result that
// arrives after ctx is done is ignored.
func (s *Syncer) Refresh(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	students, err := s.remote.Students(fetchCtx)
	s.obs.RecordSyncAttempt(fetchCtx, "refresh", SourceRemote, time.Since(start), err)

	if ctx.Err() != nil {
		s.logger.Debug("Refresh result arrived after shutdown, ignored", nil)
		return ctx.Err()
	}
	if err != nil {
		metrics.RefreshFailures.Inc()
		s.logger.Warn("Refresh failed, keeping last known students", map[string]interface{}{
			"error":   err,
			"version": s.store.Version(),
		})
		return err
	}

	s.replaceIfChanged(ctx, students)
	return nil
}

// Reload re-reads the students another process wrote to the cache.
func (s *Syncer) Reload(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	students, err := s.cache.LoadStudents(ctx)
	s.obs.RecordSyncAttempt(ctx, "reload", SourceCache, time.Since(start), err)
	if err != nil {
		s.logger.Warn("Failed to reload students from cache", map[string]interface{}{"error": err})
		return err
	}

	if reflect.DeepEqual(students, s.store.Snapshot().Students) {
		return nil
	}
	snap := s.store.AdoptStudents(students)
	s.logger.Info("Students reloaded from cache", map[string]interface{}{
		"students": len(snap.Students),
		"version":  snap.Version,
	})
	return nil
}

// replaceIfChanged skips identical lists so an idle queue does not churn
// versions or cache writes. Caller holds mu.
func (s *Syncer) replaceIfChanged(ctx context.Context, students []models.Student) {
	if students == nil {
		students = []models.Student{}
	}
	if reflect.DeepEqual(students, s.store.Snapshot().Students) {
		return
	}
	snap := s.store.ReplaceStudents(ctx, students)
	s.logger.Debug("Students refreshed", map[string]interface{}{
		"students": len(snap.Students),
		"version":  snap.Version,
	})
}

// ==========================
// Mutations
// ==========================

// ImportResult reports what an import changed.
type ImportResult struct {
	Accepted []models.Student `json:"accepted"`
	Dropped  int              `json:"dropped"`
	Mirrored bool             `json:"mirrored"`
}

// Import adds students. Known and repeated ids are dropped in both modes.
// Online, the rest are posted to the remote API first and any failure is
// returned without touching the store; the student list is then
// re-fetched. Offline, the store appends directly.
func (s *Syncer) Import(ctx context.Context, candidates []models.Student) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remote == nil {
		accepted := s.store.AddStudents(ctx, candidates)
		return ImportResult{Accepted: accepted, Dropped: len(candidates) - len(accepted)}, nil
	}

	known := make(map[int]bool)
	for _, st := range s.store.Snapshot().Students {
		known[st.ID] = true
	}
	// Known and repeated ids are dropped before the POST, as AddStudents
	// does offline, so one duplicate cannot get the whole batch rejected.
	fresh := make([]models.Student, 0, len(candidates))
	records := make([]models.ImportRecord, 0, len(candidates))
	seen := make(map[int]bool, len(candidates))
	for _, c := range candidates {
		if known[c.ID] || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		fresh = append(fresh, c)
		records = append(records, c.ToImportRecord())
	}
	if len(records) == 0 {
		return ImportResult{Accepted: []models.Student{}, Dropped: len(candidates)}, nil
	}

	if err := s.remote.ImportStudents(ctx, records); err != nil {
		s.logger.Warn("Import rejected by remote API", map[string]interface{}{
			"records": len(records),
			"error":   err,
		})
		return ImportResult{}, err
	}

	students, err := s.remote.Students(ctx)
	if err != nil {
		// The server has the rows; show them locally until the next refresh.
		s.logger.Warn("Re-fetch after import failed, applying locally", map[string]interface{}{"error": err})
		accepted := s.store.AddStudents(ctx, fresh)
		return ImportResult{Accepted: accepted, Dropped: len(candidates) - len(accepted), Mirrored: true}, nil
	}
	s.replaceIfChanged(ctx, students)

	result := ImportResult{Mirrored: true, Accepted: []models.Student{}}
	wanted := make(map[int]bool, len(fresh))
	for _, c := range fresh {
		wanted[c.ID] = true
	}
	for _, st := range students {
		if wanted[st.ID] && !known[st.ID] {
			result.Accepted = append(result.Accepted, st)
		}
	}
	result.Dropped = len(candidates) - len(result.Accepted)
	return result, nil
}

// EvaluationResult reports the transition and its side effects.
type EvaluationResult struct {
	queue.Outcome
	Mirrored bool `json:"mirrored"`
	Archived bool `json:"archived"`
}

// Evaluate validates the scores against the criteria, applies the
// transition locally and then mirrors it. Mirror and archive failures are
// logged and reported in the result, never returned as errors. An unknown
// student yields Found=false and no error.
func (s *Syncer) Evaluate(ctx context.Context, studentID int, evaluation models.Evaluation) (EvaluationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.store.Snapshot()
	if check := validation.ValidateEvaluation(evaluation, snap.Criteria); !check.Valid {
		return EvaluationResult{}, apperrors.NewEvaluationInvalidError(check.Summary())
	}
	evaluation = evaluation.WithFinalScore()

	result := EvaluationResult{Outcome: s.store.CompleteEvaluation(ctx, studentID, evaluation)}
	if !result.Found {
		return result, nil
	}

	if s.remote != nil {
		result.Mirrored = s.mirrorEvaluation(ctx, studentID, evaluation)
	}

	if s.archive != nil {
		completed, ok := s.store.Snapshot().Student(studentID)
		if ok {
			if err := s.archive.RecordEvaluation(ctx, completed); err != nil {
				s.logger.Warn("Failed to archive evaluation", map[string]interface{}{
					"studentId": studentID,
					"error":     err,
				})
			} else {
				result.Archived = true
			}
		}
	}
	return result, nil
}

// mirrorEvaluation posts the evaluation and reconciles with the server's
// student list. Caller holds mu.
func (s *Syncer) mirrorEvaluation(ctx context.Context, studentID int, evaluation models.Evaluation) bool {
	if err := s.remote.Evaluate(ctx, studentID, evaluation); err != nil {
		metrics.MirrorFailures.WithLabelValues("evaluate").Inc()
		s.logger.Warn("Failed to mirror evaluation", map[string]interface{}{
			"studentId": studentID,
			"error":     err,
		})
		return false
	}

	students, err := s.remote.Students(ctx)
	if err != nil {
		s.logger.Warn("Re-fetch after evaluation failed", map[string]interface{}{"error": err})
		return true
	}
	s.replaceIfChanged(ctx, students)
	return true
}
