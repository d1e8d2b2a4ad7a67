// internal/lookup/lookup.go

// Package lookup serves read-only views of the current store snapshot to
// the dashboard, committee terminal, public display and student lookup.
package lookup

import (
	"strconv"
	"strings"
	"time"

	"exam-queue/internal/models"
	"exam-queue/internal/queue"
	"exam-queue/internal/store"
)

// Snapshotter is the read side of the store.
type Snapshotter interface {
	Snapshot() *store.Snapshot
}

type Facade struct {
	store        Snapshotter
	perStudent   time.Duration
	displayLimit int
}

func New(st Snapshotter, perStudent time.Duration, displayLimit int) *Facade {
	if displayLimit <= 0 {
		displayLimit = 5
	}
	return &Facade{store: st, perStudent: perStudent, displayLimit: displayLimit}
}

func (f *Facade) Committees() []models.Committee {
	return f.store.Snapshot().Committees
}

func (f *Facade) Criteria() []models.Criterion {
	return f.store.Snapshot().Criteria
}

func (f *Facade) CommitteeByID(id int) (models.Committee, bool) {
	return f.store.Snapshot().Committee(id)
}

// StudentsByCommittee returns the committee's students in queue order.
func (f *Facade) StudentsByCommittee(committeeID int) []models.Student {
	return queue.StudentsForCommittee(f.store.Snapshot().Students, committeeID)
}

func (f *Facade) CurrentStudent(committeeID int) (models.Student, bool) {
	return queue.CurrentStudent(f.store.Snapshot().Students, committeeID)
}

func (f *Facade) NextStudent(committeeID int) (models.Student, bool) {
	return queue.NextStudent(f.store.Snapshot().Students, committeeID)
}

// ParseStudentID accepts a decimal id with surrounding whitespace.
func ParseStudentID(raw string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// FindStudent resolves a user-typed id. Anything that is not a positive
// integer is simply not found.
func (f *Facade) FindStudent(raw string) (models.Student, bool) {
	id, ok := ParseStudentID(raw)
	if !ok {
		return models.Student{}, false
	}
	return f.store.Snapshot().Student(id)
}

// QueueState is what a student sees when looking themselves up.
type QueueState string

const (
	StateCompleted  QueueState = "completed"
	StateInProgress QueueState = "in_progress"
	StateWaiting    QueueState = "waiting"
	// StateUnranked covers a student whose status keeps them out of the
	// live ordering.
	StateUnranked QueueState = "unranked"
)

type QueueStatus struct {
	Student   models.Student    `json:"student"`
	Committee *models.Committee `json:"committee,omitempty"`
	State     QueueState        `json:"state"`
	// Rank is the 0-based index among Waiting and InProgress students.
	Rank int `json:"rank"`
	// Position is Rank+1, the number shown to the student.
	Position             int           `json:"position"`
	EstimatedWait        time.Duration `json:"-"`
	EstimatedWaitMinutes int           `json:"estimatedWaitMinutes"`
}

// QueueStatus computes the student's place in their committee's live queue
// and the estimated wait as rank times the per-student duration.
func (f *Facade) QueueStatus(raw string) (QueueStatus, bool) {
	id, ok := ParseStudentID(raw)
	if !ok {
		return QueueStatus{}, false
	}
	snap := f.store.Snapshot()
	student, ok := snap.Student(id)
	if !ok {
		return QueueStatus{}, false
	}

	status := QueueStatus{Student: student}
	if c, ok := snap.Committee(student.CommitteeID); ok {
		status.Committee = &c
	}

	switch student.Status {
	case models.StatusCompleted:
		status.State = StateCompleted
		return status, true
	case models.StatusInProgress:
		status.State = StateInProgress
		status.Position = 1
		return status, true
	}

	status.State = StateUnranked
	for i, s := range queue.ActiveQueue(snap.Students, student.CommitteeID) {
		if s.ID == student.ID {
			status.State = StateWaiting
			status.Rank = i
			status.Position = i + 1
			status.EstimatedWait = time.Duration(i) * f.perStudent
			status.EstimatedWaitMinutes = int(status.EstimatedWait / time.Minute)
			break
		}
	}
	return status, true
}

// Dashboard holds the admin overview counters.
type Dashboard struct {
	Total      int              `json:"total"`
	Completed  int              `json:"completed"`
	Remaining  int              `json:"remaining"`
	Committees []CommitteeStats `json:"committees"`
}

type CommitteeStats struct {
	CommitteeID int    `json:"committeeId"`
	Name        string `json:"name"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	Remaining   int    `json:"remaining"`
	InProgress  bool   `json:"inProgress"`
}

func (f *Facade) Dashboard() Dashboard {
	snap := f.store.Snapshot()

	byCommittee := make(map[int]*CommitteeStats, len(snap.Committees))
	out := Dashboard{Committees: make([]CommitteeStats, 0, len(snap.Committees))}
	for _, c := range snap.Committees {
		out.Committees = append(out.Committees, CommitteeStats{CommitteeID: c.ID, Name: c.Name})
	}
	for i := range out.Committees {
		byCommittee[out.Committees[i].CommitteeID] = &out.Committees[i]
	}

	for _, s := range snap.Students {
		out.Total++
		done := s.Status == models.StatusCompleted
		if done {
			out.Completed++
		}
		stats, ok := byCommittee[s.CommitteeID]
		if !ok {
			continue
		}
		stats.Total++
		if done {
			stats.Completed++
		}
		if s.Status == models.StatusInProgress {
			stats.InProgress = true
		}
	}

	out.Remaining = out.Total - out.Completed
	for i := range out.Committees {
		out.Committees[i].Remaining = out.Committees[i].Total - out.Committees[i].Completed
	}
	return out
}

// Display is the public screen of one committee.
type Display struct {
	Committee models.Committee `json:"committee"`
	Current   *models.Student  `json:"current,omitempty"`
	Upcoming  []models.Student `json:"upcoming"`
	Waiting   int              `json:"waiting"`
}

// Display returns the current student and the first limit Waiting
// students. limit <= 0 uses the configured default.
func (f *Facade) Display(committeeID, limit int) (Display, bool) {
	snap := f.store.Snapshot()
	committee, ok := snap.Committee(committeeID)
	if !ok {
		return Display{}, false
	}
	if limit <= 0 {
		limit = f.displayLimit
	}

	out := Display{Committee: committee}
	if cur, ok := queue.CurrentStudent(snap.Students, committeeID); ok {
		out.Current = &cur
	}
	waiting := queue.WaitingStudents(snap.Students, committeeID)
	out.Waiting = len(waiting)
	if len(waiting) > limit {
		waiting = waiting[:limit]
	}
	out.Upcoming = waiting
	return out, true
}

// Terminal is the committee's working view.
type Terminal struct {
	Committee models.Committee   `json:"committee"`
	Current   *models.Student    `json:"current,omitempty"`
	Next      *models.Student    `json:"next,omitempty"`
	Waiting   []models.Student   `json:"waiting"`
	Criteria  []models.Criterion `json:"criteria"`
	Defaults  map[int]float64    `json:"defaultScores"`
	Completed []models.Student   `json:"completed"`
	Idle      bool               `json:"idle"`
}

// Terminal returns everything a committee needs to run its queue. Default
// scores start each criterion at half its maximum.
func (f *Facade) Terminal(committeeID int) (Terminal, bool) {
	snap := f.store.Snapshot()
	committee, ok := snap.Committee(committeeID)
	if !ok {
		return Terminal{}, false
	}

	out := Terminal{
		Committee: committee,
		Waiting:   queue.WaitingStudents(snap.Students, committeeID),
		Criteria:  snap.Criteria,
		Defaults:  make(map[int]float64, len(snap.Criteria)),
		Completed: make([]models.Student, 0),
	}
	if cur, ok := queue.CurrentStudent(snap.Students, committeeID); ok {
		out.Current = &cur
	}
	if next, ok := queue.NextStudent(snap.Students, committeeID); ok {
		out.Next = &next
	}
	for _, s := range queue.StudentsForCommittee(snap.Students, committeeID) {
		if s.Status == models.StatusCompleted {
			out.Completed = append(out.Completed, s)
		}
	}
	for _, c := range snap.Criteria {
		out.Defaults[c.ID] = c.MaxScore / 2
	}
	out.Idle = out.Current == nil && out.Next == nil
	return out, true
}

// StudentIDs returns the ids currently in use, for import validation.
func (f *Facade) StudentIDs() map[int]bool {
	students := f.store.Snapshot().Students
	out := make(map[int]bool, len(students))
	for _, s := range students {
		out[s.ID] = true
	}
	return out
}

// CommitteeIDs returns the known committee ids.
func (f *Facade) CommitteeIDs() map[int]bool {
	committees := f.store.Snapshot().Committees
	out := make(map[int]bool, len(committees))
	for _, c := range committees {
		out[c.ID] = true
	}
	return out
}

// Version is the store version the views are computed from.
func (f *Facade) Version() uint64 {
	return f.store.Snapshot().Version
}
