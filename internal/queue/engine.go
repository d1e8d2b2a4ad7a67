// internal/queue/engine.go

// Package queue holds the pure ordering and transition rules of a committee
// queue. Nothing here blocks or mutates its inputs.
package queue

import (
	"sort"

	"exam-queue/internal/models"
)

// Outcome describes what CompleteEvaluation did.
type Outcome struct {
	StudentID   int  `json:"studentId"`
	CommitteeID int  `json:"committeeId"`
	Found       bool `json:"found"`
	// Reevaluated is set when the student was already Completed; the
	// evaluation is replaced and nobody is promoted.
	Reevaluated bool `json:"reevaluated"`
	// PromotedID is the student moved to InProgress, or 0.
	PromotedID int `json:"promotedId,omitempty"`
	// Idle is set when the committee is left without an InProgress student.
	Idle bool `json:"idle"`
}

// Promoted reports whether a student was moved to InProgress.
func (o Outcome) Promoted() bool {
	return o.PromotedID != 0
}

// StudentsForCommittee returns the committee's students ordered by queue
// position. The sort is stable so equal positions keep their input order.
func StudentsForCommittee(students []models.Student, committeeID int) []models.Student {
	out := make([]models.Student, 0)
	for _, s := range students {
		if s.CommitteeID == committeeID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QueuePosition < out[j].QueuePosition
	})
	return out
}

// CurrentStudent returns the committee's InProgress student.
func CurrentStudent(students []models.Student, committeeID int) (models.Student, bool) {
	for _, s := range StudentsForCommittee(students, committeeID) {
		if s.Status == models.StatusInProgress {
			return s, true
		}
	}
	return models.Student{}, false
}

// NextStudent returns the first Waiting student in queue order.
func NextStudent(students []models.Student, committeeID int) (models.Student, bool) {
	waiting := WaitingStudents(students, committeeID)
	if len(waiting) == 0 {
		return models.Student{}, false
	}
	return waiting[0], true
}

// WaitingStudents returns the committee's Waiting students in queue order.
func WaitingStudents(students []models.Student, committeeID int) []models.Student {
	return filterStatus(StudentsForCommittee(students, committeeID), models.StatusWaiting)
}

// ActiveQueue returns the Waiting and InProgress students of a committee in
// queue order. Its indexes are the ranks used for wait estimates.
func ActiveQueue(students []models.Student, committeeID int) []models.Student {
	ordered := StudentsForCommittee(students, committeeID)
	out := ordered[:0:0]
	for _, s := range ordered {
		if s.Status.Queued() {
			out = append(out, s)
		}
	}
	return out
}

// CompleteEvaluation marks the student Completed with the given evaluation
// and promotes the head of the committee's Waiting queue. It returns a new
// slice; the input is never modified. An unknown id returns the input
// unchanged with Outcome.Found false.
//
// A committee never ends up with two InProgress students: promotion only
// happens when nobody else in the committee is InProgress, and a repeated
// evaluation of a Completed student only replaces the evaluation.
func CompleteEvaluation(students []models.Student, studentID int, evaluation models.Evaluation) ([]models.Student, Outcome) {
	idx := indexOf(students, studentID)
	if idx == -1 {
		return students, Outcome{StudentID: studentID}
	}

	next := models.CloneStudents(students)
	target := next[idx]
	outcome := Outcome{
		StudentID:   studentID,
		CommitteeID: target.CommitteeID,
		Found:       true,
		Reevaluated: target.Status == models.StatusCompleted,
	}

	ev := evaluation.Clone()
	target.Status = models.StatusCompleted
	target.Evaluation = &ev
	next[idx] = target

	if outcome.Reevaluated {
		_, busy := CurrentStudent(next, target.CommitteeID)
		outcome.Idle = !busy
		return next, outcome
	}

	if _, busy := CurrentStudent(next, target.CommitteeID); busy {
		return next, outcome
	}

	head, ok := NextStudent(next, target.CommitteeID)
	if !ok {
		outcome.Idle = true
		return next, outcome
	}

	headIdx := indexOf(next, head.ID)
	next[headIdx].Status = models.StatusInProgress
	outcome.PromotedID = head.ID
	return next, outcome
}

// NextPositions returns, per committee, the highest queue position in use,
// completed students included, so positions are never handed out twice.
func NextPositions(students []models.Student) map[int]int {
	maxPos := make(map[int]int)
	for _, s := range students {
		if s.QueuePosition > maxPos[s.CommitteeID] {
			maxPos[s.CommitteeID] = s.QueuePosition
		}
	}
	return maxPos
}

// AppendStudents adds candidates whose id is not yet known. Each accepted
// candidate is forced to Waiting, loses any evaluation, and takes the next
// free position of its committee in input order. It returns the combined
// slice and the accepted students.
func AppendStudents(existing, candidates []models.Student) ([]models.Student, []models.Student) {
	known := make(map[int]struct{}, len(existing)+len(candidates))
	for _, s := range existing {
		known[s.ID] = struct{}{}
	}
	positions := NextPositions(existing)

	combined := models.CloneStudents(existing)
	if combined == nil {
		combined = make([]models.Student, 0, len(candidates))
	}
	accepted := make([]models.Student, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := known[c.ID]; dup {
			continue
		}
		known[c.ID] = struct{}{}

		positions[c.CommitteeID]++
		c.Status = models.StatusWaiting
		c.QueuePosition = positions[c.CommitteeID]
		c.Evaluation = nil

		combined = append(combined, c)
		accepted = append(accepted, c)
	}
	return combined, accepted
}

// InProgressCounts returns the number of InProgress students per committee.
func InProgressCounts(students []models.Student) map[int]int {
	counts := make(map[int]int)
	for _, s := range students {
		if s.Status == models.StatusInProgress {
			counts[s.CommitteeID]++
		}
	}
	return counts
}

func filterStatus(students []models.Student, status models.StudentStatus) []models.Student {
	out := students[:0:0]
	for _, s := range students {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out
}

func indexOf(students []models.Student, id int) int {
	for i, s := range students {
		if s.ID == id {
			return i
		}
	}
	return -1
}
