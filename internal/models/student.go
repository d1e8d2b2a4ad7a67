// internal/models/student.go
package models

// StudentStatus is the lifecycle state of a student in a committee queue.
type StudentStatus string

const (
	StatusWaiting    StudentStatus = "WAITING"
	StatusInProgress StudentStatus = "IN_PROGRESS"
	StatusCompleted  StudentStatus = "COMPLETED"
)

// Valid reports whether s is one of the known statuses.
func (s StudentStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Queued reports whether the student still occupies a place in the queue.
func (s StudentStatus) Queued() bool {
	return s == StatusWaiting || s == StatusInProgress
}

type Student struct {
	ID            int           `json:"id"`
	Name          string        `json:"name"`
	Specialty     string        `json:"specialty"`
	CommitteeID   int           `json:"committeeId"`
	Status        StudentStatus `json:"status"`
	QueuePosition int           `json:"queuePosition"`
	Evaluation    *Evaluation   `json:"evaluation,omitempty"`
}

// ImportRecord is the wire shape of a student sent to the remote import endpoint.
type ImportRecord struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Specialty   string `json:"specialty"`
	CommitteeID int    `json:"committeeId"`
}

// ToImportRecord drops the queue state that the server assigns itself.
func (s Student) ToImportRecord() ImportRecord {
	return ImportRecord{
		ID:          s.ID,
		Name:        s.Name,
		Specialty:   s.Specialty,
		CommitteeID: s.CommitteeID,
	}
}

// CloneStudents copies the slice and every attached evaluation so callers
// can hand it out without sharing mutable state.
func CloneStudents(in []Student) []Student {
	if in == nil {
		return nil
	}
	out := make([]Student, len(in))
	for i, s := range in {
		if s.Evaluation != nil {
			ev := s.Evaluation.Clone()
			s.Evaluation = &ev
		}
		out[i] = s
	}
	return out
}
