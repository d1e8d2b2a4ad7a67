// internal/archive/archive.go

// Package archive keeps a durable Postgres copy of completed evaluations.
// It is optional and never part of the queue's consistency path.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "exam-queue/internal/common/errors"
	"exam-queue/internal/common/logger"
	"exam-queue/internal/models"
)

var ErrNotEvaluated = errors.New("student has no evaluation")

const createTableSQL = `CREATE TABLE IF NOT EXISTS exam_evaluations (
	student_id   INTEGER PRIMARY KEY,
	committee_id INTEGER NOT NULL,
	student_name TEXT NOT NULL,
	scores       JSONB NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	final_score  DOUBLE PRECISION NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL
)`

// Re-evaluations overwrite the earlier row.
const upsertSQL = `INSERT INTO exam_evaluations (student_id, committee_id, student_name, scores, notes, final_score, recorded_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (student_id) DO UPDATE SET committee_id = EXCLUDED.committee_id, student_name = EXCLUDED.student_name, scores = EXCLUDED.scores, notes = EXCLUDED.notes, final_score = EXCLUDED.final_score, recorded_at = EXCLUDED.recorded_at`

const listByCommitteeSQL = `SELECT student_id, student_name, scores, notes, final_score, recorded_at FROM exam_evaluations WHERE committee_id = $1 ORDER BY recorded_at`

// Record is one archived evaluation.
type Record struct {
	StudentID   int             `json:"studentId"`
	StudentName string          `json:"studentName"`
	CommitteeID int             `json:"committeeId"`
	Scores      map[int]float64 `json:"scores"`
	Notes       string          `json:"notes"`
	FinalScore  float64         `json:"finalScore"`
	RecordedAt  time.Time       `json:"recordedAt"`
}

type Archive struct {
	db     *sql.DB
	now    func() time.Time
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Archive {
	return &Archive{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.Component("archive"),
	}
}

func (a *Archive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, createTableSQL); err != nil {
		return apperrors.NewArchiveWriteFailedError(fmt.Errorf("create table: %w", err))
	}
	return nil
}

// RecordEvaluation upserts the student's evaluation.
func (a *Archive) RecordEvaluation(ctx context.Context, student models.Student) error {
	if student.Evaluation == nil {
		return fmt.Errorf("%w: student %d", ErrNotEvaluated, student.ID)
	}
	ev := student.Evaluation.WithFinalScore()

	scores, err := json.Marshal(nonNilScores(ev.Scores))
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}

	_, err = a.db.ExecContext(ctx, upsertSQL,
		student.ID, student.CommitteeID, student.Name, scores, ev.Notes, *ev.FinalScore, a.now())
	if err != nil {
		return apperrors.NewArchiveWriteFailedError(err)
	}

	a.logger.Debug("Evaluation archived", map[string]interface{}{
		"studentId":  student.ID,
		"finalScore": *ev.FinalScore,
	})
	return nil
}

// ListByCommittee returns archived evaluations in the order they were
// recorded.
func (a *Archive) ListByCommittee(ctx context.Context, committeeID int) ([]Record, error) {
	rows, err := a.db.QueryContext(ctx, listByCommitteeSQL, committeeID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec := Record{CommitteeID: committeeID}
		var scores []byte
		if err := rows.Scan(&rec.StudentID, &rec.StudentName, &scores, &rec.Notes, &rec.FinalScore, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		if err := json.Unmarshal(scores, &rec.Scores); err != nil {
			return nil, fmt.Errorf("decode scores of student %d: %w", rec.StudentID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return out, nil
}

func nonNilScores(in map[int]float64) map[int]float64 {
	if in == nil {
		return map[int]float64{}
	}
	return in
}
