// internal/archive/archive_test.go
package archive

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	apperrors "exam-queue/internal/common/errors"
	"exam-queue/internal/common/logger"
	"exam-queue/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func createTestArchive(t *testing.T, db *sql.DB) *Archive {
	a := New(db, logger.NewTestLogger(t))
	a.now = func() time.Time { return fixedNow }
	return a
}

func createEvaluatedStudent() models.Student {
	return models.Student{
		ID: 101, Name: "Ahmed Mahmoud", CommitteeID: 1, Status: models.StatusCompleted,
		Evaluation: &models.Evaluation{Scores: map[int]float64{1: 18, 2: 15}, Notes: "solid"},
	}
}

// ==========================
// Write Tests
// ==========================

func TestArchive_EnsureSchema(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS exam_evaluations`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, createTestArchive(t, db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_RecordEvaluation(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec(`INSERT INTO exam_evaluations .* ON CONFLICT \(student_id\) DO UPDATE`).
		WithArgs(101, 1, "Ahmed Mahmoud", []byte(`{"1":18,"2":15}`), "solid", 33.0, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := createTestArchive(t, db).RecordEvaluation(context.Background(), createEvaluatedStudent())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_RecordEvaluationKeepsGivenFinalScore(t *testing.T) {
	db, mock := setupMockDB(t)
	student := createEvaluatedStudent()
	final := 40.0
	student.Evaluation.FinalScore = &final

	mock.ExpectExec(`INSERT INTO exam_evaluations`).
		WithArgs(101, 1, "Ahmed Mahmoud", sqlmock.AnyArg(), "solid", 40.0, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, createTestArchive(t, db).RecordEvaluation(context.Background(), student))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_RecordEvaluationErrors(t *testing.T) {
	t.Run("no evaluation", func(t *testing.T) {
		db, _ := setupMockDB(t)
		student := createEvaluatedStudent()
		student.Evaluation = nil

		err := createTestArchive(t, db).RecordEvaluation(context.Background(), student)
		assert.ErrorIs(t, err, ErrNotEvaluated)
	})

	t.Run("database error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`INSERT INTO exam_evaluations`).WillReturnError(errors.New("connection reset"))

		err := createTestArchive(t, db).RecordEvaluation(context.Background(), createEvaluatedStudent())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeArchiveWriteFailed))
		assert.True(t, apperrors.IsRetryableErrorCode(apperrors.ErrCodeArchiveWriteFailed))
	})
}

// ==========================
// Read Tests
// ==========================

func TestArchive_ListByCommittee(t *testing.T) {
	db, mock := setupMockDB(t)
	rows := sqlmock.NewRows([]string{"student_id", "student_name", "scores", "notes", "final_score", "recorded_at"}).
		AddRow(105, "Youssef Abdullah", []byte(`{"1":18,"2":15,"3":17}`), "Excellent performance", 50.0, fixedNow).
		AddRow(101, "Ahmed Mahmoud", []byte(`{"1":18}`), "", 18.0, fixedNow.Add(time.Minute))
	mock.ExpectQuery(`SELECT student_id, student_name, scores, notes, final_score, recorded_at FROM exam_evaluations WHERE committee_id = \$1`).
		WithArgs(1).
		WillReturnRows(rows)

	records, err := createTestArchive(t, db).ListByCommittee(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 105, records[0].StudentID)
	assert.Equal(t, 17.0, records[0].Scores[3])
	assert.Equal(t, 1, records[1].CommitteeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_ListByCommitteeBadScores(t *testing.T) {
	db, mock := setupMockDB(t)
	rows := sqlmock.NewRows([]string{"student_id", "student_name", "scores", "notes", "final_score", "recorded_at"}).
		AddRow(105, "Youssef", []byte(`nope`), "", 0.0, fixedNow)
	mock.ExpectQuery(`SELECT .* FROM exam_evaluations`).WithArgs(1).WillReturnRows(rows)

	_, err := createTestArchive(t, db).ListByCommittee(context.Background(), 1)
	assert.Error(t, err)
}
