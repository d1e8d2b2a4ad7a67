// internal/api/server_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"exam-queue/internal/archive"
	apphttp "exam-queue/internal/common/http"
	"exam-queue/internal/common/logger"
	"exam-queue/internal/lookup"
	"exam-queue/internal/models"
	"exam-queue/internal/seed"
	"exam-queue/internal/store"
	"exam-queue/internal/syncer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeLister struct {
	records []archive.Record
	err     error
}

func (f *fakeLister) ListByCommittee(_ context.Context, committeeID int) ([]archive.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []archive.Record{}
	for _, r := range f.records {
		if r.CommitteeID == committeeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func setupServer(t *testing.T, lister EvaluationLister) (*httptest.Server, *store.Store) {
	log := logger.NewTestLogger(t)
	st := store.New(nil, log)
	st.Load(seed.Dataset())

	sy := syncer.New(syncer.Config{}, st, nil, nil, nil, nil, log)
	t.Cleanup(sy.Close)

	facade := lookup.New(st, 5*time.Minute, 3)
	srv := httptest.NewServer(NewServer(facade, sy, lister, log).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func post(t *testing.T, url, contentType, body string, out interface{}) *http.Response {
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// ==========================
// Read Endpoint Tests
// ==========================

func TestServer_Health(t *testing.T) {
	srv, st := setupServer(t, nil)

	var body map[string]interface{}
	resp := getJSON(t, srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, st.Version(), body["version"])
	assert.NotEmpty(t, resp.Header.Get(apphttp.RequestIDHeader))
}

func TestServer_KeepsCallerRequestID(t *testing.T) {
	srv, _ := setupServer(t, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(apphttp.RequestIDHeader, "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-42", resp.Header.Get(apphttp.RequestIDHeader))
}

func TestServer_Committees(t *testing.T) {
	srv, _ := setupServer(t, nil)

	var committees []models.Committee
	resp := getJSON(t, srv.URL+"/api/committees", &committees)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, committees, 2)

	var committee models.Committee
	resp = getJSON(t, srv.URL+"/api/committees/2", &committee)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Mathematics Committee", committee.Name)

	var students []models.Student
	resp = getJSON(t, srv.URL+"/api/committees/1/students", &students)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, students, 6)

	var criteria []models.Criterion
	getJSON(t, srv.URL+"/api/criteria", &criteria)
	assert.Len(t, criteria, 4)
}

func TestServer_CommitteeNotFound(t *testing.T) {
	srv, _ := setupServer(t, nil)

	for _, path := range []string{
		"/api/committees/9",
		"/api/committees/abc",
		"/api/committees/9/students",
		"/api/committees/9/display",
		"/api/committees/9/terminal",
	} {
		t.Run(path, func(t *testing.T) {
			var body errorBody
			resp := getJSON(t, srv.URL+path, &body)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Equal(t, "COMMITTEE_NOT_FOUND", body.Error.Code)
		})
	}
}

func TestServer_Display(t *testing.T) {
	srv, _ := setupServer(t, nil)

	var view lookup.Display
	resp := getJSON(t, srv.URL+"/api/committees/1/display", &view)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, view.Current)
	assert.Equal(t, 101, view.Current.ID)
	assert.Len(t, view.Upcoming, 3, "default limit")
	assert.Equal(t, 4, view.Waiting)

	getJSON(t, srv.URL+"/api/committees/1/display?limit=1", &view)
	require.Len(t, view.Upcoming, 1)
	assert.Equal(t, 102, view.Upcoming[0].ID)

	var body errorBody
	resp = getJSON(t, srv.URL+"/api/committees/1/display?limit=-2", &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BAD_REQUEST", body.Error.Code)
}

func TestServer_Terminal(t *testing.T) {
	srv, _ := setupServer(t, nil)

	var view lookup.Terminal
	resp := getJSON(t, srv.URL+"/api/committees/2/terminal", &view)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, view.Current)
	assert.Equal(t, 201, view.Current.ID)
	require.NotNil(t, view.Next)
	assert.Equal(t, 202, view.Next.ID)
	assert.Equal(t, 10.0, view.Defaults[1])
	assert.False(t, view.Idle)
}

func TestServer_Student(t *testing.T) {
	srv, _ := setupServer(t, nil)

	var student models.Student
	resp := getJSON(t, srv.URL+"/api/students/105", &student)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusCompleted, student.Status)
	require.NotNil(t, student.Evaluation)

	var body errorBody
	resp = getJSON(t, srv.URL+"/api/students/999", &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "STUDENT_NOT_FOUND", body.Error.Code)
}

func TestServer_StudentStatus(t *testing.T) {
	srv, _ := setupServer(t, nil)

	var status lookup.QueueStatus
	resp := getJSON(t, srv.URL+"/api/students/103/status", &status)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, status.Position)

	var body errorBody
	resp = getJSON(t, srv.URL+"/api/students/x1/status", &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Dashboard(t *testing.T) {
	srv, _ := setupServer(t, nil)

	var dash lookup.Dashboard
	resp := getJSON(t, srv.URL+"/api/dashboard", &dash)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, dash.Committees, 2)
}

func TestServer_Evaluations(t *testing.T) {
	lister := &fakeLister{records: []archive.Record{
		{StudentID: 105, CommitteeID: 1, FinalScore: 50},
		{StudentID: 204, CommitteeID: 2, FinalScore: 45},
	}}
	srv, _ := setupServer(t, lister)

	var records []archive.Record
	resp := getJSON(t, srv.URL+"/api/committees/1/evaluations", &records)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, records, 1)
	assert.Equal(t, 105, records[0].StudentID)

	lister.err = errors.New("connection reset")
	var body errorBody
	resp = getJSON(t, srv.URL+"/api/committees/1/evaluations", &body)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}

func TestServer_EvaluationsWithoutArchive(t *testing.T) {
	srv, _ := setupServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/committees/1/evaluations")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := setupServer(t, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")
}

// ==========================
// Mutation Endpoint Tests
// ==========================

func TestServer_Import(t *testing.T) {
	srv, st := setupServer(t, nil)

	csvBody := "id,name,specialty,committeeId\n301,Hana Adel,Mathematics,2\n302,Rami Nabil,Computer Science,1\n"
	var result syncer.ImportResult
	resp := post(t, srv.URL+"/api/students/import", "text/csv", csvBody, &result)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, result.Accepted, 2)
	assert.Zero(t, result.Dropped)

	imported, ok := st.Snapshot().Student(301)
	require.True(t, ok)
	assert.Equal(t, models.StatusWaiting, imported.Status)
	assert.Len(t, st.Snapshot().Students, 13)
}

func TestServer_ImportSemicolon(t *testing.T) {
	srv, st := setupServer(t, nil)

	csvBody := "id;name;specialty;committeeId\n301;Hana Adel;Mathematics;2\n"
	resp := post(t, srv.URL+"/api/students/import?delimiter=semicolon", "text/csv", csvBody, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, ok := st.Snapshot().Student(301)
	assert.True(t, ok)
}

func TestServer_ImportRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "existing id", body: "id,name,specialty,committeeId\n101,Someone,CS,1\n"},
		{name: "unknown committee", body: "id,name,specialty,committeeId\n301,Someone,CS,7\n"},
		{name: "empty", body: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, st := setupServer(t, nil)
			before := st.Version()

			var body errorBody
			resp := post(t, srv.URL+"/api/students/import", "text/csv", tt.body, &body)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assert.Equal(t, "IMPORT_VALIDATION_FAILED", body.Error.Code)
			assert.Equal(t, before, st.Version())
		})
	}
}

func TestServer_Evaluate(t *testing.T) {
	srv, st := setupServer(t, nil)

	var result syncer.EvaluationResult
	resp := post(t, srv.URL+"/api/students/101/evaluate", "application/json",
		`{"scores":{"1":18,"2":16,"3":17,"4":15},"notes":"Solid"}`, &result)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, result.Found)
	assert.Equal(t, 102, result.PromotedID)
	assert.False(t, result.Mirrored)

	done, ok := st.Snapshot().Student(101)
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.Evaluation.FinalScore)
	assert.Equal(t, 66.0, *done.Evaluation.FinalScore)
}

func TestServer_EvaluateErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{name: "unknown student", path: "/api/students/999/evaluate", body: `{"scores":{"1":10}}`, status: http.StatusNotFound, code: "STUDENT_NOT_FOUND"},
		{name: "bad id", path: "/api/students/abc/evaluate", body: `{"scores":{"1":10}}`, status: http.StatusNotFound, code: "STUDENT_NOT_FOUND"},
		{name: "score above max", path: "/api/students/101/evaluate", body: `{"scores":{"1":25}}`, status: http.StatusUnprocessableEntity, code: "EVALUATION_INVALID"},
		{name: "unknown criterion", path: "/api/students/101/evaluate", body: `{"scores":{"9":5}}`, status: http.StatusUnprocessableEntity, code: "EVALUATION_INVALID"},
		{name: "malformed json", path: "/api/students/101/evaluate", body: `{"scores":`, status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "unknown field", path: "/api/students/101/evaluate", body: `{"grade":5}`, status: http.StatusBadRequest, code: "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, st := setupServer(t, nil)
			before := st.Version()

			var body errorBody
			resp := post(t, srv.URL+tt.path, "application/json", tt.body, &body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, before, st.Version())
		})
	}
}
