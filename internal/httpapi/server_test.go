package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Zchasse63/voice-fit-sub008/internal/analytics"
	"github.com/Zchasse63/voice-fit-sub008/internal/extract"
	"github.com/Zchasse63/voice-fit-sub008/internal/health"
	"github.com/Zchasse63/voice-fit-sub008/internal/httpapi"
	"github.com/Zchasse63/voice-fit-sub008/internal/pipeline"
	"github.com/Zchasse63/voice-fit-sub008/internal/registry"
	"github.com/Zchasse63/voice-fit-sub008/internal/resolve"
	"github.com/Zchasse63/voice-fit-sub008/internal/session"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

// stubExtractor returns canned fields for every transcript.
type stubExtractor struct {
	fields extract.Fields
	err    error
}

func (s *stubExtractor) Extract(_ context.Context, _ string, _ *extract.Hint) (extract.Fields, error) {
	return s.fields, s.err
}

func newServer(t *testing.T, ex pipeline.Extractor) *httpapi.Server {
	t.Helper()

	store := registry.NewMemStore([]registry.Exercise{
		{ID: "bench-press", Name: "Barbell Bench Press", Synonyms: []string{"bench press", "bench"}},
	})
	resolver, err := resolve.New(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("resolve.New: %v", err)
	}
	pipe, err := pipeline.New(pipeline.Config{
		Extractor: ex,
		Resolver:  resolver,
		Registry:  store,
		Sessions:  session.NewManager(),
		Analytics: analytics.NewFileStore(filepath.Join(t.TempDir(), "records.jsonl")),
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return httpapi.New(pipe, health.New(), nil, nil)
}

func benchExtractor() *stubExtractor {
	return &stubExtractor{fields: extract.Fields{
		ExerciseName: "bench press",
		Weight:       fptr(225),
		WeightUnit:   "lbs",
		Reps:         iptr(8),
		RPE:          fptr(8),
		Confidence:   0.93,
	}}
}

func doJSON(t *testing.T, srv *httpapi.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHandleCommand_OK(t *testing.T) {
	t.Parallel()
	srv := newServer(t, benchExtractor())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/commands",
		`{"transcript": "bench press 225 for 8 at RPE 8", "user_id": "u1", "workout_id": "w1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body)
	}
	var result pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Verdict != "auto_accept" {
		t.Errorf("verdict = %q, want auto_accept", result.Verdict)
	}
	if result.Command == nil || result.Command.ExerciseID != "bench-press" {
		t.Errorf("command = %+v, want bench-press", result.Command)
	}
	if result.Session.SetCount != 1 {
		t.Errorf("session.set_count = %d, want 1", result.Session.SetCount)
	}
}

func TestHandleCommand_MalformedJSON(t *testing.T) {
	t.Parallel()
	srv := newServer(t, benchExtractor())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/commands", `{"transcript": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCommand_MissingFields(t *testing.T) {
	t.Parallel()
	srv := newServer(t, benchExtractor())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/commands", `{"transcript": "bench press"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400; body: %s", rec.Code, rec.Body)
	}
}

func TestHandleCommand_OracleDown(t *testing.T) {
	t.Parallel()
	srv := newServer(t, &stubExtractor{err: extract.ErrUnavailable})

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/commands",
		`{"transcript": "bench press 225 for 8", "user_id": "u1", "workout_id": "w1"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503; body: %s", rec.Code, rec.Body)
	}
}

func TestEndWorkout_Lifecycle(t *testing.T) {
	t.Parallel()
	srv := newServer(t, benchExtractor())

	doJSON(t, srv, http.MethodPost, "/api/v1/commands",
		`{"transcript": "bench press 225 for 8", "user_id": "u1", "workout_id": "w1"}`)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/workouts/end", `{"user_id": "u1", "workout_id": "w1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("end: status = %d, want 200; body: %s", rec.Code, rec.Body)
	}
	var view pipeline.SessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.State != "closed" {
		t.Errorf("state = %q, want closed", view.State)
	}

	// Second end fails.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/workouts/end", `{"user_id": "u1", "workout_id": "w1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("double end: status = %d, want 400", rec.Code)
	}
}

func TestEndWorkout_UnknownSession(t *testing.T) {
	t.Parallel()
	srv := newServer(t, benchExtractor())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/workouts/end", `{"user_id": "u1", "workout_id": "missing"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400; body: %s", rec.Code, rec.Body)
	}
}

func TestGetSession(t *testing.T) {
	t.Parallel()
	srv := newServer(t, benchExtractor())

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/u1/w1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session: status = %d, want 404", rec.Code)
	}

	doJSON(t, srv, http.MethodPost, "/api/v1/commands",
		`{"transcript": "bench press 225 for 8", "user_id": "u1", "workout_id": "w1"}`)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/u1/w1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body)
	}
	var view pipeline.SessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.ExerciseID != "bench-press" || view.State != "active" {
		t.Errorf("view = %+v, want active bench-press", view)
	}
}

func TestCorrection_FlagsHandledCommand(t *testing.T) {
	t.Parallel()
	srv := newServer(t, benchExtractor())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/commands",
		`{"transcript": "bench press 225 for 8", "user_id": "u1", "workout_id": "w1"}`)
	var result pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.RecordID == "" {
		t.Fatal("record_id missing from command result")
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/commands/"+result.RecordID+"/correction", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; body: %s", rec.Code, rec.Body)
	}
}

func TestCorrection_UnknownRecord(t *testing.T) {
	t.Parallel()
	srv := newServer(t, benchExtractor())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/commands/nope/correction", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404; body: %s", rec.Code, rec.Body)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv := newServer(t, benchExtractor())

	rec := doJSON(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
