package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fullselfcoding/fsc-server/internal/domain"
	"github.com/fullselfcoding/fsc-server/internal/persistence"
	"github.com/fullselfcoding/fsc-server/internal/state"
)

type fakeOrchestrator struct {
	submitted domain.JobInput
	jobID     string
	err       error
}

func (f *fakeOrchestrator) SubmitJob(input domain.JobInput) (string, error) {
	f.submitted = input
	if f.err != nil {
		return "", f.err
	}
	return f.jobID, nil
}

func (f *fakeOrchestrator) StopJob(id string) error { return nil }

func (f *fakeOrchestrator) SubmitGitHubJob(repoURL, branch string) (string, error) {
	return f.SubmitJob(domain.JobInput{Kind: domain.InputGitHubURL, URL: repoURL})
}

func newTestServer(t *testing.T) (*fakeOrchestrator, *persistence.Store, *state.Store) {
	t.Helper()
	persist, err := persistence.New(t.TempDir())
	if err != nil {
		t.Fatalf("persistence.New: %v", err)
	}
	store := state.New()
	t.Cleanup(store.Close)
	return &fakeOrchestrator{jobID: "job-1"}, persist, store
}

func TestSubmitJobReturnsAcceptedWithID(t *testing.T) {
	orch, persist, store := newTestServer(t)
	srv := New("", orch, persist, store, "", nil)

	body := strings.NewReader(`{"kind":"github_url","url":"https://github.com/acme/widgets"}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var resp submitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "job-1" {
		t.Errorf("ID = %q, want job-1", resp.ID)
	}
	if orch.submitted.URL != "https://github.com/acme/widgets" {
		t.Errorf("submitted URL = %q", orch.submitted.URL)
	}
}

func TestGetJobReturnsNotFoundWhenMissing(t *testing.T) {
	orch, persist, store := newTestServer(t)
	srv := New("", orch, persist, store, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/jobs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetJobReturnsStateAfterCreate(t *testing.T) {
	orch, persist, store := newTestServer(t)
	_ = orch
	job, err := persist.CreateJob("job-2", domain.JobInput{Kind: domain.InputLocalPath, URL: "/tmp/x"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	srv := New("", orch, persist, store, "", nil)
	req := httptest.NewRequest(http.MethodGet, "/jobs/job-2", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got domain.JobState
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != job.ID {
		t.Errorf("ID = %q, want %q", got.ID, job.ID)
	}
}

func TestGetStateKeyReturnsStoredValue(t *testing.T) {
	orch, persist, store := newTestServer(t)
	store.Set("task:job-3:status", state.StringValue("completed"), state.SetOptions{})

	srv := New("", orch, persist, store, "", nil)
	req := httptest.NewRequest(http.MethodGet, "/state/task:job-3:status", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHistoryListsCreatedJobs(t *testing.T) {
	orch, persist, store := newTestServer(t)
	if _, err := persist.CreateJob("job-4", domain.JobInput{Kind: domain.InputLocalPath, URL: "/tmp/x"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	srv := New("", orch, persist, store, "", nil)
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var page persistence.HistoryPage
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", page.TotalCount)
	}
}
