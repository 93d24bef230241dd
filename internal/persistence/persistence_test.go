package persistence

import (
	"fmt"
	"testing"

	"github.com/fullselfcoding/fsc-server/internal/domain"
)

func TestCreateSaveLoadJobRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	job, err := s.CreateJob("job1", domain.JobInput{Kind: domain.InputGitURL, URL: "https://example.com/repo.git"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != domain.JobPending {
		t.Errorf("Status = %s, want pending", job.Status)
	}

	loaded, ok, err := s.LoadJob("job1")
	if err != nil || !ok {
		t.Fatalf("LoadJob: ok=%v err=%v", ok, err)
	}
	if loaded.Input.URL != job.Input.URL {
		t.Errorf("URL = %s, want %s", loaded.Input.URL, job.Input.URL)
	}
}

func TestLoadJobMissingReturnsFalse(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, ok, err := s.LoadJob("nope")
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing job")
	}
}

func TestUpdateJobAppliesPatchAndTouches(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.CreateJob("job2", domain.JobInput{Kind: domain.InputLocalPath, URL: "/tmp/repo"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	updated, ok, err := s.UpdateJob("job2", func(j *domain.JobState) {
		j.Status = domain.JobAnalyzing
	})
	if err != nil || !ok {
		t.Fatalf("UpdateJob: ok=%v err=%v", ok, err)
	}
	if updated.Status != domain.JobAnalyzing {
		t.Errorf("Status = %s, want analyzing", updated.Status)
	}
}

func TestDeleteJobRemovesTaskAndReportFiles(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.CreateJob("job3", domain.JobInput{Kind: domain.InputLocalPath, URL: "/tmp/repo"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.SaveResults("job3", []domain.TaskResult{{Task: domain.Task{ID: "t1"}, Status: domain.TaskSuccess}}); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}

	deleted, err := s.DeleteJob("job3")
	if err != nil || !deleted {
		t.Fatalf("DeleteJob: deleted=%v err=%v", deleted, err)
	}
	if _, ok, _ := s.LoadJob("job3"); ok {
		t.Error("expected job to be gone")
	}
	if _, ok, _ := s.LoadResults("job3"); ok {
		t.Error("expected results to be gone")
	}
}

func TestSaveAndLoadResultsRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []domain.TaskResult{
		{Task: domain.Task{ID: "t1", Title: "a"}, Status: domain.TaskSuccess, Report: "ok"},
		{Task: domain.Task{ID: "t2", Title: "b"}, Status: domain.TaskFailed, Report: "bad"},
	}
	if err := s.SaveResults("job4", want); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}
	got, ok, err := s.LoadResults("job4")
	if err != nil || !ok {
		t.Fatalf("LoadResults: ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("got %+v", got)
	}
}

func TestHistoryPaginatesMostRecentFirst(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.CreateJob(id, domain.JobInput{Kind: domain.InputLocalPath, URL: "/tmp/" + id}); err != nil {
			t.Fatalf("CreateJob(%s): %v", id, err)
		}
	}

	page, err := s.History(2, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if page.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", page.TotalCount)
	}
	if len(page.Tasks) != 2 {
		t.Fatalf("len(Tasks) = %d, want 2", len(page.Tasks))
	}
	if page.Tasks[0].ID != "c" || page.Tasks[1].ID != "b" {
		t.Errorf("order = [%s %s], want [c b]", page.Tasks[0].ID, page.Tasks[1].ID)
	}
}

func TestHistoryLimitClampedTo100(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 101; i++ {
		id := fmt.Sprintf("job-%d", i)
		if _, err := s.CreateJob(id, domain.JobInput{Kind: domain.InputLocalPath, URL: "/tmp/" + id}); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}
	page, err := s.History(500, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if page.TotalCount != 101 {
		t.Errorf("TotalCount = %d, want 101", page.TotalCount)
	}
	if len(page.Tasks) != 100 {
		t.Errorf("len(Tasks) = %d, want 100", len(page.Tasks))
	}
}
