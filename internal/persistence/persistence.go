// Package persistence implements durable on-disk JSON storage of
// JobState and TaskResult, one job per file across two directories.
package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fullselfcoding/fsc-server/internal/domain"
)

const (
	tasksDir   = "tasks"
	reportsDir = "reports"
)

// Store is the on-disk Task Persistence layer rooted at one directory
// (default ~/.full-self-coding-server/).
type Store struct {
	root string
}

// New ensures root/tasks and root/reports exist and returns a Store
// rooted there.
func New(root string) (*Store, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, &domain.StateError{Op: "UserHomeDir", Err: err}
		}
		root = filepath.Join(home, ".full-self-coding-server")
	}
	for _, dir := range []string{tasksDir, reportsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, &domain.StateError{Op: "MkdirAll", Err: err}
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) taskPath(id string) string   { return filepath.Join(s.root, tasksDir, id+".json") }
func (s *Store) reportPath(id string) string { return filepath.Join(s.root, reportsDir, id+".json") }

// CreateJob builds a fresh Pending JobState for input and saves it.
func (s *Store) CreateJob(id string, input domain.JobInput) (domain.JobState, error) {
	now := time.Now()
	job := domain.JobState{
		ID:        id,
		Input:     input,
		Status:    domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.SaveJob(job); err != nil {
		return domain.JobState{}, err
	}
	return job, nil
}

// SaveJob serializes job to tasks/<id>.json.
func (s *Store) SaveJob(job domain.JobState) error {
	raw, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return &domain.StateError{Op: "MarshalIndent", Err: err}
	}
	if err := os.WriteFile(s.taskPath(job.ID), raw, 0o644); err != nil {
		return &domain.StateError{Op: "WriteFile", Err: err}
	}
	return nil
}

// LoadJob returns the persisted JobState for id, or false if absent.
func (s *Store) LoadJob(id string) (domain.JobState, bool, error) {
	raw, err := os.ReadFile(s.taskPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return domain.JobState{}, false, nil
	}
	if err != nil {
		return domain.JobState{}, false, &domain.StateError{Op: "ReadFile", Err: err}
	}
	var job domain.JobState
	if err := json.Unmarshal(raw, &job); err != nil {
		return domain.JobState{}, false, &domain.StateError{Op: "Unmarshal", Err: err}
	}
	return job, true, nil
}

// UpdateJob mutates an existing JobState in place via patch and saves
// it; returns false if id is not found.
func (s *Store) UpdateJob(id string, patch func(*domain.JobState)) (domain.JobState, bool, error) {
	job, ok, err := s.LoadJob(id)
	if err != nil || !ok {
		return domain.JobState{}, ok, err
	}
	patch(&job)
	job.Touch(time.Now())
	if err := s.SaveJob(job); err != nil {
		return domain.JobState{}, false, err
	}
	return job, true, nil
}

// DeleteJob removes both the job and its results file if present.
func (s *Store) DeleteJob(id string) (bool, error) {
	taskErr := os.Remove(s.taskPath(id))
	reportErr := os.Remove(s.reportPath(id))
	if errors.Is(taskErr, os.ErrNotExist) && errors.Is(reportErr, os.ErrNotExist) {
		return false, nil
	}
	if taskErr != nil && !errors.Is(taskErr, os.ErrNotExist) {
		return false, &domain.StateError{Op: "Remove(task)", Err: taskErr}
	}
	if reportErr != nil && !errors.Is(reportErr, os.ErrNotExist) {
		return false, &domain.StateError{Op: "Remove(report)", Err: reportErr}
	}
	return true, nil
}

// SaveResults writes the full TaskResult slice to reports/<id>.json.
func (s *Store) SaveResults(id string, results []domain.TaskResult) error {
	raw, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return &domain.StateError{Op: "MarshalIndent", Err: err}
	}
	if err := os.WriteFile(s.reportPath(id), raw, 0o644); err != nil {
		return &domain.StateError{Op: "WriteFile", Err: err}
	}
	return nil
}

// LoadResults returns the persisted TaskResult slice for id, or false if
// absent.
func (s *Store) LoadResults(id string) ([]domain.TaskResult, bool, error) {
	raw, err := os.ReadFile(s.reportPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.StateError{Op: "ReadFile", Err: err}
	}
	var results []domain.TaskResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, &domain.StateError{Op: "Unmarshal", Err: err}
	}
	return results, true, nil
}

// HistoryPage is a paginated slice of job summaries.
type HistoryPage struct {
	Tasks      []domain.JobSummary
	TotalCount int
}

// History returns a page of JobSummary projections across every
// persisted job, most recently created first.
func (s *Store) History(limit, offset int) (HistoryPage, error) {
	if limit < 1 {
		limit = 100
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := os.ReadDir(filepath.Join(s.root, tasksDir))
	if err != nil {
		return HistoryPage{}, &domain.StateError{Op: "ReadDir", Err: err}
	}

	var summaries []domain.JobSummary
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := trimJSONExt(entry.Name())
		job, ok, err := s.LoadJob(id)
		if err != nil || !ok {
			continue
		}
		summaries = append(summaries, job.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	total := len(summaries)
	if offset >= total {
		return HistoryPage{TotalCount: total}, nil
	}
	summaries = summaries[offset:]
	if limit < len(summaries) {
		summaries = summaries[:limit]
	}
	return HistoryPage{Tasks: summaries, TotalCount: total}, nil
}

// Stats reports the number of persisted jobs.
func (s *Store) Stats() (int, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, tasksDir))
	if err != nil {
		return 0, &domain.StateError{Op: "ReadDir", Err: err}
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}
	return count, nil
}

func trimJSONExt(name string) string {
	const suffix = ".json"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		return name[:len(name)-len(suffix)]
	}
	return name
}
