// Package committer implements the Code Committer: it integrates a
// batch of TaskResults into an on-disk Git working tree, one
// branch-and-commit per result, leaving HEAD and the working tree
// exactly as found. Uses go-git for everything its native API covers,
// plus os/exec for the two operations (patch apply, stash) go-git has
// no primitive for.
package committer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/fullselfcoding/fsc-server/internal/domain"
)

// Options configures the dirty-tree handling policy.
type Options struct {
	AutoStash       bool
	AutoCommit      bool
	IgnoreUntracked bool
	BackupBranch    string // prefix; empty disables
}

// ResultOutcome is the per-TaskResult outcome recorded in Summary.
type ResultOutcome struct {
	TaskID     string
	TaskTitle  string
	BranchName string
	Success    bool
	Error      string
}

// Summary is the aggregate protocol's return value.
type Summary struct {
	TotalTasks     int
	SuccessfulTasks int
	FailedTasks    int
	Results        []ResultOutcome
}

// Committer drives the branch-per-result integration state machine over
// one working tree.
type Committer struct {
	repoPath string
	opts     Options
	logger   *zap.SugaredLogger

	repo       *git.Repository
	originalID plumbing.Hash
	stashed    bool
	lockPath   string
}

// New opens the repository at path (default: the current directory) and
// records the original HEAD commit so it can be restored on failure.
func New(path string, opts Options, logger *zap.SugaredLogger) (*Committer, error) {
	if path == "" {
		path = "."
	}
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, &domain.InfraError{Op: "PlainOpen", Err: err}
	}
	head, err := repo.Head()
	if err != nil {
		return nil, &domain.InfraError{Op: "Head", Err: err}
	}
	return &Committer{
		repoPath:   path,
		opts:       opts,
		logger:     logger,
		repo:       repo,
		originalID: head.Hash(),
		lockPath:   filepath.Join(path, ".git", "fsc-committer.lock"),
	}, nil
}

// CommitAll runs the per-result protocol over results in input order,
// then the aggregate protocol, and returns the Summary.
func (c *Committer) CommitAll(results []domain.TaskResult) (Summary, error) {
	if err := c.acquireLock(); err != nil {
		return Summary{}, err
	}
	defer c.releaseLock()

	if c.opts.BackupBranch != "" {
		if err := c.createBackupBranch(); err != nil && c.logger != nil {
			c.logger.Warnw("backup branch creation failed", "error", err)
		}
	}

	summary := Summary{TotalTasks: len(results)}
	for _, result := range results {
		outcome := c.commitOne(result)
		summary.Results = append(summary.Results, outcome)
		if outcome.Success {
			summary.SuccessfulTasks++
		} else {
			summary.FailedTasks++
		}
	}

	if c.stashed {
		if err := c.stashPop(); err != nil && c.logger != nil {
			c.logger.Warnw("stash pop failed, working tree may still hold stashed changes", "error", err)
		}
	}

	return summary, nil
}

// commitOne runs the per-result state machine: Idle -> Dirtying(optional)
// -> Branching -> Applying -> Committing -> Returning -> Done. Skipped
// with success=true when the result carries no diff.
func (c *Committer) commitOne(result domain.TaskResult) ResultOutcome {
	outcome := ResultOutcome{TaskID: result.ID, TaskTitle: result.Title}

	if strings.TrimSpace(result.GitDiff) == "" {
		outcome.Success = true
		return outcome
	}

	if dirty, err := c.isDirty(); err != nil {
		outcome.Error = err.Error()
		return outcome
	} else if dirty {
		if err := c.handleDirtyTree(); err != nil {
			outcome.Error = (&domain.DirtyTreeError{Detail: err.Error()}).Error()
			return outcome
		}
	}

	branchName := fmt.Sprintf("task-%s-%d", result.ID, time.Now().UnixMilli())
	outcome.BranchName = branchName
	if err := c.branchAndCheckout(branchName); err != nil {
		outcome.Error = err.Error()
		c.restoreOriginal()
		return outcome
	}

	if err := c.applyDiff(result.GitDiff); err != nil {
		outcome.Error = (&domain.ApplyError{TaskID: result.ID, Err: err}).Error()
		c.restoreOriginal()
		return outcome
	}

	if err := c.commitAll(result); err != nil {
		outcome.Error = err.Error()
		c.restoreOriginal()
		return outcome
	}

	if err := c.restoreOriginal(); err != nil {
		if c.logger != nil {
			c.logger.Errorw("critical: failed to return to original commit", "error", err)
		}
		outcome.Error = fmt.Sprintf("checkout-back failed (critical): %v", err)
		return outcome
	}

	outcome.Success = true
	return outcome
}

// isDirty reports whether the worktree has changes, honoring
// IgnoreUntracked.
func (c *Committer) isDirty() (bool, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	for _, s := range status {
		if s.Worktree == git.Untracked && c.opts.IgnoreUntracked {
			continue
		}
		return true, nil
	}
	return false, nil
}

// handleDirtyTree applies the configured policy; returns an error if no
// policy resolves the dirty tree.
func (c *Committer) handleDirtyTree() error {
	if c.opts.AutoStash {
		if err := c.stashPush(); err != nil {
			return err
		}
		c.stashed = true
		return nil
	}
	if c.opts.AutoCommit {
		return c.wipCommit()
	}
	return fmt.Errorf("working tree is dirty and no dirty-tree policy is configured")
}

func (c *Committer) stashPush() error {
	return runGit(c.repoPath, "stash", "push", "-m", "fsc-committer autostash")
}

func (c *Committer) stashPop() error {
	return runGit(c.repoPath, "stash", "pop")
}

func (c *Committer) wipCommit() error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return err
	}
	if _, err := wt.Add("."); err != nil {
		return err
	}
	_, err = wt.Commit("WIP auto-commit", &git.CommitOptions{
		Author: &object.Signature{Name: "fsc-committer", When: time.Now()},
	})
	return err
}

// branchAndCheckout creates name from the recorded original commit and
// checks it out, using go-git's native branch/checkout API.
func (c *Committer) branchAndCheckout(name string) error {
	ref := plumbing.NewBranchReferenceName(name)
	if err := c.repo.CreateBranch(&cfgBranch(name)); err != nil {
		return err
	}
	wt, err := c.repo.Worktree()
	if err != nil {
		return err
	}
	headRef := plumbing.NewHashReference(ref, c.originalID)
	if err := c.repo.Storer.SetReference(headRef); err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Branch: ref})
}

// applyDiff writes diff to a temp file and applies it via `git apply
// --whitespace=fix`, argv-only, never shell-interpolated. go-git v5 has
// no patch-apply primitive.
func (c *Committer) applyDiff(diff string) error {
	f, err := os.CreateTemp("", "fsc-diff-*.patch")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(diff); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return runGit(c.repoPath, "apply", "--whitespace=fix", f.Name())
}

// commitAll stages every change and creates one commit whose message
// encodes the task's outcome.
func (c *Committer) commitAll(result domain.TaskResult) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return err
	}
	if _, err := wt.Add("."); err != nil {
		return err
	}
	_, err = wt.Commit(commitMessage(result), &git.CommitOptions{
		Author: &object.Signature{Name: "fsc-committer", When: time.Now()},
	})
	return err
}

// restoreOriginal checks out the original commit and hard-resets plus
// cleans untracked files, restoring a pristine working tree.
func (c *Committer) restoreOriginal() error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: c.originalID, Force: true}); err != nil {
		return err
	}
	if err := wt.Reset(&git.ResetOptions{Commit: c.originalID, Mode: git.HardReset}); err != nil {
		return err
	}
	return wt.Clean(&git.CleanOptions{Dir: true})
}

func (c *Committer) createBackupBranch() error {
	name := fmt.Sprintf("%s-%d", c.opts.BackupBranch, time.Now().UnixMilli())
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), c.originalID)
	return c.repo.Storer.SetReference(ref)
}

func (c *Committer) acquireLock() error {
	f, err := os.OpenFile(c.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return &domain.InfraError{Op: "acquireLock", Err: fmt.Errorf("another committer is already running against %s", c.repoPath)}
	}
	return f.Close()
}

func (c *Committer) releaseLock() {
	os.Remove(c.lockPath)
}

// commitMessage renders the glyph, ID, title, description, report,
// status, and completion timestamp, with double quotes inside text
// fields escaped.
func commitMessage(result domain.TaskResult) string {
	glyph := statusGlyph(result.Status)
	completedAt := "N/A"
	if result.CompletedAt != nil {
		completedAt = time.UnixMilli(*result.CompletedAt).UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf(
		"%s Task %s: %s\n\nTask Description: %s\n\nReport: %s\n\nStatus: %s\nCompleted: %s\n",
		glyph, result.ID, escapeQuotes(result.Title),
		escapeQuotes(result.Description), escapeQuotes(result.Report),
		result.Status, completedAt,
	)
}

// statusGlyph is ✓ on success, ✗ otherwise.
func statusGlyph(status domain.TaskStatus) string {
	if status == domain.TaskSuccess {
		return "✓"
	}
	return "✗"
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Render writes a human-oriented report to sink. Layout is cosmetic.
func Render(sink io.Writer, summary Summary) {
	fmt.Fprintf(sink, "Committed %d/%d tasks (%d failed)\n", summary.SuccessfulTasks, summary.TotalTasks, summary.FailedTasks)
	for _, r := range summary.Results {
		status := "ok"
		if !r.Success {
			status = "FAILED: " + r.Error
		}
		fmt.Fprintf(sink, "  %s (%s) branch=%s %s\n", r.TaskID, r.TaskTitle, r.BranchName, status)
	}
}

// runGit invokes git as a subprocess with argv-only arguments, never a
// shell string, to avoid any shell-injection surface. go-git v5 offers
// no apply/stash equivalent.
func runGit(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return nil
}

func cfgBranch(name string) git.CreateBranchOptions {
	return git.CreateBranchOptions{Name: name}
}
