package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"github.com/fullselfcoding/fsc-server/internal/domain"
)

// prepareWorkspace materializes a job's input into a fresh per-job
// directory: shallow-clone for GitHubURL/GitURL, copy the tree for
// LocalPath. The directory is writable, since the Code Committer later
// branches and commits into it.
func prepareWorkspace(input domain.JobInput, jobID string) (path string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", "fsc-job-"+jobID+"-")
	if err != nil {
		return "", nil, &domain.InfraError{Op: "MkdirTemp", Err: err}
	}
	cleanup = func() { os.RemoveAll(dir) }

	switch input.Kind {
	case domain.InputGitHubURL, domain.InputGitURL:
		_, err := git.PlainClone(dir, false, &git.CloneOptions{
			URL:   input.URL,
			Depth: 1,
		})
		if err != nil {
			cleanup()
			return "", nil, &domain.InfraError{Op: "PlainClone", Err: err}
		}
	case domain.InputLocalPath:
		if err := copyTree(input.URL, dir); err != nil {
			cleanup()
			return "", nil, &domain.InfraError{Op: "copyTree", Err: err}
		}
	default:
		cleanup()
		return "", nil, &domain.ConfigError{Field: "input.kind", Err: fmt.Errorf("unknown input kind %q", input.Kind)}
	}

	return dir, cleanup, nil
}

// copyTree recursively copies src into dst, preserving the directory
// structure. dst must already exist.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
