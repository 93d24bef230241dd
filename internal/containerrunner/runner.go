// Package containerrunner wraps the Docker Engine API with a lifecycle
// and command-execution contract: start a container, run shell commands
// sequentially with a timeout, copy a file out, tear it down.
package containerrunner

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"

	"github.com/fullselfcoding/fsc-server/internal/domain"
)

// RunStatus is the outcome of a Run call.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
	RunTimeout RunStatus = "timeout"
)

// RunResult is the combined-output report of a sequence of commands.
type RunResult struct {
	CombinedOutput string
	Status         RunStatus
	FirstError     error
}

// Runner is the lifecycle and command-execution contract for a single
// isolated container. One Runner belongs to exactly one Task Solver for
// its lifetime.
type Runner interface {
	Start(ctx context.Context, image string) error
	Run(ctx context.Context, commands []string, timeoutSeconds int) (RunResult, error)
	CopyOut(ctx context.Context, path string) ([]byte, error)
	Shutdown(ctx context.Context) error
}

// DockerRunner is the concrete Runner backed by the Docker Engine API.
type DockerRunner struct {
	cli         *client.Client
	containerID string
	name        string
}

// NewDockerRunner builds a Runner against the Docker daemon reachable
// through the environment (DOCKER_HOST and friends).
func NewDockerRunner() (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, &domain.InfraError{Op: "docker.NewClient", Err: err}
	}
	return &DockerRunner{cli: cli}, nil
}

// Start pulls image, creates a detached container with a
// unique generated name and a long-lived no-op entrypoint, and starts it.
func (r *DockerRunner) Start(ctx context.Context, image string) error {
	r.name = fmt.Sprintf("fsc-task-%s", uuid.NewString())

	reader, err := r.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return &domain.InfraError{Op: "ImagePull", Err: err}
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		reader.Close()
		return &domain.InfraError{Op: "ImagePull.drain", Err: err}
	}
	reader.Close()

	resp, err := r.cli.ContainerCreate(ctx, &container.Config{
		Image:      image,
		Cmd:        []string{"sleep", "infinity"},
		Entrypoint: []string{},
		Tty:        false,
	}, nil, nil, r.name)
	if err != nil {
		return &domain.InfraError{Op: "ContainerCreate", Err: err}
	}
	r.containerID = resp.ID

	if err := r.cli.ContainerStart(ctx, r.containerID, types.ContainerStartOptions{}); err != nil {
		return &domain.InfraError{Op: "ContainerStart", Err: err}
	}

	// A small fixed delay gives the container time to become ready. Run
	// does not retry, so an exec against a container that is still not
	// ready ends that Run with RunFailure.
	time.Sleep(500 * time.Millisecond)
	return nil
}

// Run executes commands sequentially through the container's shell,
// stopping on the first non-zero exit. The timeout bound applies per
// command; timeoutSeconds=0 disables it.
func (r *DockerRunner) Run(ctx context.Context, commands []string, timeoutSeconds int) (RunResult, error) {
	var combined strings.Builder
	for _, cmd := range commands {
		runCtx := ctx
		var cancel context.CancelFunc
		if timeoutSeconds > 0 {
			runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		}
		out, exitCode, err := r.execOne(runCtx, cmd)
		if cancel != nil {
			cancel()
		}
		combined.WriteString("$ ")
		combined.WriteString(cmd)
		combined.WriteString("\n")
		combined.WriteString(out)

		if runCtx.Err() == context.DeadlineExceeded {
			combined.WriteString("\n[timeout exceeded]\n")
			return RunResult{CombinedOutput: combined.String(), Status: RunTimeout, FirstError: runCtx.Err()}, nil
		}
		if err != nil {
			return RunResult{CombinedOutput: combined.String(), Status: RunFailure, FirstError: err}, nil
		}
		if exitCode != 0 {
			err := fmt.Errorf("command %q exited %d", cmd, exitCode)
			return RunResult{CombinedOutput: combined.String(), Status: RunFailure, FirstError: err}, nil
		}
	}
	return RunResult{CombinedOutput: combined.String(), Status: RunSuccess}, nil
}

func (r *DockerRunner) execOne(ctx context.Context, cmd string) (string, int, error) {
	execResp, err := r.cli.ContainerExecCreate(ctx, r.containerID, types.ExecConfig{
		Cmd:          []string{"/bin/sh", "-c", cmd},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", -1, &domain.InfraError{Op: "ContainerExecCreate", Err: err}
	}

	attachResp, err := r.cli.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return "", -1, &domain.InfraError{Op: "ContainerExecAttach", Err: err}
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader); err != nil && err != io.EOF {
		return "", -1, &domain.InfraError{Op: "stdcopy", Err: err}
	}

	inspect, err := r.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return "", -1, &domain.InfraError{Op: "ContainerExecInspect", Err: err}
	}

	combined := stdout.String()
	if stderr.Len() > 0 {
		combined += stderr.String()
	}
	return combined, inspect.ExitCode, nil
}

// CopyOut copies a single file out of the container, reads its contents
// and discards the intermediate tar stream. Fails with InfraError when
// the path is absent.
func (r *DockerRunner) CopyOut(ctx context.Context, path string) ([]byte, error) {
	reader, _, err := r.cli.CopyFromContainer(ctx, r.containerID, path)
	if err != nil {
		return nil, &domain.InfraError{Op: "CopyFromContainer", Err: err}
	}
	defer reader.Close()

	data, err := extractSingleFile(reader, path)
	if err != nil {
		return nil, &domain.InfraError{Op: "CopyFromContainer.tar", Err: err}
	}
	return data, nil
}

// extractSingleFile reads the first entry out of a tar stream, the shape
// CopyFromContainer returns for a single-path copy, and fails when that
// entry is a directory; later entries are not read. Split out from CopyOut so it is testable without a Docker daemon.
func extractSingleFile(r io.Reader, path string) ([]byte, error) {
	tr := tar.NewReader(r)
	hdr, err := tr.Next()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty archive", path)
	}
	if err != nil {
		return nil, err
	}
	if hdr.Typeflag == tar.TypeDir {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, tr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Shutdown forcibly removes the container. It is idempotent: removing an
// already-gone container is not an error.
func (r *DockerRunner) Shutdown(ctx context.Context) error {
	if r.containerID == "" {
		return nil
	}
	err := r.cli.ContainerRemove(ctx, r.containerID, types.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !client.IsErrNotFound(err) {
		return &domain.InfraError{Op: "ContainerRemove", Err: err}
	}
	return nil
}

var _ Runner = (*DockerRunner)(nil)
