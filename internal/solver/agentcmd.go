// Package solver runs a single Task to completion: it obtains a Container
// Runner, composes the agent-specific command script, runs it, parses the
// agent's structured report and diff artifact, and returns a TaskResult.
package solver

import (
	"fmt"
	"strings"

	"github.com/fullselfcoding/fsc-server/internal/config"
	"github.com/fullselfcoding/fsc-server/internal/domain"
)

// reportHelperScript writes /app/git_diff.txt from `git diff` against the
// checked-out base (an empty file when the diff fails), regardless of
// which agent ran. It does not write /app/finalReport.json; that file is
// left to the agent-container image.
const reportHelperScript = `
cd /app && \
git diff > /app/git_diff.txt || touch /app/git_diff.txt
`

// BuildCommands is a deterministic function of (agent kind, Config,
// Task, repo URL) producing the shell commands the Container Runner
// executes inside the task's container: clone the repo into /app, invoke
// the chosen coding agent with the task description and work-style text,
// then write git_diff.txt (see reportHelperScript).
func BuildCommands(cfg config.Config, task domain.Task, repoURL, workStyleText string) ([]string, error) {
	cloneCmd, err := cloneCommand(cfg, repoURL)
	if err != nil {
		return nil, err
	}

	agentCmd, err := agentInvocation(cfg, task, workStyleText)
	if err != nil {
		return nil, err
	}

	return []string{
		cloneCmd,
		agentCmd,
		reportHelperScript,
	}, nil
}

// cloneCommand mirrors Repository.CloneCommand's "git clone <url> <path>"
// shape, generalized to honor Config.UseGithubSSH and an explicit
// destination of /app (the well-known path the agent-container contract
// fixes).
func cloneCommand(cfg config.Config, repoURL string) (string, error) {
	if repoURL == "" {
		return "", fmt.Errorf("empty repository URL")
	}
	const httpsPrefix = "https://github.com/"
	if cfg.UseGithubSSH && strings.HasPrefix(repoURL, httpsPrefix) {
		repoURL = "git@github.com:" + strings.TrimPrefix(repoURL, httpsPrefix)
	}
	return fmt.Sprintf("git clone --depth 1 %s /app", repoURL), nil
}

// agentInvocation dispatches to the per-agent-kind command builder. Each
// builder is a pure function: same inputs, same command string.
func agentInvocation(cfg config.Config, task domain.Task, workStyleText string) (string, error) {
	prompt := fmt.Sprintf("%s\n\n%s\n\nStyle: %s", task.Title, task.Description, workStyleText)

	switch cfg.AgentType {
	case config.AgentClaudeCode:
		return fmt.Sprintf("cd /app && claude-code run --task-id %q --prompt %q", task.ID, prompt), nil
	case config.AgentGeminiCLI:
		return fmt.Sprintf("cd /app && gemini --task-id %q --prompt %q", task.ID, prompt), nil
	case config.AgentOpenAICodex:
		return fmt.Sprintf("cd /app && codex exec --task-id %q --prompt %q", task.ID, prompt), nil
	default:
		return "", fmt.Errorf("unsupported agent kind %q", cfg.AgentType)
	}
}
