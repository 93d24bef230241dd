// Package webhook implements the GitHub push-webhook receiver that
// feeds the GitHub job variant: validate the payload signature, parse
// the webhook body with go-github, and on a PushEvent hand the
// repository URL off to a submitter function.
package webhook

import (
	"net/http"

	"github.com/google/go-github/v32/github"
	"go.uber.org/zap"
)

// JobSubmitter is the subset of the orchestrator the webhook handler
// depends on.
type JobSubmitter interface {
	SubmitGitHubJob(repoURL, branch string) (string, error)
}

// Handler returns an http.HandlerFunc that validates and parses GitHub
// push webhooks, submitting a job for every push event. secret is the
// shared webhook secret configured on the GitHub repository.
func Handler(secret string, submitter JobSubmitter, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := github.ValidatePayload(r, []byte(secret))
		if err != nil {
			if logger != nil {
				logger.Warnw("webhook: invalid payload signature", "error", err)
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		defer r.Body.Close()

		event, err := github.ParseWebHook(github.WebHookType(r), payload)
		if err != nil {
			if logger != nil {
				logger.Warnw("webhook: could not parse", "error", err)
			}
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch e := event.(type) {
		case *github.PushEvent:
			repo := e.GetRepo()
			url := repo.GetCloneURL()
			branch := repo.GetDefaultBranch()
			if _, err := submitter.SubmitGitHubJob(url, branch); err != nil {
				if logger != nil {
					logger.Errorw("webhook: could not submit job", "url", url, "error", err)
				}
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		default:
			if logger != nil {
				logger.Infow("webhook: ignored event type", "type", github.WebHookType(r))
			}
			w.WriteHeader(http.StatusOK)
		}
	}
}
