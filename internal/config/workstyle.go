package config

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

var workStyleTexts = map[WorkStyle]string{
	WorkStyleDefault:                   "Make the smallest correct change. Follow existing conventions.",
	WorkStyleQATester:                  "Write the change defensively: add tests for edge cases, prefer explicit error handling.",
	WorkStyleBoldGenius:                "Favor a decisive, elegant rewrite over a cautious patch where it clearly improves the code.",
	WorkStyleCarefulDocumentWriter:     "Document every exported symbol you touch; prefer clarity over brevity.",
	WorkStyleInstructiveDocumentWriter: "Explain your reasoning in commit-worthy comments as you go, as if teaching a junior engineer.",
	WorkStyleBugFixer:                  "Focus exclusively on the reported defect; do not refactor adjacent code.",
}

// Text resolves the work-style instructions to hand the coding agent,
// fetching a remote URL for WorkStyleFromURL and using CustomDescription
// for WorkStyleCustom.
func (c Config) Text(httpClient *http.Client) (string, error) {
	switch c.WorkStyle {
	case WorkStyleCustom:
		return fmt.Sprintf("%s: %s", c.CustomLabel, c.CustomDescription), nil
	case WorkStyleFromURL:
		return fetchWorkStyleText(httpClient, c.WorkStyleURL)
	default:
		if text, ok := workStyleTexts[c.WorkStyle]; ok {
			return text, nil
		}
		return workStyleTexts[WorkStyleDefault], nil
	}
}

func fetchWorkStyleText(httpClient *http.Client, url string) (string, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := httpClient.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetching work style from %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching work style from %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading work style from %s: %w", url, err)
	}
	return string(body), nil
}
