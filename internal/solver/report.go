package solver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fullselfcoding/fsc-server/internal/domain"
)

// agentReport is the JSON shape an agent container writes to
// /app/finalReport.json.
type agentReport struct {
	TaskID      string `json:"taskId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Report      string `json:"report"`
}

// parseFinalReport tolerates surrounding prose by extracting the
// substring between the first '{' and the last '}' before decoding.
func parseFinalReport(raw []byte) (agentReport, error) {
	text := string(raw)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return agentReport{}, fmt.Errorf("no JSON object found in report")
	}

	var rep agentReport
	if err := json.Unmarshal([]byte(text[start:end+1]), &rep); err != nil {
		return agentReport{}, fmt.Errorf("parse: %w", err)
	}
	if rep.TaskID == "" {
		return agentReport{}, fmt.Errorf("parse: missing taskId")
	}
	return rep, nil
}

// taskStatus maps the agent's string status to a domain.TaskStatus.
func taskStatus(s string) (domain.TaskStatus, error) {
	switch s {
	case "success":
		return domain.TaskSuccess, nil
	case "skipped":
		return domain.TaskSkipped, nil
	case "failed":
		return domain.TaskFailed, nil
	default:
		return "", fmt.Errorf("parse: unknown status %q", s)
	}
}
