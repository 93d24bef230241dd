// Package config loads the server's immutable Config from a YAML file and
// applies FSC_-prefixed environment overrides.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/fullselfcoding/fsc-server/internal/domain"
)

// AgentKind selects which external coding agent runs inside the
// container.
type AgentKind string

const (
	AgentClaudeCode AgentKind = "claude-code"
	AgentGeminiCLI  AgentKind = "gemini-cli"
	AgentOpenAICodex AgentKind = "codex"
)

// WorkStyle selects the tone/instructions given to the coding agent.
type WorkStyle string

const (
	WorkStyleDefault                   WorkStyle = "default"
	WorkStyleQATester                  WorkStyle = "qa_tester"
	WorkStyleBoldGenius                WorkStyle = "bold_genius"
	WorkStyleCarefulDocumentWriter     WorkStyle = "careful_document_writer"
	WorkStyleInstructiveDocumentWriter WorkStyle = "instructive_document_writer"
	WorkStyleBugFixer                  WorkStyle = "bug_fixer"
	WorkStyleCustom                    WorkStyle = "custom"
	WorkStyleFromURL                   WorkStyle = "from_url"
)

// Credential is a single API credential, optionally requiring the caller
// to export it into the container's environment rather than pass it
// inline.
type Credential struct {
	Key          string `yaml:"key"`
	ExportNeeded bool   `yaml:"exportNeeded"`
}

// Config is built once from file + environment and is immutable for the
// lifetime of a job; per-job overrides are applied to a shallow copy (see
// Config.WithOverride).
type Config struct {
	AgentType                   AgentKind  `yaml:"agentType"`
	ContainerImage              string     `yaml:"containerImage"`
	DockerTimeoutSeconds        int        `yaml:"dockerTimeoutSeconds"`
	DockerMemoryMB              int        `yaml:"dockerMemoryMB"`
	DockerCPUCores              float64    `yaml:"dockerCpuCores"`
	MaxDockerContainers         int        `yaml:"maxDockerContainers"`
	MaxParallelDockerContainers int        `yaml:"maxParallelDockerContainers"`
	MinTasks                    int        `yaml:"minTasks"`
	MaxTasks                    int        `yaml:"maxTasks"`
	WorkStyle                   WorkStyle  `yaml:"workStyle"`
	CustomLabel                 string     `yaml:"customLabel"`
	CustomDescription           string     `yaml:"customDescription"`
	WorkStyleURL                string     `yaml:"workStyleUrl"`
	UseGithubSSH                bool       `yaml:"useGithubSSH"`
	RequireHTTPSRemotes         bool       `yaml:"requireHttpsRemotes"`
	AnthropicCredential         Credential `yaml:"anthropic"`
	GoogleGeminiCredential      Credential `yaml:"googleGemini"`
	OpenAICodexCredential       Credential `yaml:"openaiCodex"`
	CodingStyleLevel            int        `yaml:"codingStyleLevel"`
	CustomizedCodingStyle       string     `yaml:"customizedCodingStyle"`
	StorageRoot                 string     `yaml:"storageRoot"`
	EventBusURL                 string     `yaml:"eventBusUrl"`
	HTTPAddr                    string     `yaml:"httpAddr"`
	GithubWebhookSecret         string     `yaml:"githubWebhookSecret"`
}

// Default returns a Config with its documented default values.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		AgentType:                   AgentClaudeCode,
		ContainerImage:              "fullselfcoding/agent-runner:latest",
		DockerTimeoutSeconds:        1800,
		DockerMemoryMB:              2048,
		DockerCPUCores:              2,
		MaxDockerContainers:         5,
		MaxParallelDockerContainers: 3,
		MinTasks:                    1,
		MaxTasks:                    20,
		WorkStyle:                   WorkStyleDefault,
		RequireHTTPSRemotes:         true,
		CodingStyleLevel:            2,
		StorageRoot:                 home + "/.full-self-coding-server",
		HTTPAddr:                    ":8787",
	}
}

// Load reads path (if non-empty and present) over the defaults, then
// applies FSC_ environment overrides, then validates.
func Load(path string, logger *zap.SugaredLogger) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, &domain.ConfigError{Field: "file", Err: err}
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, &domain.ConfigError{Field: "file", Err: err}
		}
	}

	applyEnvOverrides(&cfg, logger)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces each field's documented bounds.
func (c Config) Validate() error {
	if c.MaxDockerContainers < 1 || c.MaxDockerContainers > 100 {
		return &domain.ConfigError{Field: "maxDockerContainers", Err: fmt.Errorf("must be in [1,100], got %d", c.MaxDockerContainers)}
	}
	if c.MaxParallelDockerContainers < 1 || c.MaxParallelDockerContainers > c.MaxDockerContainers {
		return &domain.ConfigError{Field: "maxParallelDockerContainers", Err: fmt.Errorf("must be in [1,%d], got %d", c.MaxDockerContainers, c.MaxParallelDockerContainers)}
	}
	if c.DockerTimeoutSeconds < 0 {
		return &domain.ConfigError{Field: "dockerTimeoutSeconds", Err: fmt.Errorf("must be >= 0")}
	}
	if c.MinTasks < 1 || c.MaxTasks < c.MinTasks {
		return &domain.ConfigError{Field: "maxTasks", Err: fmt.Errorf("maxTasks must be >= minTasks >= 1")}
	}
	if c.CodingStyleLevel < 0 || c.CodingStyleLevel > 5 {
		return &domain.ConfigError{Field: "codingStyleLevel", Err: fmt.Errorf("must be in [0,5]")}
	}
	switch c.WorkStyle {
	case WorkStyleCustom:
		if c.CustomLabel == "" || c.CustomDescription == "" {
			return &domain.ConfigError{Field: "workStyle", Err: fmt.Errorf("custom work style requires customLabel and customDescription")}
		}
	case WorkStyleFromURL:
		if c.WorkStyleURL == "" {
			return &domain.ConfigError{Field: "workStyle", Err: fmt.Errorf("from_url work style requires workStyleUrl")}
		}
	}
	return nil
}

// applyEnvOverrides walks the struct's fields and overrides scalars from
// FSC_<UPPER_SNAKE_FIELD>. Invalid values are logged and the existing
// value is retained.
func applyEnvOverrides(cfg *Config, logger *zap.SugaredLogger) {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envName := "FSC_" + toUpperSnake(field.Name)
		raw, ok := os.LookupEnv(envName)
		if !ok {
			continue
		}
		fv := v.Field(i)
		if err := setFromString(fv, raw); err != nil {
			if logger != nil {
				logger.Warnw("ignoring invalid env override", "env", envName, "value", raw, "error", err)
			}
			continue
		}
	}
}

func setFromString(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}

func toUpperSnake(name string) string {
	isUpper := func(r rune) bool { return r >= 'A' && r <= 'Z' }
	isLower := func(r rune) bool { return r >= 'a' && r <= 'z' }
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && isUpper(r) {
			nextLower := i+1 < len(runes) && isLower(runes[i+1])
			if !isUpper(runes[i-1]) || nextLower {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// WithOverride applies a per-job ConfigOverride to a copy of c.
func (c Config) WithOverride(o *domain.ConfigOverride) Config {
	if o == nil {
		return c
	}
	out := c
	if o.AgentType != nil {
		out.AgentType = AgentKind(*o.AgentType)
	}
	if o.MaxDockerContainers != nil {
		out.MaxDockerContainers = *o.MaxDockerContainers
	}
	if o.MaxParallelDockerContainers != nil {
		out.MaxParallelDockerContainers = *o.MaxParallelDockerContainers
	}
	if o.DockerTimeoutSeconds != nil {
		out.DockerTimeoutSeconds = *o.DockerTimeoutSeconds
	}
	if o.WorkStyle != nil {
		out.WorkStyle = WorkStyle(*o.WorkStyle)
	}
	return out
}
