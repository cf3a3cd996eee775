package persist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/concordat-io/concordat/pkg/backend"
	"github.com/concordat-io/concordat/pkg/estate"
)

// Source collects the five backend parameters for a persist run. Presets
// (flags, environment overrides) take precedence over defaults; how the
// remaining gaps are filled is the implementation's business.
type Source interface {
	Collect(defaults backend.Params) (backend.Params, error)
}

type paramField struct {
	label string
	get   func(*backend.Params) *string
}

func paramFields() []paramField {
	return []paramField{
		{"Bucket", func(p *backend.Params) *string { return &p.Bucket }},
		{"Region", func(p *backend.Params) *string { return &p.Region }},
		{"Endpoint", func(p *backend.Params) *string { return &p.Endpoint }},
		{"Key prefix", func(p *backend.Params) *string { return &p.KeyPrefix }},
		{"Key suffix", func(p *backend.Params) *string { return &p.KeySuffix }},
	}
}

// Defaults derives the per-field defaults for a persist run. An existing
// manifest wins so reruns default to the recorded values; otherwise the key
// prefix is derived from the estate identity and the suffix falls back to
// the conventional state filename.
func Defaults(rec estate.Record, existing *backend.Manifest) backend.Params {
	if existing != nil {
		return existing.Params()
	}
	owner := strings.TrimSpace(rec.GitHubOwner)
	if owner == "" {
		owner = "unknown-owner"
	}
	branch := strings.TrimSpace(rec.Branch)
	if branch == "" {
		branch = estate.DefaultBranch
	}
	return backend.Params{
		KeyPrefix: fmt.Sprintf("estates/%s/%s", owner, branch),
		KeySuffix: backend.DefaultKeyFilename,
	}
}

// CanPrompt reports whether stdin is an interactive terminal.
func CanPrompt() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// PromptSource fills gaps by prompting on a terminal. Fields already covered
// by a preset are never prompted for; an empty answer accepts the default.
type PromptSource struct {
	Preset backend.Params
	In     io.Reader
	Out    io.Writer
}

// Collect prompts for each field that has neither a preset nor an accepted
// default answer.
func (s *PromptSource) Collect(defaults backend.Params) (backend.Params, error) {
	reader := bufio.NewReader(s.In)
	result := defaults
	for _, field := range paramFields() {
		if preset := strings.TrimSpace(*field.get(&s.Preset)); preset != "" {
			*field.get(&result) = preset
			continue
		}
		value, err := s.prompt(reader, field.label, *field.get(&result))
		if err != nil {
			return backend.Params{}, err
		}
		*field.get(&result) = value
	}
	return result, nil
}

func (s *PromptSource) prompt(reader *bufio.Reader, label, fallback string) (string, error) {
	if fallback != "" {
		fmt.Fprintf(s.Out, "%s [%s]: ", label, fallback)
	} else {
		fmt.Fprintf(s.Out, "%s: ", label)
	}
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	answer := strings.TrimSpace(line)
	if answer != "" {
		return answer, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	if label == "Key prefix" {
		// The prefix is genuinely optional; an empty answer means the
		// state object lives at the bucket root.
		return "", nil
	}
	return "", fmt.Errorf("%s is required", label)
}

// StaticSource resolves every field from presets and defaults alone. Used
// for --no-input runs and whenever stdin is not a terminal; a gap fails
// immediately, before any prompt or network call.
type StaticSource struct {
	Preset backend.Params
}

// Collect merges presets over defaults and rejects any remaining gap.
func (s *StaticSource) Collect(defaults backend.Params) (backend.Params, error) {
	result := defaults
	for _, field := range paramFields() {
		if preset := strings.TrimSpace(*field.get(&s.Preset)); preset != "" {
			*field.get(&result) = preset
		}
		if field.label == "Key prefix" {
			continue
		}
		if strings.TrimSpace(*field.get(&result)) == "" {
			return backend.Params{}, fmt.Errorf(
				"%s is required in non-interactive mode; provide a flag or environment variable", field.label)
		}
	}
	return result, nil
}
