// Package provider adapts the generation backends behind a uniform
// request/response surface. Direct providers take the whole prompt inline;
// the Google files provider needs uploaded file handles and is only driven
// through the upload lifecycle manager.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies one backend variant.
type Kind int

const (
	AnthropicDirect Kind = iota
	OpenAIDirect
	GoogleDirect
	GoogleFiles
)

func (k Kind) String() string {
	switch k {
	case AnthropicDirect:
		return "anthropic"
	case OpenAIDirect:
		return "openai"
	case GoogleDirect:
		return "google"
	case GoogleFiles:
		return "google-files"
	default:
		return "unknown"
	}
}

// ParseKind maps the external configuration tag to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "anthropic":
		return AnthropicDirect, nil
	case "openai":
		return OpenAIDirect, nil
	case "google":
		return GoogleDirect, nil
	case "google-files":
		return GoogleFiles, nil
	}
	return 0, fmt.Errorf("unknown provider %q", s)
}

// DefaultModel is used when external configuration leaves the model blank.
func DefaultModel(k Kind) string {
	switch k {
	case AnthropicDirect:
		return "claude-sonnet-4-5"
	case OpenAIDirect:
		return "gpt-4o"
	default:
		return "gemini-1.5-pro"
	}
}

// Config selects exactly one backend for a request. It is external
// configuration: never retried or mutated mid-request.
type Config struct {
	Kind       Kind
	Model      string
	Credential string
}

// ErrMissingCredential is returned before any network call when a required
// credential is absent. It is a precondition failure, not retryable.
var ErrMissingCredential = errors.New("missing provider credential")

// ErrTransport wraps network and HTTP failures talking to a backend.
var ErrTransport = errors.New("provider transport error")

// TextGenerator is the capability shared by all direct providers: one
// outbound call, prompt in, generated text out. An empty response is
// returned as empty text with a nil error, matching long-standing behavior.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// NewText resolves a direct provider from config. GoogleFiles has no direct
// call and is rejected here so callers go through the upload pipeline.
func NewText(cfg Config) (TextGenerator, error) {
	if cfg.Kind == GoogleFiles {
		return nil, fmt.Errorf("provider %s requires file uploads and cannot generate from inline text", cfg.Kind)
	}
	if cfg.Credential == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredential, cfg.Kind)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel(cfg.Kind)
	}
	switch cfg.Kind {
	case AnthropicDirect:
		return NewAnthropic(cfg.Credential, model), nil
	case OpenAIDirect:
		return NewOpenAI(cfg.Credential, model), nil
	case GoogleDirect:
		return NewGoogle(cfg.Credential, model), nil
	}
	return nil, fmt.Errorf("unknown provider kind %d", cfg.Kind)
}

// maxTokens caps every generation call.
const maxTokens = 8192
