// Package pipeline is the top-level entry point: it resolves the configured
// provider, builds the prompt, drives either the direct call or the upload
// lifecycle, and persists the artifact. It is a hard error boundary — every
// failure comes back as a Result, never as a raw error or panic.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/forge-ai/scribe/internal/anchor"
	"github.com/forge-ai/scribe/internal/artifact"
	"github.com/forge-ai/scribe/internal/generation"
	"github.com/forge-ai/scribe/internal/prompt"
	"github.com/forge-ai/scribe/internal/provider"
	"github.com/forge-ai/scribe/internal/upload"
)

// FilesGenerator is the capability set of a file-upload backend: the store
// the lifecycle manager drives plus generation over uploaded handles.
type FilesGenerator interface {
	upload.FileStore
	GenerateWithFiles(ctx context.Context, prompt, system string, refs []upload.Handle) (string, error)
}

// Orchestrator runs generation requests. It carries no request-scoped
// state, so one Orchestrator may serve concurrent requests.
type Orchestrator struct {
	cfg          provider.Config
	pollInterval time.Duration
	pollTimeout  time.Duration
	anchorDepth  int

	// Injection points for tests; nil means resolve from cfg per request.
	text  provider.TextGenerator
	files FilesGenerator
}

// Option adjusts orchestrator construction.
type Option func(*Orchestrator)

// WithPolling overrides the upload poll interval and wall-clock timeout.
func WithPolling(interval, timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.pollInterval = interval
		o.pollTimeout = timeout
	}
}

// WithAnchorDepth bounds the upward anchor-directory search.
func WithAnchorDepth(n int) Option {
	return func(o *Orchestrator) { o.anchorDepth = n }
}

func New(cfg provider.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:          cfg,
		pollInterval: upload.DefaultPollInterval,
		pollTimeout:  upload.DefaultPollTimeout,
		anchorDepth:  upload.DefaultAnchorDepth,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateSpecification produces a game specification from source and
// guideline documents.
func (o *Orchestrator) GenerateSpecification(ctx context.Context, sources, guidelines []string, outputDir, project string) generation.Result {
	docs := generation.NewDocuments(sources, generation.RoleSource)
	docs = append(docs, generation.NewDocuments(guidelines, generation.RoleGuideline)...)
	return o.Generate(ctx, generation.Request{
		Docs:      docs,
		Kind:      generation.SpecGeneration,
		Project:   project,
		OutputDir: outputDir,
	})
}

// ImplementArtifact produces an implementation draft from specification
// documents.
func (o *Orchestrator) ImplementArtifact(ctx context.Context, specs []string, outputDir, project string) generation.Result {
	return o.Generate(ctx, generation.Request{
		Docs:      generation.NewDocuments(specs, generation.RoleSpecification),
		Kind:      generation.ImplementationGeneration,
		Project:   project,
		OutputDir: outputDir,
	})
}

// Generate runs one request to its terminal Result. Exactly one of Path or
// Err is set; nothing escapes this boundary.
func (o *Orchestrator) Generate(ctx context.Context, req generation.Request) (res generation.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("project", req.Project).Msg("generation panicked")
			res = generation.Result{Err: fmt.Sprintf("generation panic: %v", r)}
		}
	}()

	path, err := o.run(ctx, req)
	if err != nil {
		log.Error().Err(err).
			Str("project", req.Project).
			Str("kind", req.Kind.String()).
			Str("provider", o.cfg.Kind.String()).
			Msg("generation failed")
		return generation.Result{Err: err.Error()}
	}

	log.Info().
		Str("project", req.Project).
		Str("kind", req.Kind.String()).
		Str("artifact", path).
		Msg("generation complete")
	return generation.Result{OK: true, Path: path}
}

func (o *Orchestrator) run(ctx context.Context, req generation.Request) (string, error) {
	if strings.TrimSpace(req.Project) == "" {
		return "", errors.New("project name is required")
	}
	if len(req.Docs) == 0 {
		return "", errors.New("at least one input document is required")
	}
	if o.cfg.Kind == provider.GoogleFiles {
		return o.runWithFiles(ctx, req)
	}
	return o.runInline(ctx, req)
}

// runInline reads document contents into memory and makes one direct call.
func (o *Orchestrator) runInline(ctx context.Context, req generation.Request) (string, error) {
	gen := o.text
	if gen == nil {
		var err error
		if gen, err = provider.NewText(o.cfg); err != nil {
			return "", err
		}
	}

	docs := make([]generation.Document, len(req.Docs))
	copy(docs, req.Docs)
	for i := range docs {
		b, err := os.ReadFile(docs[i].Path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", docs[i].Path, err)
		}
		docs[i].Content = string(b)
	}

	p, system := prompt.Build(docs, req.Kind, req.Project)
	out, err := gen.Generate(ctx, p, system)
	if err != nil {
		return "", err
	}
	return artifact.Write(req.OutputDir, req.Project, req.Kind, out)
}

// runWithFiles drives the upload lifecycle and generates over the handles.
// The deferred batch Close deletes staged copies and remote files on every
// exit path, the success path included.
func (o *Orchestrator) runWithFiles(ctx context.Context, req generation.Request) (string, error) {
	files := o.files
	if files == nil {
		cfg := o.cfg
		if cfg.Credential == "" {
			// Discovery is the last resort here, so its failure is the
			// diagnostic that matters — not the missing credential it causes.
			dir, err := anchor.Find(req.OutputDir, o.anchorDepth)
			if err != nil {
				return "", err
			}
			cfg.Credential = anchor.Credential(dir)
		}
		fc, err := provider.NewFiles(cfg)
		if err != nil {
			return "", err
		}
		files = fc
	}

	mgr := upload.NewManager(files, o.pollInterval, o.pollTimeout, o.anchorDepth)
	batch, err := mgr.Materialize(ctx, req.OutputDir, req.Docs)
	if err != nil {
		return "", err
	}
	defer batch.Close()

	p, system := prompt.BuildWithAttachments(req.Docs, req.Kind, req.Project)
	out, err := files.GenerateWithFiles(ctx, p, system, batch.Handles)
	if err != nil {
		return "", err
	}
	return artifact.Write(req.OutputDir, req.Project, req.Kind, out)
}
