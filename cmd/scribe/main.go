// scribe runs one generation from the command line: it collects the input
// documents, calls the configured provider, and prints the artifact path.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/forge-ai/scribe/internal/config"
	"github.com/forge-ai/scribe/internal/generation"
	"github.com/forge-ai/scribe/internal/pipeline"
	"github.com/forge-ai/scribe/internal/provider"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	_ = godotenv.Load()

	var (
		kind         = flag.String("kind", "spec", `artifact kind: "spec" or "game"`)
		project      = flag.String("project", "", "project name (required)")
		out          = flag.String("out", ".", "output directory")
		providerName = flag.String("provider", "", "provider override: anthropic|openai|google|google-files")
		model        = flag.String("model", "", "model override")
	)
	var sources, guidelines, specs fileList
	flag.Var(&sources, "source", "source document path (repeatable)")
	flag.Var(&guidelines, "guideline", "guideline document path (repeatable)")
	flag.Var(&specs, "spec", "specification document path (repeatable)")
	flag.Parse()

	cfg, err := config.ParseGeneration()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if *providerName != "" {
		cfg.Provider = *providerName
	}
	if *model != "" {
		cfg.Model = *model
	}

	pkind, err := provider.ParseKind(cfg.Provider)
	if err != nil {
		log.Fatal().Err(err).Msg("provider selection")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := pipeline.New(
		provider.Config{Kind: pkind, Model: cfg.Model, Credential: cfg.APIKey},
		pipeline.WithPolling(cfg.PollInterval, cfg.PollTimeout),
		pipeline.WithAnchorDepth(cfg.AnchorDepth),
	)

	var res generation.Result
	switch *kind {
	case "spec":
		res = orch.GenerateSpecification(ctx, sources, guidelines, *out, *project)
	case "game", "implementation":
		res = orch.ImplementArtifact(ctx, specs, *out, *project)
	default:
		log.Fatal().Str("kind", *kind).Msg("unknown artifact kind")
	}

	if !res.OK {
		log.Fatal().Str("error", res.Err).Msg("generation failed")
	}
	fmt.Println(res.Path)
}

// fileList collects a repeatable path flag.
type fileList []string

func (f *fileList) String() string     { return strings.Join(*f, ",") }
func (f *fileList) Set(v string) error { *f = append(*f, v); return nil }
