// scribe-worker consumes generation.requested from the queue, runs the
// pipeline, and publishes generation.complete or generation.failed. Front
// ends never call the pipeline directly — this queue is their boundary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/forge-ai/scribe/internal/config"
	"github.com/forge-ai/scribe/internal/events"
	"github.com/forge-ai/scribe/internal/generation"
	"github.com/forge-ai/scribe/internal/mq"
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

	cfg, err := config.ParseWorker()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	broker, err := mq.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("mq connect")
	}
	defer broker.Close()

	deliveries, err := broker.Subscribe(cfg.Queue, events.GenerationRequested)
	if err != nil {
		log.Fatal().Err(err).Msg("subscribe")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("provider", cfg.Provider).
		Int("workers", cfg.Workers).
		Str("queue", cfg.Queue).
		Msg("scribe worker started")

	// Fan-out: multiple workers read from the same queue.
	for i := 0; i < cfg.Workers; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					if err := handle(ctx, d, broker, cfg.Generation); err != nil {
						log.Error().Err(err).Msg("generation message error")
						d.Nack(false, true)
					} else {
						d.Ack(false)
					}
				}
			}
		}()
	}
	<-ctx.Done()
}

// handle runs one generation request end to end. A failed generation is a
// terminal result published on the failed key, not a message error — only
// malformed payloads and publish failures get requeued.
func handle(ctx context.Context, d amqp.Delivery, broker *mq.Broker, cfg config.Generation) error {
	p, err := events.Unwrap[events.GenerationRequestedPayload](d.Body)
	if err != nil {
		return err
	}

	log.Info().
		Str("job", p.JobID).
		Str("kind", p.Kind).
		Str("project", p.Project).
		Msg("generation requested")

	pcfg, err := providerConfig(cfg, p)
	if err != nil {
		b, _ := events.Wrap(events.GenerationFailed, events.GenerationFailedPayload{
			JobID: p.JobID, Project: p.Project, Kind: p.Kind, Error: err.Error(),
		})
		return broker.Publish(ctx, events.GenerationFailed, b)
	}

	orch := pipeline.New(pcfg,
		pipeline.WithPolling(cfg.PollInterval, cfg.PollTimeout),
		pipeline.WithAnchorDepth(cfg.AnchorDepth),
	)

	var res generation.Result
	if p.Kind == "implementation" {
		res = orch.ImplementArtifact(ctx, p.Specifications, p.OutputDir, p.Project)
	} else {
		res = orch.GenerateSpecification(ctx, p.Sources, p.Guidelines, p.OutputDir, p.Project)
	}

	if !res.OK {
		b, _ := events.Wrap(events.GenerationFailed, events.GenerationFailedPayload{
			JobID: p.JobID, Project: p.Project, Kind: p.Kind, Error: res.Err,
		})
		return broker.Publish(ctx, events.GenerationFailed, b)
	}

	b, _ := events.Wrap(events.GenerationComplete, events.GenerationCompletePayload{
		JobID: p.JobID, Project: p.Project, Kind: p.Kind, ArtifactPath: res.Path,
	})
	return broker.Publish(ctx, events.GenerationComplete, b)
}

// providerConfig applies per-message overrides on top of the worker's
// environment configuration.
func providerConfig(cfg config.Generation, p *events.GenerationRequestedPayload) (provider.Config, error) {
	name := cfg.Provider
	if p.Provider != "" {
		name = p.Provider
	}
	kind, err := provider.ParseKind(name)
	if err != nil {
		return provider.Config{}, err
	}
	model := cfg.Model
	if p.Model != "" {
		model = p.Model
	}
	return provider.Config{Kind: kind, Model: model, Credential: cfg.APIKey}, nil
}
