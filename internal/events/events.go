// Package events defines the message contract of the generation queue.
// The dashboard and other front ends talk to the worker only through these
// messages — there are no direct calls into the pipeline from outside.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Routing keys on the scribe.events topic exchange.
const (
	GenerationRequested = "generation.requested"
	GenerationComplete  = "generation.complete"
	GenerationFailed    = "generation.failed"
)

// Envelope wraps every message.
type Envelope struct {
	ID         string          `json:"id"`
	RoutingKey string          `json:"routing_key"`
	Timestamp  time.Time       `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func Wrap(routingKey string, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		ID:         uuid.New().String(),
		RoutingKey: routingKey,
		Timestamp:  time.Now(),
		Payload:    p,
	})
}

func Unwrap[T any](raw []byte) (*T, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	var t T
	return &t, json.Unmarshal(env.Payload, &t)
}

// ── Payload types ─────────────────────────────────────────────────────────────

// GenerationRequestedPayload asks the worker for one artifact. Kind is
// "spec" or "implementation"; the document lists are local paths readable
// by the worker, in prompt order.
type GenerationRequestedPayload struct {
	JobID          string   `json:"job_id"`
	Kind           string   `json:"kind"`
	Project        string   `json:"project"`
	OutputDir      string   `json:"output_dir"`
	Sources        []string `json:"sources,omitempty"`
	Guidelines     []string `json:"guidelines,omitempty"`
	Specifications []string `json:"specifications,omitempty"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
}

type GenerationCompletePayload struct {
	JobID        string `json:"job_id"`
	Project      string `json:"project"`
	Kind         string `json:"kind"`
	ArtifactPath string `json:"artifact_path"`
}

type GenerationFailedPayload struct {
	JobID   string `json:"job_id"`
	Project string `json:"project"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}
