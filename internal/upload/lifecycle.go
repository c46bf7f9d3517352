// Package upload manages the remote-file lifecycle some providers require
// before generation: stage local copies, upload them, poll until the remote
// side reports them active, and delete both sides when the request ends.
//
// The unit of success is the whole batch. Any staging, upload, or polling
// failure aborts the batch and cleans up whatever was already created;
// partial batches are never handed to a caller.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/forge-ai/scribe/internal/anchor"
	"github.com/forge-ai/scribe/internal/generation"
)

// State is the remote readiness of one uploaded file.
type State int

const (
	StatePending State = iota
	StateActive
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

var (
	// ErrUploadFailed covers upload transport errors and files the remote
	// side reports as failed.
	ErrUploadFailed = errors.New("upload failed")
	// ErrUploadTimeout means a file never reached active within the poll
	// timeout.
	ErrUploadTimeout = errors.New("upload timed out")
)

// Handle identifies one uploaded remote file. It is owned by the Batch that
// created it and is never valid past Batch.Close.
type Handle struct {
	Name        string // remote identity, e.g. "files/abc123"
	URI         string
	ContentType string
	State       State
	StagedPath  string
	CreatedAt   time.Time
}

// FileStore is the remote storage surface the manager drives. Implemented
// by the Google files provider; tests substitute fakes.
type FileStore interface {
	Upload(ctx context.Context, path, contentType, displayName string) (Handle, error)
	Status(ctx context.Context, name string) (State, error)
	Delete(ctx context.Context, name string) error
}

// Defaults. Remote processing latency is short and roughly constant, so a
// fixed poll interval with a strict wall-clock cap beats backoff here.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 60 * time.Second
	DefaultAnchorDepth  = 6
)

// Manager runs the stage → upload → poll protocol for one batch at a time.
// It carries no per-request state, so one Manager may serve concurrent
// requests.
type Manager struct {
	store        FileStore
	pollInterval time.Duration
	pollTimeout  time.Duration
	anchorDepth  int
}

// NewManager wires a manager to a file store. Zero durations and depth
// select the defaults.
func NewManager(store FileStore, pollInterval, pollTimeout time.Duration, anchorDepth int) *Manager {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	if anchorDepth <= 0 {
		anchorDepth = DefaultAnchorDepth
	}
	return &Manager{store: store, pollInterval: pollInterval, pollTimeout: pollTimeout, anchorDepth: anchorDepth}
}

// Batch holds the staged copies and remote handles of one request. Handles
// are in input-document order regardless of upload concurrency. Close must
// be called exactly once when the owning request ends, success or failure.
type Batch struct {
	store      FileStore
	stagingDir string
	Handles    []Handle

	once sync.Once
}

// Materialize runs the full protocol for docs and returns a batch of active
// handles in input order. On any error the partial batch has already been
// cleaned up: staged copies removed, uploaded files deleted.
func (m *Manager) Materialize(ctx context.Context, outputDir string, docs []generation.Document) (*Batch, error) {
	anchorDir, err := anchor.Find(outputDir, m.anchorDepth)
	if err != nil {
		return nil, err
	}

	// Each request gets its own staging subfolder, so concurrent requests
	// for the same project never share staged filenames.
	stagingDir := filepath.Join(anchorDir, ".scribe", "staging", uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	b := &Batch{store: m.store, stagingDir: stagingDir}

	staged, err := stage(stagingDir, docs)
	if err != nil {
		b.Close()
		return nil, err
	}

	if err := m.uploadAll(ctx, b, docs, staged); err != nil {
		b.Close()
		return nil, err
	}
	if err := m.awaitActive(ctx, b); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// stage copies each document into the staging dir, preserving base names.
func stage(stagingDir string, docs []generation.Document) ([]string, error) {
	staged := make([]string, len(docs))
	for i, d := range docs {
		dst := filepath.Join(stagingDir, fmt.Sprintf("%02d-%s", i, filepath.Base(d.Path)))
		if err := copyFile(d.Path, dst); err != nil {
			return nil, fmt.Errorf("stage %s: %w", d.Name, err)
		}
		staged[i] = dst
	}
	return staged, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// uploadAll submits every staged file, fanned out with fail-fast
// cancellation. Handles land at their document's index so batch order is
// input order, not completion order. Partial uploads are recorded on the
// batch so Close can delete them after an abort.
func (m *Manager) uploadAll(ctx context.Context, b *Batch, docs []generation.Document, staged []string) error {
	handles := make([]Handle, len(docs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i := range docs {
		i := i
		g.Go(func() error {
			ct := docs[i].ContentType
			if ct == "" {
				ct = "text/plain"
			}
			h, err := m.store.Upload(gctx, staged[i], ct, docs[i].Name)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrUploadFailed, docs[i].Name, err)
			}
			h.StagedPath = staged[i]
			if h.CreatedAt.IsZero() {
				h.CreatedAt = time.Now()
			}
			mu.Lock()
			handles[i] = h
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	// Keep every handle that made it remote, even on abort — Close needs
	// them for deletion.
	for _, h := range handles {
		if h.Name != "" {
			b.Handles = append(b.Handles, h)
		}
	}
	return err
}

// awaitActive polls every non-active handle until it reports active,
// failing the batch on the first failed state or timeout. Handle polls are
// independent: one handle failing cancels the rest immediately.
func (m *Manager) awaitActive(ctx context.Context, b *Batch) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range b.Handles {
		h := &b.Handles[i]
		if h.State == StateActive {
			continue
		}
		g.Go(func() error { return m.pollHandle(gctx, h) })
	}
	return g.Wait()
}

func (m *Manager) pollHandle(ctx context.Context, h *Handle) error {
	// The handle's creation time bounds total polling, so time already
	// spent uploading or waiting on sibling handles counts against it.
	deadline := time.NewTimer(time.Until(h.CreatedAt.Add(m.pollTimeout)))
	defer deadline.Stop()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		state, err := m.store.Status(ctx, h.Name)
		if err != nil {
			return fmt.Errorf("%w: poll %s: %w", ErrUploadFailed, h.Name, err)
		}
		h.State = state
		switch state {
		case StateActive:
			return nil
		case StateFailed:
			return fmt.Errorf("%w: remote processing failed for %s", ErrUploadFailed, h.Name)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s still pending after %s", ErrUploadTimeout, h.Name, m.pollTimeout)
		case <-ticker.C:
		}
	}
}

// Close deletes the staged local copies and every remote file the batch
// created. Cleanup failures are logged and swallowed: a stray leftover file
// must never become the request's terminal error or stop cleanup of the
// remaining items. Safe under a canceled request context — deletion runs on
// its own timeout.
func (b *Batch) Close() {
	b.once.Do(func() {
		if err := os.RemoveAll(b.stagingDir); err != nil {
			log.Warn().Err(err).Str("dir", b.stagingDir).Msg("staging cleanup failed")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		for _, h := range b.Handles {
			if err := b.store.Delete(ctx, h.Name); err != nil {
				log.Warn().Err(err).Str("file", h.Name).Msg("remote file cleanup failed")
			}
		}
	})
}
