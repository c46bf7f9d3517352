package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/forge-ai/scribe/internal/anchor"
	"github.com/forge-ai/scribe/internal/generation"
	"github.com/forge-ai/scribe/internal/provider"
	"github.com/forge-ai/scribe/internal/upload"
)

type fakeText struct {
	out        string
	err        error
	calls      int
	lastPrompt string
	lastSystem string
}

func (f *fakeText) Generate(ctx context.Context, prompt, system string) (string, error) {
	f.calls++
	f.lastPrompt, f.lastSystem = prompt, system
	return f.out, f.err
}

// fakeFiles implements FilesGenerator in memory.
type fakeFiles struct {
	mu       sync.Mutex
	uploads  int
	statuses int
	deletes  int

	state    upload.State
	genOut   string
	genErr   error
	genCalls int
	lastRefs []upload.Handle
}

func (f *fakeFiles) Upload(ctx context.Context, path, contentType, displayName string) (upload.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return upload.Handle{
		Name:        "files/" + displayName,
		URI:         "https://g.test/files/" + displayName,
		ContentType: contentType,
		State:       upload.StatePending,
		CreatedAt:   time.Now(),
	}, nil
}

func (f *fakeFiles) Status(ctx context.Context, name string) (upload.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses++
	return f.state, nil
}

func (f *fakeFiles) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return nil
}

func (f *fakeFiles) GenerateWithFiles(ctx context.Context, prompt, system string, refs []upload.Handle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCalls++
	f.lastRefs = refs
	return f.genOut, f.genErr
}

// assertTerminal checks the success-XOR-failure shape of a result.
func assertTerminal(t *testing.T, res generation.Result) {
	t.Helper()
	if res.OK && (res.Path == "" || res.Err != "") {
		t.Errorf("success result malformed: %+v", res)
	}
	if !res.OK && (res.Err == "" || res.Path != "") {
		t.Errorf("failure result malformed: %+v", res)
	}
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// projectTree builds an anchored root with an output dir, mirroring a real
// project folder carrying its .env marker.
func projectTree(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, anchor.MarkerFile), []byte("GEMINI_API_KEY=test\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(root, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	return root, out
}

func TestGenerateSpecificationDirectProvider(t *testing.T) {
	root, out := projectTree(t)
	sources := []string{
		writeInput(t, root, "world.md", "A drowned city."),
		writeInput(t, root, "factions.md", "Three guilds."),
	}
	guidelines := []string{writeInput(t, root, "style.md", "Non-lethal combat only.")}

	const artifact = "# Game Specification\n\nEcho."
	gen := &fakeText{out: artifact}
	o := New(provider.Config{Kind: provider.AnthropicDirect, Credential: "k"})
	o.text = gen

	res := o.GenerateSpecification(context.Background(), sources, guidelines, out, "myproj")
	assertTerminal(t, res)
	if !res.OK {
		t.Fatalf("generation failed: %s", res.Err)
	}

	name := filepath.Base(res.Path)
	if ok, _ := regexp.MatchString(`^myproj-spec-\d{8}-\d{6}\.md$`, name); !ok {
		t.Errorf("artifact name = %q", name)
	}
	got, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != artifact {
		t.Errorf("artifact content = %q", got)
	}

	if gen.calls != 1 {
		t.Errorf("provider calls = %d, want 1", gen.calls)
	}
	for _, want := range []string{"A drowned city.", "Three guilds.", "Non-lethal combat only."} {
		if !strings.Contains(gen.lastPrompt, want) {
			t.Errorf("prompt missing inlined content %q", want)
		}
	}
}

func TestImplementArtifactDirectProvider(t *testing.T) {
	root, out := projectTree(t)
	spec := writeInput(t, root, "myproj-spec.md", "## Mechanics")

	gen := &fakeText{out: "main loop"}
	o := New(provider.Config{Kind: provider.OpenAIDirect, Credential: "k"})
	o.text = gen

	res := o.ImplementArtifact(context.Background(), []string{spec}, out, "myproj")
	assertTerminal(t, res)
	if !res.OK {
		t.Fatalf("generation failed: %s", res.Err)
	}
	if ok, _ := regexp.MatchString(`^myproj-game-\d{8}-\d{6}\.txt$`, filepath.Base(res.Path)); !ok {
		t.Errorf("artifact name = %q", filepath.Base(res.Path))
	}
}

func TestGenerateFilesProvider(t *testing.T) {
	root, out := projectTree(t)
	spec := writeInput(t, root, "myproj-spec.md", "## Mechanics")

	files := &fakeFiles{state: upload.StateActive, genOut: "implementation"}
	o := New(provider.Config{Kind: provider.GoogleFiles},
		WithPolling(5*time.Millisecond, 100*time.Millisecond))
	o.files = files

	res := o.ImplementArtifact(context.Background(), []string{spec}, out, "myproj")
	assertTerminal(t, res)
	if !res.OK {
		t.Fatalf("generation failed: %s", res.Err)
	}

	if files.uploads != 1 {
		t.Errorf("uploads = %d, want 1", files.uploads)
	}
	if files.deletes != 1 {
		t.Errorf("remote deletes = %d, want 1 (success path must clean up too)", files.deletes)
	}
	if files.genCalls != 1 || len(files.lastRefs) != 1 {
		t.Errorf("generate calls = %d with %d refs, want 1 with 1", files.genCalls, len(files.lastRefs))
	}
	if staging, _ := filepath.Glob(filepath.Join(root, ".scribe", "staging", "*")); len(staging) != 0 {
		t.Errorf("staging not empty after success: %v", staging)
	}
}

func TestGenerateFilesProviderTimeout(t *testing.T) {
	root, out := projectTree(t)
	spec := writeInput(t, root, "myproj-spec.md", "## Mechanics")

	files := &fakeFiles{state: upload.StatePending} // never active
	o := New(provider.Config{Kind: provider.GoogleFiles},
		WithPolling(5*time.Millisecond, 50*time.Millisecond))
	o.files = files

	res := o.ImplementArtifact(context.Background(), []string{spec}, out, "myproj")
	assertTerminal(t, res)
	if res.OK {
		t.Fatal("generation succeeded with a never-active upload")
	}
	if !strings.Contains(res.Err, "timed out") {
		t.Errorf("error = %q, want a timeout", res.Err)
	}
	if files.genCalls != 0 {
		t.Errorf("generation was called despite the aborted batch")
	}
	if staging, _ := filepath.Glob(filepath.Join(root, ".scribe", "staging", "*")); len(staging) != 0 {
		t.Errorf("staging not empty after timeout: %v", staging)
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Errorf("output dir not empty after failure: %d entries", len(entries))
	}
}

func TestGenerateFilesProviderGenerationFailure(t *testing.T) {
	root, out := projectTree(t)
	spec := writeInput(t, root, "myproj-spec.md", "## Mechanics")

	files := &fakeFiles{state: upload.StateActive, genErr: errors.New("model overloaded")}
	o := New(provider.Config{Kind: provider.GoogleFiles},
		WithPolling(5*time.Millisecond, 100*time.Millisecond))
	o.files = files

	res := o.ImplementArtifact(context.Background(), []string{spec}, out, "myproj")
	assertTerminal(t, res)
	if res.OK {
		t.Fatal("generation succeeded despite provider failure")
	}
	if !strings.Contains(res.Err, "model overloaded") {
		t.Errorf("error = %q, want the provider's message", res.Err)
	}
	// The batch was fully materialized before the provider failed; both
	// sides must still be cleaned up.
	if files.deletes != 1 {
		t.Errorf("remote deletes = %d, want 1", files.deletes)
	}
	if staging, _ := filepath.Glob(filepath.Join(root, ".scribe", "staging", "*")); len(staging) != 0 {
		t.Errorf("staging not empty after generation failure: %v", staging)
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Errorf("output dir not empty after failure: %d entries", len(entries))
	}
}

func TestGenerateFilesProviderStagingFailure(t *testing.T) {
	root, out := projectTree(t)

	files := &fakeFiles{state: upload.StateActive, genOut: "never used"}
	o := New(provider.Config{Kind: provider.GoogleFiles},
		WithPolling(5*time.Millisecond, 100*time.Millisecond))
	o.files = files

	missing := filepath.Join(root, "nonexistent.md")
	res := o.ImplementArtifact(context.Background(), []string{missing}, out, "myproj")
	assertTerminal(t, res)
	if res.OK {
		t.Fatal("generation succeeded with an unreadable input")
	}
	if files.uploads != 0 {
		t.Errorf("uploads = %d after staging failure, want 0", files.uploads)
	}
	if files.genCalls != 0 {
		t.Errorf("generation was called despite the aborted batch")
	}
	if staging, _ := filepath.Glob(filepath.Join(root, ".scribe", "staging", "*")); len(staging) != 0 {
		t.Errorf("staging not empty after staging failure: %v", staging)
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Errorf("output dir not empty after failure: %d entries", len(entries))
	}
}

func TestGenerateFilesProviderAnchorNotFound(t *testing.T) {
	out := t.TempDir() // no marker file within reach
	spec := writeInput(t, out, "myproj-spec.md", "## Mechanics")

	// No injected fake and no env credential: discovery is the last
	// resort, so its failure is the error the user should see.
	o := New(provider.Config{Kind: provider.GoogleFiles}, WithAnchorDepth(1))
	res := o.ImplementArtifact(context.Background(), []string{spec}, out, "myproj")
	assertTerminal(t, res)
	if res.OK {
		t.Fatal("generation succeeded without an anchor")
	}
	if !strings.Contains(res.Err, "anchor directory not found") {
		t.Errorf("error = %q, want the anchor diagnostic, not a bare credential failure", res.Err)
	}
}

func TestGenerateMissingCredential(t *testing.T) {
	root, out := projectTree(t)
	src := writeInput(t, root, "world.md", "x")

	// No injected fake: the real provider resolver runs and must refuse
	// before any network activity.
	o := New(provider.Config{Kind: provider.AnthropicDirect})
	res := o.GenerateSpecification(context.Background(), []string{src}, nil, out, "myproj")
	assertTerminal(t, res)
	if res.OK || !strings.Contains(res.Err, "missing provider credential") {
		t.Errorf("result = %+v, want missing-credential failure", res)
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Errorf("artifact written despite credential failure")
	}
}

func TestGenerateUnreadableInput(t *testing.T) {
	_, out := projectTree(t)

	o := New(provider.Config{Kind: provider.AnthropicDirect, Credential: "k"})
	o.text = &fakeText{out: "never used"}

	res := o.GenerateSpecification(context.Background(), []string{filepath.Join(out, "missing.md")}, nil, out, "myproj")
	assertTerminal(t, res)
	if res.OK {
		t.Fatal("generation succeeded with an unreadable input")
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Errorf("artifact written despite read failure")
	}
}

func TestGenerateValidation(t *testing.T) {
	_, out := projectTree(t)
	o := New(provider.Config{Kind: provider.AnthropicDirect, Credential: "k"})
	o.text = &fakeText{out: "x"}

	res := o.Generate(context.Background(), generation.Request{
		Docs:      []generation.Document{{Path: "x", Name: "x"}},
		Kind:      generation.SpecGeneration,
		Project:   "   ",
		OutputDir: out,
	})
	assertTerminal(t, res)
	if res.OK {
		t.Error("blank project name accepted")
	}

	res = o.GenerateSpecification(context.Background(), nil, nil, out, "myproj")
	assertTerminal(t, res)
	if res.OK {
		t.Error("empty document set accepted")
	}
}
