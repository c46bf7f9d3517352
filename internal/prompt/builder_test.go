package prompt

import (
	"strings"
	"testing"

	"github.com/forge-ai/scribe/internal/generation"
)

func specDocs() []generation.Document {
	return []generation.Document{
		{Name: "world.md", Role: generation.RoleSource, Content: "A drowned city beneath a frozen sea."},
		{Name: "style.md", Role: generation.RoleGuideline, Content: "Keep combat non-lethal."},
		{Name: "factions.md", Role: generation.RoleSource, Content: "Three rival salvage guilds."},
	}
}

func TestBuildDeterministic(t *testing.T) {
	docs := specDocs()
	p1, s1 := Build(docs, generation.SpecGeneration, "myproj")
	p2, s2 := Build(docs, generation.SpecGeneration, "myproj")
	if p1 != p2 {
		t.Error("prompt differs across identical calls")
	}
	if s1 != s2 {
		t.Error("system instruction differs across identical calls")
	}
}

func TestBuildPartitionsSourcesBeforeGuidelines(t *testing.T) {
	p, _ := Build(specDocs(), generation.SpecGeneration, "myproj")

	world := strings.Index(p, "### Source: world.md")
	factions := strings.Index(p, "### Source: factions.md")
	style := strings.Index(p, "### Guideline: style.md")
	for label, idx := range map[string]int{"world": world, "factions": factions, "style": style} {
		if idx < 0 {
			t.Fatalf("%s block missing from prompt:\n%s", label, p)
		}
	}
	if !(world < factions) {
		t.Error("sources not in input order")
	}
	if !(factions < style) {
		t.Error("guidelines rendered before sources")
	}
}

func TestBuildSpecTaskSuffix(t *testing.T) {
	p, system := Build(specDocs(), generation.SpecGeneration, "myproj")

	for _, section := range []string{
		"Overview", "Mechanics", "Content Integration",
		"Player Experience", "Technical Requirements", "Success Criteria",
	} {
		if !strings.Contains(p, section) {
			t.Errorf("spec suffix missing section %q", section)
		}
	}
	if !strings.Contains(system, "game designer") {
		t.Errorf("unexpected system instruction: %q", system)
	}
	if !strings.Contains(p, "Project: myproj") {
		t.Error("project name missing from prompt")
	}
}

func TestBuildImplementation(t *testing.T) {
	docs := []generation.Document{
		{Name: "myproj-spec.md", Role: generation.RoleSpecification, Content: "## Mechanics\nGrapple hooks."},
	}
	p, system := Build(docs, generation.ImplementationGeneration, "myproj")

	if !strings.Contains(p, "### Specification: myproj-spec.md") {
		t.Errorf("specification block missing:\n%s", p)
	}
	for _, item := range []string{"Main game logic", "Data files", "Configuration", "asset list", "setup README"} {
		if !strings.Contains(p, item) {
			t.Errorf("implementation suffix missing %q", item)
		}
	}
	if !strings.Contains(system, "game developer") {
		t.Errorf("unexpected system instruction: %q", system)
	}
}

func TestBuildWithAttachmentsOmitsContent(t *testing.T) {
	docs := specDocs()
	p, _ := BuildWithAttachments(docs, generation.SpecGeneration, "myproj")

	for _, d := range docs {
		if strings.Contains(p, d.Content) {
			t.Errorf("attachment prompt inlines content of %s", d.Name)
		}
	}
	if !strings.Contains(p, "### Source: world.md (attached file)") {
		t.Errorf("attachment label missing:\n%s", p)
	}
}
