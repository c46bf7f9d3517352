// Package prompt renders generation prompts from ordered document lists.
// Building is pure: no I/O, and byte-identical output for identical input.
package prompt

import (
	"fmt"
	"strings"

	"github.com/forge-ai/scribe/internal/generation"
)

const (
	specSystem = "You are an expert game designer. Write clear, structured design documents in markdown."
	implSystem = "You are an expert game developer. Output complete, runnable project files with no placeholders left unexplained."
)

// Build renders the prompt and system instruction for a request whose
// document contents are inlined. Documents render in input order; for
// specification tasks sources render before guidelines, input order
// preserved within each group.
func Build(docs []generation.Document, kind generation.TaskKind, project string) (string, string) {
	return build(docs, kind, project, true)
}

// BuildWithAttachments renders the prompt for the file-upload path: document
// contents travel as uploaded file references, so only the labels appear in
// the prompt text, in the same order the files are attached.
func BuildWithAttachments(docs []generation.Document, kind generation.TaskKind, project string) (string, string) {
	return build(docs, kind, project, false)
}

func build(docs []generation.Document, kind generation.TaskKind, project string, inline bool) (string, string) {
	var sb strings.Builder
	sb.WriteString("Project: " + project + "\n\n")

	switch kind {
	case generation.ImplementationGeneration:
		sb.WriteString("Implement the game described by the specification documents below.\n\n")
		writeGroup(&sb, docs, nil, inline)
		sb.WriteString(implSuffix)
		return sb.String(), implSystem
	default:
		sb.WriteString("Draft the game specification for this project from the source material and guidelines below.\n\n")
		writeGroup(&sb, docs, []generation.Role{generation.RoleSource, generation.RoleGuideline}, inline)
		sb.WriteString(specSuffix)
		return sb.String(), specSystem
	}
}

// writeGroup renders documents as labeled blocks. When roles is non-nil the
// documents are partitioned by role in the given role order; otherwise they
// render as-is. Input order is preserved within each partition.
func writeGroup(sb *strings.Builder, docs []generation.Document, roles []generation.Role, inline bool) {
	if roles == nil {
		for _, d := range docs {
			writeBlock(sb, d, inline)
		}
		return
	}
	for _, role := range roles {
		for _, d := range docs {
			if d.Role == role {
				writeBlock(sb, d, inline)
			}
		}
	}
}

func writeBlock(sb *strings.Builder, d generation.Document, inline bool) {
	if inline {
		fmt.Fprintf(sb, "### %s: %s\n%s\n\n", d.Role, d.Name, strings.TrimRight(d.Content, "\n"))
		return
	}
	fmt.Fprintf(sb, "### %s: %s (attached file)\n\n", d.Role, d.Name)
}

const specSuffix = `Write a complete game specification in markdown with these sections:
1. Overview — concept, genre, and target audience
2. Mechanics — core loops, rules, and systems
3. Content Integration — how the source material drives levels, characters, and narrative
4. Player Experience — pacing, difficulty, and emotional beats
5. Technical Requirements — engine features, platforms, and performance constraints
6. Success Criteria — measurable goals the finished game must meet

Respond with ONLY the specification document. Nothing else.`

const implSuffix = `Produce a complete implementation draft containing:
1. Main game logic
2. Data files for the game content
3. Configuration
4. An asset list with placeholder descriptions
5. A setup README with build and run instructions

Respond with ONLY the implementation files. Nothing else.`
