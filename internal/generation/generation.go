// Package generation defines the data model shared across the pipeline:
// what a generation request looks like, what kinds of artifacts exist,
// and the terminal result every request resolves to.
package generation

// TaskKind selects which artifact the pipeline produces.
type TaskKind int

const (
	// SpecGeneration turns source material and guidelines into a game
	// specification document.
	SpecGeneration TaskKind = iota
	// ImplementationGeneration turns a specification into an
	// implementation draft.
	ImplementationGeneration
)

func (k TaskKind) String() string {
	switch k {
	case SpecGeneration:
		return "spec"
	case ImplementationGeneration:
		return "implementation"
	default:
		return "unknown"
	}
}

// Role labels an input document's place in the prompt.
type Role int

const (
	RoleSource Role = iota
	RoleGuideline
	RoleSpecification
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "Source"
	case RoleGuideline:
		return "Guideline"
	case RoleSpecification:
		return "Specification"
	default:
		return "Document"
	}
}

// Document is one input to a generation request. Path locates the bytes on
// local disk; Name is the display name shown to the model; Content is
// populated only on the inline (direct-provider) path.
type Document struct {
	Path        string
	Name        string
	Role        Role
	ContentType string
	Content     string
}

// Request is immutable once constructed. Documents keep their input order —
// everything downstream (prompt rendering, file-handle references) follows
// that order.
type Request struct {
	Docs      []Document
	Kind      TaskKind
	Project   string
	OutputDir string
}

// Result is the terminal outcome of one request. Exactly one of Path or Err
// is meaningful: Path is set iff OK, Err is set iff !OK.
type Result struct {
	OK   bool
	Path string
	Err  string
}
