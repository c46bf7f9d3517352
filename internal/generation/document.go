package generation

import (
	"mime"
	"path/filepath"
	"strings"
)

// NewDocument builds a Document for a local file, deriving the display name
// from the base name and the content type from the extension. Unknown
// extensions fall back to text/plain, which is what the remote file storage
// expects for design documents anyway.
func NewDocument(path string, role Role) Document {
	ct := mime.TypeByExtension(filepath.Ext(path))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" {
		ct = "text/plain"
	}
	return Document{
		Path:        path,
		Name:        filepath.Base(path),
		Role:        role,
		ContentType: ct,
	}
}

// NewDocuments maps a path list to documents sharing one role, preserving
// input order.
func NewDocuments(paths []string, role Role) []Document {
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		docs = append(docs, NewDocument(p, role))
	}
	return docs
}
