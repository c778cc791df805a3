// Package format defines the closed enumeration of supported document
// formats, the adapter contract every format implements, and a registry
// that maps a detected format to its adapter.
//
// Detection inspects file content first (PDF header, OOXML zip layout) and
// falls back to the file extension, so a mislabeled file still routes to
// the right adapter.
package format

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/glotdoc/glotdoc/document"
)

// Kind is the closed enumeration of supported document formats.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindMarkdown
	KindDocx
	KindPptx
	KindPDF
)

// String returns the canonical format name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMarkdown:
		return "markdown"
	case KindDocx:
		return "docx"
	case KindPptx:
		return "pptx"
	case KindPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// Adapter is the capability contract of one format: decompose a document
// into a structural model plus anchored pages of units, and later
// reassemble the translated pages into output bytes. Adapters never call
// the translation provider.
type Adapter interface {
	// Kind returns the format this adapter handles.
	Kind() Kind
	// Parse decomposes the file at path. Malformed input yields a
	// *document.ParseError.
	Parse(path string) (document.Model, []*document.Page, error)
	// Reassemble re-inserts each unit's output text at its anchor, in
	// original page order, and serializes the result.
	Reassemble(model document.Model, pages []*document.Page) ([]byte, error)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry maps format kinds to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Kind]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[Kind]Adapter)}
}

// Register binds an adapter to its kind, replacing any previous binding.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Kind()] = a
}

// Lookup returns the adapter for a kind.
func (r *Registry) Lookup(k Kind) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[k]
	return a, ok
}

// Kinds returns the registered kinds in enumeration order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var kinds []Kind
	for _, k := range []Kind{KindText, KindMarkdown, KindDocx, KindPptx, KindPDF} {
		if _, ok := r.adapters[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// ---------------------------------------------------------------------------
// Detection
// ---------------------------------------------------------------------------

// extKinds maps file extensions to kinds for the fallback path.
var extKinds = map[string]Kind{
	".txt":      KindText,
	".text":     KindText,
	".md":       KindMarkdown,
	".markdown": KindMarkdown,
	".docx":     KindDocx,
	".pptx":     KindPptx,
	".pdf":      KindPDF,
}

// Detect determines the format of the file at path by content, then by
// extension. Unrecognized files yield document.ErrUnsupportedFormat.
func Detect(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 8)
	n, _ := f.Read(head)
	head = head[:n]

	switch {
	case len(head) >= 5 && string(head[:5]) == "%PDF-":
		return KindPDF, nil
	case len(head) >= 4 && string(head[:2]) == "PK":
		if k := detectOOXML(path); k != KindUnknown {
			return k, nil
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if k, ok := extKinds[ext]; ok {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("%s: %w", path, document.ErrUnsupportedFormat)
}

// detectOOXML distinguishes docx from pptx by the package's main part.
func detectOOXML(path string) Kind {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return KindUnknown
	}
	defer zr.Close()
	for _, f := range zr.File {
		switch {
		case f.Name == "word/document.xml":
			return KindDocx
		case f.Name == "ppt/presentation.xml":
			return KindPptx
		}
	}
	return KindUnknown
}
