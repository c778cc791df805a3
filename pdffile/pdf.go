// Package pdffile implements the PDF document adapter. PDF pages map
// directly to scheduling pages; each text-showing string of a page's
// content stream becomes one unit anchored by page and run index.
//
// The byte-level work is delegated to a Codec. The built-in SimpleCodec
// handles uncompressed content streams, which is enough for generated and
// pre-decompressed files; richer files need an external codec injected
// through New.
package pdffile

import (
	"fmt"

	"github.com/glotdoc/glotdoc/document"
	"github.com/glotdoc/glotdoc/format"
	"github.com/glotdoc/glotdoc/segment"
)

// Adapter is the PDF format adapter.
type Adapter struct {
	codec Codec
}

// New creates a PDF adapter backed by the given codec. A nil codec selects
// SimpleCodec.
func New(codec Codec) *Adapter {
	if codec == nil {
		codec = NewSimpleCodec()
	}
	return &Adapter{codec: codec}
}

// Kind implements format.Adapter.
func (a *Adapter) Kind() format.Kind { return format.KindPDF }

// model wraps the opened codec document.
type model struct {
	doc Document
}

// Parse implements format.Adapter.
func (a *Adapter) Parse(path string) (document.Model, []*document.Page, error) {
	doc, err := a.codec.Open(path)
	if err != nil {
		return nil, nil, &document.ParseError{Path: path, Reason: "opening pdf", Err: err}
	}

	var pages []*document.Page
	for pi, runs := range doc.Pages() {
		page := &document.Page{Index: pi}
		for ri, text := range runs {
			page.Units = append(page.Units, &document.Unit{
				ID:           fmt.Sprintf("page:%d/run:%d", pi, ri),
				Anchor:       fmt.Sprintf("page:%d/run:%d", pi, ri),
				SourceText:   text,
				Translatable: !segment.PassThrough(text),
			})
		}
		pages = append(pages, page)
	}
	return &model{doc: doc}, pages, nil
}

// Reassemble implements format.Adapter.
func (a *Adapter) Reassemble(dm document.Model, pages []*document.Page) ([]byte, error) {
	m, ok := dm.(*model)
	if !ok {
		return nil, fmt.Errorf("pdffile: unexpected model type %T", dm)
	}
	for _, p := range pages {
		for _, u := range p.Units {
			var pi, ri int
			if _, err := fmt.Sscanf(u.ID, "page:%d/run:%d", &pi, &ri); err != nil || pi != p.Index {
				return nil, &document.AssemblyError{Page: p.Index, Anchor: u.Anchor, Reason: "unknown run"}
			}
			if err := m.doc.Replace(pi, ri, u.Output()); err != nil {
				return nil, &document.AssemblyError{Page: p.Index, Anchor: u.Anchor, Reason: err.Error()}
			}
		}
	}
	return m.doc.Bytes()
}
