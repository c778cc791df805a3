// Package docxfile implements the WordprocessingML (.docx) document
// adapter. Body paragraphs and table cell paragraphs are both covered at
// run granularity: each <w:t> element becomes one unit anchored by its
// paragraph and run index, so styling boundaries survive translation
// untouched. Everything outside run text — styles, numbering, images,
// relationships — passes through byte for byte.
package docxfile

import (
	"fmt"

	"github.com/glotdoc/glotdoc/document"
	"github.com/glotdoc/glotdoc/format"
	"github.com/glotdoc/glotdoc/ooxml"
	"github.com/glotdoc/glotdoc/segment"
)

// documentPart is the main part of a WordprocessingML package.
const documentPart = "word/document.xml"

// ParasPerPage is how many paragraphs form one scheduling page. Word files
// carry no fixed pagination, so paragraph batches serve as the page-level
// concurrency container.
const ParasPerPage = 24

// Adapter is the docx format adapter.
type Adapter struct{}

// New creates a docx adapter.
func New() *Adapter { return &Adapter{} }

// Kind implements format.Adapter.
func (a *Adapter) Kind() format.Kind { return format.KindDocx }

// model holds the opened package and the run table needed to splice
// translations back in.
type model struct {
	pkg  *ooxml.Package
	xml  string
	runs []ooxml.Run
}

// Parse implements format.Adapter.
func (a *Adapter) Parse(path string) (document.Model, []*document.Page, error) {
	pkg, err := ooxml.Open(path)
	if err != nil {
		return nil, nil, &document.ParseError{Path: path, Reason: "opening docx package", Err: err}
	}
	part, ok := pkg.Part(documentPart)
	if !ok {
		return nil, nil, &document.ParseError{Path: path, Reason: "missing word/document.xml"}
	}

	xml := string(part)
	runs := ooxml.ScanRuns(xml, "w:t", "w:p")
	m := &model{pkg: pkg, xml: xml, runs: runs}

	var pages []*document.Page
	pageOf := make(map[int]*document.Page)
	for i, r := range runs {
		pageIdx := 0
		if r.Para >= 0 {
			pageIdx = r.Para / ParasPerPage
		}
		page, ok := pageOf[pageIdx]
		if !ok {
			page = &document.Page{Index: pageIdx}
			pageOf[pageIdx] = page
			pages = append(pages, page)
		}
		anchor := fmt.Sprintf("p:%d/r:%d", r.Para, r.Index)
		page.Units = append(page.Units, &document.Unit{
			ID:           fmt.Sprintf("run:%d", i),
			Anchor:       anchor,
			SourceText:   r.Text,
			Translatable: !segment.PassThrough(r.Text),
		})
	}
	return m, pages, nil
}

// Reassemble implements format.Adapter.
func (a *Adapter) Reassemble(dm document.Model, pages []*document.Page) ([]byte, error) {
	m, ok := dm.(*model)
	if !ok {
		return nil, fmt.Errorf("docxfile: unexpected model type %T", dm)
	}

	outputs := make([]string, len(m.runs))
	count := 0
	for _, p := range pages {
		for _, u := range p.Units {
			var idx int
			if _, err := fmt.Sscanf(u.ID, "run:%d", &idx); err != nil || idx < 0 || idx >= len(m.runs) {
				return nil, &document.AssemblyError{Page: p.Index, Anchor: u.Anchor, Reason: "unknown run"}
			}
			outputs[idx] = u.Output()
			count++
		}
	}
	if count != len(m.runs) {
		return nil, &document.AssemblyError{Page: 0, Anchor: "", Reason: fmt.Sprintf("expected %d units, got %d", len(m.runs), count)}
	}

	spliced, err := ooxml.Splice(m.xml, m.runs, outputs)
	if err != nil {
		return nil, fmt.Errorf("docxfile: %w", err)
	}
	return m.pkg.Rewrite(map[string][]byte{documentPart: []byte(spliced)})
}
