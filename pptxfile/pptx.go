// Package pptxfile implements the PresentationML (.pptx) document adapter.
// Slides are the natural unit of page-level concurrency; within a slide,
// every <a:t> run of a text frame or table cell becomes one unit anchored
// by slide, paragraph, and run index. Slide layout, masters, and media are
// never touched.
package pptxfile

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/glotdoc/glotdoc/document"
	"github.com/glotdoc/glotdoc/format"
	"github.com/glotdoc/glotdoc/ooxml"
	"github.com/glotdoc/glotdoc/segment"
)

// slidePart matches slide part names and captures the slide number.
var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Adapter is the pptx format adapter.
type Adapter struct{}

// New creates a pptx adapter.
func New() *Adapter { return &Adapter{} }

// Kind implements format.Adapter.
func (a *Adapter) Kind() format.Kind { return format.KindPptx }

// slideModel is the run table of one slide part.
type slideModel struct {
	part string
	xml  string
	runs []ooxml.Run
}

// model holds the package and per-slide run tables in slide order.
type model struct {
	pkg    *ooxml.Package
	slides []slideModel
}

// Parse implements format.Adapter.
func (a *Adapter) Parse(path string) (document.Model, []*document.Page, error) {
	pkg, err := ooxml.Open(path)
	if err != nil {
		return nil, nil, &document.ParseError{Path: path, Reason: "opening pptx package", Err: err}
	}

	// Collect slide parts in presentation order (slide1, slide2, ...).
	type numbered struct {
		num  int
		name string
	}
	var found []numbered
	for _, e := range pkg.Entries {
		if m := slidePart.FindStringSubmatch(e.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			found = append(found, numbered{num: n, name: e.Name})
		}
	}
	if len(found) == 0 {
		return nil, nil, &document.ParseError{Path: path, Reason: "no slides in package"}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].num < found[j].num })

	m := &model{pkg: pkg}
	var pages []*document.Page
	for si, f := range found {
		part, _ := pkg.Part(f.name)
		xml := string(part)
		runs := ooxml.ScanRuns(xml, "a:t", "a:p")
		m.slides = append(m.slides, slideModel{part: f.name, xml: xml, runs: runs})

		page := &document.Page{Index: si}
		for ri, r := range runs {
			page.Units = append(page.Units, &document.Unit{
				ID:           fmt.Sprintf("slide:%d/run:%d", si, ri),
				Anchor:       fmt.Sprintf("slide:%d/p:%d/r:%d", si, r.Para, r.Index),
				SourceText:   r.Text,
				Translatable: !segment.PassThrough(r.Text),
			})
		}
		pages = append(pages, page)
	}
	return m, pages, nil
}

// Reassemble implements format.Adapter.
func (a *Adapter) Reassemble(dm document.Model, pages []*document.Page) ([]byte, error) {
	m, ok := dm.(*model)
	if !ok {
		return nil, fmt.Errorf("pptxfile: unexpected model type %T", dm)
	}

	replaced := make(map[string][]byte, len(m.slides))
	for _, p := range pages {
		if p.Index < 0 || p.Index >= len(m.slides) {
			return nil, &document.AssemblyError{Page: p.Index, Anchor: "", Reason: "unknown slide"}
		}
		slide := m.slides[p.Index]
		outputs := make([]string, len(slide.runs))
		for _, u := range p.Units {
			var si, ri int
			if _, err := fmt.Sscanf(u.ID, "slide:%d/run:%d", &si, &ri); err != nil || si != p.Index || ri < 0 || ri >= len(slide.runs) {
				return nil, &document.AssemblyError{Page: p.Index, Anchor: u.Anchor, Reason: "unknown run"}
			}
			outputs[ri] = u.Output()
		}
		spliced, err := ooxml.Splice(slide.xml, slide.runs, outputs)
		if err != nil {
			return nil, fmt.Errorf("pptxfile: slide %d: %w", p.Index, err)
		}
		replaced[slide.part] = []byte(spliced)
	}
	return m.pkg.Rewrite(replaced)
}
