// Package txtfile implements the plain-text document adapter.
//
// The file is split into blocks on blank lines. Each block becomes one or
// more translatable units (oversize blocks are segmented on sentence
// boundaries); blank-line separators are kept verbatim in the structural
// model, so reassembly with identity translations reproduces the input
// byte for byte. Text has no native pages, so blocks are batched into
// fixed-size groups that serve as the unit of page-level concurrency.
package txtfile

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/glotdoc/glotdoc/document"
	"github.com/glotdoc/glotdoc/format"
	"github.com/glotdoc/glotdoc/segment"
)

// BlocksPerPage is how many text blocks form one scheduling page.
const BlocksPerPage = 64

// blockSep matches the blank-line runs separating blocks.
var blockSep = regexp.MustCompile(`\n[ \t]*\n[\s]*`)

// Adapter is the plain-text format adapter.
type Adapter struct {
	// MaxUnitChars bounds one unit; zero applies segment.DefaultMaxChars.
	MaxUnitChars int
}

// New creates a text adapter with the given unit size budget.
func New(maxUnitChars int) *Adapter {
	return &Adapter{MaxUnitChars: maxUnitChars}
}

// Kind implements format.Adapter.
func (a *Adapter) Kind() format.Kind { return format.KindText }

// model carries the separators needed to stitch block outputs back
// together in source order.
type model struct {
	// leading is the whitespace before the first block.
	leading string
	// seps[i] is the separator after block i (the last may be "").
	seps []string
	// unitsPerBlock[i] is how many units block i was segmented into.
	unitsPerBlock []int
}

// Parse implements format.Adapter.
func (a *Adapter) Parse(path string) (document.Model, []*document.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &document.ParseError{Path: path, Reason: "reading file", Err: err}
	}
	text := string(data)

	m := &model{}
	var blocks []string

	// Tile the text into leading whitespace, blocks, and separators.
	rest := text
	if idx := strings.IndexFunc(rest, func(r rune) bool { return !isSpace(r) }); idx > 0 {
		m.leading = rest[:idx]
		rest = rest[idx:]
	} else if idx < 0 {
		m.leading = rest
		rest = ""
	}
	for rest != "" {
		loc := blockSep.FindStringIndex(rest)
		if loc == nil {
			blocks = append(blocks, rest)
			m.seps = append(m.seps, "")
			break
		}
		blocks = append(blocks, rest[:loc[0]])
		m.seps = append(m.seps, rest[loc[0]:loc[1]])
		rest = rest[loc[1]:]
	}

	var pages []*document.Page
	var page *document.Page
	for bi, block := range blocks {
		if bi%BlocksPerPage == 0 {
			page = &document.Page{Index: len(pages)}
			pages = append(pages, page)
		}
		spans := segment.SplitSpans(block, a.MaxUnitChars)
		m.unitsPerBlock = append(m.unitsPerBlock, len(spans))
		for si, sp := range spans {
			text := block[sp.Start:sp.End]
			page.Units = append(page.Units, &document.Unit{
				ID:           fmt.Sprintf("blk:%d/s:%d", bi, si),
				Anchor:       fmt.Sprintf("blk:%d/s:%d", bi, si),
				SourceText:   text,
				Translatable: !segment.PassThrough(text),
			})
		}
	}

	return m, pages, nil
}

// Reassemble implements format.Adapter.
func (a *Adapter) Reassemble(dm document.Model, pages []*document.Page) ([]byte, error) {
	m, ok := dm.(*model)
	if !ok {
		return nil, fmt.Errorf("txtfile: unexpected model type %T", dm)
	}

	var units []*document.Unit
	for _, p := range pages {
		units = append(units, p.Units...)
	}

	var b strings.Builder
	b.WriteString(m.leading)
	ui := 0
	for bi, n := range m.unitsPerBlock {
		for s := 0; s < n; s++ {
			if ui >= len(units) {
				return nil, &document.AssemblyError{
					Page: bi / BlocksPerPage, Anchor: fmt.Sprintf("blk:%d/s:%d", bi, s),
					Reason: "unit missing",
				}
			}
			b.WriteString(units[ui].Output())
			ui++
		}
		b.WriteString(m.seps[bi])
	}
	return []byte(b.String()), nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
