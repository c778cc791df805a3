// Package mdfile implements the Markdown document adapter.
//
// The body is split into sections on headings (# to ######) and horizontal
// rules found outside fenced code blocks; each section becomes one
// scheduling page. Within a section, fenced code blocks are emitted as
// pass-through units and copied verbatim, while prose spans are segmented
// under the unit size budget. YAML front matter fields form their own page
// with one unit per scalar field.
//
// Body units tile the source exactly, so reassembly with identity
// translations reproduces the body byte for byte.
package mdfile

import (
	"fmt"
	"os"
	"strings"

	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/glotdoc/glotdoc/document"
	"github.com/glotdoc/glotdoc/format"
	"github.com/glotdoc/glotdoc/segment"
)

// codeBlockFence matches fenced code blocks (``` or ~~~).
var codeBlockFence = regexp.MustCompile("(?s)```[^`]*?```|~~~[^~]*?~~~")

// sectionSplitter matches headings and horizontal rules that delimit
// sections. It is only applied outside fenced code blocks.
var sectionSplitter = regexp.MustCompile(`(?m)^(#{1,6} .+|[-*_]{3,}[ \t]*)$`)

// frontmatterBlock matches a YAML front matter block at the start of the
// file.
var frontmatterBlock = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---\r?\n`)

// Adapter is the Markdown format adapter.
type Adapter struct {
	// MaxUnitChars bounds one unit; zero applies segment.DefaultMaxChars.
	MaxUnitChars int
}

// New creates a Markdown adapter with the given unit size budget.
func New(maxUnitChars int) *Adapter {
	return &Adapter{MaxUnitChars: maxUnitChars}
}

// Kind implements format.Adapter.
func (a *Adapter) Kind() format.Kind { return format.KindMarkdown }

// model carries what reassembly needs: the front matter node for scalar
// write-back and the number of body pages (body units tile the body, so
// their concatenated outputs rebuild it without extra bookkeeping).
type model struct {
	hasFM  bool
	fmNode *yaml.Node
	fmKeys []string
}

// Parse implements format.Adapter.
func (a *Adapter) Parse(path string) (document.Model, []*document.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &document.ParseError{Path: path, Reason: "reading file", Err: err}
	}
	text := string(data)

	m := &model{}
	var pages []*document.Page

	// Front matter page.
	if loc := frontmatterBlock.FindStringSubmatchIndex(text); loc != nil {
		fmRaw := text[loc[2]:loc[3]]
		var fmNode yaml.Node
		if err := yaml.Unmarshal([]byte(fmRaw), &fmNode); err != nil {
			return nil, nil, &document.ParseError{Path: path, Reason: "malformed front matter", Err: err}
		}
		if len(fmNode.Content) > 0 && fmNode.Content[0].Kind == yaml.MappingNode {
			m.hasFM = true
			m.fmNode = &fmNode
			text = text[loc[1]:]

			page := &document.Page{Index: 0}
			root := fmNode.Content[0]
			for i := 0; i+1 < len(root.Content); i += 2 {
				keyNode, valNode := root.Content[i], root.Content[i+1]
				if valNode.Kind != yaml.ScalarNode {
					continue
				}
				m.fmKeys = append(m.fmKeys, keyNode.Value)
				page.Units = append(page.Units, &document.Unit{
					ID:           "fm:" + keyNode.Value,
					Anchor:       "fm:" + keyNode.Value,
					SourceText:   valNode.Value,
					Translatable: !segment.PassThrough(valNode.Value),
				})
			}
			pages = append(pages, page)
		}
	}

	// Section boundaries outside code fences.
	codeRanges := codeBlockFence.FindAllStringIndex(text, -1)
	var delims [][]int
	for _, loc := range sectionSplitter.FindAllStringIndex(text, -1) {
		if !insideRanges(loc[0], codeRanges) {
			delims = append(delims, loc)
		}
	}

	// Section spans tile the body: the preamble before the first delimiter,
	// then one span per delimiter up to the next.
	var sections [][2]int
	if len(delims) == 0 {
		if text != "" {
			sections = append(sections, [2]int{0, len(text)})
		}
	} else {
		if delims[0][0] > 0 {
			sections = append(sections, [2]int{0, delims[0][0]})
		}
		for i, loc := range delims {
			end := len(text)
			if i+1 < len(delims) {
				end = delims[i+1][0]
			}
			sections = append(sections, [2]int{loc[0], end})
		}
	}

	for si, sec := range sections {
		page := &document.Page{Index: len(pages)}
		unitIdx := 0
		addUnit := func(piece string, passThrough bool) {
			page.Units = append(page.Units, &document.Unit{
				ID:           fmt.Sprintf("sec:%d/u:%d", si, unitIdx),
				Anchor:       fmt.Sprintf("sec:%d/u:%d", si, unitIdx),
				SourceText:   piece,
				Translatable: !passThrough && !segment.PassThrough(piece),
			})
			unitIdx++
		}

		// Alternate prose and fence spans so fences never reach the
		// provider.
		pos := sec[0]
		for _, cr := range codeRanges {
			if cr[1] <= sec[0] || cr[0] >= sec[1] {
				continue
			}
			if cr[0] > pos {
				addProse(text[pos:cr[0]], a.MaxUnitChars, addUnit)
			}
			fenceEnd := cr[1]
			if fenceEnd > sec[1] {
				fenceEnd = sec[1]
			}
			addUnit(text[max(pos, cr[0]):fenceEnd], true)
			pos = fenceEnd
		}
		if pos < sec[1] {
			addProse(text[pos:sec[1]], a.MaxUnitChars, addUnit)
		}
		if len(page.Units) > 0 {
			pages = append(pages, page)
		}
	}

	return m, pages, nil
}

// addProse segments a prose span under the unit budget.
func addProse(prose string, maxChars int, add func(string, bool)) {
	for _, sp := range segment.SplitSpans(prose, maxChars) {
		add(prose[sp.Start:sp.End], false)
	}
}

// Reassemble implements format.Adapter.
func (a *Adapter) Reassemble(dm document.Model, pages []*document.Page) ([]byte, error) {
	m, ok := dm.(*model)
	if !ok {
		return nil, fmt.Errorf("mdfile: unexpected model type %T", dm)
	}

	var b strings.Builder

	bodyPages := pages
	if m.hasFM {
		if len(pages) == 0 {
			return nil, &document.AssemblyError{Page: 0, Anchor: "", Reason: "front matter page missing"}
		}
		fmPage := pages[0]
		bodyPages = pages[1:]

		root := m.fmNode.Content[0]
		byKey := make(map[string]*document.Unit, len(fmPage.Units))
		for _, u := range fmPage.Units {
			byKey[u.ID] = u
		}
		for i := 0; i+1 < len(root.Content); i += 2 {
			keyNode, valNode := root.Content[i], root.Content[i+1]
			if valNode.Kind != yaml.ScalarNode {
				continue
			}
			u, ok := byKey["fm:"+keyNode.Value]
			if !ok {
				return nil, &document.AssemblyError{Page: 0, Anchor: "fm:" + keyNode.Value, Reason: "unit missing"}
			}
			valNode.Value = u.Output()
		}
		fmBytes, err := yaml.Marshal(m.fmNode)
		if err != nil {
			return nil, fmt.Errorf("mdfile: marshaling front matter: %w", err)
		}
		fmStr := strings.TrimSpace(string(fmBytes))
		fmStr = strings.TrimSpace(strings.TrimPrefix(fmStr, "---"))
		b.WriteString("---\n")
		b.WriteString(fmStr)
		b.WriteString("\n---\n")
	}

	for _, p := range bodyPages {
		for _, u := range p.Units {
			b.WriteString(u.Output())
		}
	}
	return []byte(b.String()), nil
}

// insideRanges reports whether pos falls within any [start,end) range.
func insideRanges(pos int, ranges [][]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}
