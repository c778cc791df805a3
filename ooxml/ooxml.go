// Package ooxml holds the zip and text-run plumbing shared by the docx and
// pptx adapters. Office Open XML packages are plain zip archives; the
// adapters only ever touch the text inside run elements (<w:t>, <a:t>), so
// every other part — styles, layout, images, relationships — passes through
// the rewrite untouched.
package ooxml

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Package access
// ---------------------------------------------------------------------------

// Entry is one file of the zip package, kept in archive order.
type Entry struct {
	Name string
	Data []byte
}

// Package is an opened OOXML archive.
type Package struct {
	Entries []Entry
}

// Open reads the whole archive into memory.
func Open(path string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer zr.Close()

	pkg := &Package{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening part %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading part %s: %w", f.Name, err)
		}
		pkg.Entries = append(pkg.Entries, Entry{Name: f.Name, Data: data})
	}
	return pkg, nil
}

// Part returns the named part's bytes.
func (p *Package) Part(name string) ([]byte, bool) {
	for _, e := range p.Entries {
		if e.Name == name {
			return e.Data, true
		}
	}
	return nil, false
}

// Rewrite serializes the package with the given parts replaced, preserving
// archive order.
func (p *Package) Rewrite(replaced map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range p.Entries {
		data := e.Data
		if r, ok := replaced[e.Name]; ok {
			data = r
		}
		w, err := zw.Create(e.Name)
		if err != nil {
			return nil, fmt.Errorf("writing part %s: %w", e.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("writing part %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------------
// Text runs
// ---------------------------------------------------------------------------

// Run is one text run inside a part's XML: the byte span of the element's
// inner text, the index of the paragraph containing it, and the run's index
// within that paragraph.
type Run struct {
	Start int // byte offset of the inner text in the XML
	End   int
	Para  int // paragraph index within the part
	Index int // run index within the paragraph
	Text  string
}

// ScanRuns lists the text runs of an XML part. textTag is the run text
// element ("w:t" for WordprocessingML, "a:t" for DrawingML), paraTag the
// paragraph element ("w:p", "a:p"). Self-closing text elements carry no
// text and are skipped.
func ScanRuns(xml string, textTag, paraTag string) []Run {
	runRe := regexp.MustCompile(`(?s)<` + textTag + `(?:\s[^>]*?)?>(.*?)</` + textTag + `>`)
	paraRe := regexp.MustCompile(`<` + paraTag + `[\s>]`)

	paraStarts := paraRe.FindAllStringIndex(xml, -1)
	paraAt := func(pos int) int {
		idx := -1
		for i, loc := range paraStarts {
			if loc[0] <= pos {
				idx = i
			} else {
				break
			}
		}
		return idx
	}

	var runs []Run
	lastPara := -2
	runInPara := 0
	for _, m := range runRe.FindAllStringSubmatchIndex(xml, -1) {
		para := paraAt(m[0])
		if para != lastPara {
			runInPara = 0
			lastPara = para
		}
		runs = append(runs, Run{
			Start: m[2],
			End:   m[3],
			Para:  para,
			Index: runInPara,
			Text:  Unescape(xml[m[2]:m[3]]),
		})
		runInPara++
	}
	return runs
}

// Splice rebuilds the XML with each run's inner text replaced by the
// corresponding output, escaped for element content. outputs must be
// parallel to runs.
func Splice(xml string, runs []Run, outputs []string) (string, error) {
	if len(runs) != len(outputs) {
		return "", fmt.Errorf("ooxml: %d runs but %d outputs", len(runs), len(outputs))
	}
	var b strings.Builder
	prev := 0
	for i, r := range runs {
		if r.Start < prev {
			return "", fmt.Errorf("ooxml: run %d out of order", i)
		}
		b.WriteString(xml[prev:r.Start])
		b.WriteString(Escape(outputs[i]))
		prev = r.End
	}
	b.WriteString(xml[prev:])
	return b.String(), nil
}

// ---------------------------------------------------------------------------
// Entity escaping
// ---------------------------------------------------------------------------

var unescaper = regexp.MustCompile(`&(amp|lt|gt|quot|apos|#x?[0-9a-fA-F]+);`)

// Unescape decodes the XML entities that appear in element content.
func Unescape(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	return unescaper.ReplaceAllStringFunc(s, func(ent string) string {
		body := ent[1 : len(ent)-1]
		switch body {
		case "amp":
			return "&"
		case "lt":
			return "<"
		case "gt":
			return ">"
		case "quot":
			return `"`
		case "apos":
			return "'"
		}
		// Numeric reference.
		numStr := strings.TrimPrefix(body, "#")
		base := 10
		if strings.HasPrefix(numStr, "x") || strings.HasPrefix(numStr, "X") {
			numStr = numStr[1:]
			base = 16
		}
		if n, err := strconv.ParseInt(numStr, base, 32); err == nil {
			return string(rune(n))
		}
		return ent
	})
}

// Escape encodes the characters that are unsafe in element content. Quotes
// are left alone: they only need escaping inside attribute values.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
