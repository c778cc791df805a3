// The byte-level PDF codec primitive. The adapter in this package only
// needs two capabilities from a codec: list the text runs of each page and
// replace a run's text. SimpleCodec covers PDFs with uncompressed content
// streams and a classic xref table; a richer codec can be injected through
// the same interface without touching the adapter.
package pdffile

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Document is an opened PDF with addressable text runs.
type Document interface {
	// Pages returns the decoded text runs per page, in page order.
	Pages() [][]string
	// Replace swaps the text of one run.
	Replace(page, run int, text string) error
	// Bytes serializes the document with all replacements applied.
	Bytes() ([]byte, error)
}

// Codec opens PDF files.
type Codec interface {
	Open(path string) (Document, error)
}

// ---------------------------------------------------------------------------
// SimpleCodec
// ---------------------------------------------------------------------------

// SimpleCodec reads PDFs whose page content streams are stored without
// filters. Compressed or cross-reference-stream files are rejected with an
// explanatory error; such files need a full-featured codec behind the same
// interface.
type SimpleCodec struct{}

// NewSimpleCodec creates the built-in codec.
func NewSimpleCodec() *SimpleCodec { return &SimpleCodec{} }

var (
	objStart    = regexp.MustCompile(`(?m)^(\d+)\s+(\d+)\s+obj\b`)
	pageObj     = regexp.MustCompile(`/Type\s*/Page(?:[^s]|$)`)
	contentsRef = regexp.MustCompile(`/Contents\s+(\d+)\s+\d+\s+R`)
	lengthField = regexp.MustCompile(`/Length\s+\d+`)
	trailerDict = regexp.MustCompile(`(?s)trailer\s*(<<.*?>>)`)
	sizeField   = regexp.MustCompile(`/Size\s+\d+`)
)

// pdfObject is one indirect object of the file.
type pdfObject struct {
	num, gen int
	body     string // between "N G obj" and "endobj"
}

// textRun is one string literal shown by a text operator.
type textRun struct {
	objIdx     int // index into doc.objects
	start, end int // byte span of the literal (with parens) in the stream data
	text       string
}

// simpleDoc is SimpleCodec's Document implementation.
type simpleDoc struct {
	header  string
	objects []pdfObject
	trailer string // trailer dict, possibly empty
	pages   [][]*textRun
	// streams maps object index to its decomposed stream: dict, data.
	streams map[int]*streamPart
}

type streamPart struct {
	dict string
	data string
}

// Open implements Codec.
func (c *SimpleCodec) Open(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	text := string(raw)
	if !strings.HasPrefix(text, "%PDF-") {
		return nil, fmt.Errorf("%s: missing PDF header", path)
	}

	doc := &simpleDoc{streams: make(map[int]*streamPart)}
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		doc.header = text[:idx]
	} else {
		doc.header = "%PDF-1.4"
	}

	// Object table.
	starts := objStart.FindAllStringSubmatchIndex(text, -1)
	for _, m := range starts {
		num, _ := strconv.Atoi(text[m[2]:m[3]])
		gen, _ := strconv.Atoi(text[m[4]:m[5]])
		end := strings.Index(text[m[1]:], "endobj")
		if end < 0 {
			return nil, fmt.Errorf("%s: object %d has no endobj", path, num)
		}
		body := strings.Trim(text[m[1]:m[1]+end], "\r\n")
		doc.objects = append(doc.objects, pdfObject{num: num, gen: gen, body: body})
	}
	if len(doc.objects) == 0 {
		return nil, fmt.Errorf("%s: no objects found", path)
	}
	if m := trailerDict.FindStringSubmatch(text); m != nil {
		doc.trailer = m[1]
	}

	// Page objects → content streams → runs.
	objByNum := make(map[int]int, len(doc.objects))
	for i, o := range doc.objects {
		objByNum[o.num] = i
	}
	for _, o := range doc.objects {
		if !pageObj.MatchString(o.body) {
			continue
		}
		m := contentsRef.FindStringSubmatch(o.body)
		if m == nil {
			doc.pages = append(doc.pages, nil)
			continue
		}
		contentNum, _ := strconv.Atoi(m[1])
		ci, ok := objByNum[contentNum]
		if !ok {
			return nil, fmt.Errorf("%s: page references missing object %d", path, contentNum)
		}
		sp, err := splitStream(doc.objects[ci].body)
		if err != nil {
			return nil, fmt.Errorf("%s: object %d: %w", path, contentNum, err)
		}
		doc.streams[ci] = sp
		runs := scanTextRuns(sp.data)
		for _, r := range runs {
			r.objIdx = ci
		}
		doc.pages = append(doc.pages, runs)
	}
	if len(doc.pages) == 0 {
		return nil, fmt.Errorf("%s: no page objects found", path)
	}
	return doc, nil
}

// splitStream decomposes a content stream object into dict and data,
// rejecting filtered streams.
func splitStream(body string) (*streamPart, error) {
	idx := strings.Index(body, "stream")
	if idx < 0 {
		return nil, fmt.Errorf("content object has no stream")
	}
	dict := body[:idx]
	if strings.Contains(dict, "/Filter") {
		return nil, fmt.Errorf("filtered content streams are not supported by the built-in codec")
	}
	data := body[idx+len("stream"):]
	data = strings.TrimPrefix(data, "\r\n")
	data = strings.TrimPrefix(data, "\n")
	endIdx := strings.LastIndex(data, "endstream")
	if endIdx < 0 {
		return nil, fmt.Errorf("stream has no endstream")
	}
	data = strings.TrimRight(data[:endIdx], "\r\n")
	return &streamPart{dict: dict, data: data}, nil
}

// ---------------------------------------------------------------------------
// Text run scanning
// ---------------------------------------------------------------------------

// scanTextRuns finds the string literals shown by Tj, ', ", and TJ
// operators in a content stream.
func scanTextRuns(data string) []*textRun {
	tjArrays := findTJArrays(data)
	var runs []*textRun
	i := 0
	for i < len(data) {
		if data[i] != '(' {
			i++
			continue
		}
		lit, end, ok := parseLiteral(data, i)
		if !ok {
			i++
			continue
		}
		if literalIsShown(data, i, end, tjArrays) {
			runs = append(runs, &textRun{start: i, end: end, text: lit})
		}
		i = end
	}
	return runs
}

// findTJArrays locates [ ... ] TJ regions.
func findTJArrays(data string) [][2]int {
	var regions [][2]int
	i := 0
	for i < len(data) {
		if data[i] != '[' {
			i++
			continue
		}
		depth := 0
		j := i
		for ; j < len(data); j++ {
			switch data[j] {
			case '[':
				depth++
			case ']':
				depth--
			case '(':
				if _, end, ok := parseLiteral(data, j); ok {
					j = end - 1
				}
			}
			if depth == 0 && data[j] == ']' {
				break
			}
		}
		if j < len(data) {
			rest := strings.TrimLeft(data[j+1:], " \t\r\n")
			if strings.HasPrefix(rest, "TJ") {
				regions = append(regions, [2]int{i, j + 1})
			}
		}
		i = j + 1
	}
	return regions
}

// literalIsShown reports whether the literal at [start,end) feeds a
// text-showing operator.
func literalIsShown(data string, start, end int, tjArrays [][2]int) bool {
	for _, r := range tjArrays {
		if start >= r[0] && end <= r[1] {
			return true
		}
	}
	rest := strings.TrimLeft(data[end:], " \t\r\n")
	return strings.HasPrefix(rest, "Tj") || strings.HasPrefix(rest, "'") || strings.HasPrefix(rest, "\"")
}

// parseLiteral decodes the parenthesized string starting at pos. Returns
// the decoded text and the byte offset just past the closing paren.
func parseLiteral(data string, pos int) (string, int, bool) {
	if pos >= len(data) || data[pos] != '(' {
		return "", 0, false
	}
	var b strings.Builder
	depth := 1
	i := pos + 1
	for i < len(data) {
		ch := data[i]
		switch ch {
		case '\\':
			if i+1 >= len(data) {
				return "", 0, false
			}
			next := data[i+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '(', ')', '\\':
				b.WriteByte(next)
			default:
				if next >= '0' && next <= '7' {
					// Up to three octal digits.
					j := i + 1
					val := 0
					for j < len(data) && j < i+4 && data[j] >= '0' && data[j] <= '7' {
						val = val*8 + int(data[j]-'0')
						j++
					}
					b.WriteByte(byte(val))
					i = j
					continue
				}
				b.WriteByte(next)
			}
			i += 2
		case '(':
			depth++
			b.WriteByte(ch)
			i++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1, true
			}
			b.WriteByte(ch)
			i++
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return "", 0, false
}

// encodeLiteral renders text as a PDF string literal.
func encodeLiteral(text string) string {
	var b strings.Builder
	b.WriteByte('(')
	for i := 0; i < len(text); i++ {
		switch ch := text[i]; ch {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(ch)
		}
	}
	b.WriteByte(')')
	return b.String()
}

// ---------------------------------------------------------------------------
// Document implementation
// ---------------------------------------------------------------------------

// Pages implements Document.
func (d *simpleDoc) Pages() [][]string {
	out := make([][]string, len(d.pages))
	for i, runs := range d.pages {
		out[i] = make([]string, len(runs))
		for j, r := range runs {
			out[i][j] = r.text
		}
	}
	return out
}

// Replace implements Document.
func (d *simpleDoc) Replace(page, run int, text string) error {
	if page < 0 || page >= len(d.pages) {
		return fmt.Errorf("pdf: no page %d", page)
	}
	if run < 0 || run >= len(d.pages[page]) {
		return fmt.Errorf("pdf: page %d has no run %d", page, run)
	}
	d.pages[page][run].text = text
	return nil
}

// Bytes implements Document. Modified content streams are re-spliced, the
// stream /Length fields updated, and the cross-reference table rebuilt
// from the rewritten object offsets.
func (d *simpleDoc) Bytes() ([]byte, error) {
	// Splice each modified stream back into its object.
	bodies := make([]string, len(d.objects))
	for i, o := range d.objects {
		bodies[i] = o.body
	}
	for objIdx, sp := range d.streams {
		var runs []*textRun
		for _, pageRuns := range d.pages {
			for _, r := range pageRuns {
				if r.objIdx == objIdx {
					runs = append(runs, r)
				}
			}
		}
		var b strings.Builder
		prev := 0
		for _, r := range runs {
			b.WriteString(sp.data[prev:r.start])
			b.WriteString(encodeLiteral(r.text))
			prev = r.end
		}
		b.WriteString(sp.data[prev:])
		data := b.String()

		dict := lengthField.ReplaceAllString(sp.dict, "/Length "+strconv.Itoa(len(data)))
		bodies[objIdx] = strings.TrimRight(dict, " \r\n") + "\nstream\n" + data + "\nendstream"
	}

	// Serialize with a fresh xref table.
	var out strings.Builder
	out.WriteString(d.header)
	out.WriteByte('\n')
	offsets := make([]int, len(d.objects))
	maxNum := 0
	for i, o := range d.objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d %d obj\n%s\nendobj\n", o.num, o.gen, bodies[i])
		if o.num > maxNum {
			maxNum = o.num
		}
	}
	xrefPos := out.Len()
	out.WriteString("xref\n")
	for i, o := range d.objects {
		fmt.Fprintf(&out, "%d 1\n%010d %05d n \n", o.num, offsets[i], o.gen)
	}
	trailer := d.trailer
	if trailer == "" {
		trailer = fmt.Sprintf("<< /Size %d >>", maxNum+1)
	} else {
		trailer = sizeField.ReplaceAllString(trailer, "/Size "+strconv.Itoa(maxNum+1))
	}
	fmt.Fprintf(&out, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xrefPos)
	return []byte(out.String()), nil
}
