package ooxml

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// buildZip writes a zip archive with the given entries in order.
func buildZip(t *testing.T, entries []Entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pkg.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// Package access
// ---------------------------------------------------------------------------

func TestOpenAndPart(t *testing.T) {
	path := buildZip(t, []Entry{
		{Name: "[Content_Types].xml", Data: []byte("<Types/>")},
		{Name: "word/document.xml", Data: []byte("<w:document/>")},
	})

	pkg, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkg.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(pkg.Entries))
	}
	data, ok := pkg.Part("word/document.xml")
	if !ok || string(data) != "<w:document/>" {
		t.Fatalf("Part = (%q, %v)", data, ok)
	}
	if _, ok := pkg.Part("missing.xml"); ok {
		t.Fatal("missing part should not resolve")
	}
}

func TestRewritePreservesOrderAndUntouchedParts(t *testing.T) {
	path := buildZip(t, []Entry{
		{Name: "a.xml", Data: []byte("alpha")},
		{Name: "b.xml", Data: []byte("beta")},
		{Name: "c.xml", Data: []byte("gamma")},
	})
	pkg, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	out, err := pkg.Rewrite(map[string][]byte{"b.xml": []byte("BETA")})
	if err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatal(err)
	}
	wantNames := []string{"a.xml", "b.xml", "c.xml"}
	wantData := []string{"alpha", "BETA", "gamma"}
	if len(zr.File) != len(wantNames) {
		t.Fatalf("rewritten entries = %d, want %d", len(zr.File), len(wantNames))
	}
	for i, f := range zr.File {
		if f.Name != wantNames[i] {
			t.Fatalf("entry %d = %s, want %s", i, f.Name, wantNames[i])
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != wantData[i] {
			t.Fatalf("entry %s = %q, want %q", f.Name, data, wantData[i])
		}
	}
}

// ---------------------------------------------------------------------------
// Text runs
// ---------------------------------------------------------------------------

func TestScanRunsIndices(t *testing.T) {
	xml := `<w:document><w:body>` +
		`<w:p><w:r><w:t>One</w:t></w:r><w:r><w:t xml:space="preserve"> two</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Three</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	runs := ScanRuns(xml, "w:t", "w:p")
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}

	want := []struct {
		text  string
		para  int
		index int
	}{
		{"One", 0, 0},
		{" two", 0, 1},
		{"Three", 1, 0},
	}
	for i, w := range want {
		r := runs[i]
		if r.Text != w.text || r.Para != w.para || r.Index != w.index {
			t.Fatalf("run %d = {%q p:%d r:%d}, want {%q p:%d r:%d}",
				i, r.Text, r.Para, r.Index, w.text, w.para, w.index)
		}
		if xml[r.Start:r.End] == "" && w.text != "" {
			t.Fatalf("run %d span empty", i)
		}
	}
}

func TestScanRunsUnescapesEntities(t *testing.T) {
	xml := `<w:p><w:r><w:t>Fish &amp; Chips &lt;daily&gt;</w:t></w:r></w:p>`
	runs := ScanRuns(xml, "w:t", "w:p")
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Text != "Fish & Chips <daily>" {
		t.Fatalf("Text = %q", runs[0].Text)
	}
}

func TestScanRunsSkipsSelfClosing(t *testing.T) {
	xml := `<w:p><w:r><w:t/></w:r><w:r><w:t>kept</w:t></w:r></w:p>`
	runs := ScanRuns(xml, "w:t", "w:p")
	if len(runs) != 1 || runs[0].Text != "kept" {
		t.Fatalf("runs = %+v, want one run %q", runs, "kept")
	}
}

func TestSpliceRoundTrip(t *testing.T) {
	xml := `<w:p><w:r><w:t>Fish &amp; Chips</w:t></w:r><w:r><w:t>second</w:t></w:r></w:p>`
	runs := ScanRuns(xml, "w:t", "w:p")

	// Identity splice reproduces the XML, entities included.
	outputs := []string{runs[0].Text, runs[1].Text}
	got, err := Splice(xml, runs, outputs)
	if err != nil {
		t.Fatal(err)
	}
	if got != xml {
		t.Fatalf("identity splice mismatch:\n got %q\nwant %q", got, xml)
	}

	// Replacement text is escaped for element content.
	got, err = Splice(xml, runs, []string{"a < b", "zweiter"})
	if err != nil {
		t.Fatal(err)
	}
	want := `<w:p><w:r><w:t>a &lt; b</w:t></w:r><w:r><w:t>zweiter</w:t></w:r></w:p>`
	if got != want {
		t.Fatalf("splice = %q, want %q", got, want)
	}
}

func TestSpliceLengthMismatch(t *testing.T) {
	xml := `<w:p><w:r><w:t>x</w:t></w:r></w:p>`
	runs := ScanRuns(xml, "w:t", "w:p")
	if _, err := Splice(xml, runs, nil); err == nil {
		t.Fatal("mismatched outputs should fail")
	}
}

// ---------------------------------------------------------------------------
// Entity escaping
// ---------------------------------------------------------------------------

func TestUnescape(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"&amp;&lt;&gt;&quot;&apos;", `&<>"'`},
		{"&#65;&#x42;", "AB"},
		{"&bogus;", "&bogus;"},
	}
	for _, tt := range tests {
		if got := Unescape(tt.in); got != tt.want {
			t.Fatalf("Unescape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscape(t *testing.T) {
	if got := Escape(`a & b < c > "d"`); got != `a &amp; b &lt; c &gt; "d"` {
		t.Fatalf("Escape = %q", got)
	}
}
