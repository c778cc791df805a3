package pptxfile

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glotdoc/glotdoc/document"
	"github.com/glotdoc/glotdoc/format"
	"github.com/glotdoc/glotdoc/ooxml"
)

// buildPptx writes a minimal PresentationML package. Entries are written in
// the given order, which deliberately need not be slide order.
func buildPptx(t *testing.T, parts []struct{ name, data string }) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(p.data)); err != nil {
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

func slideXML(texts ...string) string {
	var b strings.Builder
	b.WriteString(`<p:sld><p:txBody>`)
	for _, s := range texts {
		fmt.Fprintf(&b, `<a:p><a:r><a:t>%s</a:t></a:r></a:p>`, ooxml.Escape(s))
	}
	b.WriteString(`</p:txBody></p:sld>`)
	return b.String()
}

func TestAdapterKind(t *testing.T) {
	if New().Kind() != format.KindPptx {
		t.Fatal("wrong kind")
	}
}

func TestParseSlidesInNumericOrder(t *testing.T) {
	// slide2 precedes slide1 in the archive; pages must still follow slide
	// numbering.
	path := buildPptx(t, []struct{ name, data string }{
		{"[Content_Types].xml", "<Types/>"},
		{"ppt/presentation.xml", "<p:presentation/>"},
		{"ppt/slides/slide2.xml", slideXML("Second slide text.")},
		{"ppt/slides/slide1.xml", slideXML("First slide text.")},
	})

	a := New()
	_, pages, err := a.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	if got := pages[0].Units[0].SourceText; got != "First slide text." {
		t.Fatalf("page 0 text = %q", got)
	}
	if got := pages[1].Units[0].SourceText; got != "Second slide text." {
		t.Fatalf("page 1 text = %q", got)
	}
}

func TestParseAnchors(t *testing.T) {
	path := buildPptx(t, []struct{ name, data string }{
		{"ppt/presentation.xml", "<p:presentation/>"},
		{"ppt/slides/slide1.xml", slideXML("Title here.", "Body here.")},
	})

	a := New()
	_, pages, err := a.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	units := pages[0].Units
	if len(units) != 2 {
		t.Fatalf("units = %d, want 2", len(units))
	}
	if units[0].ID != "slide:0/run:0" || units[0].Anchor != "slide:0/p:0/r:0" {
		t.Fatalf("unit 0 = %s / %s", units[0].ID, units[0].Anchor)
	}
	if units[1].ID != "slide:0/run:1" || units[1].Anchor != "slide:0/p:1/r:0" {
		t.Fatalf("unit 1 = %s / %s", units[1].ID, units[1].Anchor)
	}
}

func TestParseRejectsPackageWithoutSlides(t *testing.T) {
	path := buildPptx(t, []struct{ name, data string }{
		{"ppt/presentation.xml", "<p:presentation/>"},
	})
	a := New()
	_, _, err := a.Parse(path)
	var perr *document.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ParseError", err)
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	path := buildPptx(t, []struct{ name, data string }{
		{"ppt/presentation.xml", "<p:presentation/>"},
		{"ppt/slides/slide1.xml", slideXML("Alpha text.", "Beta text.")},
		{"ppt/slides/slide2.xml", slideXML("Gamma text.")},
	})

	a := New()
	model, pages, err := a.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	out, err := a.Reassemble(model, pages)
	if err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(t.TempDir(), "out.pptx")
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		t.Fatal(err)
	}
	got, err := ooxml.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	orig, err := ooxml.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"ppt/slides/slide1.xml", "ppt/slides/slide2.xml", "ppt/presentation.xml"} {
		g, _ := got.Part(name)
		w, _ := orig.Part(name)
		if string(g) != string(w) {
			t.Fatalf("part %s changed:\n got %q\nwant %q", name, g, w)
		}
	}
}

func TestReassembleWithTranslations(t *testing.T) {
	path := buildPptx(t, []struct{ name, data string }{
		{"ppt/presentation.xml", "<p:presentation/>"},
		{"ppt/slides/slide1.xml", slideXML("Hello world.")},
		{"ppt/slides/slide2.xml", slideXML("Keep me.")},
	})

	a := New()
	model, pages, err := a.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	pages[0].Units[0].MarkInFlight()
	pages[0].Units[0].MarkDone("Hallo Welt.")

	out, err := a.Reassemble(model, pages)
	if err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(t.TempDir(), "out.pptx")
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		t.Fatal(err)
	}
	pkg, err := ooxml.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	s1, _ := pkg.Part("ppt/slides/slide1.xml")
	if !strings.Contains(string(s1), "<a:t>Hallo Welt.</a:t>") {
		t.Fatalf("translation missing from slide 1:\n%s", s1)
	}
	s2, _ := pkg.Part("ppt/slides/slide2.xml")
	if !strings.Contains(string(s2), "<a:t>Keep me.</a:t>") {
		t.Fatalf("untouched slide changed:\n%s", s2)
	}
}

func TestReassembleRejectsForeignUnit(t *testing.T) {
	path := buildPptx(t, []struct{ name, data string }{
		{"ppt/presentation.xml", "<p:presentation/>"},
		{"ppt/slides/slide1.xml", slideXML("Text.")},
	})
	a := New()
	model, pages, err := a.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	pages[0].Units[0].ID = "slide:9/run:0"
	_, err = a.Reassemble(model, pages)
	var aerr *document.AssemblyError
	if !errors.As(err, &aerr) {
		t.Fatalf("err = %v, want AssemblyError", err)
	}
}
