package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/docmatch/internal/common"
)

// fakeRunner answers by binary name and records every call.
type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	out   map[string]string
	fail  map[string]bool
	// pdftoppm output files are created under the requested prefix
	renderPages int
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	f.mu.Unlock()
	if f.fail[name] {
		return nil, []byte("boom"), errors.New("exit status 1")
	}
	if name == "pdftoppm" {
		prefix := args[len(args)-1]
		n := f.renderPages
		if containsArg(args, "-f") {
			n = 1
		}
		for i := 1; i <= n; i++ {
			if err := os.WriteFile(prefix+"-"+string(rune('0'+i))+".png", []byte("x"), 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	}
	return []byte(f.out[name]), nil, nil
}

func containsArg(args []string, a string) bool {
	for _, x := range args {
		if x == a {
			return true
		}
	}
	return false
}

func (f *fakeRunner) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPagesPDFWithSparsePage(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "batch.pdf")
	touch(t, pdf, "%PDF")

	r := &fakeRunner{out: map[string]string{
		"pdftotext": "Lieferschein 4711\r\nACME GmbH\f\f  Seite 3\t\tvon 3\n\f",
		"tesseract": "Lieferschein 4711\nSeite 2",
	}}
	e := NewExtractor(Config{MinTextChars: 5}, r, nil)

	pages, err := e.Pages(context.Background(), pdf)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	for i, p := range pages {
		if p.Index != i+1 {
			t.Errorf("page %d index = %d", i, p.Index)
		}
	}
	if pages[0].Text != "Lieferschein 4711\nACME GmbH" {
		t.Errorf("page 1 text = %q", pages[0].Text)
	}
	if pages[1].Text != "Lieferschein 4711\nSeite 2" {
		t.Errorf("page 2 should come from OCR, got %q", pages[1].Text)
	}
	if pages[2].Text != "Seite 3 von 3" {
		t.Errorf("page 3 text = %q", pages[2].Text)
	}
	if got := r.count("pdftoppm -r 300 -png -f 2 -l 2"); got != 1 {
		t.Errorf("single page render calls = %d, want 1", got)
	}
	if got := r.count("tesseract"); got != 1 {
		t.Errorf("tesseract calls = %d, want 1", got)
	}
}

func TestPagesPDFWithoutTextLayer(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "scan.pdf")
	touch(t, pdf, "%PDF")

	r := &fakeRunner{
		out:         map[string]string{"tesseract": "page text"},
		fail:        map[string]bool{"pdftotext": true},
		renderPages: 2,
	}
	pages, err := NewExtractor(Config{}, r, nil).Pages(context.Background(), pdf)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 2 || pages[1].Index != 2 || pages[1].Text != "page text" {
		t.Errorf("pages = %+v", pages)
	}
}

func TestPagesImageAndDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "notes.md"} {
		touch(t, filepath.Join(dir, name), "x")
	}
	r := &fakeRunner{out: map[string]string{"tesseract": "scanned"}}
	e := NewExtractor(Config{Lang: "deu", TessdataDir: "/td"}, r, nil)

	pages, err := e.Pages(context.Background(), dir)
	if err != nil {
		t.Fatalf("Pages(dir): %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if filepath.Base(pages[0].ImagePath) != "a.jpg" || filepath.Base(pages[1].ImagePath) != "b.png" {
		t.Errorf("pages not ordered by name: %+v", pages)
	}
	if got := r.count("tesseract " + filepath.Join(dir, "a.jpg") + " stdout -l deu --tessdata-dir /td"); got != 1 {
		t.Errorf("tesseract args not as expected: %v", r.calls)
	}

	single, err := e.Pages(context.Background(), filepath.Join(dir, "b.png"))
	if err != nil || len(single) != 1 || single[0].Text != "scanned" {
		t.Errorf("Pages(image) = %+v, %v", single, err)
	}
}

func TestPagesTextAndJSON(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "pages.txt")
	touch(t, txt, "one\ftwo\f")
	js := filepath.Join(dir, "pages.json")
	touch(t, js, `[{"index": 4, "text": "four"}, {"text": "second"}]`)

	e := NewExtractor(Config{}, &fakeRunner{}, nil)

	pages, err := e.Pages(context.Background(), txt)
	if err != nil || len(pages) != 2 || pages[1].Text != "two" {
		t.Errorf("txt pages = %+v, %v", pages, err)
	}
	pages, err = e.Pages(context.Background(), js)
	if err != nil || len(pages) != 2 || pages[0].Index != 4 || pages[1].Index != 2 {
		t.Errorf("json pages = %+v, %v", pages, err)
	}

	doc := filepath.Join(dir, "x.docx")
	touch(t, doc, "x")
	if _, err := e.Pages(context.Background(), doc); !errors.Is(err, common.ErrUnsupportedFormat) {
		t.Errorf("docx err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestRenderAndAttach(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{renderPages: 3}
	e := NewExtractor(Config{RenderDPI: 50}, r, nil)

	images, err := e.Render(context.Background(), "in.pdf", filepath.Join(dir, "img"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(images) != 3 || !strings.HasSuffix(images[0], "page-1.png") {
		t.Fatalf("images = %v", images)
	}
	if r.count("pdftoppm -r 50 -png") != 1 {
		t.Errorf("render dpi not applied: %v", r.calls)
	}

	pages := SplitPages("a\fb")
	AttachImages(pages, images)
	if pages[1].ImagePath != images[1] {
		t.Errorf("ImagePath = %q, want %q", pages[1].ImagePath, images[1])
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"a\r\nb", "a\nb"},
		{"a\t\tb   c  ", "a b c"},
		{"top\n-----\nbottom", "top\n\nbottom"},
		{"a\n\n\n\n\nb", "a\n\nb"},
		{"Datum 01.06.2023", "Datum 01.06.2023"},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNeedsOCR(t *testing.T) {
	if needsOCR("anything", 0) {
		t.Error("MinTextChars 0 should disable OCR fallback")
	}
	if !needsOCR(" - . - ", 3) {
		t.Error("punctuation-only page should need OCR")
	}
	if needsOCR("abc", 3) {
		t.Error("three letters should satisfy MinTextChars 3")
	}
}
