package mailpdf_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	mailpdf "github.com/porticus-lab/go-mail-pdf"
	"github.com/porticus-lab/go-mail-pdf/message"
)

// fakeRenderer records the HTML it receives and returns a canned PDF.
type fakeRenderer struct {
	mu    sync.Mutex
	html  []string
	pages []mailpdf.PageConfig
	out   []byte
	err   error
}

func (f *fakeRenderer) ConvertHTML(_ context.Context, html string, pg *mailpdf.PageConfig) (*mailpdf.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.html = append(f.html, html)
	if pg != nil {
		f.pages = append(f.pages, *pg)
	}
	if f.err != nil {
		return nil, f.err
	}
	out := f.out
	if out == nil {
		out = []byte("%PDF-1.7\n" + html)
	}
	return mailpdf.NewResult(out), nil
}

func (f *fakeRenderer) lastHTML() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.html) == 0 {
		return ""
	}
	return f.html[len(f.html)-1]
}

// seqNamer hands out names from a fixed list.
type seqNamer struct {
	mu    sync.Mutex
	names []string
}

func (s *seqNamer) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.names[0]
	s.names = s.names[1:]
	return n
}

const helloEML = "From: a@example.com\r\nSubject: Hi\r\nContent-Type: text/html\r\n\r\n<p>Hello</p>"

func newTestPipeline(t *testing.T, r mailpdf.Renderer) *mailpdf.Pipeline {
	t.Helper()
	return mailpdf.NewPipeline(r, t.TempDir())
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPipeline_ConvertEML(t *testing.T) {
	r := &fakeRenderer{}
	p := newTestPipeline(t, r)
	p.Namer = &seqNamer{names: []string{"1718000000000"}}

	conv, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if !filepath.IsAbs(conv.Path) {
		t.Errorf("Path %q is not absolute", conv.Path)
	}
	if filepath.Base(conv.Path) != "1718000000000.pdf" {
		t.Errorf("Path = %q, want <timestamp>.pdf", conv.Path)
	}
	data, err := os.ReadFile(conv.Path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(data) == 0 || conv.Size != len(data) {
		t.Errorf("output size = %d, Conversion.Size = %d", len(data), conv.Size)
	}
	if !strings.Contains(r.lastHTML(), "<p>Hello</p>") {
		t.Errorf("renderer got %q", r.lastHTML())
	}
	if conv.Message.Subject != "Hi" || !conv.Message.HasBody {
		t.Errorf("Message = %+v", conv.Message)
	}
}

func TestPipeline_RendersA4(t *testing.T) {
	r := &fakeRenderer{}
	p := newTestPipeline(t, r)

	if _, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML)); err != nil {
		t.Fatal(err)
	}
	if len(r.pages) != 1 || r.pages[0].Size != mailpdf.A4 {
		t.Errorf("page configs = %+v, want a single A4 page setup", r.pages)
	}
}

func TestPipeline_PlaceholderWhenNoBody(t *testing.T) {
	r := &fakeRenderer{}
	p := newTestPipeline(t, r)

	eml := "Subject: plain\r\nContent-Type: text/plain\r\n\r\njust text"
	conv, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(eml))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if conv.Message.HasBody {
		t.Error("HasBody = true, want false")
	}
	if !strings.HasSuffix(r.lastHTML(), message.Placeholder) {
		t.Errorf("renderer got %q, want placeholder", r.lastHTML())
	}
}

func TestPipeline_HardensByDefault(t *testing.T) {
	r := &fakeRenderer{}
	p := newTestPipeline(t, r)

	if _, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.lastHTML(), "Content-Security-Policy") {
		t.Errorf("renderer got unhardened HTML %q", r.lastHTML())
	}

	p.AllowRemoteContent = true
	if _, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML)); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(r.lastHTML(), "Content-Security-Policy") {
		t.Errorf("AllowRemoteContent still hardened HTML %q", r.lastHTML())
	}
}

func TestPipeline_DistinctPaths(t *testing.T) {
	p := newTestPipeline(t, &fakeRenderer{})

	a, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML))
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML))
	if err != nil {
		t.Fatal(err)
	}
	if a.Path == b.Path {
		t.Fatalf("two conversions share path %q", a.Path)
	}
	if got := listDir(t, p.OutputDir); len(got) != 2 {
		t.Errorf("output dir = %v, want two files", got)
	}
}

func TestPipeline_SkipsExistingNames(t *testing.T) {
	p := newTestPipeline(t, &fakeRenderer{})
	p.Namer = &seqNamer{names: []string{"100", "101"}}

	if err := os.WriteFile(filepath.Join(p.OutputDir, "100.pdf"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	conv, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if filepath.Base(conv.Path) != "101.pdf" {
		t.Errorf("Path = %q, want 101.pdf", conv.Path)
	}
	old, _ := os.ReadFile(filepath.Join(p.OutputDir, "100.pdf"))
	if string(old) != "old" {
		t.Error("existing output was overwritten")
	}
}

func TestPipeline_RenderFailure(t *testing.T) {
	boom := errors.New("browser crashed")
	p := newTestPipeline(t, &fakeRenderer{err: boom})

	_, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML))
	if !errors.Is(err, mailpdf.ErrRender) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrRender wrapping the cause", err)
	}
	if got := listDir(t, p.OutputDir); len(got) != 0 {
		t.Errorf("output dir = %v, want empty after failure", got)
	}
}

func TestPipeline_RendererReturnsNonPDF(t *testing.T) {
	p := newTestPipeline(t, &fakeRenderer{out: []byte("<html>oops</html>")})

	_, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML))
	if !errors.Is(err, mailpdf.ErrRender) {
		t.Fatalf("err = %v, want ErrRender", err)
	}
}

func TestPipeline_ClosedConverterPassesThrough(t *testing.T) {
	p := newTestPipeline(t, &fakeRenderer{err: mailpdf.ErrClosed})

	_, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML))
	if !errors.Is(err, mailpdf.ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestPipeline_MalformedInput(t *testing.T) {
	r := &fakeRenderer{}
	p := newTestPipeline(t, r)

	_, err := p.Convert(context.Background(), message.FormatMSG, strings.NewReader("not a compound file"))
	if !errors.Is(err, message.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if len(r.html) != 0 {
		t.Error("renderer called for malformed input")
	}
}

func TestPipeline_MissingOutputDir(t *testing.T) {
	p := mailpdf.NewPipeline(&fakeRenderer{}, filepath.Join(t.TempDir(), "missing"))

	_, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML))
	if !errors.Is(err, mailpdf.ErrWrite) {
		t.Fatalf("err = %v, want ErrWrite", err)
	}
}

func TestPipeline_RenderDoesNotWrite(t *testing.T) {
	p := newTestPipeline(t, &fakeRenderer{})

	res, msg, err := p.Render(context.Background(), message.FormatEML, strings.NewReader(helloEML))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Len() == 0 || !msg.HasBody {
		t.Errorf("Render = %d bytes, %+v", res.Len(), msg)
	}
	if got := listDir(t, p.OutputDir); len(got) != 0 {
		t.Errorf("Render wrote files: %v", got)
	}
}

func TestPipeline_NilNamerGetsOwnDefault(t *testing.T) {
	a := &mailpdf.Pipeline{Renderer: &fakeRenderer{}, OutputDir: t.TempDir()}
	b := &mailpdf.Pipeline{Renderer: &fakeRenderer{}, OutputDir: t.TempDir()}

	paths := map[string]bool{}
	for _, p := range []*mailpdf.Pipeline{a, a, b} {
		conv, err := p.Convert(context.Background(), message.FormatEML, strings.NewReader(helloEML))
		if err != nil {
			t.Fatalf("Convert: %v", err)
		}
		paths[conv.Path] = true
	}
	if len(paths) != 3 {
		t.Errorf("got %d distinct paths, want 3", len(paths))
	}
	if a.Namer == nil || b.Namer == nil {
		t.Fatal("Namer not set on first use")
	}
	if a.Namer == b.Namer {
		t.Error("pipelines share a namer")
	}
}
