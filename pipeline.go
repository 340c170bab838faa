package mailpdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/porticus-lab/go-mail-pdf/message"
)

// Renderer turns an HTML document into a PDF. [*Converter] is the
// production implementation.
type Renderer interface {
	ConvertHTML(ctx context.Context, html string, pg *PageConfig) (*Result, error)
}

// mailPage is the fixed page setup for rendered messages.
var mailPage = PageConfig{Size: A4}

// maxNameAttempts bounds how many names are tried when an output path
// already exists, e.g. files left by an earlier run.
const maxNameAttempts = 3

// Pipeline converts a mail file into a PDF on disk: extraction, rendering
// and persistence, in that order.
type Pipeline struct {
	Renderer Renderer

	// Namer names output files. A nil Namer is replaced by a fresh
	// [MillisNamer] on first use.
	Namer Namer

	// OutputDir must already exist; the pipeline never creates it.
	OutputDir string

	// AllowRemoteContent skips [message.Harden], letting the renderer
	// fetch remote images and stylesheets referenced by the mail.
	AllowRemoteContent bool

	namerOnce sync.Once
}

// Conversion describes a PDF written by [Pipeline.Convert].
type Conversion struct {
	// Path is the absolute path of the PDF.
	Path    string
	Size    int
	Message *message.Message
}

// NewPipeline returns a Pipeline writing to outputDir with default naming.
func NewPipeline(r Renderer, outputDir string) *Pipeline {
	return &Pipeline{
		Renderer:  r,
		Namer:     &MillisNamer{},
		OutputDir: outputDir,
	}
}

// Convert decodes src as format f and writes the rendered PDF to
// OutputDir. Nothing is written when any stage fails.
func (p *Pipeline) Convert(ctx context.Context, f message.Format, src io.Reader) (*Conversion, error) {
	res, msg, err := p.Render(ctx, f, src)
	if err != nil {
		return nil, err
	}

	path, err := p.write(res)
	if err != nil {
		return nil, err
	}
	return &Conversion{Path: path, Size: res.Len(), Message: msg}, nil
}

// Render decodes src as format f and renders its HTML body without
// touching the filesystem.
func (p *Pipeline) Render(ctx context.Context, f message.Format, src io.Reader) (*Result, *message.Message, error) {
	msg, err := message.Parse(f, src)
	if err != nil {
		return nil, nil, err
	}

	html := msg.HTML
	if !p.AllowRemoteContent {
		html = message.Harden(html)
	}

	pg := mailPage
	res, err := p.Renderer.ConvertHTML(ctx, html, &pg)
	if err != nil {
		if errors.Is(err, ErrRender) || errors.Is(err, ErrClosed) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	if err := res.validate(); err != nil {
		return nil, nil, err
	}
	return res, msg, nil
}

func (p *Pipeline) write(res *Result) (string, error) {
	dir, err := filepath.Abs(p.OutputDir)
	if err != nil {
		return "", fmt.Errorf("%w: resolving output dir: %w", ErrWrite, err)
	}

	namer := p.namer()

	for range maxNameAttempts {
		path := filepath.Join(dir, namer.Next()+".pdf")
		err = res.WriteNewFile(path, 0o644)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	return "", fmt.Errorf("%w: %w", ErrWrite, err)
}

func (p *Pipeline) namer() Namer {
	p.namerOnce.Do(func() {
		if p.Namer == nil {
			p.Namer = &MillisNamer{}
		}
	})
	return p.Namer
}
