package main

import (
	mailpdf "github.com/porticus-lab/go-mail-pdf"
	"github.com/porticus-lab/go-mail-pdf/internal/config"
)

// converterOptions maps the browser settings of cfg to converter options.
func converterOptions(cfg *config.Config) []mailpdf.Option {
	opts := []mailpdf.Option{mailpdf.WithTimeout(cfg.RenderTimeout)}
	if cfg.ChromePath != "" {
		opts = append(opts, mailpdf.WithChromePath(cfg.ChromePath))
	}
	if cfg.NoSandbox {
		opts = append(opts, mailpdf.WithNoSandbox())
	}
	if cfg.AutoDownload {
		opts = append(opts, mailpdf.WithAutoDownload())
	}
	if !cfg.AllowRemoteContent {
		opts = append(opts, mailpdf.WithScriptsDisabled())
	}
	return opts
}

func newPipeline(cfg *config.Config, r mailpdf.Renderer) *mailpdf.Pipeline {
	p := mailpdf.NewPipeline(r, cfg.OutputDir)
	p.AllowRemoteContent = cfg.AllowRemoteContent
	return p
}
