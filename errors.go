package mailpdf

import "errors"

// Sentinel errors returned by the library.
var (
	// ErrClosed is returned when attempting to use a closed [Converter].
	ErrClosed = errors.New("mailpdf: converter is closed")

	// ErrRender wraps failures reported by the rendering engine.
	ErrRender = errors.New("mailpdf: rendering failed")

	// ErrWrite wraps failures persisting a rendered PDF to disk.
	ErrWrite = errors.New("mailpdf: writing output failed")
)
