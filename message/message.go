// Package message decodes uploaded mail files and pulls out the HTML
// body that gets rendered to PDF.
//
// Two container formats are understood: Outlook .msg files (OLE compound
// documents holding MAPI properties) and RFC 5322 .eml files. Format
// selection is driven purely by the file extension.
package message

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Placeholder is the HTML used when a message carries no HTML body.
const Placeholder = "<p>No message body</p>"

var (
	// ErrUnsupportedFormat is returned for file extensions other than
	// .msg and .eml.
	ErrUnsupportedFormat = errors.New("message: unsupported file format")

	// ErrMalformed wraps decoding failures of a recognised format.
	ErrMalformed = errors.New("message: malformed input")
)

// Format identifies a mail container format.
type Format int

const (
	FormatUnknown Format = iota
	FormatMSG
	FormatEML
)

func (f Format) String() string {
	switch f {
	case FormatMSG:
		return "msg"
	case FormatEML:
		return "eml"
	default:
		return "unknown"
	}
}

// DetectFormat maps a filename to its Format by extension,
// case-insensitively.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".msg":
		return FormatMSG, nil
	case ".eml":
		return FormatEML, nil
	default:
		return FormatUnknown, ErrUnsupportedFormat
	}
}

// Message is the part of a decoded mail that matters for rendering.
type Message struct {
	Format  Format
	Subject string

	// HTML is never empty: it holds Placeholder when the source had no
	// HTML body.
	HTML string

	// HasBody reports whether HTML came from the message itself.
	HasBody bool
}

// Parse decodes r according to f.
func Parse(f Format, r io.Reader) (*Message, error) {
	var (
		msg *Message
		err error
	)
	switch f {
	case FormatMSG:
		msg, err = ParseMSG(r)
	case FormatEML:
		msg, err = ParseEML(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// withBody fills in HTML, falling back to Placeholder for blank bodies.
func (m *Message) withBody(html string) *Message {
	if strings.TrimSpace(html) == "" {
		m.HTML = Placeholder
		m.HasBody = false
		return m
	}
	m.HTML = html
	m.HasBody = true
	return m
}

func malformed(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformed, what, err)
}
