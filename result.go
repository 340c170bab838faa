package mailpdf

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Result holds a generated PDF. Its data is never modified after the
// conversion returns, so methods may be called any number of times.
type Result struct {
	data []byte
}

// NewResult wraps raw PDF bytes, mostly for Renderer implementations
// outside this package.
func NewResult(data []byte) *Result {
	return &Result{data: data}
}

// Bytes returns the raw PDF content.
func (r *Result) Bytes() []byte {
	return r.data
}

// Len returns the size of the PDF in bytes.
func (r *Result) Len() int {
	return len(r.data)
}

// WriteTo writes the full PDF content to w. It implements [io.WriterTo].
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	return int64(n), err
}

// WriteNewFile writes the PDF to path, failing with [fs.ErrExist] when
// the path is already taken. A partially written file is removed.
func (r *Result) WriteNewFile(path string, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// isPDF reports whether data starts with the PDF magic number.
func isPDF(data []byte) bool {
	return len(data) > 4 && string(data[:5]) == "%PDF-"
}

// validate rejects renderer output that cannot be a PDF document.
func (r *Result) validate() error {
	if r == nil || !isPDF(r.data) {
		return fmt.Errorf("%w: %w", ErrRender, errNotPDF)
	}
	return nil
}

var errNotPDF = errors.New("output is not a PDF document")
