// Package ingress stages uploaded files on disk for the duration of a
// single request.
package ingress

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Stager writes uploads into Dir under generated names.
type Stager struct {
	Dir string

	// NewID names staged files. Defaults to uuid.NewString.
	NewID func() string
}

// NewStager returns a Stager writing into dir.
func NewStager(dir string) *Stager {
	return &Stager{Dir: dir, NewID: uuid.NewString}
}

// Upload is a staged file. It must be released exactly once the request
// is done with it, whatever the outcome.
type Upload struct {
	// Path is where the upload was staged.
	Path string
	// Name is the filename the client sent.
	Name string
	Size int64

	once sync.Once
	err  error
}

// Stage copies r into a new file under s.Dir. On failure nothing is left
// behind.
func (s *Stager) Stage(name string, r io.Reader) (*Upload, error) {
	newID := s.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	path := filepath.Join(s.Dir, newID())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("ingress: creating staged file: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("ingress: staging upload: %w", err)
	}

	return &Upload{Path: path, Name: name, Size: n}, nil
}

// Open opens the staged file for reading.
func (u *Upload) Open() (*os.File, error) {
	return os.Open(u.Path)
}

// Release deletes the staged file. Only the first call does any work;
// later calls return the same result. A file that is already gone is
// not an error.
func (u *Upload) Release() error {
	u.once.Do(func() {
		if err := os.Remove(u.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			u.err = fmt.Errorf("ingress: removing staged file: %w", err)
		}
	})
	return u.err
}
