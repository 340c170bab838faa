// Package server exposes the mail-to-PDF pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	mailpdf "github.com/porticus-lab/go-mail-pdf"
	"github.com/porticus-lab/go-mail-pdf/internal/ingress"
	"github.com/porticus-lab/go-mail-pdf/message"
)

// Form field carrying the uploaded file.
const fileField = "file"

// Response bodies.
const (
	msgConverted   = "File converted to PDF"
	msgUnsupported = "Unsupported file format"
	msgNoFile      = "No file uploaded"
	msgFailed      = "Error processing your file"
)

// Converter is the part of [mailpdf.Pipeline] the server depends on.
type Converter interface {
	Convert(ctx context.Context, f message.Format, src io.Reader) (*mailpdf.Conversion, error)
}

// Options configures a Server.
type Options struct {
	// RateLimit caps uploads per client IP per minute; zero disables it.
	RateLimit int

	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string

	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Only set it behind a proxy that overwrites those
	// headers; otherwise clients choose their own rate-limit key.
	TrustProxy bool
}

// Server handles uploads.
type Server struct {
	conv   Converter
	stager *ingress.Stager
	log    *zap.Logger
	opts   Options
}

// New returns a Server staging uploads with stager and converting them
// with conv.
func New(conv Converter, stager *ingress.Stager, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{conv: conv, stager: stager, log: log, opts: opts}
}

type uploadResponse struct {
	Message string `json:"message"`
	PDFPath string `json:"pdfPath"`
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.requestLogger, middleware.Recoverer)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})

	r.Group(func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
		}
		r.Post("/upload", s.upload)
	})
	return r
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	file, header, err := r.FormFile(fileField)
	if err != nil {
		log.Warn("upload without file", zap.Error(err))
		writeText(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	up, err := s.stager.Stage(header.Filename, file)
	if err != nil {
		log.Error("staging upload", zap.String("filename", header.Filename), zap.Error(err))
		writeText(w, http.StatusInternalServerError, msgFailed)
		return
	}
	defer s.release(log, up)

	log = log.With(zap.String("filename", up.Name), zap.Int64("size", up.Size))

	format, err := message.DetectFormat(up.Name)
	if err != nil {
		s.release(log, up)
		log.Info("rejected upload", zap.Error(err))
		writeText(w, http.StatusBadRequest, msgUnsupported)
		return
	}

	conv, err := s.convert(r.Context(), up, format)
	if err != nil {
		if isClientGone(r.Context(), err) {
			log.Info("client went away during conversion", zap.Error(err))
			return
		}
		log.Error("converting upload", zap.Stringer("format", format), zap.Error(err))
		writeText(w, http.StatusInternalServerError, msgFailed)
		return
	}

	s.release(log, up)
	log.Info("converted upload",
		zap.Stringer("format", format),
		zap.String("pdf_path", conv.Path),
		zap.String("pdf_size", humanize.Bytes(uint64(conv.Size))),
		zap.Bool("has_body", conv.Message.HasBody),
	)
	writeJSON(w, http.StatusOK, uploadResponse{Message: msgConverted, PDFPath: conv.Path})
}

func (s *Server) convert(ctx context.Context, up *ingress.Upload, format message.Format) (*mailpdf.Conversion, error) {
	f, err := up.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.conv.Convert(ctx, format, f)
}

func (s *Server) release(log *zap.Logger, up *ingress.Upload) {
	if err := up.Release(); err != nil {
		log.Warn("releasing staged upload", zap.String("path", up.Path), zap.Error(err))
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeText(w, http.StatusInternalServerError, msgFailed)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(b)
}

// isClientGone reports whether err stems from the client abandoning the
// request rather than from the conversion itself.
func isClientGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}
