package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	mailpdf "github.com/porticus-lab/go-mail-pdf"
	"github.com/porticus-lab/go-mail-pdf/internal/config"
	"github.com/porticus-lab/go-mail-pdf/internal/ingress"
	"github.com/porticus-lab/go-mail-pdf/internal/logging"
	"github.com/porticus-lab/go-mail-pdf/internal/server"
)

const shutdownGrace = 10 * time.Second

// loadConfig parses args with fs and resolves the final configuration.
func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	configPath := fs.StringP("config", "c", "", "YAML config file (env CONFIG_FILE)")
	apply := config.Flags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if err := apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServe implements the "serve" command.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	log, err := logging.New(cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	conv, err := mailpdf.NewConverter(converterOptions(cfg)...)
	if err != nil {
		return err
	}
	defer conv.Close()

	srv := server.New(
		newPipeline(cfg, conv),
		ingress.NewStager(cfg.UploadDir),
		log,
		server.Options{
			RateLimit:   cfg.RateLimit,
			CORSOrigins: cfg.CORSOrigins,
			TrustProxy:  cfg.TrustProxy,
		},
	)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := notifyContext()
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("server running",
			zap.String("addr", httpSrv.Addr),
			zap.String("upload_dir", cfg.UploadDir),
			zap.String("output_dir", cfg.OutputDir),
			zap.Bool("allow_remote_content", cfg.AllowRemoteContent),
		)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
