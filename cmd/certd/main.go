package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/config"
	"github.com/daveleo/exview-aio-protocol-tool/internal/server"
	"github.com/daveleo/exview-aio-protocol-tool/internal/transport"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

func main() {
	configPath := flag.String("config", "config/certd.yaml", "path to configuration file")
	addr := flag.String("addr", "", "listen address (overrides config port)")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		common.Fatalf("certd: %v", err)
	}
}

func run(configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.Logs.Directory, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	closeLog, err := common.SetupLogging(common.LogConfig{
		App:        "certd",
		Level:      cfg.Logs.Level,
		File:       filepath.Join(cfg.Logs.Directory, "certd.log"),
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
		Compress:   cfg.Logs.Compress,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()

	srv, err := newServer(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	if addr != "" {
		listenAddr = addr
	}
	httpServer := &http.Server{
		Addr:        listenAddr,
		Handler:     server.NewRouter(srv),
		ReadTimeout: cfg.Server.ReadTimeout.Std(),
	}

	log := common.Logger("certd")
	log.Info().Str("addr", listenAddr).Str("target", cfg.Target.Addr()).Str("reports", cfg.OutputDir).Msg("certd listening")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
	log.Info().Msg("certd stopped")
	return nil
}

func newServer(cfg config.Config) (*server.Server, error) {
	if cfg.Truth == "" {
		return nil, errors.New("config: truth dataset path is required")
	}
	if cfg.Target.Addr() == "" {
		return nil, errors.New("config: target.host is required")
	}
	ds, err := truth.Load(cfg.Truth)
	if err != nil {
		return nil, err
	}
	var ex truth.Exclusions
	if cfg.Exclusions != "" {
		if ex, err = truth.LoadExclusions(cfg.Exclusions); err != nil {
			return nil, err
		}
	}
	var signingKey []byte
	if cfg.Signing.PrivateKey != "" {
		if signingKey, err = os.ReadFile(cfg.Signing.PrivateKey); err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
	}
	return server.NewServer(server.Options{
		ReportsDir: cfg.OutputDir,
		Dataset:    ds,
		Exclusions: ex,
		Target: transport.Options{
			Target:   cfg.Target.Addr(),
			BindHost: cfg.Target.BindHost,
			BindPort: cfg.Target.BindPort,
		},
		Run:        cfg.RunOptions(),
		Formats:    cfg.Formats,
		SigningKey: signingKey,
	})
}
