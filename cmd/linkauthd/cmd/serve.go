package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/identity"
	"github.com/MrEthical07/linkauth/internal/httpapi"
	"github.com/MrEthical07/linkauth/metrics/export/prometheus"
	"github.com/MrEthical07/linkauth/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		engineCfg, err := cfg.Engine()
		if err != nil {
			return fmt.Errorf("engine configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if _, err := storage.Migrate(ctx, db); err != nil {
				return err
			}
		}

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		idp, err := identity.NewClient(cfg.Identity())
		if err != nil {
			return fmt.Errorf("identity providers: %w", err)
		}

		engine, err := linkauth.New().
			WithConfig(engineCfg).
			WithRedis(rdb).
			WithAccountStore(storage.NewStore(db)).
			WithIdentityProvider(idp).
			WithLogger(logger).
			WithAuditSink(linkauth.NewZapSink(logger.Named("audit"))).
			Build()
		if err != nil {
			return fmt.Errorf("build engine: %w", err)
		}
		defer engine.Close()

		if engineCfg.Metrics.Enabled && cfg.OTLPEndpoint != "" {
			reader, err := newOTLPReader(ctx, cfg)
			if err != nil {
				return err
			}
			shutdownMetrics, err := startMetricsExport(reader, engine)
			if err != nil {
				return fmt.Errorf("start metrics export: %w", err)
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := shutdownMetrics(flushCtx); err != nil {
					logger.Warn("flush metrics", zap.Error(err))
				}
			}()
			logger.Info("exporting metrics over OTLP", zap.String("endpoint", cfg.OTLPEndpoint))
		}

		if err := engine.Ping(ctx); err != nil {
			logger.Warn("backends not reachable at startup", zap.Error(err))
		}

		opts := httpapi.Options{
			Service:        engine,
			Cookie:         engineCfg.Cookie,
			RefreshTTL:     engineCfg.JWT.RefreshTTL,
			Logger:         logger.Named("http"),
			AllowedOrigins: cfg.AllowedOrigins,
		}
		if engineCfg.Metrics.Enabled {
			opts.Metrics = prometheus.New(engine).Handler()
		}

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           httpapi.NewServer(opts).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", zap.String("addr", cfg.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
