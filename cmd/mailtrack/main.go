// Command mailtrack runs the mail lifecycle tracking service: an SQS
// consumer recording delivery events in DynamoDB, and an HTTP API serving
// status queries, the suppression list and the credential-vending send path.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"golang.org/x/sync/errgroup"

	"github.com/mailtrack/mailtrack/api"
	"github.com/mailtrack/mailtrack/config"
	"github.com/mailtrack/mailtrack/creds"
	"github.com/mailtrack/mailtrack/dynamodb"
	"github.com/mailtrack/mailtrack/ingest"
	"github.com/mailtrack/mailtrack/mailer"
	"github.com/mailtrack/mailtrack/metrics"
	"github.com/mailtrack/mailtrack/processor"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("service exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	store := dynamodb.New(&awsCfg, cfg.TableName)
	if err := store.Connect(); err != nil {
		return err
	}

	if err := store.Init(ctx, cfg.SkipSchemaValidation); err != nil {
		return err
	}

	var cache creds.Cache = creds.NopCache{}
	if cfg.Cache.Endpoint != "" {
		cache = creds.NewMomentoCache(cfg.Cache.Endpoint, cfg.Cache.Name, cfg.Cache.APIKey, nil)
	} else {
		logger.Warn("no credential cache configured, every vend will run the full chain")
	}

	idp := creds.NewCognitoProvider(&awsCfg, cfg.Credentials.IdentityEndpoint)
	vendor := creds.New(&awsCfg, cache, idp, cfg.Credentials.BrokerRoleARN, logger,
		creds.WithTTL(time.Duration(cfg.Credentials.TTL)))
	sender := mailer.New(&awsCfg)

	proc := processor.New(store, logger)

	consumer, err := ingest.New(&awsCfg, cfg.QueueName, proc, logger).Init(ctx)
	if err != nil {
		return err
	}

	handler := api.NewHandler(store, vendor, sender, logger)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("consumer starting", "queue", cfg.QueueName)

		if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consumer failed: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		logger.Info("http server starting", "addr", cfg.ListenAddr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	logger.Info("service stopped")

	return err
}

func newLogger(level string) *slog.Logger {
	var l slog.Level

	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
