// Package main runs the liquidity-watch service: the pool-creation webhook,
// the optional notification stream consumer, and the status endpoints.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquidity-watch/internal/classifier"
	"liquidity-watch/internal/config"
	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/feed"
	"liquidity-watch/internal/liquidity"
	"liquidity-watch/internal/oracle"
	"liquidity-watch/internal/solana"
	"liquidity-watch/internal/solana/sdk"
	"liquidity-watch/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	zcfg := zap.NewProductionConfig()
	// readable date instead of epoch time
	zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	settings, help, err := config.Load(".env")
	if err != nil {
		if errors.Is(err, config.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return err
	}
	log.Printf("main: Config :\n%v\n", settings)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinks, st, cleanup, err := createSinks(ctx, settings, logger)
	if err != nil {
		return errors.Wrap(err, "creating sinks")
	}
	defer cleanup()

	ledger := newLedger(settings)
	orc := oracle.New(ledger, settings.OracleSettings(), logger.Named("oracle"))
	defer orc.Close()
	proc := webhook.NewProcessor(
		classifier.New(settings.ClassifierConfig()),
		liquidity.NewEstimator(settings.Pool.SolPriceUSD, settings.Pool.MinLiquidityUSD),
		orc,
		sinks,
		logger.Named("processor"),
	)

	srv := newServer(settings, proc, logger)
	srv.stores = st

	var consumer *feed.Consumer
	if settings.Feed.Endpoint != "" {
		consumer = feed.NewConsumer(settings.Feed.Endpoint, func(ctx context.Context, batch []domain.Notification) error {
			_, err := proc.ProcessBatch(ctx, batch)
			return err
		}, settings.FeedConfig(), logger.Named("feed"))
		srv.consumer = consumer
	}

	done := make(chan struct{})
	defer close(done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()

		// A second signal or a stuck shutdown forces exit
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(settings.Server.ShutdownTimeout):
			logger.Error("graceful shutdown timed out, forcing exit", zap.Duration("timeout", settings.Server.ShutdownTimeout))
			os.Exit(1)
		case <-done:
		}
	}()

	errCh := make(chan error, 2)

	if consumer != nil {
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- errors.Wrap(err, "feed consumer")
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              settings.Server.ListenAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting http server",
			zap.String("addr", settings.Server.ListenAddr),
			zap.Strings("webhook_paths", settings.WebhookPaths()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "http server")
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
	defer shutdownCancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Error("http server shutdown", zap.Error(serr))
	}

	if err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// newLedger builds the configured ledger client.
func newLedger(s *config.Settings) solana.LedgerClient {
	if s.Ledger.Client == config.LedgerClientSDK {
		return sdk.New(s.Ledger.Endpoint, s.Ledger.Commitment)
	}
	return solana.NewHTTPClient(s.Ledger.Endpoint,
		solana.WithTimeout(s.Ledger.Timeout),
		solana.WithMaxRetries(s.Ledger.MaxRetries),
		solana.WithCommitment(s.Ledger.Commitment),
	)
}
