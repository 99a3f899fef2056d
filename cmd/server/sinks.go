package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"

	"liquidity-watch/internal/config"
	"liquidity-watch/internal/observability"
	"liquidity-watch/internal/publish"
	"liquidity-watch/internal/storage"
	chstore "liquidity-watch/internal/storage/clickhouse"
	"liquidity-watch/internal/storage/memory"
	"liquidity-watch/internal/storage/migrations"
	pgstore "liquidity-watch/internal/storage/postgres"
	"liquidity-watch/internal/webhook"
)

// stores are the report stores the read endpoints serve from. Either may be
// nil when only the other database is configured.
type stores struct {
	reports     storage.PoolReportStore
	assessments storage.AssessmentStore
}

// createSinks builds every configured report sink. Without database DSNs
// the most recent reports are kept in memory.
func createSinks(ctx context.Context, s *config.Settings, logger *zap.Logger) ([]webhook.Sink, stores, func(), error) {
	var (
		sinks    []webhook.Sink
		closers  []func()
		reports  storage.PoolReportStore
		assessed storage.AssessmentStore
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if s.Store.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, s.Store.PostgresDSN, int32(s.Store.PostgresMaxConns))
		if err != nil {
			return nil, stores{}, func() {}, errors.Wrap(err, "connect to postgres")
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, stores{}, func() {}, errors.Wrap(err, "postgres migrations")
		}
		reports = pgstore.NewPoolReportStore(pool)
		logger.Info("pool reports stored in postgres")
	}

	if s.Store.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, s.Store.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, stores{}, func() {}, errors.Wrap(err, "clickhouse migrations")
		}
		closers = append(closers, func() { conn.Close() })
		assessed = chstore.NewAssessmentStore(conn)
		logger.Info("lock assessments stored in clickhouse")
	}

	if reports == nil && assessed == nil {
		reports = memory.NewBoundedPoolReportStore(s.Store.MemoryCapacity)
		assessed = memory.NewBoundedAssessmentStore(s.Store.MemoryCapacity)
		logger.Info("using in-memory report storage", zap.Int("capacity", s.Store.MemoryCapacity))
	}
	sinks = append(sinks, storage.NewRecorder("store", reports, assessed))

	if len(s.Kafka.BootstrapServers) > 0 {
		m := kprom.NewMetrics(observability.Namespace+"_kafka",
			kprom.Registerer(prometheus.DefaultRegisterer),
			kprom.Gatherer(prometheus.DefaultGatherer))
		kcl, err := kgo.NewClient(
			kgo.WithHooks(m),
			kgo.SeedBrokers(s.Kafka.BootstrapServers...),
			kgo.DefaultProduceTopic(s.Kafka.Topic),
			kgo.ProducerBatchCompression(kgo.ZstdCompression()),
		)
		if err != nil {
			cleanup()
			return nil, stores{}, func() {}, errors.Wrap(err, "creating kafka client")
		}
		closers = append(closers, kcl.Close)
		sinks = append(sinks, publish.NewPublisher(kcl, s.Kafka.Topic))
		logger.Info("publishing pool reports to kafka", zap.String("topic", s.Kafka.Topic))
	}

	return sinks, stores{reports: reports, assessments: assessed}, cleanup, nil
}
