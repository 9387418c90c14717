package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gramv/onboardingsoftware-sub000/internal/documents"
	employeesvc "github.com/gramv/onboardingsoftware-sub000/internal/employee/service"
	employeestore "github.com/gramv/onboardingsoftware-sub000/internal/employee/store"
	hiringsvc "github.com/gramv/onboardingsoftware-sub000/internal/hiring/service"
	hiringstore "github.com/gramv/onboardingsoftware-sub000/internal/hiring/store"
	"github.com/gramv/onboardingsoftware-sub000/internal/notify"
	onboardingsvc "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/service"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/store/session"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/store/tokenindex"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/config"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/kafka"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/postgres"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/redis"
	"github.com/gramv/onboardingsoftware-sub000/internal/ratelimit"
	httptransport "github.com/gramv/onboardingsoftware-sub000/internal/transport/http"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit"
	auditmemory "github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit/store/memory"
	auditpg "github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit/store/postgres"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/circuit"
)

// backends holds the stores and clients selected by configuration. Each
// optional dependency falls back to an in-process implementation.
type backends struct {
	pool     *pgxpool.Pool
	redis    *redis.Client
	producer *kafka.Producer
	tx       *postgres.TransactionManager

	sessions     onboardingsvc.SessionStore
	tokenIndex   onboardingsvc.TokenIndex
	employees    employeesvc.Store
	applications hiringsvc.Store
	documents    documents.Storage
}

func openBackends(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Database.Enabled() {
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.tx = postgres.NewTransactionManager(pool)
		b.sessions = session.NewPostgresStore(pool, b.tx)
		b.employees = employeestore.NewPostgresStore(pool, b.tx)
		b.applications = hiringstore.NewPostgresStore(pool, b.tx)
	} else {
		log.Warn("no database configured, using in-memory stores")
		b.sessions = session.NewInMemoryStore()
		b.employees = employeestore.NewInMemoryStore()
		b.applications = hiringstore.NewInMemoryStore()
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		b.close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if client != nil {
		b.redis = client
		b.tokenIndex = tokenindex.NewRedis(client.Client)
	}

	producer, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		b.close()
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	if producer != nil {
		b.producer = producer
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, 1); err != nil {
			log.Warn("could not ensure notification topic", "topic", producer.Topic(), "error", err)
		}
	}

	if cfg.Storage.Bucket != "" {
		s3, err := documents.NewS3Storage(ctx, cfg.Storage)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("configure document storage: %w", err)
		}
		b.documents = s3
	} else {
		log.Warn("no document bucket configured, keeping uploads in memory")
		b.documents = documents.NewInMemoryStorage()
	}
	return b, nil
}

// relay publishes to Kafka when configured and falls back to the log relay
// while the Kafka breaker is open.
// relay delivers through Kafka when a broker is configured, else to the log,
// and mirrors every notification into the audit trail.
func (b *backends) relay(log *slog.Logger, m *notify.Metrics, auditor *audit.Recorder) notify.Relay {
	logRelay := notify.NewLogRelay(log)
	var primary notify.Relay = logRelay
	if b.producer != nil {
		primary = notify.NewKafkaRelay(b.producer,
			notify.WithFallback(logRelay),
			notify.WithBreaker(circuit.New("kafka-notifications", circuit.WithFailureThreshold(3))),
			notify.WithRelayLogger(log),
			notify.WithRelayMetrics(m),
		)
	}
	return notify.NewFanout(primary, notify.NewAuditRelay(auditor))
}

// rateLimitStore shares counters across replicas through Redis when it is
// configured.
func (b *backends) rateLimitStore() ratelimit.Store {
	if b.redis != nil {
		return ratelimit.NewRedisStore(b.redis.Client)
	}
	return ratelimit.NewInMemoryStore()
}

func (b *backends) auditStore() audit.Store {
	if b.pool != nil {
		return auditpg.New(b.pool)
	}
	return auditmemory.NewInMemoryStore()
}

func (b *backends) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if b.pool != nil {
		checks["postgres"] = b.pool.Ping
	}
	if b.redis != nil {
		checks["redis"] = b.redis.Health
	}
	return checks
}

func (b *backends) close() {
	if b.producer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		b.producer.Close(ctx)
		cancel()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
