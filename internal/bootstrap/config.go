// Package bootstrap wires process configuration, the logger, tracer, and all
// adapters into a running Service, the way components/crm/internal/bootstrap
// and components/ledger/internal/bootstrap do for their own components.
package bootstrap

import (
	"database/sql"
	"fmt"
	"time"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libOpentelemetry "github.com/LerianStudio/lib-commons/v2/commons/opentelemetry"
	libZap "github.com/LerianStudio/lib-commons/v2/commons/zap"
	_ "github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"

	libLog "github.com/LerianStudio/lib-commons/v2/commons/log"

	"github.com/LerianStudio/midaz-ledger-core/internal/adapters/exchangerate"
	"github.com/LerianStudio/midaz-ledger-core/internal/adapters/postgres/eventstore"
	"github.com/LerianStudio/midaz-ledger-core/internal/adapters/postgres/outbox"
	"github.com/LerianStudio/midaz-ledger-core/internal/adapters/rabbitmq"
	"github.com/LerianStudio/midaz-ledger-core/internal/app/command"
	"github.com/LerianStudio/midaz-ledger-core/internal/projection"
	"github.com/LerianStudio/midaz-ledger-core/pkg/mcircuitbreaker"
)

const ApplicationName = "accounting-core"

// Config is the top-level process configuration, bound from the environment
// the way every midaz component binds its own (env:"..." struct tags
// consumed by libCommons.SetConfigFromEnvVars).
type Config struct {
	EnvName  string `env:"ENV_NAME"`
	LogLevel string `env:"LOG_LEVEL"`
	Version  string `env:"VERSION"`

	OtelServiceName         string `env:"OTEL_RESOURCE_SERVICE_NAME"`
	OtelLibraryName         string `env:"OTEL_LIBRARY_NAME"`
	OtelServiceVersion      string `env:"OTEL_RESOURCE_SERVICE_VERSION"`
	OtelDeploymentEnv       string `env:"OTEL_RESOURCE_DEPLOYMENT_ENVIRONMENT"`
	OtelColExporterEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	EnableTelemetry         bool   `env:"ENABLE_TELEMETRY"`

	PostgresDSN string `env:"POSTGRES_DSN"`

	RabbitMQURI      string `env:"RABBITMQ_URI"`
	RabbitMQExchange string `env:"RABBITMQ_EXCHANGE" envDefault:"accounting.events"`

	BaseCurrency string `env:"BASE_CURRENCY" envDefault:"USD"`

	CircuitBreakerFailureThreshold int           `env:"CIRCUIT_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	CircuitBreakerRecoveryTimeout  time.Duration `env:"CIRCUIT_BREAKER_RECOVERY_TIMEOUT" envDefault:"30s"`
	CircuitBreakerSuccessThreshold int           `env:"CIRCUIT_BREAKER_SUCCESS_THRESHOLD" envDefault:"3"`
	CircuitBreakerMonitoringPeriod time.Duration `env:"CIRCUIT_BREAKER_MONITORING_PERIOD" envDefault:"60s"`
}

// Options contains optional dependencies a caller can inject, avoiding a
// second logger/telemetry initialization when composed into a larger process.
type Options struct {
	Logger libLog.Logger
}

// InitService loads configuration, opens the Postgres and RabbitMQ
// connections, and returns a fully wired Service plus its outbox dispatcher.
func InitService() (*Service, error) {
	return InitServiceWithOptions(nil)
}

// InitServiceWithOptions is InitService with injectable dependencies.
func InitServiceWithOptions(opts *Options) (*Service, error) {
	cfg := &Config{}
	if err := libCommons.SetConfigFromEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment variables: %w", err)
	}

	var logger libLog.Logger
	if opts != nil && opts.Logger != nil {
		logger = opts.Logger
	} else {
		var err error
		logger, err = libZap.InitializeLoggerWithError()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	if _, err := libOpentelemetry.InitializeTelemetryWithError(&libOpentelemetry.TelemetryConfig{
		LibraryName:               cfg.OtelLibraryName,
		ServiceName:               cfg.OtelServiceName,
		ServiceVersion:            cfg.OtelServiceVersion,
		DeploymentEnv:             cfg.OtelDeploymentEnv,
		CollectorExporterEndpoint: cfg.OtelColExporterEndpoint,
		EnableTelemetry:           cfg.EnableTelemetry,
		Logger:                    logger,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	amqpConn, err := amqp.Dial(cfg.RabbitMQURI)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	channel, err := amqpConn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	store := eventstore.New(db)
	outboxRepo := outbox.New(db)
	bus := rabbitmq.New(channel, cfg.RabbitMQExchange)
	rates := exchangerate.New(noopFetcher{}, cfg.BaseCurrency, 0)
	ledger := projection.New()

	breaker := mcircuitbreaker.NewBreaker(mcircuitbreaker.Settings{
		FailureThreshold: uint32(cfg.CircuitBreakerFailureThreshold),
		RecoveryTimeout:  cfg.CircuitBreakerRecoveryTimeout,
		SuccessThreshold: uint32(cfg.CircuitBreakerSuccessThreshold),
		MonitoringPeriod: cfg.CircuitBreakerMonitoringPeriod,
	}, mcircuitbreaker.NewLibCommonsAdapter(breakerLogListener{logger: logger}))

	svc := command.New(store, outboxRepo, rates, ledger, breaker, logger, cfg.BaseCurrency)
	dispatcher := outbox.NewDispatcher(outboxRepo, bus, breaker, logger)

	return &Service{
		Config:     cfg,
		Logger:     logger,
		Command:    svc,
		Ledger:     ledger,
		Dispatcher: dispatcher,
		db:         db,
		amqpConn:   amqpConn,
	}, nil
}

// breakerLogListener logs every circuit breaker transition at WARN, the way
// the teacher's own HTTP clients surface circuit state changes.
type breakerLogListener struct {
	logger libLog.Logger
}

func (l breakerLogListener) OnCircuitBreakerStateChange(e mcircuitbreaker.StateChangeEvent) {
	if l.logger == nil {
		return
	}
	l.logger.WithFields(
		"operation", e.ServiceName,
		"from_state", int(e.FromState),
		"to_state", int(e.ToState),
		"consecutive_failures", e.Counts.ConsecutiveFailures,
	).Warn("circuit breaker state changed")
}
