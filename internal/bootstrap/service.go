package bootstrap

import (
	"context"
	"database/sql"

	libLog "github.com/LerianStudio/lib-commons/v2/commons/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/LerianStudio/midaz-ledger-core/internal/app/command"
	"github.com/LerianStudio/midaz-ledger-core/internal/adapters/postgres/outbox"
	"github.com/LerianStudio/midaz-ledger-core/internal/projection"
)

// Service bundles the orchestrator, the read model, and the background
// outbox dispatcher into one process lifecycle.
type Service struct {
	Config     *Config
	Logger     libLog.Logger
	Command    *command.Service
	Ledger     *projection.Ledger
	Dispatcher *outbox.Dispatcher

	db       *sql.DB
	amqpConn *amqp.Connection
}

// Run starts the outbox dispatcher and blocks until ctx is cancelled, then
// closes the Postgres and RabbitMQ connections.
func (s *Service) Run(ctx context.Context) error {
	s.Dispatcher.Start(ctx)
	<-ctx.Done()
	s.Dispatcher.Stop()
	return s.Close()
}

// Close releases the Postgres and RabbitMQ connections.
func (s *Service) Close() error {
	if s.amqpConn != nil {
		_ = s.amqpConn.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// noopFetcher is the exchange-rate provider used when no live rate feed is
// configured: it always reports a 1:1 rate so postingContext conversion is a
// no-op until a real Fetcher (spec §5's "HTTP transport is out of scope") is
// wired in.
type noopFetcher struct{}

func (noopFetcher) Fetch(ctx context.Context, from, to string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1), nil
}
