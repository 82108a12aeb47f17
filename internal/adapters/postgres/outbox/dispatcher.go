package outbox

import (
	"context"
	"math/rand"
	"time"

	libLog "github.com/LerianStudio/lib-commons/v2/commons/log"

	"github.com/LerianStudio/midaz-ledger-core/internal/ports"
	"github.com/LerianStudio/midaz-ledger-core/pkg/mcircuitbreaker"
)

const (
	leaseBatchSize  = 100
	pollInterval    = 2 * time.Second
	maxRetryBackoff = 60 * time.Second
	jitterCeiling   = 500 * time.Millisecond
)

// Dispatcher is the background worker loop of spec §4.3: lease a batch,
// publish each row, and reschedule failures with a linear backoff (2s per
// retry, capped at 60s) plus jitter.
type Dispatcher struct {
	repo    ports.OutboxRepository
	bus     ports.MessageBus
	breaker *mcircuitbreaker.Breaker
	logger  libLog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewDispatcher wires a dispatcher. breaker may be nil, in which case publish
// calls run unguarded.
func NewDispatcher(repo ports.OutboxRepository, bus ports.MessageBus, breaker *mcircuitbreaker.Breaker, logger libLog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:    repo,
		bus:     bus,
		breaker: breaker,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start runs the poll loop until Stop is called or ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			case <-ticker.C:
				d.runOnce(ctx)
			}
		}
	}()
}

// Stop signals the loop to exit and blocks until it has.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Dispatcher) runOnce(ctx context.Context) {
	rows, err := d.repo.LeaseBatch(ctx, leaseBatchSize)
	if err != nil {
		if d.logger != nil {
			d.logger.WithFields("error", err.Error()).Error("outbox lease failed")
		}
		return
	}

	for _, row := range rows {
		d.publishOne(ctx, row)
	}
}

func (d *Dispatcher) publishOne(ctx context.Context, row ports.OutboxRow) {
	headers := map[string]string{
		"tenant-id":  row.TenantID,
		"event-type": row.EventType,
	}

	publish := func(ctx context.Context) error {
		return d.bus.Publish(ctx, row.Topic, row.Key, row.Payload, headers)
	}

	var err error
	if d.breaker != nil {
		err = d.breaker.Execute(ctx, "outbox.publish", publish)
	} else {
		err = publish(ctx)
	}

	if err == nil {
		if markErr := d.repo.MarkPublished(ctx, row.ID); markErr != nil && d.logger != nil {
			d.logger.WithFields("error", markErr.Error(), "outbox_id", row.ID).Error("failed to mark outbox row published")
		}
		return
	}

	retryCount := row.RetryCount + 1
	nextAttempt := time.Now().UTC().Add(nextBackoff(retryCount))

	if markErr := d.repo.MarkFailed(ctx, row.ID, retryCount, nextAttempt, err.Error()); markErr != nil && d.logger != nil {
		d.logger.WithFields("error", markErr.Error(), "outbox_id", row.ID).Error("failed to mark outbox row failed")
	}
}

// nextBackoff implements spec §4.3: min(60s, 2s·retry) + jitter∈[0,500ms).
func nextBackoff(retryCount int) time.Duration {
	backoff := time.Duration(retryCount) * 2 * time.Second
	if backoff > maxRetryBackoff {
		backoff = maxRetryBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(jitterCeiling)))
	return backoff + jitter
}
