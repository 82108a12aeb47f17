// Package rabbitmq implements ports.MessageBus over amqp091-go, grounded on
// the teacher's components/consumer/internal/adapters/rabbitmq producer:
// same Publish/Table/DeliveryMode shape, same tracer-span-around-publish
// idiom, adapted to the outbox's (topic, key, payload, headers) contract.
package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/errs"
	"github.com/LerianStudio/midaz-ledger-core/internal/ports"
	"github.com/LerianStudio/midaz-ledger-core/pkg/motel"
	"github.com/LerianStudio/midaz-ledger-core/pkg/mtracer"
)

// Channel is the subset of *amqp.Channel the bus needs, so tests can supply
// a fake without dialing a broker.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Bus publishes outbox payloads to a RabbitMQ exchange. The outbox topic
// (e.g. "accounting.journal.posted") is used as the routing key against a
// single topic exchange named by Exchange.
type Bus struct {
	channel  Channel
	exchange string
}

// New wraps an already-open channel. exchange is the topic exchange every
// outbox row publishes against; the topic passed to Publish (see TopicFor)
// is the routing key.
func New(channel Channel, exchange string) *Bus {
	return &Bus{channel: channel, exchange: exchange}
}

var _ ports.MessageBus = (*Bus)(nil)

func (b *Bus) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	tracer := mtracer.FromContext(ctx)
	ctx, span := tracer.Start(ctx, "rabbitmq.publish")
	defer span.End()

	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}

	err := b.channel.PublishWithContext(ctx, b.exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    key,
		Headers:      table,
		Body:         payload,
	})
	if err != nil {
		motel.HandleSpanError(&span, "failed to publish outbox message", err)
		return errs.Transport("failed to publish outbox message", err)
	}

	return nil
}

// TopicFor maps an event type to its bus topic (spec §6 table), falling back
// to accounting.unknown for anything not explicitly listed.
func TopicFor(eventType string) string {
	if topic, ok := topicsByEventType[eventType]; ok {
		return topic
	}
	return "accounting.unknown"
}

var topicsByEventType = map[string]string{
	"AccountCreated":           "accounting.account.created",
	"AccountBalanceUpdated":    "accounting.account.balance_updated",
	"AccountStateUpdated":      "accounting.account.state_updated",
	"AccountParentChanged":     "accounting.account.parent_changed",
	"AccountPostingPolicyChanged": "accounting.account.posting_policy_changed",
	"AccountCompanionLinksSet": "accounting.account.companion_links_set",
	"JournalEntryPosted":       "accounting.journal.posted",
	"PostingContextRecorded":   "accounting.journal.posting_context_recorded",
}
