package rabbitmq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	lastExchange string
	lastKey      string
	lastMsg      amqp.Publishing
	err          error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.lastExchange = exchange
	f.lastKey = key
	f.lastMsg = msg
	return f.err
}

func TestPublish_SetsHeadersAndRoutingKey(t *testing.T) {
	ch := &fakeChannel{}
	bus := New(ch, "accounting.events")

	err := bus.Publish(context.Background(), "accounting.journal.posted", "je-1", []byte(`{"id":"evt-1"}`), map[string]string{
		"tenant-id":  "tenant-1",
		"event-type": "JournalEntryPosted",
	})
	require.NoError(t, err)

	assert.Equal(t, "accounting.events", ch.lastExchange)
	assert.Equal(t, "accounting.journal.posted", ch.lastKey)
	assert.Equal(t, "tenant-1", ch.lastMsg.Headers["tenant-id"])
	assert.Equal(t, "JournalEntryPosted", ch.lastMsg.Headers["event-type"])
	assert.Equal(t, amqp.Persistent, ch.lastMsg.DeliveryMode)
	assert.Equal(t, "je-1", ch.lastMsg.MessageId)
}

func TestPublish_WrapsChannelError(t *testing.T) {
	ch := &fakeChannel{err: assert.AnError}
	bus := New(ch, "accounting.events")

	err := bus.Publish(context.Background(), "accounting.journal.posted", "je-1", []byte(`{}`), nil)
	assert.Error(t, err)
}

func TestTopicFor_KnownAndUnknownTypes(t *testing.T) {
	assert.Equal(t, "accounting.account.created", TopicFor("AccountCreated"))
	assert.Equal(t, "accounting.journal.posted", TopicFor("JournalEntryPosted"))
	assert.Equal(t, "accounting.unknown", TopicFor("SomethingElse"))
}
