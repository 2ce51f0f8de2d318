package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopos/internal/core/events"
	"restopos/internal/core/id"
	"restopos/internal/infrastructure/storage/postgres"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSinkHandle(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink(w, time.Second)

	msg := &postgres.OutboxMessage{
		ID:            id.New(),
		AggregateType: events.AggregateItem,
		AggregateID:   id.New(),
		EventType:     events.TypeLowStock,
		Payload:       []byte(`{"sku":"FLOUR"}`),
		CreatedAt:     time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.Handle(context.Background(), msg))
	require.Len(t, w.msgs, 1)

	got := w.msgs[0]
	assert.Equal(t, msg.AggregateID.String(), string(got.Key))
	assert.Equal(t, msg.Payload, got.Value)
	assert.Equal(t, msg.CreatedAt, got.Time)

	headers := map[string]string{}
	for _, h := range got.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, events.TypeLowStock, headers[HeaderEventType])
	assert.Equal(t, events.AggregateItem, headers[HeaderAggregateType])
	assert.Equal(t, msg.ID.String(), headers[HeaderMessageID])

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSinkWrapsError(t *testing.T) {
	sink := newKafkaSink(&fakeWriter{err: errors.New("broker down")}, 0)

	err := sink.Handle(context.Background(), &postgres.OutboxMessage{EventType: events.TypeStockChanged})
	assert.ErrorContains(t, err, "kafka write inventory.stock_changed")
	assert.ErrorContains(t, err, "broker down")
}
