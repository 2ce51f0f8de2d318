package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopos/internal/core/events"
)

func TestOutboxRouterDispatchesByType(t *testing.T) {
	var got []string
	record := func(name string) OutboxHandler {
		return OutboxHandlerFunc(func(_ context.Context, msg *OutboxMessage) error {
			got = append(got, name+":"+msg.EventType)
			return nil
		})
	}

	router := NewOutboxRouter().
		Route(record("usage"), events.TypeOrderCreated).
		Route(record("sink"), events.TypeStockChanged, events.TypeLowStock)

	ctx := context.Background()
	require.NoError(t, router.Handle(ctx, &OutboxMessage{EventType: events.TypeOrderCreated}))
	require.NoError(t, router.Handle(ctx, &OutboxMessage{EventType: events.TypeLowStock}))
	require.NoError(t, router.Handle(ctx, &OutboxMessage{EventType: "unknown"}))

	assert.Equal(t, []string{"usage:" + events.TypeOrderCreated, "sink:" + events.TypeLowStock}, got)
}

func TestOutboxRouterJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	calls := 0
	router := NewOutboxRouter().
		Route(OutboxHandlerFunc(func(context.Context, *OutboxMessage) error { calls++; return errA }), events.TypeStockChanged).
		Route(OutboxHandlerFunc(func(context.Context, *OutboxMessage) error { calls++; return nil }), events.TypeStockChanged)

	err := router.Handle(context.Background(), &OutboxMessage{EventType: events.TypeStockChanged})
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, 2, calls)
}

func TestOutboxMessageDecode(t *testing.T) {
	msg := &OutboxMessage{EventType: events.TypeLowStock, Payload: []byte(`{"sku":"FLOUR","currentStock":"1.0000"}`)}

	var payload events.LowStock
	require.NoError(t, msg.Decode(&payload))
	assert.Equal(t, "FLOUR", payload.SKU)

	msg.Payload = []byte(`{`)
	assert.ErrorContains(t, msg.Decode(&payload), events.TypeLowStock)
}

func TestNewOutboxRelayDefaults(t *testing.T) {
	r := NewOutboxRelay(nil, NewOutboxRouter(), RelayOptions{BatchSize: 10})
	assert.Equal(t, 10, r.opts.BatchSize)
	assert.Equal(t, DefaultRelayOptions().MaxRetries, r.opts.MaxRetries)
	assert.Equal(t, DefaultRelayOptions().Lease, r.opts.Lease)
}
