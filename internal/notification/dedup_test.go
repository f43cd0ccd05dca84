package notification

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dispatchCounter records every Dispatch call, letting tests assert the
// dedup law: N duplicate deliveries of the same (orderId, category)
// produce exactly one dispatch.
type dispatchCounter struct {
	mu    sync.Mutex
	calls int
}

func (d *dispatchCounter) Dispatch(ctx context.Context, orderID, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return nil
}

func TestInMemoryDedupStore_DuplicateDeliveriesDispatchOnce(t *testing.T) {
	dedup := NewInMemoryDedupStore()
	counter := &dispatchCounter{}
	svc := NewService(dedup, counter, testLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.notify(context.Background(), "order-1", CategorySuccess, "payment processed"))
	}

	assert.Equal(t, 1, counter.calls)
}

func TestInMemoryDedupStore_DifferentCategoriesBothDispatch(t *testing.T) {
	dedup := NewInMemoryDedupStore()
	counter := &dispatchCounter{}
	svc := NewService(dedup, counter, testLogger())

	require.NoError(t, svc.notify(context.Background(), "order-1", CategorySuccess, "processed"))
	require.NoError(t, svc.notify(context.Background(), "order-1", CategoryRefund, "refunded"))

	assert.Equal(t, 2, counter.calls)
}
