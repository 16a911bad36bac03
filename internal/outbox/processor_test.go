package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/metrics"
	"checkout/internal/repository/memory"
)

type recordingPublisher struct {
	mu      sync.Mutex
	sent    []string
	failOn  string
	failErr error
}

func (p *recordingPublisher) Produce(_ context.Context, key, topic string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if key == p.failOn {
		return p.failErr
	}
	p.sent = append(p.sent, topic+"/"+key)
	return nil
}

func seedMessages(t *testing.T, store *memory.Store, keys ...string) {
	t.Helper()
	ctx := context.Background()
	for i, key := range keys {
		msg, err := NewMessage("order_events", domain.AggregateOrder, key, domain.EventOrderCreated,
			map[string]string{"order_id": key}, time.Unix(int64(i), 0))
		require.NoError(t, err)
		require.NoError(t, store.Outbox().CreateMessageTx(ctx, store, msg))
	}
}

func TestProcessor_RelaysPendingMessages(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	seedMessages(t, store, "o1", "o2", "o3")
	pub := &recordingPublisher{}
	p := NewProcessor(store, store.Outbox(), pub, time.Second, time.Second, 10, metrics.NewUnregistered(), zap.NewNop())

	sent, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, []string{"order_events/o1", "order_events/o2", "order_events/o3"}, pub.sent)

	for _, msg := range store.OutboxMessages() {
		assert.Equal(t, domain.OutboxStatusSent, msg.Status)
		assert.NotNil(t, msg.SentAt)
	}

	sent, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestProcessor_StopsAtFirstFailureAndRetriesLater(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	seedMessages(t, store, "o1", "o2", "o3")
	pub := &recordingPublisher{failOn: "o2", failErr: errors.New("broker down")}
	p := NewProcessor(store, store.Outbox(), pub, time.Second, time.Second, 10, metrics.NewUnregistered(), zap.NewNop())

	sent, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	statuses := map[string]domain.OutboxMessageStatus{}
	for _, msg := range store.OutboxMessages() {
		statuses[msg.Key] = msg.Status
	}
	assert.Equal(t, domain.OutboxStatusSent, statuses["o1"])
	assert.Equal(t, domain.OutboxStatusPending, statuses["o2"])
	assert.Equal(t, domain.OutboxStatusPending, statuses["o3"])

	pub.failOn = ""
	sent, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}

func TestProcessor_StartReturnsOnCancel(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	seedMessages(t, store, "o1")
	pub := &recordingPublisher{}
	p := NewProcessor(store, store.Outbox(), pub, 10*time.Millisecond, time.Second, 10, metrics.NewUnregistered(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.sent) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}
