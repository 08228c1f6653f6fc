package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badguys/pkg/domain"
	audit "badguys/pkg/platform/audit"
	"badguys/pkg/platform/audit/store/memory"
	"badguys/pkg/requestcontext"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	fixed := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), fixed)
	ctx = requestcontext.WithRequestID(ctx, "req-7")
	ctx = requestcontext.WithClientMetadata(ctx, "198.51.100.4",
		"Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")

	actor := domain.NewUserID()
	require.NoError(t, pub.Emit(ctx, audit.NewEvent(audit.EventProfileCreated, actor, "p-1")))

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.NotEqual(t, [16]byte{}, [16]byte(e.ID))
	assert.Equal(t, fixed, e.Timestamp)
	assert.Equal(t, "req-7", e.RequestID)
	assert.Equal(t, actor, e.ActorID)
	assert.Equal(t, "Firefox", e.ClientFamily)
	assert.Equal(t, audit.CategoryOperations, e.Category)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	for i := 0; i < 5; i++ {
		require.NoError(t, pub.Emit(context.Background(), audit.NewEvent(audit.EventProfileReported, domain.NewUserID(), "p")))
	}
	require.NoError(t, pub.Close())

	events, err := store.ListByAction(context.Background(), audit.EventProfileReported)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

type blockingStore struct {
	release chan struct{}
	mu      sync.Mutex
	n       int
}

func (s *blockingStore) Append(context.Context, audit.Event) error {
	<-s.release
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	return nil
}

func TestPublisher_AsyncBufferFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	pub := NewPublisher(store, WithAsyncBuffer(1))

	var dropped int
	for i := 0; i < 5; i++ {
		if err := pub.Emit(context.Background(), audit.NewEvent(audit.EventSignedIn, domain.NewUserID(), "")); errors.Is(err, ErrBufferFull) {
			dropped++
		}
	}
	close(store.release)
	require.NoError(t, pub.Close())
	assert.GreaterOrEqual(t, dropped, 3)
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error { return errors.New("sink down") }

func TestPublisher_SyncPropagatesStoreError(t *testing.T) {
	pub := NewPublisher(failingStore{})
	err := pub.Emit(context.Background(), audit.NewEvent(audit.EventProfileDeleted, domain.NewUserID(), "p"))
	assert.EqualError(t, err, "sink down")
	assert.NoError(t, pub.Close())
	assert.NoError(t, pub.Close())
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	for name, opts := range map[string][]Option{
		"sync":  nil,
		"async": {WithAsyncBuffer(4)},
	} {
		t.Run(name, func(t *testing.T) {
			store := memory.NewInMemoryStore()
			pub := NewPublisher(store, opts...)
			require.NoError(t, pub.Close())
			require.NoError(t, pub.Close())

			err := pub.Emit(context.Background(), audit.NewEvent(audit.EventProfileDeleted, domain.NewUserID(), "p"))
			assert.ErrorIs(t, err, ErrClosed)

			events, err := store.ListAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}

func TestPublisher_CloseRacingEmit(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(8))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				err := pub.Emit(context.Background(), audit.NewEvent(audit.EventProfileReported, domain.NewUserID(), "p"))
				if err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, ErrBufferFull) {
					t.Errorf("unexpected emit error: %v", err)
				}
			}
		}()
	}
	require.NoError(t, pub.Close())
	wg.Wait()
}

func TestClientFamily(t *testing.T) {
	assert.Empty(t, ClientFamily(""))
	assert.Equal(t, "Firefox", ClientFamily("Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"))
	assert.Contains(t, ClientFamily("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"), "bot:")
}
