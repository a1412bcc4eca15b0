package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"locker-terminal-backend/internal/db"
	"locker-terminal-backend/internal/model"
	"locker-terminal-backend/internal/store"
)

type fakeSender struct {
	mu       sync.Mutex
	payloads []string
	status   int
}

func (f *fakeSender) Send(payload []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, string(payload))
	status := f.status
	if status == 0 {
		status = http.StatusCreated
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil))}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB)
}

func TestWorkerPoolSendsToUserSubscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint: "https://push/1", UserID: "user-1", P256DH: "key", Auth: "auth",
	}))

	sender := &fakeSender{}
	pool := NewWorkerPool(2, s, &webpush.Options{}, zerolog.Nop())
	pool.sender = sender
	pool.Start(ctx)

	pool.Dispatch(store.RentEvent{Kind: store.RentOpened, RentID: "rent-1", UserID: "user-1"})

	require.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerPoolSkipsUsersWithoutSubscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{}
	pool := NewWorkerPool(1, s, &webpush.Options{}, zerolog.Nop())
	pool.sender = sender
	pool.Start(ctx)

	pool.Dispatch(store.RentEvent{Kind: store.RentFinished, RentID: "rent-1", UserID: "nobody"})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, sender.count())
}

func TestWorkerPoolDeletesExpiredSubscription(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint: "https://push/expired", UserID: "user-1", P256DH: "key", Auth: "auth",
	}))

	sender := &fakeSender{status: http.StatusGone}
	pool := NewWorkerPool(1, s, &webpush.Options{}, zerolog.Nop())
	pool.sender = sender
	pool.Start(ctx)

	pool.Dispatch(store.RentEvent{Kind: store.RentOpened, RentID: "rent-1", UserID: "user-1"})

	require.Eventually(t, func() bool {
		subs, err := s.SubscriptionsByUser(ctx, "user-1")
		return err == nil && len(subs) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
