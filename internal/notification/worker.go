// Package notification pushes rent lifecycle events to the renting
// user's browser subscriptions. Delivery is best-effort: a failed push
// never affects cell or rent state.
package notification

import (
	"context"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"locker-terminal-backend/internal/model"
	"locker-terminal-backend/internal/store"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool fans rent events out to web-push subscriptions.
type WorkerPool struct {
	size    int
	jobs    chan store.RentEvent
	store   store.Store
	webpush *webpush.Options
	sender  Sender
	logger  zerolog.Logger
}

// NewWorkerPool creates a worker pool of the given size.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, logger zerolog.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan store.RentEvent, size),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger.With().Str("component", "notification").Logger(),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug().Int("worker", id).Msg("worker started")
	for {
		select {
		case event := <-wp.jobs:
			wp.notifyUser(ctx, event)
		case <-ctx.Done():
			wp.logger.Debug().Int("worker", id).Msg("worker shutting down")
			return
		}
	}
}

// Dispatch queues a rent event for delivery. It drops the event when the
// queue is full rather than block reconciliation.
func (wp *WorkerPool) Dispatch(event store.RentEvent) {
	select {
	case wp.jobs <- event:
	default:
		wp.logger.Warn().Str("rent", event.RentID).Msg("notification queue full, event dropped")
	}
}

func (wp *WorkerPool) notifyUser(ctx context.Context, event store.RentEvent) {
	subscriptions, err := wp.store.SubscriptionsByUser(ctx, event.UserID)
	if err != nil {
		wp.logger.Error().Err(err).Str("user", event.UserID).Msg("failed to load subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	var message string
	switch event.Kind {
	case store.RentOpened:
		message = "Your locker cell is open. Rent started."
	case store.RentFinished:
		message = "Your rent is finished. Thanks for using the locker."
	default:
		return
	}

	for _, sub := range subscriptions {
		wp.send(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to send notification")
		return
	}
	defer resp.Body.Close()

	// 410 Gone means the browser dropped the subscription.
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired, deleting")
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.logger.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
	}
}
