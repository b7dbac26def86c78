package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"production-dashboard-backend/internal/alert"
	"production-dashboard-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush
// library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool delivers alert events to browsers subscribed to the affected
// machine. Delivery runs off the alert loop so a slow push service never
// delays an evaluation pass.
type WorkerPool struct {
	size    int
	jobs    chan alert.Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan alert.Event, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// SetSender swaps the delivery implementation. Used by tests.
func (wp *WorkerPool) SetSender(s Sender) {
	wp.sender = s
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case event := <-wp.jobs:
			wp.sendForEvent(ctx, event)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Notify implements alert.Notifier. Events are dropped with a log line
// when the queue is full rather than blocking the alert loop.
func (wp *WorkerPool) Notify(event alert.Event) {
	select {
	case wp.jobs <- event:
	default:
		log.Printf("Notification queue full, dropping alert for machine %d", event.MachineID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan alert.Event {
	return wp.jobs
}

// sendForEvent fetches the subscriptions bound to the event's machine and
// pushes the alert to each of them.
func (wp *WorkerPool) sendForEvent(ctx context.Context, event alert.Event) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_machine_mapping smm ON smm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("smm.machine_id = ?", event.MachineID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for machine %d: %v", event.MachineID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling alert for machine %d: %v", event.MachineID, err)
		return
	}

	log.Printf("Sending %d notifications for machine %d (level %d)", len(subscriptions), event.MachineID, event.Level)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
