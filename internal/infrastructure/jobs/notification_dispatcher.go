package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"keystock.backend/pkg/logger"
	"keystock.backend/pkg/metrics"
)

// Sender delivers a notification text to its destination
type Sender interface {
	Enabled() bool
	Send(ctx context.Context, text string) error
}

// NotificationDispatcher decouples outbound notifications from request
// handling. Dispatch only enqueues; a single worker drains the queue.
// Failures are logged and dropped, never retried.
type NotificationDispatcher struct {
	sender  Sender
	queue   chan string
	timeout time.Duration
	stop    chan struct{}
	once    sync.Once
}

func NewNotificationDispatcher(sender Sender, queueSize int, timeout time.Duration) *NotificationDispatcher {
	if queueSize <= 0 {
		queueSize = 16
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotificationDispatcher{
		sender:  sender,
		queue:   make(chan string, queueSize),
		timeout: timeout,
		stop:    make(chan struct{}),
	}
}

// Enabled reports whether a destination is configured
func (d *NotificationDispatcher) Enabled() bool {
	return d.sender != nil && d.sender.Enabled()
}

// Dispatch enqueues text without blocking. A full queue drops the message.
func (d *NotificationDispatcher) Dispatch(text string) {
	if !d.Enabled() {
		return
	}
	select {
	case d.queue <- text:
	default:
		metrics.NotificationsTotal.WithLabelValues(metrics.NotificationDropped).Inc()
		logger.Warn(context.Background(), "Notification queue full, message dropped", zap.String("text", text))
	}
}

// Start runs the worker loop until ctx is cancelled or Stop is called
func (d *NotificationDispatcher) Start(ctx context.Context) {
	logger.Info(ctx, "Notification dispatcher started", zap.Bool("enabled", d.Enabled()))

	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "Notification dispatcher stopped (context cancelled)")
			return
		case <-d.stop:
			logger.Info(context.Background(), "Notification dispatcher stopped")
			return
		case text := <-d.queue:
			d.deliver(ctx, text)
		}
	}
}

func (d *NotificationDispatcher) Stop() {
	d.once.Do(func() { close(d.stop) })
}

func (d *NotificationDispatcher) deliver(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in sender: %v", r)
			}
		}()
		return d.sender.Send(ctx, text)
	}()

	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(metrics.NotificationFailed).Inc()
		logger.Warn(ctx, "Low-stock notification failed", zap.Error(err))
		return
	}
	metrics.NotificationsTotal.WithLabelValues(metrics.NotificationSent).Inc()
	logger.Info(ctx, "Low-stock notification sent")
}
