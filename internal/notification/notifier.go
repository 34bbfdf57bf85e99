package notification

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/pkg/jobs"
)

// Dispatcher delivers one notification to an external channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification models.Notification) error
}

type metricsRecorder interface {
	RecordNotification(kind models.NotificationType, err error)
}

// Notifier hands notifications to a worker queue so callers never wait on
// delivery. Failures are logged and counted, never returned.
type Notifier struct {
	queue      *jobs.Queue[models.Notification]
	dispatcher Dispatcher
	metrics    metricsRecorder
	logger     *zap.Logger
}

// NewNotifier wires a dispatcher behind a retrying queue.
func NewNotifier(dispatcher Dispatcher, metrics metricsRecorder, logger *zap.Logger, cfg jobs.QueueConfig) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger
	n := &Notifier{dispatcher: dispatcher, metrics: metrics, logger: logger}
	n.queue = jobs.NewQueue("notifications", n.deliver, cfg)
	n.queue.OnFailure(func(task jobs.Task[models.Notification], err error) {
		n.logger.Error("notification dropped",
			zap.String("type", string(task.Payload.Type)),
			zap.String("event_id", task.Payload.EventID),
			zap.Int("attempts", task.Attempt),
			zap.Error(err))
	})
	return n
}

// Start launches the delivery workers.
func (n *Notifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the workers and closes the dispatcher when it holds resources.
func (n *Notifier) Stop() {
	n.queue.Stop()
	if closer, ok := n.dispatcher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			n.logger.Warn("close notification dispatcher", zap.Error(err))
		}
	}
}

// Notify enqueues the notification. Notifications without recipients are skipped.
func (n *Notifier) Notify(_ context.Context, notification models.Notification) {
	if len(notification.TargetUserIDs) == 0 {
		return
	}
	if _, err := n.queue.Enqueue(notification); err != nil {
		n.record(notification.Type, err)
		n.logger.Warn("notification not queued",
			zap.String("type", string(notification.Type)),
			zap.String("event_id", notification.EventID),
			zap.Error(err))
	}
}

func (n *Notifier) deliver(ctx context.Context, task jobs.Task[models.Notification]) error {
	err := n.dispatcher.Dispatch(ctx, task.Payload)
	n.record(task.Payload.Type, err)
	if err == nil {
		n.logger.Debug("notification sent",
			zap.String("type", string(task.Payload.Type)),
			zap.String("event_id", task.Payload.EventID),
			zap.Int("targets", len(task.Payload.TargetUserIDs)))
	}
	return err
}

func (n *Notifier) record(kind models.NotificationType, err error) {
	if n.metrics != nil {
		n.metrics.RecordNotification(kind, err)
	}
}
