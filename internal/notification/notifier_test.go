package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/pkg/jobs"
)

type dispatcherStub struct {
	mu       sync.Mutex
	failures int
	sent     []models.Notification
	closed   bool
}

func (d *dispatcherStub) Dispatch(_ context.Context, n models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return errors.New("unavailable")
	}
	d.sent = append(d.sent, n)
	return nil
}

func (d *dispatcherStub) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *dispatcherStub) sentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type recorderStub struct {
	mu      sync.Mutex
	results []error
}

func (r *recorderStub) RecordNotification(_ models.NotificationType, err error) {
	r.mu.Lock()
	r.results = append(r.results, err)
	r.mu.Unlock()
}

func (r *recorderStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func sample() models.Notification {
	return models.Notification{
		Type:          models.NotificationEventApproved,
		EventID:       "evt-1",
		EventName:     "Hack Night",
		TargetUserIDs: []string{"u1"},
	}
}

func TestNotifierDeliversWithRetry(t *testing.T) {
	dispatcher := &dispatcherStub{failures: 1}
	recorder := &recorderStub{}
	notifier := NewNotifier(dispatcher, recorder, nil, jobs.QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	notifier.Start(context.Background())

	notifier.Notify(context.Background(), sample())

	require.Eventually(t, func() bool { return dispatcher.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	notifier.Stop()

	assert.Equal(t, "evt-1", dispatcher.sent[0].EventID)
	assert.True(t, dispatcher.closed)
	require.Equal(t, 2, recorder.count())
	assert.Error(t, recorder.results[0])
	assert.NoError(t, recorder.results[1])
}

func TestNotifierSkipsEmptyTargets(t *testing.T) {
	dispatcher := &dispatcherStub{}
	notifier := NewNotifier(dispatcher, nil, nil, jobs.QueueConfig{})
	notifier.Start(context.Background())
	defer notifier.Stop()

	n := sample()
	n.TargetUserIDs = nil
	notifier.Notify(context.Background(), n)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, dispatcher.sentCount())
}

func TestNotifierNeverPropagatesQueueErrors(t *testing.T) {
	recorder := &recorderStub{}
	notifier := NewNotifier(&dispatcherStub{}, recorder, nil, jobs.QueueConfig{})

	assert.NotPanics(t, func() { notifier.Notify(context.Background(), sample()) })
	assert.Equal(t, 1, recorder.count())
}
