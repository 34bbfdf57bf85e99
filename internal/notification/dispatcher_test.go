package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eventhub-api/internal/models"
)

func TestWebhookDispatcherPostsJSON(t *testing.T) {
	var received models.Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "EVENT_APPROVED", r.Header.Get("X-Notification-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	err := NewWebhookDispatcher(server.URL, time.Second).Dispatch(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, sample(), received)
}

func TestWebhookDispatcherRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookDispatcher(server.URL, time.Second).Dispatch(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type senderStub struct {
	batches [][]*messaging.Message
	reject  int
	err     error
}

func (s *senderStub) SendEach(_ context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, messages)
	return &messaging.BatchResponse{SuccessCount: len(messages) - s.reject, FailureCount: s.reject}, nil
}

func TestFCMDispatcherTargetsUserTopics(t *testing.T) {
	sender := &senderStub{}
	n := sample()
	n.TargetUserIDs = []string{"u1", "u2"}

	require.NoError(t, NewFCMDispatcher(sender).Dispatch(context.Background(), n))
	require.Len(t, sender.batches, 1)
	batch := sender.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "user_u1", batch[0].Topic)
	assert.Equal(t, "user_u2", batch[1].Topic)
	assert.Equal(t, "evt-1", batch[0].Data["eventId"])
	assert.Equal(t, "Event approved", batch[0].Notification.Title)
	assert.Equal(t, "high", batch[0].Android.Priority)
}

func TestFCMDispatcherBatchesAndReportsFailures(t *testing.T) {
	sender := &senderStub{reject: 1}
	n := sample()
	n.TargetUserIDs = make([]string, fcmBatchLimit+1)
	for i := range n.TargetUserIDs {
		n.TargetUserIDs[i] = "u"
	}

	err := NewFCMDispatcher(sender).Dispatch(context.Background(), n)
	require.Error(t, err)
	assert.Len(t, sender.batches, 2)
	assert.Len(t, sender.batches[1], 1)

	err = NewFCMDispatcher(&senderStub{err: errors.New("quota")}).Dispatch(context.Background(), sample())
	require.Error(t, err)
}

type writerStub struct {
	messages []kafka.Message
	closed   bool
}

func (w *writerStub) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *writerStub) Close() error {
	w.closed = true
	return nil
}

func TestKafkaDispatcherKeysByEvent(t *testing.T) {
	writer := &writerStub{}
	dispatcher := &KafkaDispatcher{writer: writer}

	require.NoError(t, dispatcher.Dispatch(context.Background(), sample()))
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "evt-1", string(msg.Key))
	assert.Equal(t, "EVENT_APPROVED", string(msg.Headers[0].Value))

	var decoded models.Notification
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, sample(), decoded)

	require.NoError(t, dispatcher.Close())
	assert.True(t, writer.closed)
}
