package notification

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"github.com/noah-isme/eventhub-api/internal/models"
)

// fcmBatchLimit is the maximum number of messages accepted by one SendEach call.
const fcmBatchLimit = 500

type messageSender interface {
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

// FCMDispatcher publishes one message per recipient to the recipient's
// personal topic, user_<id>.
type FCMDispatcher struct {
	client messageSender
}

// NewFCMDispatcher wraps a Firebase messaging client.
func NewFCMDispatcher(client messageSender) *FCMDispatcher {
	return &FCMDispatcher{client: client}
}

// Dispatch fans the notification out in batches. It fails when any message is rejected.
func (d *FCMDispatcher) Dispatch(ctx context.Context, notification models.Notification) error {
	if d.client == nil {
		return fmt.Errorf("fcm client not initialised")
	}
	messages := buildFCMMessages(notification)
	failed := 0
	for start := 0; start < len(messages); start += fcmBatchLimit {
		end := start + fcmBatchLimit
		if end > len(messages) {
			end = len(messages)
		}
		resp, err := d.client.SendEach(ctx, messages[start:end])
		if err != nil {
			return fmt.Errorf("send fcm batch: %w", err)
		}
		failed += resp.FailureCount
	}
	if failed > 0 {
		return fmt.Errorf("fcm rejected %d of %d messages", failed, len(messages))
	}
	return nil
}

// UserTopic names the FCM topic a user's devices subscribe to.
func UserTopic(userID string) string {
	return "user_" + userID
}

func buildFCMMessages(notification models.Notification) []*messaging.Message {
	title, body := describe(notification)
	data := map[string]string{
		"type":      string(notification.Type),
		"eventId":   notification.EventID,
		"eventName": notification.EventName,
	}
	messages := make([]*messaging.Message, 0, len(notification.TargetUserIDs))
	for _, uid := range notification.TargetUserIDs {
		messages = append(messages, &messaging.Message{
			Topic:        UserTopic(uid),
			Data:         data,
			Notification: &messaging.Notification{Title: title, Body: body},
			Android:      &messaging.AndroidConfig{Priority: "high"},
		})
	}
	return messages
}

func describe(notification models.Notification) (string, string) {
	name := notification.EventName
	switch notification.Type {
	case models.NotificationEventRequested:
		return "New event request", fmt.Sprintf("%s is waiting for approval", name)
	case models.NotificationEventApproved:
		return "Event approved", fmt.Sprintf("%s has been approved", name)
	case models.NotificationEventRejected:
		return "Event rejected", fmt.Sprintf("%s was not approved", name)
	case models.NotificationEventStarted:
		return "Event started", fmt.Sprintf("%s is now in progress", name)
	case models.NotificationEventCompleted:
		return "Event completed", fmt.Sprintf("%s has finished", name)
	case models.NotificationEventCancelled:
		return "Event cancelled", fmt.Sprintf("%s has been cancelled", name)
	case models.NotificationEventClosed:
		return "Results are final", fmt.Sprintf("XP for %s has been awarded", name)
	case models.NotificationVotingOpened:
		return "Voting is open", fmt.Sprintf("Cast your votes for %s", name)
	case models.NotificationVotingClosed:
		return "Voting closed", fmt.Sprintf("Voting for %s has closed", name)
	case models.NotificationWinnersPosted:
		return "Winners announced", fmt.Sprintf("See who won %s", name)
	case models.NotificationTeamsGenerated:
		return "Teams assigned", fmt.Sprintf("Your team for %s is ready", name)
	default:
		return name, string(notification.Type)
	}
}
