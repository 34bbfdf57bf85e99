package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

func TestCanTransitionTable(t *testing.T) {
	allowed := map[models.EventStatus][]models.EventStatus{
		models.EventStatusPending:    {models.EventStatusApproved, models.EventStatusRejected},
		models.EventStatusApproved:   {models.EventStatusInProgress, models.EventStatusCancelled},
		models.EventStatusInProgress: {models.EventStatusCompleted, models.EventStatusCancelled},
		models.EventStatusCompleted:  {models.EventStatusClosed},
	}
	all := []models.EventStatus{
		models.EventStatusPending, models.EventStatusApproved, models.EventStatusInProgress,
		models.EventStatusCompleted, models.EventStatusCancelled, models.EventStatusRejected, models.EventStatusClosed,
	}
	for _, from := range all {
		for _, to := range all {
			expected := false
			for _, candidate := range allowed[from] {
				if candidate == to {
					expected = true
				}
			}
			assert.Equal(t, expected, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransitionTimestampsAreSetOnce(t *testing.T) {
	earlier := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	event := &models.Event{Status: models.EventStatusApproved}
	event.Lifecycle.StartedAt = &earlier

	require.NoError(t, Transition(event, models.EventStatusInProgress, TransitionInput{}, testNow))
	assert.Equal(t, earlier, *event.Lifecycle.StartedAt)
	assert.True(t, event.VotingOpen)
}

func TestTransitionToClosedGuards(t *testing.T) {
	event := &models.Event{Status: models.EventStatusCompleted, VotingOpen: true, Winners: models.Winners{"design": {"p1"}}}
	err := Transition(event, models.EventStatusClosed, TransitionInput{}, testNow)
	requireCode(t, err, appErrors.ErrInvalidState)
	assert.Equal(t, models.EventStatusCompleted, event.Status)
	assert.Nil(t, event.Lifecycle.ClosedAt)

	event.VotingOpen = false
	event.Winners = models.Winners{}
	err = Transition(event, models.EventStatusClosed, TransitionInput{}, testNow)
	requireCode(t, err, appErrors.ErrInvalidState)

	event.Winners = models.Winners{"design": {"p1", "p2"}}
	require.NoError(t, Transition(event, models.EventStatusClosed, TransitionInput{}, testNow))
	assert.Equal(t, models.EventStatusClosed, event.Status)
	require.NotNil(t, event.Lifecycle.ClosedAt)
}

func TestTransitionNotificationTypes(t *testing.T) {
	assert.Equal(t, models.NotificationEventApproved, transitionNotification(models.EventStatusApproved))
	assert.Equal(t, models.NotificationEventRejected, transitionNotification(models.EventStatusRejected))
	assert.Equal(t, models.NotificationEventCancelled, transitionNotification(models.EventStatusCancelled))
	assert.Equal(t, models.NotificationEventClosed, transitionNotification(models.EventStatusClosed))
}
