package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

// lifecycleTransitions lists the allowed targets for each status. Terminal states have no entry.
var lifecycleTransitions = map[models.EventStatus][]models.EventStatus{
	models.EventStatusPending:    {models.EventStatusApproved, models.EventStatusRejected},
	models.EventStatusApproved:   {models.EventStatusInProgress, models.EventStatusCancelled},
	models.EventStatusInProgress: {models.EventStatusCompleted, models.EventStatusCancelled},
	models.EventStatusCompleted:  {models.EventStatusClosed},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to models.EventStatus) bool {
	for _, candidate := range lifecycleTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// TransitionInput carries the data some transitions require.
type TransitionInput struct {
	Reason string
}

// Transition moves event to target, applying the side effects of the transition. The event is
// left untouched when a guard fails.
func Transition(event *models.Event, target models.EventStatus, input TransitionInput, now time.Time) error {
	if !CanTransition(event.Status, target) {
		return appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot move event from %s to %s", event.Status, target))
	}

	switch target {
	case models.EventStatusRejected:
		reason := strings.TrimSpace(input.Reason)
		if reason == "" {
			return appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
		}
		event.RejectionReason = reason
		setOnce(&event.Lifecycle.RejectedAt, now)
	case models.EventStatusApproved:
		setOnce(&event.Lifecycle.ApprovedAt, now)
	case models.EventStatusInProgress:
		event.VotingOpen = true
		setOnce(&event.Lifecycle.StartedAt, now)
	case models.EventStatusCompleted:
		event.VotingOpen = true
		setOnce(&event.Lifecycle.CompletedAt, now)
	case models.EventStatusCancelled:
		event.VotingOpen = false
		setOnce(&event.Lifecycle.CancelledAt, now)
	case models.EventStatusClosed:
		if event.VotingOpen {
			return appErrors.Clone(appErrors.ErrInvalidState, "voting must be closed before the event is closed")
		}
		if event.Winners.IsEmpty() {
			return appErrors.Clone(appErrors.ErrInvalidState, "winners must be resolved before the event is closed")
		}
		setOnce(&event.Lifecycle.ClosedAt, now)
	}
	event.Status = target
	return nil
}

func setOnce(field **time.Time, now time.Time) {
	if *field != nil {
		return
	}
	ts := now.UTC()
	*field = &ts
}

func transitionNotification(target models.EventStatus) models.NotificationType {
	switch target {
	case models.EventStatusApproved:
		return models.NotificationEventApproved
	case models.EventStatusRejected:
		return models.NotificationEventRejected
	case models.EventStatusInProgress:
		return models.NotificationEventStarted
	case models.EventStatusCompleted:
		return models.NotificationEventCompleted
	case models.EventStatusCancelled:
		return models.NotificationEventCancelled
	default:
		return models.NotificationEventClosed
	}
}
