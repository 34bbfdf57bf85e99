package models

// NotificationType names the lifecycle event being announced.
type NotificationType string

const (
	NotificationEventRequested NotificationType = "EVENT_REQUESTED"
	NotificationEventApproved  NotificationType = "EVENT_APPROVED"
	NotificationEventRejected  NotificationType = "EVENT_REJECTED"
	NotificationEventStarted   NotificationType = "EVENT_STARTED"
	NotificationEventCompleted NotificationType = "EVENT_COMPLETED"
	NotificationEventCancelled NotificationType = "EVENT_CANCELLED"
	NotificationEventClosed    NotificationType = "EVENT_CLOSED"
	NotificationVotingOpened   NotificationType = "VOTING_OPENED"
	NotificationVotingClosed   NotificationType = "VOTING_CLOSED"
	NotificationWinnersPosted  NotificationType = "WINNERS_POSTED"
	NotificationTeamsGenerated NotificationType = "TEAMS_GENERATED"
)

// Notification is the fire-and-forget payload sent to the dispatcher.
type Notification struct {
	Type          NotificationType `json:"type"`
	EventID       string           `json:"eventId"`
	EventName     string           `json:"eventName"`
	TargetUserIDs []string         `json:"targetUserIds"`
}
