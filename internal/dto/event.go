package dto

import (
	"time"

	"github.com/noah-isme/eventhub-api/internal/models"
)

// CriterionInput defines a judged category when creating or editing an event.
type CriterionInput struct {
	ConstraintIndex int    `json:"constraintIndex" validate:"gte=0"`
	ConstraintKey   string `json:"constraintKey" validate:"required,max=64"`
	Title           string `json:"title" validate:"required,max=120"`
	XPValue         *int   `json:"xpValue,omitempty" validate:"omitempty,gte=0,lte=1000"`
	Role            string `json:"role,omitempty" validate:"omitempty,xp_role"`
}

// CreateEventRequest is the payload for event requests (students) and direct creation (admins).
type CreateEventRequest struct {
	EventName              string           `json:"eventName" validate:"required,max=200"`
	Description            string           `json:"description" validate:"max=5000"`
	Format                 string           `json:"format" validate:"required,event_format"`
	StartDate              time.Time        `json:"startDate" validate:"required"`
	EndDate                time.Time        `json:"endDate" validate:"required"`
	Organizers             []string         `json:"organizers" validate:"omitempty,dive,required"`
	AllowProjectSubmission bool             `json:"allowProjectSubmission"`
	Prize                  string           `json:"prize,omitempty" validate:"max=500"`
	Rules                  string           `json:"rules,omitempty" validate:"max=5000"`
	Criteria               []CriterionInput `json:"criteria" validate:"omitempty,dive"`
}

// UpdateEventRequest edits event content. Nil fields are left unchanged.
type UpdateEventRequest struct {
	EventName              *string          `json:"eventName,omitempty" validate:"omitempty,min=1,max=200"`
	Description            *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Format                 *string          `json:"format,omitempty" validate:"omitempty,event_format"`
	StartDate              *time.Time       `json:"startDate,omitempty"`
	EndDate                *time.Time       `json:"endDate,omitempty"`
	Organizers             []string         `json:"organizers,omitempty" validate:"omitempty,dive,required"`
	AllowProjectSubmission *bool            `json:"allowProjectSubmission,omitempty"`
	Prize                  *string          `json:"prize,omitempty" validate:"omitempty,max=500"`
	Rules                  *string          `json:"rules,omitempty" validate:"omitempty,max=5000"`
	Criteria               []CriterionInput `json:"criteria,omitempty" validate:"omitempty,dive"`
}

// RejectEventRequest carries the mandatory rejection reason.
type RejectEventRequest struct {
	Reason string `json:"reason"`
}

// VotingToggleRequest opens or closes the voting gate.
type VotingToggleRequest struct {
	Open bool `json:"open"`
}

// AddTeamRequest creates a team. Shell teams may be created without members by organizers.
type AddTeamRequest struct {
	TeamName string   `json:"teamName"`
	Members  []string `json:"members"`
	TeamLead string   `json:"teamLead,omitempty"`
	Shell    bool     `json:"shell,omitempty"`
}

// GenerateTeamsRequest distributes students across the existing team shells.
type GenerateTeamsRequest struct {
	Students []string `json:"students" validate:"required,min=1,dive,required"`
	Min      int      `json:"min" validate:"required,gte=1"`
	Max      int      `json:"max" validate:"required,gtefield=Min"`
}

// GenerateTeamsResponse returns the updated event and the students left without a team.
type GenerateTeamsResponse struct {
	Event      *models.Event `json:"event"`
	Unassigned []string      `json:"unassigned"`
}

// IndividualVoteRequest is a single ballot for a participant.
type IndividualVoteRequest struct {
	CriterionKey  string `json:"criterionKey"`
	ParticipantID string `json:"participantId"`
}

// RatingRequest rates how the event was organised.
type RatingRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback,omitempty"`
}

// WinnersRequest persists a winners map. Values are one ID or a list of tied IDs.
type WinnersRequest struct {
	Winners models.Winners `json:"winners"`
}

// ManualWinnersRequest overrides the tally with a single winner per key.
type ManualWinnersRequest struct {
	Selections map[string]string `json:"selections"`
}

// ReplayRequest carries queued offline operations.
type ReplayRequest struct {
	Operations []models.OperationEnvelope `json:"operations"`
}

// EventQuery mirrors supported listing filters.
type EventQuery struct {
	Statuses    []models.EventStatus
	RequestedBy string
	OrganizerID string
	MemberID    string
	Descending  bool
	Limit       int
}

// DateConflictQuery asks whether a date range overlaps a committed event.
type DateConflictQuery struct {
	Start     time.Time
	End       time.Time
	ExcludeID string
}
