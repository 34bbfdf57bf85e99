package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperationKind identifies a queued client action that can be replayed.
type OperationKind string

const (
	OperationJoinEvent            OperationKind = "JOIN_EVENT"
	OperationLeaveEvent           OperationKind = "LEAVE_EVENT"
	OperationJoinTeam             OperationKind = "JOIN_TEAM"
	OperationSubmitProject        OperationKind = "SUBMIT_PROJECT"
	OperationSubmitCriteriaVote   OperationKind = "SUBMIT_CRITERIA_VOTE"
	OperationSubmitIndividualVote OperationKind = "SUBMIT_INDIVIDUAL_VOTE"
	OperationSubmitRating         OperationKind = "SUBMIT_RATING"
)

// Operation is the closed set of replayable actions. Only types in this package implement it.
type Operation interface {
	Kind() OperationKind
	Event() string
	sealed()
}

// JoinEventOperation joins an individual event.
type JoinEventOperation struct {
	EventID string `json:"eventId"`
}

// LeaveEventOperation leaves an event or the caller's team.
type LeaveEventOperation struct {
	EventID string `json:"eventId"`
}

// JoinTeamOperation joins a named team of a team event.
type JoinTeamOperation struct {
	EventID  string `json:"eventId"`
	TeamName string `json:"teamName"`
}

// SubmitProjectOperation hands in a project.
type SubmitProjectOperation struct {
	EventID    string          `json:"eventId"`
	Submission SubmissionInput `json:"submission"`
}

// SubmitCriteriaVoteOperation casts criteria ballots.
type SubmitCriteriaVoteOperation struct {
	EventID string         `json:"eventId"`
	Ballot  CriteriaBallot `json:"ballot"`
}

// SubmitIndividualVoteOperation casts a single participant ballot.
type SubmitIndividualVoteOperation struct {
	EventID       string `json:"eventId"`
	CriterionKey  string `json:"criterionKey"`
	ParticipantID string `json:"participantId"`
}

// SubmitRatingOperation rates the organisation of an event.
type SubmitRatingOperation struct {
	EventID  string `json:"eventId"`
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback,omitempty"`
}

func (JoinEventOperation) Kind() OperationKind            { return OperationJoinEvent }
func (LeaveEventOperation) Kind() OperationKind           { return OperationLeaveEvent }
func (JoinTeamOperation) Kind() OperationKind             { return OperationJoinTeam }
func (SubmitProjectOperation) Kind() OperationKind        { return OperationSubmitProject }
func (SubmitCriteriaVoteOperation) Kind() OperationKind   { return OperationSubmitCriteriaVote }
func (SubmitIndividualVoteOperation) Kind() OperationKind { return OperationSubmitIndividualVote }
func (SubmitRatingOperation) Kind() OperationKind         { return OperationSubmitRating }

func (o JoinEventOperation) Event() string            { return o.EventID }
func (o LeaveEventOperation) Event() string           { return o.EventID }
func (o JoinTeamOperation) Event() string             { return o.EventID }
func (o SubmitProjectOperation) Event() string        { return o.EventID }
func (o SubmitCriteriaVoteOperation) Event() string   { return o.EventID }
func (o SubmitIndividualVoteOperation) Event() string { return o.EventID }
func (o SubmitRatingOperation) Event() string         { return o.EventID }

func (JoinEventOperation) sealed()            {}
func (LeaveEventOperation) sealed()           {}
func (JoinTeamOperation) sealed()             {}
func (SubmitProjectOperation) sealed()        {}
func (SubmitCriteriaVoteOperation) sealed()   {}
func (SubmitIndividualVoteOperation) sealed() {}
func (SubmitRatingOperation) sealed()         {}

// OperationEnvelope is the wire form of a queued operation.
type OperationEnvelope struct {
	ID       string          `json:"id"`
	Kind     OperationKind   `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queuedAt"`
}

// Decode resolves the envelope into its typed operation.
func (e OperationEnvelope) Decode() (Operation, error) {
	var op Operation
	switch e.Kind {
	case OperationJoinEvent:
		op = &JoinEventOperation{}
	case OperationLeaveEvent:
		op = &LeaveEventOperation{}
	case OperationJoinTeam:
		op = &JoinTeamOperation{}
	case OperationSubmitProject:
		op = &SubmitProjectOperation{}
	case OperationSubmitCriteriaVote:
		op = &SubmitCriteriaVoteOperation{}
	case OperationSubmitIndividualVote:
		op = &SubmitIndividualVoteOperation{}
	case OperationSubmitRating:
		op = &SubmitRatingOperation{}
	default:
		return nil, fmt.Errorf("unsupported operation kind %q", e.Kind)
	}
	if len(e.Payload) == 0 {
		return nil, fmt.Errorf("operation %s has no payload", e.Kind)
	}
	if err := json.Unmarshal(e.Payload, op); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}
	if op.Event() == "" {
		return nil, fmt.Errorf("operation %s is missing eventId", e.Kind)
	}
	return op, nil
}

// OperationResult reports the outcome of replaying one envelope.
type OperationResult struct {
	ID      string        `json:"id"`
	Kind    OperationKind `json:"kind"`
	Applied bool          `json:"applied"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
}

// CriteriaBallot carries one voter's selections per criterion key plus an optional best performer.
type CriteriaBallot struct {
	Selections    map[string]string `json:"selections"`
	BestPerformer string            `json:"bestPerformer,omitempty"`
}

// SubmissionInput is the caller-supplied part of a submission.
type SubmissionInput struct {
	ProjectName   string `json:"projectName" validate:"required,max=200"`
	Link          string `json:"link" validate:"required,url"`
	Description   string `json:"description,omitempty" validate:"omitempty,max=2000"`
	TeamName      string `json:"teamName,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
}
