package models

import (
	"sort"
	"strings"
	"time"
)

// EventStatus captures the lifecycle states of an event.
type EventStatus string

const (
	EventStatusPending    EventStatus = "PENDING"
	EventStatusApproved   EventStatus = "APPROVED"
	EventStatusInProgress EventStatus = "IN_PROGRESS"
	EventStatusCompleted  EventStatus = "COMPLETED"
	EventStatusCancelled  EventStatus = "CANCELLED"
	EventStatusRejected   EventStatus = "REJECTED"
	EventStatusClosed     EventStatus = "CLOSED"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusPending, EventStatusApproved, EventStatusInProgress, EventStatusCompleted,
		EventStatusCancelled, EventStatusRejected, EventStatusClosed:
		return true
	}
	return false
}

// In reports whether the status is one of the provided values.
func (s EventStatus) In(statuses ...EventStatus) bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// CommittedStatuses are the published states considered by date-conflict checks.
var CommittedStatuses = []EventStatus{EventStatusApproved, EventStatusInProgress, EventStatusCompleted}

// EventFormat describes how people take part in an event.
type EventFormat string

const (
	EventFormatIndividual  EventFormat = "INDIVIDUAL"
	EventFormatTeam        EventFormat = "TEAM"
	EventFormatCompetition EventFormat = "COMPETITION"
)

// Valid reports whether the format is known.
func (f EventFormat) Valid() bool {
	switch f {
	case EventFormatIndividual, EventFormatTeam, EventFormatCompetition:
		return true
	}
	return false
}

// BestPerformerKey is the reserved winners key for the best performer category.
const BestPerformerKey = "best_performer"

// DateRange is an inclusive event schedule.
type DateRange struct {
	Start time.Time `firestore:"start" json:"start"`
	End   time.Time `firestore:"end" json:"end"`
}

// EventDetails holds the editable descriptive content of an event.
type EventDetails struct {
	EventName              string      `firestore:"eventName" json:"eventName"`
	Description            string      `firestore:"description" json:"description"`
	Format                 EventFormat `firestore:"format" json:"format"`
	Date                   DateRange   `firestore:"date" json:"date"`
	Organizers             []string    `firestore:"organizers" json:"organizers"`
	AllowProjectSubmission bool        `firestore:"allowProjectSubmission" json:"allowProjectSubmission"`
	Prize                  string      `firestore:"prize,omitempty" json:"prize,omitempty"`
	Rules                  string      `firestore:"rules,omitempty" json:"rules,omitempty"`
}

// Team is a roster inside a team-format event.
type Team struct {
	TeamName string   `firestore:"teamName" json:"teamName"`
	Members  []string `firestore:"members" json:"members"`
	TeamLead string   `firestore:"teamLead" json:"teamLead"`
}

// HasMember reports whether userID belongs to the team.
func (t Team) HasMember(userID string) bool {
	return containsString(t.Members, userID)
}

// Criterion is a judged category tallied from per-voter ballots.
type Criterion struct {
	ConstraintIndex int               `json:"constraintIndex"`
	ConstraintKey   string            `json:"constraintKey"`
	Title           string            `json:"title"`
	XPValue         *int              `json:"xpValue,omitempty"`
	Role            XPRole            `json:"role,omitempty"`
	Votes           map[string]string `json:"votes"`
}

// Submission is a project handed in by a team or participant.
type Submission struct {
	ProjectName   string    `firestore:"projectName" json:"projectName"`
	Link          string    `firestore:"link" json:"link"`
	Description   string    `firestore:"description,omitempty" json:"description,omitempty"`
	SubmittedBy   string    `firestore:"submittedBy" json:"submittedBy"`
	SubmittedAt   time.Time `firestore:"submittedAt" json:"submittedAt"`
	TeamName      string    `firestore:"teamName,omitempty" json:"teamName,omitempty"`
	ParticipantID string    `firestore:"participantId,omitempty" json:"participantId,omitempty"`
}

// OrganizerRating is a participant's rating of how the event was organised.
type OrganizerRating struct {
	UserID   string    `json:"userId"`
	Rating   int       `json:"rating"`
	Feedback string    `json:"feedback,omitempty"`
	RatedAt  time.Time `json:"ratedAt"`
}

// LifecycleTimestamps is the append-only audit trail of status transitions.
type LifecycleTimestamps struct {
	CreatedAt   time.Time  `firestore:"createdAt" json:"createdAt"`
	ApprovedAt  *time.Time `firestore:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	StartedAt   *time.Time `firestore:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt *time.Time `firestore:"completedAt,omitempty" json:"completedAt,omitempty"`
	CancelledAt *time.Time `firestore:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	RejectedAt  *time.Time `firestore:"rejectedAt,omitempty" json:"rejectedAt,omitempty"`
	ClosedAt    *time.Time `firestore:"closedAt,omitempty" json:"closedAt,omitempty"`
}

// Event is the central aggregate of the lifecycle engine.
type Event struct {
	ID                      string                     `json:"id"`
	Status                  EventStatus                `json:"status"`
	Details                 EventDetails               `json:"details"`
	RequestedBy             string                     `json:"requestedBy"`
	Participants            []string                   `json:"participants"`
	Teams                   []Team                     `json:"teams"`
	TeamMemberFlatList      []string                   `json:"teamMemberFlatList"`
	Criteria                []Criterion                `json:"criteria"`
	Submissions             []Submission               `json:"submissions"`
	OrganizerRatings        map[string]OrganizerRating `json:"organizerRatings"`
	BestPerformerSelections map[string]string          `json:"bestPerformerSelections"`
	Winners                 Winners                    `json:"winners"`
	VotingOpen              bool                       `json:"votingOpen"`
	Lifecycle               LifecycleTimestamps        `json:"lifecycleTimestamps"`
	RejectionReason         string                     `json:"rejectionReason,omitempty"`
	ManuallySelectedBy      string                     `json:"manuallySelectedBy,omitempty"`
}

// IsTeamEvent reports whether membership is organised in teams.
func (e *Event) IsTeamEvent() bool {
	return e.Details.Format == EventFormatTeam
}

// IsOrganizer reports whether userID is listed as an organizer.
func (e *Event) IsOrganizer(userID string) bool {
	return containsString(e.Details.Organizers, userID)
}

// IsParticipant reports whether userID joined an individual event.
func (e *Event) IsParticipant(userID string) bool {
	return containsString(e.Participants, userID)
}

// TeamIndexOf returns the index of the team containing userID, or -1.
func (e *Event) TeamIndexOf(userID string) int {
	for i, team := range e.Teams {
		if team.HasMember(userID) {
			return i
		}
	}
	return -1
}

// FindTeam returns the index of the team with the given name (case-insensitive), or -1.
func (e *Event) FindTeam(name string) int {
	needle := strings.TrimSpace(name)
	for i, team := range e.Teams {
		if strings.EqualFold(strings.TrimSpace(team.TeamName), needle) {
			return i
		}
	}
	return -1
}

// IsMember reports whether userID is a participant or belongs to any team.
func (e *Event) IsMember(userID string) bool {
	return e.IsParticipant(userID) || e.TeamIndexOf(userID) >= 0
}

// Members returns participants for individual events or team members for team events.
func (e *Event) Members() []string {
	if e.IsTeamEvent() {
		return FlattenTeamMembers(e.Teams)
	}
	return append([]string(nil), e.Participants...)
}

// FindCriterion returns the index of the criterion with the given key, or -1.
func (e *Event) FindCriterion(key string) int {
	for i, criterion := range e.Criteria {
		if criterion.ConstraintKey == key {
			return i
		}
	}
	return -1
}

// RecomputeTeamMemberFlatList refreshes the denormalised member list from teams.
func (e *Event) RecomputeTeamMemberFlatList() {
	e.TeamMemberFlatList = FlattenTeamMembers(e.Teams)
}

// Clone returns a deep copy so transactional mutations never alias cached state.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	out.Details.Organizers = append([]string(nil), e.Details.Organizers...)
	out.Participants = append([]string(nil), e.Participants...)
	out.TeamMemberFlatList = append([]string(nil), e.TeamMemberFlatList...)
	out.Teams = make([]Team, len(e.Teams))
	for i, team := range e.Teams {
		out.Teams[i] = Team{TeamName: team.TeamName, TeamLead: team.TeamLead, Members: append([]string(nil), team.Members...)}
	}
	out.Criteria = make([]Criterion, len(e.Criteria))
	for i, criterion := range e.Criteria {
		c := criterion
		if criterion.XPValue != nil {
			v := *criterion.XPValue
			c.XPValue = &v
		}
		c.Votes = copyStringMap(criterion.Votes)
		out.Criteria[i] = c
	}
	out.Submissions = append([]Submission(nil), e.Submissions...)
	out.OrganizerRatings = make(map[string]OrganizerRating, len(e.OrganizerRatings))
	for k, v := range e.OrganizerRatings {
		out.OrganizerRatings[k] = v
	}
	out.BestPerformerSelections = copyStringMap(e.BestPerformerSelections)
	out.Winners = e.Winners.Clone()
	out.Lifecycle = e.Lifecycle.clone()
	return &out
}

func (l LifecycleTimestamps) clone() LifecycleTimestamps {
	out := l
	for _, field := range []**time.Time{&out.ApprovedAt, &out.StartedAt, &out.CompletedAt, &out.CancelledAt, &out.RejectedAt, &out.ClosedAt} {
		if *field != nil {
			v := **field
			*field = &v
		}
	}
	return out
}

// FlattenTeamMembers returns sorted unique member IDs across teams.
func FlattenTeamMembers(teams []Team) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, team := range teams {
		for _, member := range team.Members {
			if member == "" {
				continue
			}
			if _, ok := seen[member]; ok {
				continue
			}
			seen[member] = struct{}{}
			result = append(result, member)
		}
	}
	sort.Strings(result)
	return result
}

// EventFilter constrains event listing queries.
type EventFilter struct {
	Statuses    []EventStatus
	RequestedBy string
	OrganizerID string
	MemberID    string
	Descending  bool
	Limit       int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
