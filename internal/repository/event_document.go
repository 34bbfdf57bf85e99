package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/eventhub-api/internal/models"
)

// ErrEventNotFound is returned when an event document does not exist.
var ErrEventNotFound = errors.New("event not found")

// ErrPendingRequestExists is returned when the requester already holds a Pending event.
var ErrPendingRequestExists = errors.New("requester already has a pending event")

// EventTx is the transactional view of the event store. All reads happen before writes.
type EventTx interface {
	Get(ctx context.Context, id string) (*models.Event, error)
	Save(ctx context.Context, event *models.Event) error
	IncrementXP(ctx context.Context, uid string, delta models.XPDelta) error
}

// eventDocument is the persisted layout of an event. Collections written by older clients
// vary in shape, so the loosely typed fields are decoded as interface{} and coerced.
type eventDocument struct {
	Status                  string                     `firestore:"status" json:"status"`
	Details                 models.EventDetails        `firestore:"details" json:"details"`
	RequestedBy             string                     `firestore:"requestedBy" json:"requestedBy"`
	Participants            []string                   `firestore:"participants" json:"participants"`
	Teams                   []models.Team              `firestore:"teams" json:"teams"`
	TeamMemberFlatList      []string                   `firestore:"teamMemberFlatList" json:"teamMemberFlatList"`
	Criteria                []criterionDocument        `firestore:"criteria" json:"criteria"`
	Submissions             []models.Submission        `firestore:"submissions" json:"submissions"`
	OrganizerRatings        interface{}                `firestore:"organizerRatings" json:"organizerRatings"`
	BestPerformerSelections interface{}                `firestore:"bestPerformerSelections" json:"bestPerformerSelections"`
	Winners                 interface{}                `firestore:"winners" json:"winners"`
	VotingOpen              bool                       `firestore:"votingOpen" json:"votingOpen"`
	Lifecycle               models.LifecycleTimestamps `firestore:"lifecycleTimestamps" json:"lifecycleTimestamps"`
	RejectionReason         string                     `firestore:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	ManuallySelectedBy      string                     `firestore:"manuallySelectedBy,omitempty" json:"manuallySelectedBy,omitempty"`
}

type criterionDocument struct {
	ConstraintIndex int64       `firestore:"constraintIndex" json:"constraintIndex"`
	ConstraintKey   string      `firestore:"constraintKey" json:"constraintKey"`
	Title           string      `firestore:"title" json:"title"`
	XPValue         *int64      `firestore:"xpValue,omitempty" json:"xpValue,omitempty"`
	Role            string      `firestore:"role,omitempty" json:"role,omitempty"`
	Votes           interface{} `firestore:"votes" json:"votes"`
}

func newEventDocument(event *models.Event) eventDocument {
	criteria := make([]criterionDocument, 0, len(event.Criteria))
	for _, c := range event.Criteria {
		doc := criterionDocument{
			ConstraintIndex: int64(c.ConstraintIndex),
			ConstraintKey:   c.ConstraintKey,
			Title:           c.Title,
			Role:            string(c.Role),
			Votes:           stringMapToRaw(c.Votes),
		}
		if c.XPValue != nil {
			v := int64(*c.XPValue)
			doc.XPValue = &v
		}
		criteria = append(criteria, doc)
	}

	winners := make(map[string]interface{}, len(event.Winners))
	for key, ids := range event.Winners {
		if len(ids) == 1 {
			winners[key] = ids[0]
			continue
		}
		list := make([]interface{}, len(ids))
		for i, id := range ids {
			list[i] = id
		}
		winners[key] = list
	}

	event.RecomputeTeamMemberFlatList()
	return eventDocument{
		Status:                  string(event.Status),
		Details:                 event.Details,
		RequestedBy:             event.RequestedBy,
		Participants:            nonNilStrings(event.Participants),
		Teams:                   nonNilTeams(event.Teams),
		TeamMemberFlatList:      event.TeamMemberFlatList,
		Criteria:                criteria,
		Submissions:             nonNilSubmissions(event.Submissions),
		OrganizerRatings:        models.RatingsToRaw(event.OrganizerRatings),
		BestPerformerSelections: stringMapToRaw(event.BestPerformerSelections),
		Winners:                 winners,
		VotingOpen:              event.VotingOpen,
		Lifecycle:               event.Lifecycle,
		RejectionReason:         event.RejectionReason,
		ManuallySelectedBy:      event.ManuallySelectedBy,
	}
}

// toModel converts a decoded document into the canonical entity.
func (d eventDocument) toModel(id string) (*models.Event, error) {
	event := &models.Event{
		ID:                      id,
		Status:                  models.EventStatus(d.Status),
		Details:                 d.Details,
		RequestedBy:             d.RequestedBy,
		Participants:            d.Participants,
		Teams:                   d.Teams,
		Submissions:             d.Submissions,
		OrganizerRatings:        models.CoerceOrganizerRatings(d.OrganizerRatings),
		BestPerformerSelections: models.CoerceStringMap(d.BestPerformerSelections),
		Winners:                 models.CoerceWinners(d.Winners),
		VotingOpen:              d.VotingOpen,
		Lifecycle:               d.Lifecycle,
		RejectionReason:         d.RejectionReason,
		ManuallySelectedBy:      d.ManuallySelectedBy,
	}
	event.Criteria = make([]models.Criterion, 0, len(d.Criteria))
	for _, c := range d.Criteria {
		criterion := models.Criterion{
			ConstraintIndex: int(c.ConstraintIndex),
			ConstraintKey:   c.ConstraintKey,
			Title:           c.Title,
			Role:            models.XPRole(c.Role),
			Votes:           models.CoerceStringMap(c.Votes),
		}
		if c.XPValue != nil {
			v := int(*c.XPValue)
			criterion.XPValue = &v
		}
		event.Criteria = append(event.Criteria, criterion)
	}
	if err := models.Normalize(event); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", id, err)
	}
	return event, nil
}

func stringMapToRaw(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilTeams(in []models.Team) []models.Team {
	if in == nil {
		return []models.Team{}
	}
	return in
}

func nonNilSubmissions(in []models.Submission) []models.Submission {
	if in == nil {
		return []models.Submission{}
	}
	return in
}
