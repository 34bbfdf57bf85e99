package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

func envelope(t *testing.T, id string, kind models.OperationKind, payload interface{}) models.OperationEnvelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return models.OperationEnvelope{ID: id, Kind: kind, Payload: raw}
}

func TestReplayAppliesOperationsInOrder(t *testing.T) {
	event := eventFixture("evt-1", models.EventStatusInProgress, models.EventFormatIndividual, 10, 11)
	event.VotingOpen = true
	event.Criteria = []models.Criterion{{ConstraintIndex: 0, ConstraintKey: "design", Title: "Design"}}
	event.Participants = []string{"p2"}
	svc, store, _ := newTestEventService(event)
	dispatcher := NewOperationDispatcher(svc, nil, nil)

	results, err := dispatcher.Replay(context.Background(), student("p1"), []models.OperationEnvelope{
		envelope(t, "op-1", models.OperationJoinEvent, models.JoinEventOperation{EventID: "evt-1"}),
		envelope(t, "op-2", models.OperationSubmitIndividualVote, models.SubmitIndividualVoteOperation{EventID: "evt-1", CriterionKey: "design", ParticipantID: "p2"}),
		envelope(t, "op-3", models.OperationJoinEvent, models.JoinEventOperation{EventID: "evt-1"}),
		{ID: "op-4", Kind: "DELETE_EVENT", Payload: json.RawMessage(`{"eventId":"evt-1"}`)},
		envelope(t, "op-5", models.OperationSubmitRating, models.SubmitRatingOperation{EventID: "evt-1", Rating: 5}),
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.True(t, results[0].Applied)
	assert.True(t, results[1].Applied)
	assert.False(t, results[2].Applied)
	assert.Equal(t, appErrors.ErrAlreadyMember.Code, results[2].Code)
	assert.False(t, results[3].Applied)
	assert.Equal(t, appErrors.ErrValidation.Code, results[3].Code)
	assert.True(t, results[4].Applied)
	assert.Equal(t, "op-5", results[4].ID)

	stored := store.event("evt-1")
	assert.Equal(t, map[string]string{"p1": "p2"}, stored.Criteria[0].Votes)
	assert.Equal(t, 5, stored.OrganizerRatings["p1"].Rating)
}

func TestReplayRejectsEmptyAndOversizedBatches(t *testing.T) {
	svc, _, _ := newTestEventService()
	dispatcher := NewOperationDispatcher(svc, nil, nil)

	_, err := dispatcher.Replay(context.Background(), student("p1"), nil)
	requireCode(t, err, appErrors.ErrValidation)

	batch := make([]models.OperationEnvelope, MaxReplayBatch+1)
	_, err = dispatcher.Replay(context.Background(), student("p1"), batch)
	requireCode(t, err, appErrors.ErrValidation)
}

func TestDispatchJoinTeam(t *testing.T) {
	event := eventFixture("evt-1", models.EventStatusApproved, models.EventFormatTeam, 10, 11)
	event.Teams = []models.Team{{TeamName: "Alpha", Members: []string{"a1"}}}
	svc, store, _ := newTestEventService(event)
	dispatcher := NewOperationDispatcher(svc, nil, nil)

	err := dispatcher.Dispatch(context.Background(), student("u1"), &models.JoinTeamOperation{EventID: "evt-1", TeamName: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "u1"}, store.event("evt-1").TeamMemberFlatList)
}
