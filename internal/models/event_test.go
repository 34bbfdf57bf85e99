package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCoercesEmptyCollections(t *testing.T) {
	event := &Event{
		ID:     "evt-1",
		Status: "approved",
		Details: EventDetails{
			EventName:  "Hack Night",
			Format:     "team",
			Organizers: []string{"org-1", "org-1", " "},
		},
		Participants: []string{"u1", "u1"},
		Teams: []Team{
			{TeamName: " Alpha ", Members: []string{"u3", "u2", "u3"}, TeamLead: "ghost"},
			{TeamName: "Beta", Members: []string{"u4"}},
		},
		TeamMemberFlatList: []string{"stale"},
		Criteria:           []Criterion{{ConstraintIndex: 1, ConstraintKey: "design"}, {ConstraintIndex: 0, ConstraintKey: "developer"}},
	}

	require.NoError(t, Normalize(event))
	assert.Equal(t, EventStatusApproved, event.Status)
	assert.Equal(t, EventFormatTeam, event.Details.Format)
	assert.Equal(t, []string{"org-1"}, event.Details.Organizers)
	assert.Equal(t, []string{"u1"}, event.Participants)
	assert.Equal(t, "Alpha", event.Teams[0].TeamName)
	assert.Equal(t, "u3", event.Teams[0].TeamLead)
	assert.Equal(t, "u4", event.Teams[1].TeamLead)
	assert.Equal(t, []string{"u2", "u3", "u4"}, event.TeamMemberFlatList)
	assert.Equal(t, "developer", event.Criteria[0].ConstraintKey)
	assert.NotNil(t, event.Criteria[0].Votes)
	assert.NotNil(t, event.Submissions)
	assert.NotNil(t, event.OrganizerRatings)
	assert.NotNil(t, event.BestPerformerSelections)
	assert.NotNil(t, event.Winners)
}

func TestNormalizeRejectsUnknownEnums(t *testing.T) {
	require.Error(t, Normalize(&Event{Status: "ARCHIVED"}))
	require.Error(t, Normalize(&Event{Status: EventStatusPending, Details: EventDetails{Format: "relay"}}))
}

func TestCoerceWinnersAcceptsScalarsAndLists(t *testing.T) {
	winners := CoerceWinners(map[string]interface{}{
		"design":         "team-a",
		"developer":      []interface{}{"team-a", "team-b", 3},
		BestPerformerKey: "",
		"broken":         42,
	})
	assert.Equal(t, Winners{"design": {"team-a"}, "developer": {"team-a", "team-b"}}, winners)
	assert.Empty(t, CoerceWinners(nil))
}

func TestCoerceOrganizerRatingsFromListAndMap(t *testing.T) {
	ratedAt := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	fromList := CoerceOrganizerRatings([]interface{}{
		map[string]interface{}{"userId": "u1", "rating": int64(4), "ratedAt": ratedAt},
		map[string]interface{}{"userId": "u2", "rating": float64(9)},
	})
	require.Len(t, fromList, 1)
	assert.Equal(t, 4, fromList["u1"].Rating)
	assert.Equal(t, ratedAt, fromList["u1"].RatedAt)

	fromMap := CoerceOrganizerRatings(map[string]interface{}{
		"u3": map[string]interface{}{"rating": float64(5), "feedback": "great", "ratedAt": "2026-01-11T10:00:00Z"},
	})
	require.Contains(t, fromMap, "u3")
	assert.Equal(t, "u3", fromMap["u3"].UserID)
	assert.Equal(t, "great", fromMap["u3"].Feedback)

	assert.Empty(t, CoerceOrganizerRatings("nonsense"))
}

func TestCoerceStringMapDropsNonStrings(t *testing.T) {
	votes := CoerceStringMap(map[string]interface{}{"v1": "A", "v2": 3, "": "B"})
	assert.Equal(t, map[string]string{"v1": "A"}, votes)
	assert.Equal(t, map[string]string{}, CoerceStringMap(nil))
}

func TestWinnersJSONRendersTiesAsArrays(t *testing.T) {
	payload, err := json.Marshal(Winners{"design": {"A"}, "developer": {"A", "B"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"design":"A","developer":["A","B"]}`, string(payload))

	var decoded Winners
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, Winners{"design": {"A"}, "developer": {"A", "B"}}, decoded)
}

func TestFlattenTeamMembersSortedUnique(t *testing.T) {
	teams := []Team{{Members: []string{"c", "a"}}, {Members: []string{"b", "a", ""}}}
	assert.Equal(t, []string{"a", "b", "c"}, FlattenTeamMembers(teams))
}

func TestEventCloneDoesNotAlias(t *testing.T) {
	xp := 20
	approved := time.Now()
	event := &Event{
		Teams:    []Team{{TeamName: "A", Members: []string{"u1"}}},
		Criteria: []Criterion{{ConstraintKey: "k", XPValue: &xp, Votes: map[string]string{"v": "A"}}},
		Winners:  Winners{"k": {"A"}},
	}
	event.Lifecycle.ApprovedAt = &approved

	clone := event.Clone()
	clone.Teams[0].Members[0] = "u2"
	clone.Criteria[0].Votes["v"] = "B"
	*clone.Criteria[0].XPValue = 99
	clone.Winners["k"][0] = "B"
	*clone.Lifecycle.ApprovedAt = approved.Add(time.Hour)

	assert.Equal(t, "u1", event.Teams[0].Members[0])
	assert.Equal(t, "A", event.Criteria[0].Votes["v"])
	assert.Equal(t, 20, *event.Criteria[0].XPValue)
	assert.Equal(t, "A", event.Winners["k"][0])
	assert.Equal(t, approved, *event.Lifecycle.ApprovedAt)
}

func TestXPDataApplyKeepsTotalInSync(t *testing.T) {
	data := &XPData{UID: "u1", XPDeveloper: 5, TotalCalculatedXP: 5}
	delta := XPDelta{}
	delta.Add(XPRoleDeveloper, 20)
	delta.Add(XPRoleParticipation, 10)
	delta.Add(XPRole("unknown"), 7)
	delta.Wins = 1

	data.Apply(delta)
	assert.Equal(t, 25, data.XPDeveloper)
	assert.Equal(t, 10, data.XPParticipation)
	assert.Equal(t, 1, data.CountWins)
	assert.Equal(t, data.RoleSum(), data.TotalCalculatedXP)
}

func TestOperationEnvelopeDecode(t *testing.T) {
	env := OperationEnvelope{ID: "op-1", Kind: OperationJoinTeam, Payload: json.RawMessage(`{"eventId":"evt-1","teamName":"Alpha"}`)}
	op, err := env.Decode()
	require.NoError(t, err)
	joinTeam, ok := op.(*JoinTeamOperation)
	require.True(t, ok)
	assert.Equal(t, "Alpha", joinTeam.TeamName)
	assert.Equal(t, "evt-1", op.Event())

	_, err = OperationEnvelope{Kind: "store/joinEvent", Payload: json.RawMessage(`{}`)}.Decode()
	require.Error(t, err)
	_, err = OperationEnvelope{Kind: OperationJoinEvent, Payload: json.RawMessage(`{}`)}.Decode()
	require.Error(t, err)
}
