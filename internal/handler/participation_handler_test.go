package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eventhub-api/internal/dto"
	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

func TestParticipationHandlerJoinTeamUsesPathName(t *testing.T) {
	stub := &apiStub{event: &models.Event{ID: "evt-1"}}
	c, w := newContext(http.MethodPost, "/events/evt-1/teams/Alpha/join", nil, studentClaims("u1"))
	c.AddParam("id", "evt-1")
	c.AddParam("team", "Alpha")
	NewParticipationHandler(stub).JoinTeam(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alpha", stub.lastTeam)
	assert.Equal(t, "u1", stub.lastActor.UserID)
}

func TestParticipationHandlerGenerateTeams(t *testing.T) {
	stub := &apiStub{event: &models.Event{ID: "evt-1"}}
	req := dto.GenerateTeamsRequest{Students: []string{"s1"}, Min: 1, Max: 2}
	c, w := newContext(http.MethodPost, "/events/evt-1/teams/generate", req, studentClaims("org-1"))
	c.AddParam("id", "evt-1")
	NewParticipationHandler(stub).GenerateTeams(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(w).Data), `"unassigned":[]`)
}

func TestParticipationHandlerLeaveNotMember(t *testing.T) {
	stub := &apiStub{err: appErrors.ErrNotAMember}
	c, w := newContext(http.MethodPost, "/events/evt-1/leave", nil, studentClaims("u1"))
	c.AddParam("id", "evt-1")
	NewParticipationHandler(stub).Leave(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, appErrors.ErrNotAMember.Code, decode(w).Error.Code)
}

func TestParticipationHandlerSubmitCreated(t *testing.T) {
	stub := &apiStub{event: &models.Event{ID: "evt-1"}}
	input := models.SubmissionInput{ProjectName: "Map", Link: "https://example.com"}
	c, w := newContext(http.MethodPost, "/events/evt-1/submissions", input, studentClaims("p1"))
	c.AddParam("id", "evt-1")
	NewParticipationHandler(stub).Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "SubmitProject", stub.lastCall)
}
