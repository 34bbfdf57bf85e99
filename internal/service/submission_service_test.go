package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

func TestSubmitProjectRejectsDuplicateNamePerTeam(t *testing.T) {
	svc, _, _ := newTestEventService(votingEvent(models.EventFormatTeam))
	ctx := context.Background()
	input := models.SubmissionInput{ProjectName: "Campus Map", Link: "https://example.com/map"}

	first, err := svc.SubmitProject(ctx, "evt-vote", student("a1"), input)
	require.NoError(t, err)
	require.Len(t, first.Submissions, 1)
	assert.Equal(t, "Alpha", first.Submissions[0].TeamName)
	assert.Equal(t, "a1", first.Submissions[0].SubmittedBy)
	assert.Equal(t, testNow, first.Submissions[0].SubmittedAt)

	input.ProjectName = "campus map"
	_, err = svc.SubmitProject(ctx, "evt-vote", student("a2"), input)
	requireCode(t, err, appErrors.ErrAlreadyExists)

	other, err := svc.SubmitProject(ctx, "evt-vote", student("b1"), input)
	require.NoError(t, err)
	assert.Len(t, other.Submissions, 2)

	replaced, err := svc.SubmitProject(ctx, "evt-vote", student("a2"), models.SubmissionInput{ProjectName: "Campus Map v2", Link: "http://example.com/v2"})
	require.NoError(t, err)
	require.Len(t, replaced.Submissions, 2)
	assert.Equal(t, "Campus Map v2", replaced.Submissions[1].ProjectName)
}

func TestSubmitProjectIndividual(t *testing.T) {
	svc, _, _ := newTestEventService(votingEvent(models.EventFormatIndividual))
	ctx := context.Background()

	updated, err := svc.SubmitProject(ctx, "evt-vote", student("p1"), models.SubmissionInput{ProjectName: "Solver", Link: "https://example.com/solver"})
	require.NoError(t, err)
	assert.Equal(t, "p1", updated.Submissions[0].ParticipantID)

	_, err = svc.SubmitProject(ctx, "evt-vote", student("p1"), models.SubmissionInput{ProjectName: "SOLVER", Link: "https://example.com/solver"})
	requireCode(t, err, appErrors.ErrAlreadyExists)

	_, err = svc.SubmitProject(ctx, "evt-vote", student("p2"), models.SubmissionInput{ProjectName: "Other", Link: "https://example.com", ParticipantID: "p1"})
	requireCode(t, err, appErrors.ErrForbidden)

	_, err = svc.SubmitProject(ctx, "evt-vote", student("outsider"), models.SubmissionInput{ProjectName: "Other", Link: "https://example.com"})
	requireCode(t, err, appErrors.ErrForbidden)
}

func TestSubmitProjectValidation(t *testing.T) {
	disabled := votingEvent(models.EventFormatIndividual)
	disabled.ID = "evt-disabled"
	disabled.Details.AllowProjectSubmission = false
	svc, _, _ := newTestEventService(votingEvent(models.EventFormatIndividual), disabled)
	ctx := context.Background()

	_, err := svc.SubmitProject(ctx, "evt-vote", student("p1"), models.SubmissionInput{ProjectName: "", Link: "https://example.com"})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.SubmitProject(ctx, "evt-vote", student("p1"), models.SubmissionInput{ProjectName: "Tool", Link: "ftp://example.com/file"})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.SubmitProject(ctx, "evt-disabled", student("p1"), models.SubmissionInput{ProjectName: "Tool", Link: "https://example.com"})
	requireCode(t, err, appErrors.ErrInvalidState)
}
