package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

func votingEvent(format models.EventFormat) *models.Event {
	event := eventFixture("evt-vote", models.EventStatusInProgress, format, 10, 11)
	event.VotingOpen = true
	event.Criteria = []models.Criterion{
		{ConstraintIndex: 0, ConstraintKey: "design", Title: "Design"},
		{ConstraintIndex: 1, ConstraintKey: "pitch", Title: "Pitch"},
	}
	if format == models.EventFormatTeam {
		event.Teams = []models.Team{
			{TeamName: "Alpha", Members: []string{"a1", "a2"}},
			{TeamName: "Beta", Members: []string{"b1", "b2"}},
		}
	} else {
		event.Participants = []string{"p1", "p2", "p3", "p4"}
	}
	return event
}

func TestSubmitCriteriaVoteIsIdempotentPerVoter(t *testing.T) {
	svc, _, _ := newTestEventService(votingEvent(models.EventFormatTeam))
	ctx := context.Background()
	ballot := models.CriteriaBallot{Selections: map[string]string{"design": "beta"}, BestPerformer: "b2"}

	first, err := svc.SubmitCriteriaVote(ctx, "evt-vote", student("a1"), ballot)
	require.NoError(t, err)
	second, err := svc.SubmitCriteriaVote(ctx, "evt-vote", student("a1"), ballot)
	require.NoError(t, err)

	assert.Equal(t, first.Criteria[0].Votes, second.Criteria[0].Votes)
	assert.Equal(t, map[string]string{"a1": "Beta"}, second.Criteria[0].Votes)
	assert.Equal(t, map[string]string{"a1": "b2"}, second.BestPerformerSelections)

	changed, err := svc.SubmitCriteriaVote(ctx, "evt-vote", student("a1"), models.CriteriaBallot{Selections: map[string]string{"design": "Alpha"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a1": "Alpha"}, changed.Criteria[0].Votes)
	assert.Equal(t, map[string]string{"a1": "b2"}, changed.BestPerformerSelections)
}

func TestSubmitCriteriaVoteGuards(t *testing.T) {
	closed := votingEvent(models.EventFormatTeam)
	closed.ID = "evt-closed-gate"
	closed.VotingOpen = false
	approved := votingEvent(models.EventFormatTeam)
	approved.ID = "evt-approved"
	approved.Status = models.EventStatusApproved
	svc, _, _ := newTestEventService(votingEvent(models.EventFormatTeam), closed, approved)
	ctx := context.Background()
	ballot := models.CriteriaBallot{Selections: map[string]string{"design": "Beta"}}

	_, err := svc.SubmitCriteriaVote(ctx, "evt-closed-gate", student("a1"), ballot)
	requireCode(t, err, appErrors.ErrInvalidState)

	_, err = svc.SubmitCriteriaVote(ctx, "evt-approved", student("a1"), ballot)
	requireCode(t, err, appErrors.ErrInvalidState)

	_, err = svc.SubmitCriteriaVote(ctx, "evt-vote", student("outsider"), ballot)
	requireCode(t, err, appErrors.ErrForbidden)

	_, err = svc.SubmitCriteriaVote(ctx, "evt-vote", student("a1"), models.CriteriaBallot{Selections: map[string]string{"speed": "Beta"}})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.SubmitCriteriaVote(ctx, "evt-vote", student("a1"), models.CriteriaBallot{Selections: map[string]string{"design": "Gamma"}})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.SubmitCriteriaVote(ctx, "evt-vote", student("a1"), models.CriteriaBallot{})
	requireCode(t, err, appErrors.ErrValidation)
}

func TestSubmitIndividualWinnerVote(t *testing.T) {
	team := votingEvent(models.EventFormatTeam)
	team.ID = "evt-team"
	svc, _, _ := newTestEventService(votingEvent(models.EventFormatIndividual), team)
	ctx := context.Background()

	updated, err := svc.SubmitIndividualWinnerVote(ctx, "evt-vote", student("p1"), "pitch", "p2")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"p1": "p2"}, updated.Criteria[1].Votes)

	_, err = svc.SubmitIndividualWinnerVote(ctx, "evt-vote", student("p1"), "pitch", "org-1")
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.SubmitIndividualWinnerVote(ctx, "evt-team", student("a1"), "pitch", "a2")
	requireCode(t, err, appErrors.ErrFormatMismatch)
}

func TestSubmitOrganizationRatingCannotBeOverwritten(t *testing.T) {
	svc, _, _ := newTestEventService(votingEvent(models.EventFormatIndividual))
	ctx := context.Background()

	_, err := svc.SubmitOrganizationRating(ctx, "evt-vote", student("p1"), 6, "")
	requireCode(t, err, appErrors.ErrValidation)

	updated, err := svc.SubmitOrganizationRating(ctx, "evt-vote", student("p1"), 4, " well run ")
	require.NoError(t, err)
	rating := updated.OrganizerRatings["p1"]
	assert.Equal(t, 4, rating.Rating)
	assert.Equal(t, "well run", rating.Feedback)
	assert.Equal(t, testNow, rating.RatedAt)

	_, err = svc.SubmitOrganizationRating(ctx, "evt-vote", student("p1"), 5, "")
	requireCode(t, err, appErrors.ErrAlreadyRated)
}

func TestCalculateWinnersFromVotesKeepsTies(t *testing.T) {
	event := votingEvent(models.EventFormatIndividual)
	event.Criteria[0].Votes = map[string]string{"v1": "A", "v2": "A", "v3": "B", "v4": "B"}
	event.Criteria[1].Votes = map[string]string{"v1": "C", "v2": "C", "v3": "B"}
	event.BestPerformerSelections = map[string]string{"v1": "p2"}

	winners := CalculateWinnersFromVotes(event)
	assert.Equal(t, []string{"A", "B"}, winners["design"])
	assert.Equal(t, []string{"C"}, winners["pitch"])
	assert.Equal(t, []string{"p2"}, winners[models.BestPerformerKey])

	event.Criteria[1].Votes = map[string]string{}
	event.BestPerformerSelections = map[string]string{}
	winners = CalculateWinnersFromVotes(event)
	_, ok := winners["pitch"]
	assert.False(t, ok)
	assert.Len(t, winners, 1)
}

func TestResolveWinnersPersistsTallyAndClosesVoting(t *testing.T) {
	svc, _, notifier := newTestEventService(votingEvent(models.EventFormatIndividual))
	ctx := context.Background()

	_, err := svc.ResolveWinners(ctx, "evt-vote", student("org-1"))
	requireCode(t, err, appErrors.ErrInsufficientData)

	_, err = svc.SubmitIndividualWinnerVote(ctx, "evt-vote", student("p1"), "design", "p2")
	require.NoError(t, err)
	_, err = svc.SubmitIndividualWinnerVote(ctx, "evt-vote", student("p2"), "design", "p3")
	require.NoError(t, err)

	tally, err := svc.TallyWinners(ctx, "evt-vote")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, tally["design"])

	_, err = svc.ResolveWinners(ctx, "evt-vote", student("p1"))
	requireCode(t, err, appErrors.ErrForbidden)

	resolved, err := svc.ResolveWinners(ctx, "evt-vote", student("org-1"))
	require.NoError(t, err)
	assert.Equal(t, models.Winners{"design": {"p2", "p3"}}, resolved.Winners)
	assert.False(t, resolved.VotingOpen)
	assert.Equal(t, models.NotificationWinnersPosted, notifier.last().Type)
}

func TestSaveWinnersValidatesKeys(t *testing.T) {
	svc, _, _ := newTestEventService(votingEvent(models.EventFormatIndividual))
	ctx := context.Background()

	_, err := svc.SaveWinners(ctx, "evt-vote", student("org-1"), models.Winners{"design": {""}})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.SaveWinners(ctx, "evt-vote", student("org-1"), models.Winners{"speed": {"p1"}})
	requireCode(t, err, appErrors.ErrValidation)

	saved, err := svc.SaveWinners(ctx, "evt-vote", student("org-1"), models.Winners{"design": {"p1", "p1"}, models.BestPerformerKey: {"p4"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, saved.Winners["design"])
	assert.True(t, saved.VotingOpen)
}

func TestSaveWinnersRejectsUnknownEntities(t *testing.T) {
	xp := 20
	completed := eventFixture("evt-done", models.EventStatusCompleted, models.EventFormatIndividual, 10, 11)
	completed.Participants = []string{"p1", "p2"}
	completed.Criteria = []models.Criterion{{ConstraintIndex: 0, ConstraintKey: "design", Title: "Design", XPValue: &xp}}
	svc, store, _ := newTestEventService(completed, votingEvent(models.EventFormatTeam))
	ctx := context.Background()

	_, err := svc.SaveWinners(ctx, "evt-done", student("org-1"), models.Winners{"design": {"org-1"}})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.SaveWinners(ctx, "evt-done", student("org-1"), models.Winners{"design": {"p1"}, models.BestPerformerKey: {"ghost"}})
	requireCode(t, err, appErrors.ErrValidation)
	assert.Empty(t, store.event("evt-done").Winners)

	_, err = svc.SaveWinners(ctx, "evt-vote", student("org-1"), models.Winners{"design": {"Gamma"}})
	requireCode(t, err, appErrors.ErrValidation)

	team, err := svc.SaveWinners(ctx, "evt-vote", student("org-1"), models.Winners{"design": {"alpha", "ALPHA"}, models.BestPerformerKey: {"b2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, team.Winners["design"])
	assert.Equal(t, []string{"b2"}, team.Winners[models.BestPerformerKey])

	_, err = svc.SaveWinners(ctx, "evt-done", student("org-1"), models.Winners{"design": {"p1"}})
	require.NoError(t, err)
	_, err = svc.Close(ctx, "evt-done", student("org-1"))
	require.NoError(t, err)

	organizer, err := svc.GetXP(ctx, "org-1")
	require.NoError(t, err)
	assert.Zero(t, organizer.XPDeveloper)
	assert.Zero(t, organizer.CountWins)
	winner, err := svc.GetXP(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 20, winner.XPDeveloper)
	assert.Equal(t, 1, winner.CountWins)
	assert.NotContains(t, store.xp, "ghost")
}

func TestSubmitManualWinnerSelection(t *testing.T) {
	svc, _, _ := newTestEventService(votingEvent(models.EventFormatTeam))
	ctx := context.Background()

	_, err := svc.SubmitManualWinnerSelection(ctx, "evt-vote", student("a1"), map[string]string{"design": "Alpha"})
	requireCode(t, err, appErrors.ErrForbidden)

	_, err = svc.SubmitManualWinnerSelection(ctx, "evt-vote", student("org-1"), map[string]string{"design": "Gamma"})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = svc.SubmitManualWinnerSelection(ctx, "evt-vote", student("org-1"), map[string]string{models.BestPerformerKey: "outsider"})
	requireCode(t, err, appErrors.ErrValidation)

	updated, err := svc.SubmitManualWinnerSelection(ctx, "evt-vote", student("org-1"), map[string]string{
		"design":                "alpha",
		models.BestPerformerKey: "b1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.Winners{"design": {"Alpha"}, models.BestPerformerKey: {"b1"}}, updated.Winners)
	assert.Equal(t, "org-1", updated.ManuallySelectedBy)
	assert.False(t, updated.VotingOpen)
}
