package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/internal/repository"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

const (
	ballotCriteria      = "criteria"
	ballotBestPerformer = "best_performer"
	ballotIndividual    = "individual"
	ballotRating        = "rating"
)

var votingStatuses = []models.EventStatus{models.EventStatusInProgress, models.EventStatusCompleted}

// checkBallot applies the gate shared by every ballot: a voting status, an open gate and a
// voter who takes part in the event.
func checkBallot(event *models.Event, voterID string) error {
	if !event.Status.In(votingStatuses...) {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("voting is not available while the event is %s", event.Status))
	}
	if !event.VotingOpen {
		return appErrors.Clone(appErrors.ErrInvalidState, "voting is closed")
	}
	if !event.IsMember(voterID) {
		return appErrors.Clone(appErrors.ErrForbidden, "only participants can vote")
	}
	return nil
}

// resolveChoice maps a ballot choice to the stored entity ID: the canonical team name for
// team events, the participant ID otherwise.
func resolveChoice(event *models.Event, choice string) (string, bool) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return "", false
	}
	if event.IsTeamEvent() {
		idx := event.FindTeam(choice)
		if idx < 0 {
			return "", false
		}
		return event.Teams[idx].TeamName, true
	}
	return choice, event.IsParticipant(choice)
}

// SubmitCriteriaVote writes the voter's ballot into each selected criterion. Resubmitting
// replaces the previous ballot for that voter.
func (s *EventService) SubmitCriteriaVote(ctx context.Context, id string, actor models.Actor, ballot models.CriteriaBallot) (*models.Event, error) {
	bestPerformer := strings.TrimSpace(ballot.BestPerformer)
	if len(ballot.Selections) == 0 && bestPerformer == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ballot has no selections")
	}
	updated, err := s.mutate(ctx, "criteria_vote", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if err := checkBallot(event, actor.UserID); err != nil {
			return err
		}
		for key, choice := range ballot.Selections {
			idx := event.FindCriterion(key)
			if idx < 0 {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown criterion %q", key))
			}
			resolved, ok := resolveChoice(event, choice)
			if !ok {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%q is not a valid choice for %q", choice, key))
			}
			if event.Criteria[idx].Votes == nil {
				event.Criteria[idx].Votes = map[string]string{}
			}
			event.Criteria[idx].Votes[actor.UserID] = resolved
		}
		if bestPerformer != "" {
			if !event.IsMember(bestPerformer) {
				return appErrors.Clone(appErrors.ErrValidation, "best performer must take part in the event")
			}
			if event.BestPerformerSelections == nil {
				event.BestPerformerSelections = map[string]string{}
			}
			event.BestPerformerSelections[actor.UserID] = bestPerformer
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(ballot.Selections) > 0 {
		s.metrics.RecordBallot(ballotCriteria)
	}
	if bestPerformer != "" {
		s.metrics.RecordBallot(ballotBestPerformer)
	}
	return updated, nil
}

// SubmitIndividualWinnerVote casts a single ballot for a participant of an individual event.
func (s *EventService) SubmitIndividualWinnerVote(ctx context.Context, id string, actor models.Actor, criterionKey, participantID string) (*models.Event, error) {
	criterionKey = strings.TrimSpace(criterionKey)
	participantID = strings.TrimSpace(participantID)
	if criterionKey == "" || participantID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "criterion key and participant are required")
	}
	updated, err := s.mutate(ctx, "individual_vote", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if err := checkBallot(event, actor.UserID); err != nil {
			return err
		}
		if event.IsTeamEvent() {
			return appErrors.Clone(appErrors.ErrFormatMismatch, "team events are voted through criteria ballots")
		}
		idx := event.FindCriterion(criterionKey)
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown criterion %q", criterionKey))
		}
		if !event.IsParticipant(participantID) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is not a participant", participantID))
		}
		if event.Criteria[idx].Votes == nil {
			event.Criteria[idx].Votes = map[string]string{}
		}
		event.Criteria[idx].Votes[actor.UserID] = participantID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordBallot(ballotIndividual)
	return updated, nil
}

// SubmitOrganizationRating stores the voter's 1-5 rating of the event. Ratings are final.
func (s *EventService) SubmitOrganizationRating(ctx context.Context, id string, actor models.Actor, rating int, feedback string) (*models.Event, error) {
	if rating < 1 || rating > 5 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rating must be between 1 and 5")
	}
	updated, err := s.mutate(ctx, "rating", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if err := checkBallot(event, actor.UserID); err != nil {
			return err
		}
		if _, exists := event.OrganizerRatings[actor.UserID]; exists {
			return appErrors.Clone(appErrors.ErrAlreadyRated, "you already rated this event")
		}
		if event.OrganizerRatings == nil {
			event.OrganizerRatings = map[string]models.OrganizerRating{}
		}
		event.OrganizerRatings[actor.UserID] = models.OrganizerRating{
			UserID:   actor.UserID,
			Rating:   rating,
			Feedback: strings.TrimSpace(feedback),
			RatedAt:  s.now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordBallot(ballotRating)
	return updated, nil
}

// SaveWinners persists a winners map chosen by an organizer, typically a reviewed tally.
func (s *EventService) SaveWinners(ctx context.Context, id string, actor models.Actor, winners models.Winners) (*models.Event, error) {
	cleaned := make(models.Winners, len(winners))
	for key, ids := range winners {
		if ids = uniqueNonEmpty(ids); len(ids) > 0 {
			cleaned[key] = ids
		}
	}
	if cleaned.IsEmpty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "winners must name at least one winner")
	}
	return s.publishWinners(ctx, "save_winners", id, actor, func(event *models.Event) (models.Winners, error) {
		resolved := make(models.Winners, len(cleaned))
		for key, ids := range cleaned {
			if key == models.BestPerformerKey {
				for _, uid := range ids {
					if !event.IsMember(uid) {
						return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("best performer %q does not take part in the event", uid))
					}
				}
				resolved[key] = ids
				continue
			}
			if event.FindCriterion(key) < 0 {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown criterion %q", key))
			}
			names := make([]string, 0, len(ids))
			for _, choice := range ids {
				name, ok := resolveChoice(event, choice)
				if !ok {
					return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%q is not a valid winner for %q", choice, key))
				}
				names = append(names, name)
			}
			resolved[key] = uniqueNonEmpty(names)
		}
		return resolved, nil
	}, false)
}

// ResolveWinners tallies the ballots, stores the result and closes voting.
func (s *EventService) ResolveWinners(ctx context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.publishWinners(ctx, "resolve_winners", id, actor, func(event *models.Event) (models.Winners, error) {
		winners := CalculateWinnersFromVotes(event)
		if winners.IsEmpty() {
			return nil, appErrors.Clone(appErrors.ErrInsufficientData, "no ballots have been cast")
		}
		event.ManuallySelectedBy = ""
		return winners, nil
	}, true)
}

// SubmitManualWinnerSelection overrides the tally with one winner per key. Criterion winners
// must be existing teams (team events) or participants; the best performer must be a member.
func (s *EventService) SubmitManualWinnerSelection(ctx context.Context, id string, actor models.Actor, selections map[string]string) (*models.Event, error) {
	if len(selections) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one selection is required")
	}
	return s.publishWinners(ctx, "manual_winners", id, actor, func(event *models.Event) (models.Winners, error) {
		winners := make(models.Winners, len(selections))
		for key, choice := range selections {
			if key == models.BestPerformerKey {
				choice = strings.TrimSpace(choice)
				if !event.IsMember(choice) {
					return nil, appErrors.Clone(appErrors.ErrValidation, "best performer must take part in the event")
				}
				winners[key] = []string{choice}
				continue
			}
			if event.FindCriterion(key) < 0 {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown criterion %q", key))
			}
			resolved, ok := resolveChoice(event, choice)
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%q is not a valid winner for %q", choice, key))
			}
			winners[key] = []string{resolved}
		}
		event.ManuallySelectedBy = actor.UserID
		return winners, nil
	}, true)
}

// publishWinners replaces the winners map under the organizer guard. closeVoting forces the
// gate shut in the same write.
func (s *EventService) publishWinners(ctx context.Context, operation, id string, actor models.Actor, build func(*models.Event) (models.Winners, error), closeVoting bool) (*models.Event, error) {
	updated, err := s.mutate(ctx, operation, id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if err := requireManager(actor)(event); err != nil {
			return err
		}
		if !event.Status.In(votingStatuses...) {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("winners cannot be set while the event is %s", event.Status))
		}
		winners, err := build(event)
		if err != nil {
			return err
		}
		event.Winners = winners
		if closeVoting {
			event.VotingOpen = false
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, models.NotificationWinnersPosted, updated, append(updated.Members(), updated.Details.Organizers...))
	return updated, nil
}
