package service

import (
	"context"
	"sort"

	"github.com/noah-isme/eventhub-api/internal/models"
)

// CalculateWinnersFromVotes tallies every criterion's ballots and the best performer selections.
// Each key maps to the choices with the highest count; ties keep all of them in sorted order.
// Keys without ballots are omitted.
func CalculateWinnersFromVotes(event *models.Event) models.Winners {
	winners := make(models.Winners)
	if event == nil {
		return winners
	}
	for _, criterion := range event.Criteria {
		if top := tallyBallots(criterion.Votes); len(top) > 0 {
			winners[criterion.ConstraintKey] = top
		}
	}
	if top := tallyBallots(event.BestPerformerSelections); len(top) > 0 {
		winners[models.BestPerformerKey] = top
	}
	return winners
}

func tallyBallots(ballots map[string]string) []string {
	counts := make(map[string]int, len(ballots))
	best := 0
	for _, choice := range ballots {
		if choice == "" {
			continue
		}
		counts[choice]++
		if counts[choice] > best {
			best = counts[choice]
		}
	}
	if best == 0 {
		return nil
	}
	top := make([]string, 0, 1)
	for choice, count := range counts {
		if count == best {
			top = append(top, choice)
		}
	}
	sort.Strings(top)
	return top
}

// TallyWinners returns the current tally without persisting it.
func (s *EventService) TallyWinners(ctx context.Context, id string) (models.Winners, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return CalculateWinnersFromVotes(event), nil
}
