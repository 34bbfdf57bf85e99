package service

import (
	"context"
	"sort"

	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/internal/repository"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

// CalculateEventXP derives the XP each user earns from a closed event. Deltas are additive:
// organizers and members get flat awards, criterion winners get the criterion's XP under its
// role plus one win, and best performers get the best performer award. A best performer who
// did not already win a criterion also gains one win.
func CalculateEventXP(event *models.Event, cfg XPConfig) map[string]models.XPDelta {
	deltas := make(map[string]models.XPDelta)
	credit := func(uid string, role models.XPRole, points, wins int) {
		if uid == "" {
			return
		}
		delta := deltas[uid]
		if points != 0 {
			delta.Add(role, points)
		}
		delta.Wins += wins
		deltas[uid] = delta
	}

	for _, organizer := range uniqueNonEmpty(event.Details.Organizers) {
		credit(organizer, models.XPRoleOrganizer, cfg.Organizer, 0)
	}
	for _, member := range event.Members() {
		credit(member, models.XPRoleParticipation, cfg.Participation, 0)
	}

	criterionWinners := make(map[string]struct{})
	for _, key := range event.Winners.Keys() {
		if key == models.BestPerformerKey {
			continue
		}
		idx := event.FindCriterion(key)
		if idx < 0 {
			continue
		}
		criterion := event.Criteria[idx]
		points := 0
		if criterion.XPValue != nil {
			points = *criterion.XPValue
		}
		role := criterionRole(criterion)
		for _, uid := range expandWinners(event, event.Winners[key]) {
			credit(uid, role, points, 1)
			criterionWinners[uid] = struct{}{}
		}
	}

	for _, uid := range expandWinners(event, event.Winners[models.BestPerformerKey]) {
		wins := 1
		if _, won := criterionWinners[uid]; won {
			wins = 0
		}
		credit(uid, models.XPRoleBestPerformer, cfg.BestPerformer, wins)
	}
	return deltas
}

// criterionRole picks the configured role, then a role named by the key, then developer.
func criterionRole(criterion models.Criterion) models.XPRole {
	if criterion.Role.Valid() {
		return criterion.Role
	}
	if role := models.XPRole(criterion.ConstraintKey); role.Valid() {
		return role
	}
	return models.XPRoleDeveloper
}

// expandWinners turns team winners into their members. Unknown IDs are treated as users.
func expandWinners(event *models.Event, ids []string) []string {
	users := make([]string, 0, len(ids))
	for _, id := range ids {
		if event.IsTeamEvent() {
			if idx := event.FindTeam(id); idx >= 0 {
				users = append(users, event.Teams[idx].Members...)
				continue
			}
		}
		users = append(users, id)
	}
	return uniqueNonEmpty(users)
}

// Close moves a Completed event with closed voting and resolved winners to Closed and awards
// XP in the same transaction. Organizers, the requester and admins may close.
func (s *EventService) Close(ctx context.Context, id string, actor models.Actor) (*models.Event, error) {
	var deltas map[string]models.XPDelta
	updated, err := s.mutate(ctx, "close", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if !actor.IsAdmin() && !event.IsOrganizer(actor.UserID) && event.RequestedBy != actor.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "only organizers, the requester or admins can close this event")
		}
		if err := Transition(event, models.EventStatusClosed, TransitionInput{}, s.now()); err != nil {
			return err
		}
		deltas = CalculateEventXP(event, s.xp)
		users := make([]string, 0, len(deltas))
		for uid := range deltas {
			users = append(users, uid)
		}
		sort.Strings(users)
		for _, uid := range users {
			if err := tx.IncrementXP(ctx, uid, deltas[uid]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(models.EventStatusCompleted, models.EventStatusClosed)
	s.metrics.RecordXPAwards(deltas)
	awarded := make([]string, 0, len(deltas))
	for uid := range deltas {
		awarded = append(awarded, uid)
	}
	s.cache.InvalidateEvent(ctx, id, awarded...)
	s.notify(ctx, models.NotificationEventClosed, updated, append(updated.Members(), updated.Details.Organizers...))
	return updated, nil
}
