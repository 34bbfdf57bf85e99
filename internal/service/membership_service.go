package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/eventhub-api/internal/dto"
	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/internal/repository"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

var (
	joinableStatuses     = []models.EventStatus{models.EventStatusApproved, models.EventStatusInProgress}
	nonLeavableStatuses  = []models.EventStatus{models.EventStatusCompleted, models.EventStatusCancelled, models.EventStatusClosed}
	teamEditableStatuses = []models.EventStatus{models.EventStatusPending, models.EventStatusApproved, models.EventStatusInProgress}
)

// Join adds the actor to the participants of a non-team event.
func (s *EventService) Join(ctx context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.mutate(ctx, "join", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if !event.Status.In(joinableStatuses...) {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot join an event that is %s", event.Status))
		}
		if event.IsMember(actor.UserID) {
			return appErrors.Clone(appErrors.ErrAlreadyMember, "you already take part in this event")
		}
		if event.IsTeamEvent() {
			return appErrors.Clone(appErrors.ErrFormatMismatch, "team events are joined through a team")
		}
		if event.IsOrganizer(actor.UserID) {
			return appErrors.Clone(appErrors.ErrOrganizerConflict, "organizers cannot join their own event")
		}
		event.Participants = append(event.Participants, actor.UserID)
		return nil
	})
}

// Leave removes the actor from the participants or from their team. A departing lead hands the
// role to the first remaining member and empty teams are dropped.
func (s *EventService) Leave(ctx context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.mutate(ctx, "leave", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if event.Status.In(nonLeavableStatuses...) {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot leave an event that is %s", event.Status))
		}
		if event.IsOrganizer(actor.UserID) {
			return appErrors.Clone(appErrors.ErrOrganizerConflict, "organizers cannot leave their own event")
		}
		if removeMember(event, actor.UserID) {
			return nil
		}
		return appErrors.Clone(appErrors.ErrNotAMember, "you are not part of this event")
	})
}

// removeMember drops userID from participants and from any team. It reports whether anything changed.
func removeMember(event *models.Event, userID string) bool {
	removed := false
	participants := event.Participants[:0]
	for _, p := range event.Participants {
		if p == userID {
			removed = true
			continue
		}
		participants = append(participants, p)
	}
	event.Participants = participants

	teams := make([]models.Team, 0, len(event.Teams))
	for _, team := range event.Teams {
		if team.HasMember(userID) {
			removed = true
			members := make([]string, 0, len(team.Members))
			for _, m := range team.Members {
				if m != userID {
					members = append(members, m)
				}
			}
			team.Members = members
			if len(members) == 0 {
				continue
			}
			if team.TeamLead == userID || !team.HasMember(team.TeamLead) {
				team.TeamLead = members[0]
			}
		}
		teams = append(teams, team)
	}
	event.Teams = teams
	event.RecomputeTeamMemberFlatList()
	return removed
}

// AddTeam creates a team. Organizers and admins may add teams (or empty shells for generation)
// while the event is Pending, Approved or InProgress; students may form a team that includes
// themselves once the event is open for joining.
func (s *EventService) AddTeam(ctx context.Context, id string, actor models.Actor, req dto.AddTeamRequest) (*models.Event, error) {
	name := strings.TrimSpace(req.TeamName)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "team name is required")
	}
	members := uniqueNonEmpty(req.Members)
	lead := strings.TrimSpace(req.TeamLead)

	return s.mutate(ctx, "add_team", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		manager := actor.IsAdmin() || event.IsOrganizer(actor.UserID)
		switch {
		case manager:
			if !event.Status.In(teamEditableStatuses...) {
				return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("teams cannot be added while the event is %s", event.Status))
			}
		case containsID(members, actor.UserID):
			if !event.Status.In(joinableStatuses...) {
				return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("teams cannot be formed while the event is %s", event.Status))
			}
		default:
			return appErrors.Clone(appErrors.ErrForbidden, "students can only create a team that includes themselves")
		}
		if !event.IsTeamEvent() {
			return appErrors.Clone(appErrors.ErrFormatMismatch, "teams can only be added to team events")
		}
		if event.FindTeam(name) >= 0 {
			return appErrors.Clone(appErrors.ErrDuplicateTeamName, fmt.Sprintf("team %q already exists", name))
		}
		if len(members) == 0 && !(req.Shell && manager) {
			return appErrors.Clone(appErrors.ErrEmptyMembers, "a team needs at least one member")
		}
		for _, member := range members {
			if event.IsOrganizer(member) {
				return appErrors.Clone(appErrors.ErrOrganizerConflict, fmt.Sprintf("organizer %s cannot join a team", member))
			}
			if event.IsMember(member) {
				return appErrors.Clone(appErrors.ErrAlreadyMember, fmt.Sprintf("user %s already belongs to a team", member))
			}
		}
		if lead == "" && len(members) > 0 {
			lead = members[0]
		}
		if lead != "" && !containsID(members, lead) {
			return appErrors.Clone(appErrors.ErrValidation, "team lead must be one of the members")
		}
		event.Teams = append(event.Teams, models.Team{TeamName: name, Members: members, TeamLead: lead})
		return nil
	})
}

// JoinTeam adds the actor to an existing team of a team event.
func (s *EventService) JoinTeam(ctx context.Context, id, teamName string, actor models.Actor) (*models.Event, error) {
	return s.mutate(ctx, "join_team", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if !event.Status.In(joinableStatuses...) {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot join a team while the event is %s", event.Status))
		}
		if event.IsMember(actor.UserID) {
			return appErrors.Clone(appErrors.ErrAlreadyMember, "you already take part in this event")
		}
		if !event.IsTeamEvent() {
			return appErrors.Clone(appErrors.ErrFormatMismatch, "only team events have teams to join")
		}
		if event.IsOrganizer(actor.UserID) {
			return appErrors.Clone(appErrors.ErrOrganizerConflict, "organizers cannot join a team")
		}
		idx := event.FindTeam(teamName)
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("team %q not found", teamName))
		}
		team := &event.Teams[idx]
		team.Members = append(team.Members, actor.UserID)
		if team.TeamLead == "" {
			team.TeamLead = actor.UserID
		}
		return nil
	})
}

// AutoGenerateTeams distributes students over the event's existing team shells. Students who
// already belong to a team and organizers are skipped. The students left over are returned.
func (s *EventService) AutoGenerateTeams(ctx context.Context, id string, actor models.Actor, req dto.GenerateTeamsRequest) (*models.Event, []string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid team generation payload")
	}
	var unassigned []string
	updated, err := s.mutate(ctx, "generate_teams", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if err := requireManager(actor)(event); err != nil {
			return err
		}
		if !event.Status.In(models.EventStatusPending, models.EventStatusApproved) {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("teams cannot be generated while the event is %s", event.Status))
		}
		if !event.IsTeamEvent() {
			return appErrors.Clone(appErrors.ErrFormatMismatch, "teams can only be generated for team events")
		}
		candidates := make([]string, 0, len(req.Students))
		for _, student := range uniqueNonEmpty(req.Students) {
			if event.IsOrganizer(student) || event.IsMember(student) {
				continue
			}
			candidates = append(candidates, student)
		}
		result, err := GenerateTeams(event.Teams, candidates, req.Min, req.Max, s.shuffle)
		if err != nil {
			return err
		}
		event.Teams = result.Teams
		unassigned = result.Unassigned
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.notify(ctx, models.NotificationTeamsGenerated, updated, updated.Members())
	return updated, unassigned, nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
