package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/internal/repository"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

// SubmitProject records a project for the actor's team (team events) or for the actor
// (individual events). Each owner keeps a single submission: resubmitting the same project
// name fails, a different project replaces the previous one.
func (s *EventService) SubmitProject(ctx context.Context, id string, actor models.Actor, input models.SubmissionInput) (*models.Event, error) {
	input.ProjectName = strings.TrimSpace(input.ProjectName)
	input.Link = strings.TrimSpace(input.Link)
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if !isHTTPURL(input.Link) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "project link must be an http or https URL")
	}

	return s.mutate(ctx, "submit_project", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if !event.Details.AllowProjectSubmission {
			return appErrors.Clone(appErrors.ErrInvalidState, "this event does not accept project submissions")
		}
		if !event.Status.In(models.EventStatusInProgress, models.EventStatusCompleted) {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("projects cannot be submitted while the event is %s", event.Status))
		}

		submission := models.Submission{
			ProjectName: input.ProjectName,
			Link:        input.Link,
			Description: strings.TrimSpace(input.Description),
			SubmittedBy: actor.UserID,
			SubmittedAt: s.now().UTC(),
		}
		if event.IsTeamEvent() {
			idx := event.TeamIndexOf(actor.UserID)
			if idx < 0 {
				return appErrors.Clone(appErrors.ErrForbidden, "only team members can submit a project")
			}
			team := event.Teams[idx].TeamName
			if input.TeamName != "" && !strings.EqualFold(strings.TrimSpace(input.TeamName), team) {
				return appErrors.Clone(appErrors.ErrForbidden, "you can only submit for your own team")
			}
			submission.TeamName = team
		} else {
			if !event.IsParticipant(actor.UserID) {
				return appErrors.Clone(appErrors.ErrForbidden, "only participants can submit a project")
			}
			if input.ParticipantID != "" && input.ParticipantID != actor.UserID {
				return appErrors.Clone(appErrors.ErrForbidden, "you can only submit your own project")
			}
			submission.ParticipantID = actor.UserID
		}

		kept := make([]models.Submission, 0, len(event.Submissions)+1)
		for _, existing := range event.Submissions {
			if !sameOwner(existing, submission) {
				kept = append(kept, existing)
				continue
			}
			if strings.EqualFold(existing.ProjectName, submission.ProjectName) {
				return appErrors.Clone(appErrors.ErrAlreadyExists, fmt.Sprintf("project %q was already submitted", submission.ProjectName))
			}
		}
		event.Submissions = append(kept, submission)
		return nil
	})
}

func sameOwner(a, b models.Submission) bool {
	if a.TeamName != "" || b.TeamName != "" {
		return strings.EqualFold(a.TeamName, b.TeamName)
	}
	owner := func(sub models.Submission) string {
		if sub.ParticipantID != "" {
			return sub.ParticipantID
		}
		return sub.SubmittedBy
	}
	return owner(a) == owner(b)
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
