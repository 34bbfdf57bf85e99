package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

// DateConflictResult reports whether a candidate range overlaps a committed event.
type DateConflictResult struct {
	HasConflict       bool          `json:"hasConflict"`
	ConflictingEvent  *models.Event `json:"conflictingEvent,omitempty"`
	NextAvailableDate *time.Time    `json:"nextAvailableDate,omitempty"`
}

// FindDateConflict compares whole days in loc using startA <= endB && endA >= startB. Only the
// first overlapping committed event is reported; the next available date is the day after it ends.
func FindDateConflict(events []models.Event, start, end time.Time, excludeID string, loc *time.Location) DateConflictResult {
	if loc == nil {
		loc = time.UTC
	}
	candidateStart, candidateEnd := dayOf(start, loc), dayOf(end, loc)
	for i := range events {
		event := events[i]
		if event.ID == excludeID || !event.Status.In(models.CommittedStatuses...) {
			continue
		}
		otherStart, otherEnd := dayOf(event.Details.Date.Start, loc), dayOf(event.Details.Date.End, loc)
		if !candidateStart.After(otherEnd) && !candidateEnd.Before(otherStart) {
			next := otherEnd.AddDate(0, 0, 1)
			return DateConflictResult{HasConflict: true, ConflictingEvent: &event, NextAvailableDate: &next}
		}
	}
	return DateConflictResult{}
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// CheckDateConflict loads committed events and reports the first overlap with [start, end].
func (s *EventService) CheckDateConflict(ctx context.Context, start, end time.Time, excludeID string) (DateConflictResult, error) {
	if start.IsZero() || end.IsZero() {
		return DateConflictResult{}, appErrors.Clone(appErrors.ErrValidation, "start and end dates are required")
	}
	if end.Before(start) {
		return DateConflictResult{}, appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}
	began := time.Now()
	events, err := s.store.List(ctx, models.EventFilter{Statuses: models.CommittedStatuses})
	s.metrics.ObserveStoreOperation("conflict_scan", err, time.Since(began))
	if err != nil {
		return DateConflictResult{}, s.translate(err, "failed to load committed events")
	}
	return FindDateConflict(events, start, end, excludeID, s.location), nil
}

// HasPendingRequest reports whether userID already has an open Pending request.
func (s *EventService) HasPendingRequest(ctx context.Context, userID string) (bool, error) {
	began := time.Now()
	exists, err := s.store.ExistsPendingRequest(ctx, userID)
	s.metrics.ObserveStoreOperation("pending_request", err, time.Since(began))
	if err != nil {
		return false, s.translate(err, "failed to check pending requests")
	}
	return exists, nil
}

func (s *EventService) ensureNoConflict(ctx context.Context, start, end time.Time, excludeID string) error {
	result, err := s.CheckDateConflict(ctx, start, end, excludeID)
	if err != nil {
		return err
	}
	if !result.HasConflict {
		return nil
	}
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("dates overlap with %q, next available date is %s",
		result.ConflictingEvent.Details.EventName, result.NextAvailableDate.Format("2006-01-02")))
}
