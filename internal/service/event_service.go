package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/eventhub-api/internal/dto"
	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/internal/repository"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

// EventStore is the document store backing the event service.
type EventStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.EventTx) error) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	ExistsPendingRequest(ctx context.Context, userID string) (bool, error)
	GetXP(ctx context.Context, uid string) (*models.XPData, error)
}

type eventNotifier interface {
	Notify(ctx context.Context, notification models.Notification)
}

// XPConfig holds the flat XP constants awarded at closure.
type XPConfig struct {
	Organizer     int
	Participation int
	BestPerformer int
}

// DefaultXPConfig returns the standard award constants.
func DefaultXPConfig() XPConfig {
	return XPConfig{Organizer: 50, Participation: 10, BestPerformer: 30}
}

// EventService runs every event operation as a single store transaction: read, guard, mutate,
// write. After commit it refreshes the cache and enqueues notifications.
type EventService struct {
	store     EventStore
	cache     *CacheService
	notifier  eventNotifier
	metrics   *MetricsService
	logger    *zap.Logger
	validator *validator.Validate
	now       func() time.Time
	location  *time.Location
	xp        XPConfig
	shuffle   func([]string)
}

// EventServiceOption configures the service.
type EventServiceOption func(*EventService)

// WithEventCache enables the read cache.
func WithEventCache(cache *CacheService) EventServiceOption {
	return func(s *EventService) {
		s.cache = cache
	}
}

// WithEventNotifier sets the notification sink.
func WithEventNotifier(notifier eventNotifier) EventServiceOption {
	return func(s *EventService) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithEventMetrics sets the metrics recorder.
func WithEventMetrics(metrics *MetricsService) EventServiceOption {
	return func(s *EventService) {
		s.metrics = metrics
	}
}

// WithEventClock overrides the time source.
func WithEventClock(now func() time.Time) EventServiceOption {
	return func(s *EventService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEventTimezone sets the zone used to normalise event days.
func WithEventTimezone(loc *time.Location) EventServiceOption {
	return func(s *EventService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithXPConfig overrides the award constants.
func WithXPConfig(cfg XPConfig) EventServiceOption {
	return func(s *EventService) {
		s.xp = cfg
	}
}

// WithTeamShuffler overrides the random shuffle used by team generation.
func WithTeamShuffler(shuffle func([]string)) EventServiceOption {
	return func(s *EventService) {
		if shuffle != nil {
			s.shuffle = shuffle
		}
	}
}

// NewEventService constructs the service with defaults.
func NewEventService(store EventStore, validate *validator.Validate, logger *zap.Logger, opts ...EventServiceOption) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EventService{
		store:     store,
		notifier:  nopNotifier{},
		logger:    logger,
		validator: validate,
		now:       time.Now,
		location:  time.UTC,
		xp:        DefaultXPConfig(),
		shuffle: func(ids []string) {
			rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		},
	}
	svc.validator.RegisterValidation("event_format", func(fl validator.FieldLevel) bool {
		return models.EventFormat(strings.ToUpper(fl.Field().String())).Valid()
	})
	svc.validator.RegisterValidation("xp_role", func(fl validator.FieldLevel) bool {
		return models.XPRole(fl.Field().String()).Valid()
	})
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.Notification) {}

// Get returns an event, serving it from the cache when possible.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	var cached models.Event
	if hit, _ := s.cache.Get(ctx, EventCacheKey(id), &cached); hit {
		if err := models.Normalize(&cached); err == nil {
			return &cached, nil
		}
	}
	start := time.Now()
	event, err := s.store.GetByID(ctx, id)
	s.metrics.ObserveStoreOperation("get", err, time.Since(start))
	if err != nil {
		return nil, s.translate(err, "failed to load event")
	}
	_ = s.cache.Set(ctx, EventCacheKey(id), event, 0)
	return event, nil
}

// List returns events matching the query.
func (s *EventService) List(ctx context.Context, query dto.EventQuery) ([]models.Event, error) {
	filter := models.EventFilter{
		Statuses:    query.Statuses,
		RequestedBy: strings.TrimSpace(query.RequestedBy),
		OrganizerID: strings.TrimSpace(query.OrganizerID),
		MemberID:    strings.TrimSpace(query.MemberID),
		Descending:  query.Descending,
		Limit:       query.Limit,
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
		}
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}

	key := EventListCacheKey(filter)
	var cached []models.Event
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	start := time.Now()
	events, err := s.store.List(ctx, filter)
	s.metrics.ObserveStoreOperation("list", err, time.Since(start))
	if err != nil {
		return nil, s.translate(err, "failed to list events")
	}
	_ = s.cache.Set(ctx, key, events, 0)
	return events, nil
}

// RequestEvent stores a student's event request in Pending. A user may hold one open request.
func (s *EventService) RequestEvent(ctx context.Context, actor models.Actor, req dto.CreateEventRequest) (*models.Event, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	event, err := s.buildEvent(req, actor)
	if err != nil {
		return nil, err
	}
	// Fast path. The PostgreSQL store also enforces this with a partial unique index.
	pending, err := s.HasPendingRequest(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "you already have a pending event request")
	}
	event.Status = models.EventStatusPending
	if err := s.create(ctx, event); err != nil {
		return nil, err
	}
	s.notify(ctx, models.NotificationEventRequested, event, event.Details.Organizers)
	return event, nil
}

// CreateEvent lets an admin publish an event directly in Approved.
func (s *EventService) CreateEvent(ctx context.Context, actor models.Actor, req dto.CreateEventRequest) (*models.Event, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can create approved events")
	}
	event, err := s.buildEvent(req, actor)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, event.Details.Date.Start, event.Details.Date.End, ""); err != nil {
		return nil, err
	}
	now := s.now()
	event.Status = models.EventStatusApproved
	event.Lifecycle.CreatedAt = now.UTC()
	setOnce(&event.Lifecycle.ApprovedAt, now)
	if err := s.create(ctx, event); err != nil {
		return nil, err
	}
	s.notify(ctx, models.NotificationEventApproved, event, event.Details.Organizers)
	return event, nil
}

func (s *EventService) buildEvent(req dto.CreateEventRequest, actor models.Actor) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}
	criteria, err := buildCriteria(req.Criteria, nil)
	if err != nil {
		return nil, err
	}
	organizers := req.Organizers
	if len(organizers) == 0 {
		organizers = []string{actor.UserID}
	}
	event := &models.Event{
		Details: models.EventDetails{
			EventName:              strings.TrimSpace(req.EventName),
			Description:            req.Description,
			Format:                 models.EventFormat(strings.ToUpper(req.Format)),
			Date:                   models.DateRange{Start: req.StartDate, End: req.EndDate},
			Organizers:             organizers,
			AllowProjectSubmission: req.AllowProjectSubmission,
			Prize:                  req.Prize,
			Rules:                  req.Rules,
		},
		RequestedBy: actor.UserID,
		Criteria:    criteria,
		Lifecycle:   models.LifecycleTimestamps{CreatedAt: s.now().UTC()},
	}
	if err := models.Normalize(event); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return event, nil
}

// buildCriteria converts criterion definitions, carrying over ballots for keys that already exist.
func buildCriteria(inputs []dto.CriterionInput, existing []models.Criterion) ([]models.Criterion, error) {
	previous := make(map[string]map[string]string, len(existing))
	for _, c := range existing {
		previous[c.ConstraintKey] = c.Votes
	}
	seenKeys := make(map[string]struct{}, len(inputs))
	seenIndexes := make(map[int]struct{}, len(inputs))
	criteria := make([]models.Criterion, 0, len(inputs))
	for _, in := range inputs {
		key := strings.TrimSpace(in.ConstraintKey)
		if key == "" || key == models.BestPerformerKey {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid criterion key %q", in.ConstraintKey))
		}
		if _, dup := seenKeys[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate criterion key %q", key))
		}
		if _, dup := seenIndexes[in.ConstraintIndex]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate criterion index %d", in.ConstraintIndex))
		}
		seenKeys[key] = struct{}{}
		seenIndexes[in.ConstraintIndex] = struct{}{}
		votes := previous[key]
		if votes == nil {
			votes = map[string]string{}
		}
		criteria = append(criteria, models.Criterion{
			ConstraintIndex: in.ConstraintIndex,
			ConstraintKey:   key,
			Title:           strings.TrimSpace(in.Title),
			XPValue:         in.XPValue,
			Role:            models.XPRole(in.Role),
			Votes:           votes,
		})
	}
	return criteria, nil
}

func (s *EventService) create(ctx context.Context, event *models.Event) error {
	start := time.Now()
	err := s.store.Create(ctx, event)
	s.metrics.ObserveStoreOperation("create", err, time.Since(start))
	if err != nil {
		return s.translate(err, "failed to create event")
	}
	s.cache.InvalidateEvent(ctx, event.ID)
	return nil
}

// UpdateEvent edits event content. Requesters may edit while Pending or Rejected, and an edited
// Rejected request returns to Pending. Organizers and admins may edit while Pending or Approved.
func (s *EventService) UpdateEvent(ctx context.Context, id string, actor models.Actor, req dto.UpdateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkEditPermission(current, actor); err != nil {
		return nil, err
	}

	start, end := current.Details.Date.Start, current.Details.Date.End
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}
	datesChanged := !start.Equal(current.Details.Date.Start) || !end.Equal(current.Details.Date.End)
	if datesChanged && current.Status == models.EventStatusApproved {
		if err := s.ensureNoConflict(ctx, start, end, id); err != nil {
			return nil, err
		}
	}
	if current.Status == models.EventStatusRejected && current.RequestedBy == actor.UserID {
		// Fast path. The PostgreSQL store also enforces this with a partial unique index.
	pending, err := s.HasPendingRequest(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if pending {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "you already have a pending event request")
		}
	}

	return s.mutate(ctx, "update", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if err := checkEditPermission(event, actor); err != nil {
			return err
		}
		if datesChanged && event.Status == models.EventStatusApproved &&
			(!event.Details.Date.Start.Equal(current.Details.Date.Start) || !event.Details.Date.End.Equal(current.Details.Date.End)) {
			return appErrors.Clone(appErrors.ErrConflict, "event dates changed concurrently, retry the edit")
		}
		if req.EventName != nil {
			event.Details.EventName = strings.TrimSpace(*req.EventName)
		}
		if req.Description != nil {
			event.Details.Description = *req.Description
		}
		if req.Format != nil {
			format := models.EventFormat(strings.ToUpper(*req.Format))
			if format != event.Details.Format && (len(event.Participants) > 0 || len(event.Teams) > 0) {
				return appErrors.Clone(appErrors.ErrInvalidState, "format cannot change once participants or teams exist")
			}
			event.Details.Format = format
		}
		event.Details.Date = models.DateRange{Start: start, End: end}
		if len(req.Organizers) > 0 {
			event.Details.Organizers = req.Organizers
			for _, organizer := range req.Organizers {
				if event.IsMember(organizer) {
					return appErrors.Clone(appErrors.ErrOrganizerConflict, fmt.Sprintf("user %s already takes part in the event", organizer))
				}
			}
		}
		if req.AllowProjectSubmission != nil {
			event.Details.AllowProjectSubmission = *req.AllowProjectSubmission
		}
		if req.Prize != nil {
			event.Details.Prize = *req.Prize
		}
		if req.Rules != nil {
			event.Details.Rules = *req.Rules
		}
		if req.Criteria != nil {
			criteria, err := buildCriteria(req.Criteria, event.Criteria)
			if err != nil {
				return err
			}
			event.Criteria = criteria
		}
		if event.Status == models.EventStatusRejected {
			event.Status = models.EventStatusPending
			event.RejectionReason = ""
		}
		return models.Normalize(event)
	})
}

func checkEditPermission(event *models.Event, actor models.Actor) error {
	if event.RequestedBy == actor.UserID && event.Status.In(models.EventStatusPending, models.EventStatusRejected) {
		return nil
	}
	if actor.IsAdmin() || event.IsOrganizer(actor.UserID) {
		if event.Status.In(models.EventStatusPending, models.EventStatusApproved) {
			return nil
		}
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("events cannot be edited while %s", event.Status))
	}
	if event.RequestedBy == actor.UserID {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("requests cannot be edited while %s", event.Status))
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only the requester, organizers or admins can edit this event")
}

// Approve publishes a Pending request after checking it against committed events.
func (s *EventService) Approve(ctx context.Context, id string, actor models.Actor) (*models.Event, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can approve event requests")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.EventStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot approve an event that is %s", current.Status))
	}
	if err := s.ensureNoConflict(ctx, current.Details.Date.Start, current.Details.Date.End, id); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, models.EventStatusApproved, TransitionInput{}, func(event *models.Event) error {
		if !event.Details.Date.Start.Equal(current.Details.Date.Start) || !event.Details.Date.End.Equal(current.Details.Date.End) {
			return appErrors.Clone(appErrors.ErrConflict, "event dates changed during approval, retry")
		}
		return nil
	})
}

// Reject declines a Pending request with a mandatory reason.
func (s *EventService) Reject(ctx context.Context, id string, actor models.Actor, reason string) (*models.Event, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can reject event requests")
	}
	return s.transition(ctx, id, models.EventStatusRejected, TransitionInput{Reason: reason}, nil)
}

// Start moves an Approved event to InProgress and opens voting.
func (s *EventService) Start(ctx context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.transition(ctx, id, models.EventStatusInProgress, TransitionInput{}, requireManager(actor))
}

// Complete moves an InProgress event to Completed and reopens voting for post-event ballots.
func (s *EventService) Complete(ctx context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.transition(ctx, id, models.EventStatusCompleted, TransitionInput{}, requireManager(actor))
}

// Cancel stops an Approved or InProgress event.
func (s *EventService) Cancel(ctx context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.transition(ctx, id, models.EventStatusCancelled, TransitionInput{}, requireManager(actor))
}

func (s *EventService) transition(ctx context.Context, id string, target models.EventStatus, input TransitionInput, guard func(*models.Event) error) (*models.Event, error) {
	var from models.EventStatus
	updated, err := s.mutate(ctx, "transition", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if guard != nil {
			if err := guard(event); err != nil {
				return err
			}
		}
		from = event.Status
		return Transition(event, target, input, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(from, target)
	recipients := append(updated.Members(), updated.Details.Organizers...)
	if target == models.EventStatusApproved || target == models.EventStatusRejected {
		recipients = []string{updated.RequestedBy}
	}
	s.notify(ctx, transitionNotification(target), updated, recipients)
	return updated, nil
}

// SetVotingOpen toggles the voting gate. Opening requires InProgress or Completed.
func (s *EventService) SetVotingOpen(ctx context.Context, id string, actor models.Actor, open bool) (*models.Event, error) {
	updated, err := s.mutate(ctx, "voting", id, func(ctx context.Context, tx repository.EventTx, event *models.Event) error {
		if err := requireManager(actor)(event); err != nil {
			return err
		}
		if !event.Status.In(models.EventStatusInProgress, models.EventStatusCompleted) {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("voting cannot change while the event is %s", event.Status))
		}
		event.VotingOpen = open
		return nil
	})
	if err != nil {
		return nil, err
	}
	kind := models.NotificationVotingClosed
	if open {
		kind = models.NotificationVotingOpened
	}
	s.notify(ctx, kind, updated, updated.Members())
	return updated, nil
}

// GetXP returns a user's XP record.
func (s *EventService) GetXP(ctx context.Context, uid string) (*models.XPData, error) {
	var cached models.XPData
	if hit, _ := s.cache.Get(ctx, XPCacheKey(uid), &cached); hit {
		return &cached, nil
	}
	start := time.Now()
	data, err := s.store.GetXP(ctx, uid)
	s.metrics.ObserveStoreOperation("get_xp", err, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load xp")
	}
	_ = s.cache.Set(ctx, XPCacheKey(uid), data, 0)
	return data, nil
}

// requireManager allows organizers of the event and admins.
func requireManager(actor models.Actor) func(*models.Event) error {
	return func(event *models.Event) error {
		if actor.IsAdmin() || event.IsOrganizer(actor.UserID) {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "only organizers or admins can manage this event")
	}
}

// mutate runs fn against a freshly read event inside one store transaction and persists the
// result. The flat member list is recomputed before every write.
func (s *EventService) mutate(ctx context.Context, operation, id string, fn func(ctx context.Context, tx repository.EventTx, event *models.Event) error) (*models.Event, error) {
	start := time.Now()
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.EventTx) error {
		event, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if event.Status == models.EventStatusClosed {
			return appErrors.Clone(appErrors.ErrInvalidState, "closed events cannot be modified")
		}
		if err := fn(ctx, tx, event); err != nil {
			return err
		}
		event.RecomputeTeamMemberFlatList()
		return tx.Save(ctx, event)
	})
	s.metrics.ObserveStoreOperation(operation, err, time.Since(start))
	if err != nil {
		return nil, s.translate(err, "failed to update event")
	}

	s.cache.InvalidateEvent(ctx, id)
	updated, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "failed to reload event")
	}
	return updated, nil
}

func (s *EventService) translate(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, repository.ErrEventNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	if errors.Is(err, repository.ErrPendingRequestExists) {
		return appErrors.Clone(appErrors.ErrAlreadyExists, "you already have a pending event request")
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *EventService) notify(ctx context.Context, kind models.NotificationType, event *models.Event, targets []string) {
	targets = uniqueNonEmpty(targets)
	if len(targets) == 0 {
		return
	}
	s.notifier.Notify(ctx, models.Notification{
		Type:          kind,
		EventID:       event.ID,
		EventName:     event.Details.EventName,
		TargetUserIDs: targets,
	})
}

func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
