package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eventhub-api/internal/dto"
	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/internal/service"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
	"github.com/noah-isme/eventhub-api/pkg/response"
)

type eventService interface {
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, query dto.EventQuery) ([]models.Event, error)
	RequestEvent(ctx context.Context, actor models.Actor, req dto.CreateEventRequest) (*models.Event, error)
	CreateEvent(ctx context.Context, actor models.Actor, req dto.CreateEventRequest) (*models.Event, error)
	UpdateEvent(ctx context.Context, id string, actor models.Actor, req dto.UpdateEventRequest) (*models.Event, error)
	CheckDateConflict(ctx context.Context, start, end time.Time, excludeID string) (service.DateConflictResult, error)
	Approve(ctx context.Context, id string, actor models.Actor) (*models.Event, error)
	Reject(ctx context.Context, id string, actor models.Actor, reason string) (*models.Event, error)
	Start(ctx context.Context, id string, actor models.Actor) (*models.Event, error)
	Complete(ctx context.Context, id string, actor models.Actor) (*models.Event, error)
	Cancel(ctx context.Context, id string, actor models.Actor) (*models.Event, error)
	Close(ctx context.Context, id string, actor models.Actor) (*models.Event, error)
	SetVotingOpen(ctx context.Context, id string, actor models.Actor, open bool) (*models.Event, error)
}

const maxListLimit = 200

// EventHandler exposes event CRUD and lifecycle endpoints.
type EventHandler struct {
	service eventService
}

// NewEventHandler builds a new handler.
func NewEventHandler(service eventService) *EventHandler {
	return &EventHandler{service: service}
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param requestedBy query string false "Requester user ID"
// @Param organizer query string false "Organizer user ID"
// @Param member query string false "Participant or team member user ID"
// @Param order query string false "asc or desc by start date"
// @Param limit query int false "Maximum results"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	query, err := parseEventQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	events, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

func parseEventQuery(c *gin.Context) (dto.EventQuery, error) {
	query := dto.EventQuery{
		RequestedBy: strings.TrimSpace(c.Query("requestedBy")),
		OrganizerID: strings.TrimSpace(c.Query("organizer")),
		MemberID:    strings.TrimSpace(c.Query("member")),
	}
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			status := models.EventStatus(strings.ToUpper(strings.TrimSpace(part)))
			if status == "" {
				continue
			}
			if !status.Valid() {
				return query, appErrors.Clone(appErrors.ErrValidation, "unknown status "+string(status))
			}
			query.Statuses = append(query.Statuses, status)
		}
	}
	switch strings.ToLower(c.DefaultQuery("order", "asc")) {
	case "asc":
	case "desc":
		query.Descending = true
	default:
		return query, appErrors.Clone(appErrors.ErrValidation, "order must be asc or desc")
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			return query, appErrors.Clone(appErrors.ErrValidation, "limit must be between 1 and 200")
		}
		query.Limit = limit
	}
	return query, nil
}

// Get godoc
// @Summary Get an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Request godoc
// @Summary Request a new event (enters PENDING)
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /events/requests [post]
func (h *EventHandler) Request(c *gin.Context) {
	h.create(c, h.service.RequestEvent)
}

// Create godoc
// @Summary Create an approved event (admin)
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	h.create(c, h.service.CreateEvent)
}

func (h *EventHandler) create(c *gin.Context, fn func(context.Context, models.Actor, dto.CreateEventRequest) (*models.Event, error)) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.CreateEventRequest
	if !bindJSON(c, &req, "event") {
		return
	}
	event, err := fn(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Edit event content
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.UpdateEventRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [patch]
func (h *EventHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.UpdateEventRequest
	if !bindJSON(c, &req, "event update") {
		return
	}
	event, err := h.service.UpdateEvent(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Conflicts godoc
// @Summary Check a date range against committed events
// @Tags Events
// @Produce json
// @Param start query string true "Start date (YYYY-MM-DD or RFC3339)"
// @Param end query string true "End date (YYYY-MM-DD or RFC3339)"
// @Param excludeId query string false "Event to ignore"
// @Success 200 {object} response.Envelope
// @Router /events/conflicts [get]
func (h *EventHandler) Conflicts(c *gin.Context) {
	start, err := parseDay(c.Query("start"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid start date"))
		return
	}
	end, err := parseDay(c.Query("end"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid end date"))
		return
	}
	result, err := h.service.CheckDateConflict(c.Request.Context(), start, end, c.Query("excludeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Approve godoc
// @Summary Approve a pending request (admin)
// @Tags Lifecycle
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/approve [post]
func (h *EventHandler) Approve(c *gin.Context) {
	h.lifecycle(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject a pending request (admin)
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.RejectEventRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/reject [post]
func (h *EventHandler) Reject(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.RejectEventRequest
	if !bindJSON(c, &req, "rejection") {
		return
	}
	event, err := h.service.Reject(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Start godoc
// @Summary Start an approved event
// @Tags Lifecycle
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/start [post]
func (h *EventHandler) Start(c *gin.Context) {
	h.lifecycle(c, h.service.Start)
}

// Complete godoc
// @Summary Complete a running event
// @Tags Lifecycle
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/complete [post]
func (h *EventHandler) Complete(c *gin.Context) {
	h.lifecycle(c, h.service.Complete)
}

// Cancel godoc
// @Summary Cancel an event
// @Tags Lifecycle
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/cancel [post]
func (h *EventHandler) Cancel(c *gin.Context) {
	h.lifecycle(c, h.service.Cancel)
}

// Close godoc
// @Summary Close a completed event and award XP
// @Tags Lifecycle
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/close [post]
func (h *EventHandler) Close(c *gin.Context) {
	h.lifecycle(c, h.service.Close)
}

func (h *EventHandler) lifecycle(c *gin.Context, fn func(context.Context, string, models.Actor) (*models.Event, error)) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	event, err := fn(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// SetVoting godoc
// @Summary Open or close voting
// @Tags Voting
// @Accept json
// @Param id path string true "Event ID"
// @Param payload body dto.VotingToggleRequest true "Gate state"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/voting [post]
func (h *EventHandler) SetVoting(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.VotingToggleRequest
	if !bindJSON(c, &req, "voting") {
		return
	}
	event, err := h.service.SetVotingOpen(c.Request.Context(), c.Param("id"), actor, req.Open)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}
