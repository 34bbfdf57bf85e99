package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eventhub-api/internal/dto"
	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/pkg/response"
)

type participationService interface {
	Join(ctx context.Context, id string, actor models.Actor) (*models.Event, error)
	Leave(ctx context.Context, id string, actor models.Actor) (*models.Event, error)
	AddTeam(ctx context.Context, id string, actor models.Actor, req dto.AddTeamRequest) (*models.Event, error)
	JoinTeam(ctx context.Context, id, teamName string, actor models.Actor) (*models.Event, error)
	AutoGenerateTeams(ctx context.Context, id string, actor models.Actor, req dto.GenerateTeamsRequest) (*models.Event, []string, error)
	SubmitProject(ctx context.Context, id string, actor models.Actor, input models.SubmissionInput) (*models.Event, error)
}

// ParticipationHandler exposes membership, team and submission endpoints.
type ParticipationHandler struct {
	service participationService
}

// NewParticipationHandler builds a new handler.
func NewParticipationHandler(service participationService) *ParticipationHandler {
	return &ParticipationHandler{service: service}
}

// Join godoc
// @Summary Join an individual or competition event
// @Tags Membership
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/join [post]
func (h *ParticipationHandler) Join(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	event, err := h.service.Join(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Leave godoc
// @Summary Leave an event or team
// @Tags Membership
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/leave [post]
func (h *ParticipationHandler) Leave(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	event, err := h.service.Leave(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// AddTeam godoc
// @Summary Register a team
// @Tags Teams
// @Accept json
// @Param id path string true "Event ID"
// @Param payload body dto.AddTeamRequest true "Team"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/teams [post]
func (h *ParticipationHandler) AddTeam(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.AddTeamRequest
	if !bindJSON(c, &req, "team") {
		return
	}
	event, err := h.service.AddTeam(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// JoinTeam godoc
// @Summary Join an existing team
// @Tags Teams
// @Param id path string true "Event ID"
// @Param team path string true "Team name"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/teams/{team}/join [post]
func (h *ParticipationHandler) JoinTeam(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	event, err := h.service.JoinTeam(c.Request.Context(), c.Param("id"), c.Param("team"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// GenerateTeams godoc
// @Summary Distribute students across team shells
// @Tags Teams
// @Accept json
// @Param id path string true "Event ID"
// @Param payload body dto.GenerateTeamsRequest true "Students and bounds"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/teams/generate [post]
func (h *ParticipationHandler) GenerateTeams(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.GenerateTeamsRequest
	if !bindJSON(c, &req, "team generation") {
		return
	}
	event, unassigned, err := h.service.AutoGenerateTeams(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if unassigned == nil {
		unassigned = []string{}
	}
	response.JSON(c, http.StatusOK, dto.GenerateTeamsResponse{Event: event, Unassigned: unassigned}, nil)
}

// Submit godoc
// @Summary Submit a project
// @Tags Submissions
// @Accept json
// @Param id path string true "Event ID"
// @Param payload body models.SubmissionInput true "Submission"
// @Success 201 {object} response.Envelope
// @Router /events/{id}/submissions [post]
func (h *ParticipationHandler) Submit(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var input models.SubmissionInput
	if !bindJSON(c, &input, "submission") {
		return
	}
	event, err := h.service.SubmitProject(c.Request.Context(), c.Param("id"), actor, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}
