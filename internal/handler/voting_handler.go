package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eventhub-api/internal/dto"
	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/pkg/response"
)

type votingService interface {
	SubmitCriteriaVote(ctx context.Context, id string, actor models.Actor, ballot models.CriteriaBallot) (*models.Event, error)
	SubmitIndividualWinnerVote(ctx context.Context, id string, actor models.Actor, criterionKey, participantID string) (*models.Event, error)
	SubmitOrganizationRating(ctx context.Context, id string, actor models.Actor, rating int, feedback string) (*models.Event, error)
	TallyWinners(ctx context.Context, id string) (models.Winners, error)
	SaveWinners(ctx context.Context, id string, actor models.Actor, winners models.Winners) (*models.Event, error)
	ResolveWinners(ctx context.Context, id string, actor models.Actor) (*models.Event, error)
	SubmitManualWinnerSelection(ctx context.Context, id string, actor models.Actor, selections map[string]string) (*models.Event, error)
}

// VotingHandler exposes ballots, ratings and winner resolution.
type VotingHandler struct {
	service votingService
}

// NewVotingHandler builds a new handler.
func NewVotingHandler(service votingService) *VotingHandler {
	return &VotingHandler{service: service}
}

// CriteriaVote godoc
// @Summary Cast a criteria ballot
// @Tags Voting
// @Accept json
// @Param id path string true "Event ID"
// @Param payload body models.CriteriaBallot true "Ballot"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/votes/criteria [post]
func (h *VotingHandler) CriteriaVote(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var ballot models.CriteriaBallot
	if !bindJSON(c, &ballot, "ballot") {
		return
	}
	event, err := h.service.SubmitCriteriaVote(c.Request.Context(), c.Param("id"), actor, ballot)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// IndividualVote godoc
// @Summary Vote for a participant in one criterion
// @Tags Voting
// @Accept json
// @Param id path string true "Event ID"
// @Param payload body dto.IndividualVoteRequest true "Ballot"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/votes/individual [post]
func (h *VotingHandler) IndividualVote(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.IndividualVoteRequest
	if !bindJSON(c, &req, "ballot") {
		return
	}
	event, err := h.service.SubmitIndividualWinnerVote(c.Request.Context(), c.Param("id"), actor, req.CriterionKey, req.ParticipantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Rate godoc
// @Summary Rate the event organisation
// @Tags Voting
// @Accept json
// @Param id path string true "Event ID"
// @Param payload body dto.RatingRequest true "Rating"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/ratings [post]
func (h *VotingHandler) Rate(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.RatingRequest
	if !bindJSON(c, &req, "rating") {
		return
	}
	event, err := h.service.SubmitOrganizationRating(c.Request.Context(), c.Param("id"), actor, req.Rating, req.Feedback)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Tally godoc
// @Summary Preview winners computed from the ballots
// @Tags Winners
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/winners/tally [get]
func (h *VotingHandler) Tally(c *gin.Context) {
	winners, err := h.service.TallyWinners(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, winners, nil)
}

// SaveWinners godoc
// @Summary Persist a winners map
// @Tags Winners
// @Accept json
// @Param id path string true "Event ID"
// @Param payload body dto.WinnersRequest true "Winners"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/winners [post]
func (h *VotingHandler) SaveWinners(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.WinnersRequest
	if !bindJSON(c, &req, "winners") {
		return
	}
	event, err := h.service.SaveWinners(c.Request.Context(), c.Param("id"), actor, req.Winners)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Resolve godoc
// @Summary Persist the tally as winners and close voting
// @Tags Winners
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/winners/resolve [post]
func (h *VotingHandler) Resolve(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	event, err := h.service.ResolveWinners(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Manual godoc
// @Summary Override winners with one pick per criterion
// @Tags Winners
// @Accept json
// @Param id path string true "Event ID"
// @Param payload body dto.ManualWinnersRequest true "Selections"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/winners/manual [post]
func (h *VotingHandler) Manual(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.ManualWinnersRequest
	if !bindJSON(c, &req, "manual winners") {
		return
	}
	event, err := h.service.SubmitManualWinnerSelection(c.Request.Context(), c.Param("id"), actor, req.Selections)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}
