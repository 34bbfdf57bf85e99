package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eventhub-api/internal/dto"
	"github.com/noah-isme/eventhub-api/internal/middleware"
	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/internal/service"
)

// apiStub satisfies every handler service interface and records the last call.
type apiStub struct {
	event      *models.Event
	err        error
	lastCall   string
	lastID     string
	lastActor  models.Actor
	lastQuery  dto.EventQuery
	lastCreate dto.CreateEventRequest
	lastReason string
	lastOpen   bool
	lastTeam   string
	lastBallot models.CriteriaBallot
	lastWinner models.Winners
	lastFormat string
	lastStart  time.Time
	unassigned []string
	conflict   service.DateConflictResult
	xp         *models.XPData
	file       *service.ResultsFile
	results    []models.OperationResult
}

func (s *apiStub) done(call, id string, actor models.Actor) (*models.Event, error) {
	s.lastCall, s.lastID, s.lastActor = call, id, actor
	return s.event, s.err
}

func (s *apiStub) Get(_ context.Context, id string) (*models.Event, error) {
	return s.done("Get", id, models.Actor{})
}

func (s *apiStub) List(_ context.Context, query dto.EventQuery) ([]models.Event, error) {
	s.lastCall, s.lastQuery = "List", query
	if s.err != nil {
		return nil, s.err
	}
	return []models.Event{}, nil
}

func (s *apiStub) RequestEvent(_ context.Context, actor models.Actor, req dto.CreateEventRequest) (*models.Event, error) {
	s.lastCreate = req
	return s.done("RequestEvent", "", actor)
}

func (s *apiStub) CreateEvent(_ context.Context, actor models.Actor, req dto.CreateEventRequest) (*models.Event, error) {
	s.lastCreate = req
	return s.done("CreateEvent", "", actor)
}

func (s *apiStub) UpdateEvent(_ context.Context, id string, actor models.Actor, _ dto.UpdateEventRequest) (*models.Event, error) {
	return s.done("UpdateEvent", id, actor)
}

func (s *apiStub) CheckDateConflict(_ context.Context, start, _ time.Time, excludeID string) (service.DateConflictResult, error) {
	s.lastCall, s.lastStart, s.lastID = "CheckDateConflict", start, excludeID
	return s.conflict, s.err
}

func (s *apiStub) Approve(_ context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.done("Approve", id, actor)
}

func (s *apiStub) Reject(_ context.Context, id string, actor models.Actor, reason string) (*models.Event, error) {
	s.lastReason = reason
	return s.done("Reject", id, actor)
}

func (s *apiStub) Start(_ context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.done("Start", id, actor)
}

func (s *apiStub) Complete(_ context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.done("Complete", id, actor)
}

func (s *apiStub) Cancel(_ context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.done("Cancel", id, actor)
}

func (s *apiStub) Close(_ context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.done("Close", id, actor)
}

func (s *apiStub) SetVotingOpen(_ context.Context, id string, actor models.Actor, open bool) (*models.Event, error) {
	s.lastOpen = open
	return s.done("SetVotingOpen", id, actor)
}

func (s *apiStub) Join(_ context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.done("Join", id, actor)
}

func (s *apiStub) Leave(_ context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.done("Leave", id, actor)
}

func (s *apiStub) AddTeam(_ context.Context, id string, actor models.Actor, req dto.AddTeamRequest) (*models.Event, error) {
	s.lastTeam = req.TeamName
	return s.done("AddTeam", id, actor)
}

func (s *apiStub) JoinTeam(_ context.Context, id, teamName string, actor models.Actor) (*models.Event, error) {
	s.lastTeam = teamName
	return s.done("JoinTeam", id, actor)
}

func (s *apiStub) AutoGenerateTeams(_ context.Context, id string, actor models.Actor, _ dto.GenerateTeamsRequest) (*models.Event, []string, error) {
	event, err := s.done("AutoGenerateTeams", id, actor)
	return event, s.unassigned, err
}

func (s *apiStub) SubmitProject(_ context.Context, id string, actor models.Actor, _ models.SubmissionInput) (*models.Event, error) {
	return s.done("SubmitProject", id, actor)
}

func (s *apiStub) SubmitCriteriaVote(_ context.Context, id string, actor models.Actor, ballot models.CriteriaBallot) (*models.Event, error) {
	s.lastBallot = ballot
	return s.done("SubmitCriteriaVote", id, actor)
}

func (s *apiStub) SubmitIndividualWinnerVote(_ context.Context, id string, actor models.Actor, _, _ string) (*models.Event, error) {
	return s.done("SubmitIndividualWinnerVote", id, actor)
}

func (s *apiStub) SubmitOrganizationRating(_ context.Context, id string, actor models.Actor, _ int, _ string) (*models.Event, error) {
	return s.done("SubmitOrganizationRating", id, actor)
}

func (s *apiStub) TallyWinners(_ context.Context, id string) (models.Winners, error) {
	s.lastCall, s.lastID = "TallyWinners", id
	return s.lastWinner, s.err
}

func (s *apiStub) SaveWinners(_ context.Context, id string, actor models.Actor, winners models.Winners) (*models.Event, error) {
	s.lastWinner = winners
	return s.done("SaveWinners", id, actor)
}

func (s *apiStub) ResolveWinners(_ context.Context, id string, actor models.Actor) (*models.Event, error) {
	return s.done("ResolveWinners", id, actor)
}

func (s *apiStub) SubmitManualWinnerSelection(_ context.Context, id string, actor models.Actor, _ map[string]string) (*models.Event, error) {
	return s.done("SubmitManualWinnerSelection", id, actor)
}

func (s *apiStub) GetXP(_ context.Context, uid string) (*models.XPData, error) {
	s.lastCall, s.lastID = "GetXP", uid
	return s.xp, s.err
}

func (s *apiStub) Export(_ context.Context, id, format string) (*service.ResultsFile, error) {
	s.lastCall, s.lastID, s.lastFormat = "Export", id, format
	return s.file, s.err
}

func (s *apiStub) Replay(_ context.Context, actor models.Actor, _ []models.OperationEnvelope) ([]models.OperationResult, error) {
	s.lastCall, s.lastActor = "Replay", actor
	return s.results, s.err
}

// newContext builds a gin test context, optionally authenticated as claims.
func newContext(method, target string, body interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *struct{ Code string } `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(w *httptest.ResponseRecorder) envelope {
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return env
}
