package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eventhub-api/internal/middleware"
	"github.com/noah-isme/eventhub-api/internal/models"
)

// Routes groups the handlers and guards mounted under the API prefix.
type Routes struct {
	Events        *EventHandler
	Participation *ParticipationHandler
	Voting        *VotingHandler
	Results       *ResultsHandler
	Verifier      middleware.TokenVerifier
	// BallotLimit throttles ballot, rating and replay writes. Nil disables it.
	BallotLimit gin.HandlerFunc
}

// Register mounts every API route on group.
func (rt Routes) Register(group *gin.RouterGroup) {
	authed := group.Group("", middleware.Auth(rt.Verifier))
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	limited := authed.Group("")
	if rt.BallotLimit != nil {
		limited.Use(rt.BallotLimit)
	}

	events := authed.Group("/events")
	events.GET("", rt.Events.List)
	events.POST("", adminOnly, rt.Events.Create)
	events.POST("/requests", rt.Events.Request)
	events.GET("/conflicts", rt.Events.Conflicts)
	events.GET("/:id", rt.Events.Get)
	events.PATCH("/:id", rt.Events.Update)
	events.POST("/:id/approve", adminOnly, rt.Events.Approve)
	events.POST("/:id/reject", adminOnly, rt.Events.Reject)
	events.POST("/:id/start", rt.Events.Start)
	events.POST("/:id/complete", rt.Events.Complete)
	events.POST("/:id/cancel", rt.Events.Cancel)
	events.POST("/:id/close", rt.Events.Close)
	events.POST("/:id/voting", rt.Events.SetVoting)

	events.POST("/:id/join", rt.Participation.Join)
	events.POST("/:id/leave", rt.Participation.Leave)
	events.POST("/:id/teams", rt.Participation.AddTeam)
	events.POST("/:id/teams/generate", rt.Participation.GenerateTeams)
	events.POST("/:id/teams/:team/join", rt.Participation.JoinTeam)
	events.POST("/:id/submissions", rt.Participation.Submit)

	events.GET("/:id/winners/tally", rt.Voting.Tally)
	events.POST("/:id/winners", rt.Voting.SaveWinners)
	events.POST("/:id/winners/resolve", rt.Voting.Resolve)
	events.POST("/:id/winners/manual", rt.Voting.Manual)
	events.GET("/:id/results", rt.Results.Export)

	ballots := limited.Group("/events/:id")
	ballots.POST("/votes/criteria", rt.Voting.CriteriaVote)
	ballots.POST("/votes/individual", rt.Voting.IndividualVote)
	ballots.POST("/ratings", rt.Voting.Rate)

	authed.GET("/xp/:uid", middleware.RequireRoleOrSelf(models.RoleAdmin), rt.Results.XP)
	limited.POST("/operations/replay", rt.Results.Replay)
}
