package service

import (
	"fmt"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

// TeamGenerationResult is the outcome of distributing students over team shells.
type TeamGenerationResult struct {
	Teams      []models.Team
	Unassigned []string
}

// GenerateTeams shuffles students and deals them round-robin into the shells, skipping shells
// already at max. Shells that end below min are dropped and their members returned as
// unassigned. Each surviving team is led by the first member of its final roster.
func GenerateTeams(shells []models.Team, students []string, minSize, maxSize int, shuffle func([]string)) (TeamGenerationResult, error) {
	if minSize < 1 || maxSize < minSize {
		return TeamGenerationResult{}, appErrors.Clone(appErrors.ErrValidation, "team size bounds must satisfy 1 <= min <= max")
	}
	if len(shells) == 0 {
		return TeamGenerationResult{}, appErrors.Clone(appErrors.ErrInsufficientData, "at least one team shell is required")
	}

	existing := 0
	teams := make([]models.Team, len(shells))
	for i, shell := range shells {
		teams[i] = models.Team{TeamName: shell.TeamName, TeamLead: shell.TeamLead, Members: append([]string(nil), shell.Members...)}
		existing += len(shell.Members)
	}
	if existing+len(students) < minSize*len(teams) {
		return TeamGenerationResult{}, appErrors.Clone(appErrors.ErrInsufficientData,
			fmt.Sprintf("%d students cannot fill %d teams of at least %d", existing+len(students), len(teams), minSize))
	}

	pool := append([]string(nil), students...)
	if shuffle != nil {
		shuffle(pool)
	}

	unassigned := make([]string, 0)
	next := 0
	for _, student := range pool {
		placed := false
		for attempts := 0; attempts < len(teams); attempts++ {
			idx := (next + attempts) % len(teams)
			if len(teams[idx].Members) < maxSize {
				teams[idx].Members = append(teams[idx].Members, student)
				next = idx + 1
				placed = true
				break
			}
		}
		if !placed {
			unassigned = append(unassigned, student)
		}
	}

	kept := make([]models.Team, 0, len(teams))
	for _, team := range teams {
		if len(team.Members) < minSize {
			unassigned = append(unassigned, team.Members...)
			continue
		}
		team.TeamLead = team.Members[0]
		kept = append(kept, team)
	}
	return TeamGenerationResult{Teams: kept, Unassigned: unassigned}, nil
}
