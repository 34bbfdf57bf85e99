package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

func TestGenerateTeamsDropsShellsBelowMin(t *testing.T) {
	shells := []models.Team{{TeamName: "A"}, {TeamName: "B"}, {TeamName: "C", Members: []string{"c1", "c2"}, TeamLead: "gone"}}
	result, err := GenerateTeams(shells, []string{"s1", "s2", "s3", "s4"}, 2, 3, nil)
	require.NoError(t, err)

	require.Len(t, result.Teams, 2)
	assert.Equal(t, "A", result.Teams[0].TeamName)
	assert.Equal(t, []string{"s1", "s4"}, result.Teams[0].Members)
	assert.Equal(t, "s1", result.Teams[0].TeamLead)
	assert.Equal(t, "C", result.Teams[1].TeamName)
	assert.Equal(t, []string{"c1", "c2", "s3"}, result.Teams[1].Members)
	assert.Equal(t, "c1", result.Teams[1].TeamLead)
	assert.Equal(t, []string{"s2"}, result.Unassigned)
	assert.Empty(t, shells[0].Members, "shells must not be mutated")
}

func TestGenerateTeamsLeadIsFirstMember(t *testing.T) {
	shells := []models.Team{{TeamName: "A", Members: []string{"a1", "a2"}, TeamLead: "a2"}}
	result, err := GenerateTeams(shells, []string{"s1"}, 1, 4, nil)
	require.NoError(t, err)

	require.Len(t, result.Teams, 1)
	assert.Equal(t, []string{"a1", "a2", "s1"}, result.Teams[0].Members)
	assert.Equal(t, "a1", result.Teams[0].TeamLead)
	assert.Equal(t, "a2", shells[0].TeamLead)
}

func TestGenerateTeamsUsesShuffle(t *testing.T) {
	reverse := func(ids []string) {
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}
	}
	students := []string{"s1", "s2", "s3", "s4"}
	result, err := GenerateTeams([]models.Team{{TeamName: "A"}, {TeamName: "B"}}, students, 1, 4, reverse)
	require.NoError(t, err)

	assert.Equal(t, []string{"s4", "s2"}, result.Teams[0].Members)
	assert.Equal(t, []string{"s3", "s1"}, result.Teams[1].Members)
	assert.Equal(t, []string{"s1", "s2", "s3", "s4"}, students, "input slice must not be reordered")
	assert.Empty(t, result.Unassigned)
}

func TestGenerateTeamsErrors(t *testing.T) {
	_, err := GenerateTeams(nil, []string{"s1"}, 1, 2, nil)
	requireCode(t, err, appErrors.ErrInsufficientData)

	_, err = GenerateTeams([]models.Team{{TeamName: "A"}}, []string{"s1"}, 0, 2, nil)
	requireCode(t, err, appErrors.ErrValidation)

	_, err = GenerateTeams([]models.Team{{TeamName: "A"}, {TeamName: "B"}}, []string{"s1", "s2", "s3"}, 2, 2, nil)
	requireCode(t, err, appErrors.ErrInsufficientData)
}
