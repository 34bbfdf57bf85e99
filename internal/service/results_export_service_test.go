package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

func TestBuildResultsDataset(t *testing.T) {
	data := BuildResultsDataset(xpScenarioEvent(), DefaultXPConfig())
	require.Equal(t, resultHeaders, data.Headers)
	require.Len(t, data.Rows, 8)
	assert.Equal(t, []string{"winner", "design", "p3", "Design", "", ""}, data.Rows[0])
	assert.Equal(t, []string{"xp", "", "o1", "organizer:50", "50", "0"}, data.Rows[1])
	assert.Equal(t, []string{"xp", "", "p3", "developer:20 participation:10", "30", "1"}, data.Rows[5])
}

func TestResultsExportRendersCSV(t *testing.T) {
	svc, _, _ := newTestEventService(xpScenarioEvent())
	exporter := NewResultsExportService(svc, nil)

	file, err := exporter.Export(context.Background(), "evt-xp", "csv")
	require.NoError(t, err)
	assert.Equal(t, "event_evt-xp_results.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Payload), "record,category,subject,detail,points,wins\n"))
	assert.Contains(t, string(file.Payload), "winner,design,p3,Design,,")
}

func TestResultsExportGuards(t *testing.T) {
	running := eventFixture("evt-run", models.EventStatusInProgress, models.EventFormatIndividual, 10, 11)
	empty := eventFixture("evt-empty", models.EventStatusCompleted, models.EventFormatIndividual, 10, 11)
	svc, _, _ := newTestEventService(running, empty, xpScenarioEvent())
	exporter := NewResultsExportService(svc, nil)
	ctx := context.Background()

	_, err := exporter.Export(ctx, "evt-xp", "docx")
	requireCode(t, err, appErrors.ErrValidation)

	_, err = exporter.Export(ctx, "evt-run", "csv")
	requireCode(t, err, appErrors.ErrInvalidState)

	_, err = exporter.Export(ctx, "evt-empty", "pdf")
	requireCode(t, err, appErrors.ErrInsufficientData)

	file, err := exporter.Export(ctx, "evt-xp", "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "event_evt-xp_results.xlsx", file.Filename)
	assert.NotEmpty(t, file.Payload)
}
