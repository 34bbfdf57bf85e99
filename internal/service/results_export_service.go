package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
	"github.com/noah-isme/eventhub-api/pkg/export"
)

var resultHeaders = []string{"record", "category", "subject", "detail", "points", "wins"}

// ResultsFile is a rendered results export.
type ResultsFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ResultsExportService renders the winners and XP awards of a finished event.
type ResultsExportService struct {
	events *EventService
	xp     XPConfig
	logger *zap.Logger
}

// NewResultsExportService constructs the exporter service.
func NewResultsExportService(events *EventService, logger *zap.Logger) *ResultsExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsExportService{events: events, xp: events.xp, logger: logger}
}

// Export renders the results of event id in format (csv, pdf or xlsx).
func (s *ResultsExportService) Export(ctx context.Context, id, format string) (*ResultsFile, error) {
	exporter, err := export.New(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	event, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.Status.In(models.EventStatusCompleted, models.EventStatusClosed) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("results are not available while the event is %s", event.Status))
	}
	if event.Winners.IsEmpty() {
		return nil, appErrors.Clone(appErrors.ErrInsufficientData, "winners have not been resolved yet")
	}

	var buf bytes.Buffer
	if err := exporter.Write(&buf, BuildResultsDataset(event, s.xp)); err != nil {
		s.logger.Error("failed to render results", zap.String("event_id", id), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to render results")
	}
	return &ResultsFile{
		Filename:    fmt.Sprintf("event_%s_results.%s", id, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Payload:     buf.Bytes(),
	}, nil
}

// BuildResultsDataset lists one row per winner followed by one row per XP award.
func BuildResultsDataset(event *models.Event, cfg XPConfig) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("%s results", event.Details.EventName),
		Headers: resultHeaders,
	}
	for _, key := range event.Winners.Keys() {
		title := "Best performer"
		if idx := event.FindCriterion(key); idx >= 0 {
			title = event.Criteria[idx].Title
		}
		for _, winner := range event.Winners[key] {
			data.Rows = append(data.Rows, []string{"winner", key, winner, title, "", ""})
		}
	}

	deltas := CalculateEventXP(event, cfg)
	users := make([]string, 0, len(deltas))
	for uid := range deltas {
		users = append(users, uid)
	}
	sort.Strings(users)
	for _, uid := range users {
		delta := deltas[uid]
		data.Rows = append(data.Rows, []string{
			"xp", "", uid, describeRoles(delta),
			strconv.Itoa(delta.Total()), strconv.Itoa(delta.Wins),
		})
	}
	return data
}

func describeRoles(delta models.XPDelta) string {
	parts := make([]string, 0, len(delta.Roles))
	for _, role := range models.XPRoles {
		if points, ok := delta.Roles[role]; ok {
			parts = append(parts, fmt.Sprintf("%s:%d", role, points))
		}
	}
	return strings.Join(parts, " ")
}
