package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

// MaxReplayBatch bounds how many queued operations a client may replay in one call.
const MaxReplayBatch = 100

// OperationDispatcher replays operations queued by offline clients against the event service.
type OperationDispatcher struct {
	events  *EventService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewOperationDispatcher constructs the dispatcher.
func NewOperationDispatcher(events *EventService, metrics *MetricsService, logger *zap.Logger) *OperationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationDispatcher{events: events, metrics: metrics, logger: logger}
}

// Replay applies envelopes in order on behalf of actor. A failing operation does not stop the
// batch; its result carries the error code instead.
func (d *OperationDispatcher) Replay(ctx context.Context, actor models.Actor, envelopes []models.OperationEnvelope) ([]models.OperationResult, error) {
	if len(envelopes) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no operations to replay")
	}
	if len(envelopes) > MaxReplayBatch {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d operations can be replayed at once", MaxReplayBatch))
	}

	results := make([]models.OperationResult, 0, len(envelopes))
	for _, envelope := range envelopes {
		result := models.OperationResult{ID: envelope.ID, Kind: envelope.Kind}
		op, err := envelope.Decode()
		if err == nil {
			err = d.Dispatch(ctx, actor, op)
		} else {
			err = appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		if err != nil {
			appErr := appErrors.FromError(err)
			result.Code = appErr.Code
			result.Message = appErr.Message
			d.logger.Debug("operation replay rejected",
				zap.String("operation_id", envelope.ID),
				zap.String("kind", string(envelope.Kind)),
				zap.String("code", appErr.Code))
		} else {
			result.Applied = true
		}
		d.metrics.RecordOperationReplay(envelope.Kind, result.Applied)
		results = append(results, result)
	}
	return results, nil
}

// Dispatch runs one typed operation.
func (d *OperationDispatcher) Dispatch(ctx context.Context, actor models.Actor, op models.Operation) error {
	var err error
	switch o := op.(type) {
	case *models.JoinEventOperation:
		_, err = d.events.Join(ctx, o.EventID, actor)
	case *models.LeaveEventOperation:
		_, err = d.events.Leave(ctx, o.EventID, actor)
	case *models.JoinTeamOperation:
		_, err = d.events.JoinTeam(ctx, o.EventID, o.TeamName, actor)
	case *models.SubmitProjectOperation:
		_, err = d.events.SubmitProject(ctx, o.EventID, actor, o.Submission)
	case *models.SubmitCriteriaVoteOperation:
		_, err = d.events.SubmitCriteriaVote(ctx, o.EventID, actor, o.Ballot)
	case *models.SubmitIndividualVoteOperation:
		_, err = d.events.SubmitIndividualWinnerVote(ctx, o.EventID, actor, o.CriterionKey, o.ParticipantID)
	case *models.SubmitRatingOperation:
		_, err = d.events.SubmitOrganizationRating(ctx, o.EventID, actor, o.Rating, o.Feedback)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported operation %T", op))
	}
	return err
}
