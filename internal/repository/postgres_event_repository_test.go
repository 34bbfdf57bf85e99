package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eventhub-api/internal/models"
)

const legacyEventDocument = `{
  "status": "COMPLETED",
  "details": {"eventName": "Hack Night", "format": "TEAM", "organizers": ["org-1", "org-1"],
    "date": {"start": "2026-01-10T00:00:00Z", "end": "2026-01-12T00:00:00Z"}},
  "requestedBy": "stu-1",
  "teams": [{"teamName": "Alpha", "members": ["u2", "u1"], "teamLead": "u2"}],
  "teamMemberFlatList": ["stale"],
  "criteria": [{"constraintIndex": 0, "constraintKey": "developer", "title": "Best Dev", "xpValue": 20, "votes": null}],
  "organizerRatings": [{"userId": "u1", "rating": 4, "ratedAt": "2026-01-12T10:00:00Z"}],
  "bestPerformerSelections": "oops",
  "winners": {"developer": "Alpha", "best_performer": ["u1", "u2"]},
  "votingOpen": false,
  "lifecycleTimestamps": {"createdAt": "2026-01-01T00:00:00Z"}
}`

func newEventRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPostgresEventRepositoryGetByIDNormalizesDocument(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewPostgresEventRepository(db)
	rows := sqlmock.NewRows([]string{"id", "document"}).AddRow("evt-1", []byte(legacyEventDocument))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document FROM events WHERE id = $1")).
		WithArgs("evt-1").
		WillReturnRows(rows)

	event, err := repo.GetByID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, []string{"org-1"}, event.Details.Organizers)
	assert.Equal(t, []string{"u1", "u2"}, event.TeamMemberFlatList)
	assert.NotNil(t, event.Criteria[0].Votes)
	require.NotNil(t, event.Criteria[0].XPValue)
	assert.Equal(t, 20, *event.Criteria[0].XPValue)
	assert.Equal(t, 4, event.OrganizerRatings["u1"].Rating)
	assert.Empty(t, event.BestPerformerSelections)
	assert.Equal(t, models.Winners{"developer": {"Alpha"}, models.BestPerformerKey: {"u1", "u2"}}, event.Winners)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewPostgresEventRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document FROM events")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrEventNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewPostgresEventRepository(db)
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	event := &models.Event{
		Status:      models.EventStatusPending,
		RequestedBy: "stu-1",
		Details:     models.EventDetails{EventName: "Demo Day", Format: models.EventFormatIndividual, Date: models.DateRange{Start: start, End: start}},
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WithArgs(sqlmock.AnyArg(), "PENDING", "stu-1", start, start, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Lifecycle.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventRepositoryCreateRejectsSecondPendingRequest(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewPostgresEventRepository(db)
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	event := &models.Event{
		Status:      models.EventStatusPending,
		RequestedBy: "stu-1",
		Details:     models.EventDetails{EventName: "Demo Day", Format: models.EventFormatIndividual, Date: models.DateRange{Start: start, End: start}},
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_events_single_pending"})

	err := repo.Create(context.Background(), event)
	require.ErrorIs(t, err, ErrPendingRequestExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewPostgresEventRepository(db)
	rows := sqlmock.NewRows([]string{"id", "document"}).AddRow("evt-1", []byte(legacyEventDocument))
	mock.ExpectQuery(`SELECT id, document FROM events WHERE status IN \(\$1,\$2\) AND .*teamMemberFlatList.* ORDER BY start_date DESC LIMIT 5`).
		WithArgs("APPROVED", "IN_PROGRESS", "u1").
		WillReturnRows(rows)

	events, err := repo.List(context.Background(), models.EventFilter{
		Statuses:   []models.EventStatus{models.EventStatusApproved, models.EventStatusInProgress},
		MemberID:   "u1",
		Descending: true,
		Limit:      5,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventRepositoryExistsPendingRequest(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewPostgresEventRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM events WHERE requested_by = $1 AND status = $2)")).
		WithArgs("stu-1", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsPendingRequest(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventRepositoryRunInTxCommitsSaveAndXP(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewPostgresEventRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document FROM events WHERE id = $1 FOR UPDATE")).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document"}).AddRow("evt-1", []byte(legacyEventDocument)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status = $1")).
		WithArgs("CLOSED", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO xp_data")).
		WithArgs("u1", 30, 20, 0, 0, 0, 0, 0, 10, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), func(ctx context.Context, tx EventTx) error {
		event, err := tx.Get(ctx, "evt-1")
		if err != nil {
			return err
		}
		event.Status = models.EventStatusClosed
		if err := tx.Save(ctx, event); err != nil {
			return err
		}
		delta := models.XPDelta{Wins: 1}
		delta.Add(models.XPRoleDeveloper, 20)
		delta.Add(models.XPRoleParticipation, 10)
		return tx.IncrementXP(ctx, "u1", delta)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventRepositoryRunInTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewPostgresEventRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document FROM events WHERE id = $1 FOR UPDATE")).
		WithArgs("evt-9").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.RunInTx(context.Background(), func(ctx context.Context, tx EventTx) error {
		_, err := tx.Get(ctx, "evt-9")
		return err
	})
	require.True(t, errors.Is(err, ErrEventNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventRepositoryGetXPMissingReturnsEmptyRecord(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	repo := NewPostgresEventRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT uid, total_calculated_xp")).
		WithArgs("u7").
		WillReturnError(sql.ErrNoRows)

	data, err := repo.GetXP(context.Background(), "u7")
	require.NoError(t, err)
	assert.Equal(t, "u7", data.UID)
	assert.Zero(t, data.TotalCalculatedXP)
	require.NoError(t, mock.ExpectationsWereMet())
}
