package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/eventhub-api/internal/models"
)

const (
	uniqueViolation    = pq.ErrorCode("23505")
	singlePendingIndex = "idx_events_single_pending"
)

// PostgresEventRepository keeps event documents in a JSONB column and XP records in xp_data.
//
//	CREATE TABLE events (
//	  id TEXT PRIMARY KEY, status TEXT NOT NULL, requested_by TEXT NOT NULL,
//	  start_date TIMESTAMPTZ NOT NULL, end_date TIMESTAMPTZ NOT NULL, document JSONB NOT NULL,
//	  created_at TIMESTAMPTZ NOT NULL, updated_at TIMESTAMPTZ NOT NULL);
type PostgresEventRepository struct {
	db *sqlx.DB
}

// NewPostgresEventRepository constructs the repository.
func NewPostgresEventRepository(db *sqlx.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

type eventRow struct {
	ID       string `db:"id"`
	Document []byte `db:"document"`
}

func (row eventRow) toModel() (*models.Event, error) {
	var doc eventDocument
	if err := json.Unmarshal(row.Document, &doc); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", row.ID, err)
	}
	return doc.toModel(row.ID)
}

// RunInTx executes fn inside a database transaction, locking each event row it reads.
func (r *PostgresEventRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx EventTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, &postgresEventTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit event transaction: %w", err)
	}
	return nil
}

// GetByID loads an event outside any transaction.
func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	const query = `SELECT id, document FROM events WHERE id = $1`
	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return row.toModel()
}

// Create inserts a new event row.
func (r *PostgresEventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.Lifecycle.CreatedAt.IsZero() {
		event.Lifecycle.CreatedAt = now
	}
	payload, err := json.Marshal(newEventDocument(event))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	const query = `INSERT INTO events (id, status, requested_by, start_date, end_date, document, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	if _, err := r.db.ExecContext(ctx, query, event.ID, string(event.Status), event.RequestedBy,
		event.Details.Date.Start, event.Details.Date.End, payload, now); err != nil {
		if isPendingConflict(err) {
			return ErrPendingRequestExists
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// List returns events matching the filter ordered by start date.
func (r *PostgresEventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT id, document FROM events`)

	conditions := make([]string, 0, 4)
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	if filter.OrganizerID != "" {
		args = append(args, filter.OrganizerID)
		conditions = append(conditions, fmt.Sprintf("document->'details'->'organizers' @> jsonb_build_array($%d::text)", len(args)))
	}
	if filter.MemberID != "" {
		args = append(args, filter.MemberID)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(document->'participants' @> jsonb_build_array($%d::text) OR document->'teamMemberFlatList' @> jsonb_build_array($%d::text))", n, n))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	if filter.Descending {
		builder.WriteString(" ORDER BY start_date DESC")
	} else {
		builder.WriteString(" ORDER BY start_date ASC")
	}
	if filter.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, nil
}

// ExistsPendingRequest reports whether userID already has a Pending request.
func (r *PostgresEventRepository) ExistsPendingRequest(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM events WHERE requested_by = $1 AND status = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, string(models.EventStatusPending)); err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return exists, nil
}

// GetXP loads a user's XP record, returning an empty record when none exists.
func (r *PostgresEventRepository) GetXP(ctx context.Context, uid string) (*models.XPData, error) {
	const query = `SELECT uid, total_calculated_xp, xp_developer, xp_presenter, xp_designer, xp_organizer,
       xp_problem_solver, xp_best_performer, xp_participation, count_wins, last_updated_at
	FROM xp_data WHERE uid = $1`
	var data models.XPData
	if err := r.db.GetContext(ctx, &data, query, uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.XPData{UID: uid}, nil
		}
		return nil, fmt.Errorf("get xp %s: %w", uid, err)
	}
	return &data, nil
}

type postgresEventTx struct {
	tx *sqlx.Tx
}

func (t *postgresEventTx) Get(ctx context.Context, id string) (*models.Event, error) {
	const query = `SELECT id, document FROM events WHERE id = $1 FOR UPDATE`
	var row eventRow
	if err := t.tx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("lock event %s: %w", id, err)
	}
	return row.toModel()
}

func (t *postgresEventTx) Save(ctx context.Context, event *models.Event) error {
	payload, err := json.Marshal(newEventDocument(event))
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	const query = `UPDATE events SET status = $1, start_date = $2, end_date = $3, document = $4, updated_at = $5 WHERE id = $6`
	result, err := t.tx.ExecContext(ctx, query, string(event.Status), event.Details.Date.Start, event.Details.Date.End,
		payload, time.Now().UTC(), event.ID)
	if err != nil {
		if isPendingConflict(err) {
			return ErrPendingRequestExists
		}
		return fmt.Errorf("save event %s: %w", event.ID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (t *postgresEventTx) IncrementXP(ctx context.Context, uid string, delta models.XPDelta) error {
	const query = `INSERT INTO xp_data (uid, total_calculated_xp, xp_developer, xp_presenter, xp_designer, xp_organizer,
       xp_problem_solver, xp_best_performer, xp_participation, count_wins, last_updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (uid) DO UPDATE SET
	  total_calculated_xp = xp_data.total_calculated_xp + EXCLUDED.total_calculated_xp,
	  xp_developer = xp_data.xp_developer + EXCLUDED.xp_developer,
	  xp_presenter = xp_data.xp_presenter + EXCLUDED.xp_presenter,
	  xp_designer = xp_data.xp_designer + EXCLUDED.xp_designer,
	  xp_organizer = xp_data.xp_organizer + EXCLUDED.xp_organizer,
	  xp_problem_solver = xp_data.xp_problem_solver + EXCLUDED.xp_problem_solver,
	  xp_best_performer = xp_data.xp_best_performer + EXCLUDED.xp_best_performer,
	  xp_participation = xp_data.xp_participation + EXCLUDED.xp_participation,
	  count_wins = xp_data.count_wins + EXCLUDED.count_wins,
	  last_updated_at = EXCLUDED.last_updated_at`
	if _, err := t.tx.ExecContext(ctx, query, uid, delta.Total(),
		delta.Roles[models.XPRoleDeveloper],
		delta.Roles[models.XPRolePresenter],
		delta.Roles[models.XPRoleDesigner],
		delta.Roles[models.XPRoleOrganizer],
		delta.Roles[models.XPRoleProblemSolver],
		delta.Roles[models.XPRoleBestPerformer],
		delta.Roles[models.XPRoleParticipation],
		delta.Wins,
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("increment xp %s: %w", uid, err)
	}
	return nil
}

func isPendingConflict(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == singlePendingIndex
}
