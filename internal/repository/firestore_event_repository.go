package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/noah-isme/eventhub-api/internal/models"
)

const (
	defaultEventsCollection = "events"
	defaultXPCollection     = "xp_data"
)

// FirestoreEventRepository stores events as documents in Cloud Firestore.
type FirestoreEventRepository struct {
	client *firestore.Client
	events string
	xp     string
}

// NewFirestoreEventRepository constructs the repository using the default collection names.
func NewFirestoreEventRepository(client *firestore.Client) *FirestoreEventRepository {
	return &FirestoreEventRepository{client: client, events: defaultEventsCollection, xp: defaultXPCollection}
}

// RunInTx executes fn inside a Firestore transaction. The SDK may invoke fn more than
// once on contention, so fn must derive all state from reads made through tx.
func (r *FirestoreEventRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx EventTx) error) error {
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &firestoreEventTx{repo: r, tx: tx})
	})
}

// GetByID loads an event outside any transaction.
func (r *FirestoreEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	snap, err := r.client.Collection(r.events).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return decodeEventSnapshot(snap)
}

// Create stores a new event document, assigning an ID when absent.
func (r *FirestoreEventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Lifecycle.CreatedAt.IsZero() {
		event.Lifecycle.CreatedAt = time.Now().UTC()
	}
	if _, err := r.client.Collection(r.events).Doc(event.ID).Create(ctx, newEventDocument(event)); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// List returns events matching the filter ordered by start date. Firestore allows a single
// array-contains clause per query, so member lookups run one query per membership array.
func (r *FirestoreEventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	base := r.client.Collection(r.events).Query
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		if len(statuses) == 1 {
			base = base.Where("status", "==", statuses[0])
		} else {
			base = base.Where("status", "in", statuses)
		}
	}
	if filter.RequestedBy != "" {
		base = base.Where("requestedBy", "==", filter.RequestedBy)
	}
	direction := firestore.Asc
	if filter.Descending {
		direction = firestore.Desc
	}

	var queries []firestore.Query
	switch {
	case filter.MemberID != "":
		queries = []firestore.Query{
			base.Where("participants", "array-contains", filter.MemberID),
			base.Where("teamMemberFlatList", "array-contains", filter.MemberID),
		}
	case filter.OrganizerID != "":
		queries = []firestore.Query{base.Where("details.organizers", "array-contains", filter.OrganizerID)}
	default:
		queries = []firestore.Query{base}
	}

	seen := make(map[string]struct{})
	events := make([]models.Event, 0)
	for _, q := range queries {
		q = q.OrderBy("details.date.start", direction)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		iter := q.Documents(ctx)
		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, fmt.Errorf("list events: %w", err)
			}
			if _, ok := seen[snap.Ref.ID]; ok {
				continue
			}
			event, err := decodeEventSnapshot(snap)
			if err != nil {
				iter.Stop()
				return nil, err
			}
			if filter.OrganizerID != "" && !event.IsOrganizer(filter.OrganizerID) {
				continue
			}
			seen[snap.Ref.ID] = struct{}{}
			events = append(events, *event)
		}
		iter.Stop()
	}

	if len(queries) > 1 {
		sortEventsByStart(events, filter.Descending)
		if filter.Limit > 0 && len(events) > filter.Limit {
			events = events[:filter.Limit]
		}
	}
	return events, nil
}

// ExistsPendingRequest reports whether userID already has a Pending request.
func (r *FirestoreEventRepository) ExistsPendingRequest(ctx context.Context, userID string) (bool, error) {
	docs, err := r.client.Collection(r.events).
		Where("requestedBy", "==", userID).
		Where("status", "==", string(models.EventStatusPending)).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return len(docs) > 0, nil
}

// GetXP loads a user's XP record, returning an empty record when none exists.
func (r *FirestoreEventRepository) GetXP(ctx context.Context, uid string) (*models.XPData, error) {
	snap, err := r.client.Collection(r.xp).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &models.XPData{UID: uid}, nil
		}
		return nil, fmt.Errorf("get xp %s: %w", uid, err)
	}
	var data models.XPData
	if err := snap.DataTo(&data); err != nil {
		return nil, fmt.Errorf("decode xp %s: %w", uid, err)
	}
	data.UID = uid
	return &data, nil
}

type firestoreEventTx struct {
	repo *FirestoreEventRepository
	tx   *firestore.Transaction
}

func (t *firestoreEventTx) Get(_ context.Context, id string) (*models.Event, error) {
	snap, err := t.tx.Get(t.repo.client.Collection(t.repo.events).Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("tx get event %s: %w", id, err)
	}
	return decodeEventSnapshot(snap)
}

func (t *firestoreEventTx) Save(_ context.Context, event *models.Event) error {
	ref := t.repo.client.Collection(t.repo.events).Doc(event.ID)
	if err := t.tx.Set(ref, newEventDocument(event)); err != nil {
		return fmt.Errorf("tx save event %s: %w", event.ID, err)
	}
	return nil
}

func (t *firestoreEventTx) IncrementXP(_ context.Context, uid string, delta models.XPDelta) error {
	ref := t.repo.client.Collection(t.repo.xp).Doc(uid)
	if err := t.tx.Set(ref, xpIncrementFields(uid, delta), firestore.MergeAll); err != nil {
		return fmt.Errorf("tx increment xp %s: %w", uid, err)
	}
	return nil
}

// xpIncrementFields builds a merge payload that increments each role together with the total.
func xpIncrementFields(uid string, delta models.XPDelta) map[string]interface{} {
	fields := map[string]interface{}{
		"uid":               uid,
		"totalCalculatedXp": firestore.Increment(delta.Total()),
		"count_wins":        firestore.Increment(delta.Wins),
		"lastUpdatedAt":     firestore.ServerTimestamp,
	}
	for role, points := range delta.Roles {
		if !role.Valid() || points == 0 {
			continue
		}
		fields[role.Field()] = firestore.Increment(points)
	}
	return fields
}

func decodeEventSnapshot(snap *firestore.DocumentSnapshot) (*models.Event, error) {
	var doc eventDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", snap.Ref.ID, err)
	}
	return doc.toModel(snap.Ref.ID)
}

func sortEventsByStart(events []models.Event, descending bool) {
	sort.SliceStable(events, func(i, j int) bool {
		if descending {
			return events[i].Details.Date.Start.After(events[j].Details.Date.Start)
		}
		return events[i].Details.Date.Start.Before(events[j].Details.Date.Start)
	})
}
