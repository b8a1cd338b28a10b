package eventrepository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Amund211/canchas/internal/domain"
	"github.com/Amund211/canchas/internal/reporting"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Postgres struct {
	db     *sqlx.DB
	schema string
	tracer trace.Tracer
	idFunc func() uuid.UUID
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	tracer := otel.Tracer("canchas/eventrepository/postgres")
	return &Postgres{
		db:     db,
		schema: schema,
		tracer: tracer,
		idFunc: uuid.New,
	}
}

type dbEvent struct {
	ID         string    `db:"id"`
	EventType  string    `db:"event_type"`
	ClubID     int       `db:"club_id"`
	CourtID    *int      `db:"court_id"`
	Payload    []byte    `db:"payload"`
	ReceivedAt time.Time `db:"received_at"`
}

func (p *Postgres) StoreEvent(ctx context.Context, event domain.Event, receivedAt time.Time) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreEvent")
	defer span.End()

	row, err := toDBEvent(p.idFunc(), event, receivedAt)
	if err != nil {
		reporting.Report(ctx, err, map[string]string{
			"eventType": string(event.Type()),
		})
		return err
	}

	_, err = p.db.NamedExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s.events
		(id, event_type, club_id, court_id, payload, received_at)
		VALUES (:id, :event_type, :club_id, :court_id, :payload, :received_at)`,
			pq.QuoteIdentifier(p.schema)),
		row,
	)
	if err != nil {
		err := fmt.Errorf("failed to insert event: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"eventType": row.EventType,
			"clubID":    fmt.Sprintf("%d", row.ClubID),
		})
		return err
	}

	return nil
}

func (p *Postgres) RecentEvents(ctx context.Context, limit int) ([]domain.JournaledEvent, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.RecentEvents")
	defer span.End()

	if limit <= 0 || limit > MaxRecentEvents {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	var rows []dbEvent
	err := p.db.SelectContext(
		ctx,
		&rows,
		fmt.Sprintf(`SELECT id, event_type, club_id, court_id, payload, received_at
		FROM %s.events
		ORDER BY received_at DESC, id
		LIMIT $1`,
			pq.QuoteIdentifier(p.schema)),
		limit,
	)
	if err != nil {
		err := fmt.Errorf("failed to select events: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}

	events := make([]domain.JournaledEvent, 0, len(rows))
	for _, row := range rows {
		event, err := fromDBEvent(row)
		if err != nil {
			reporting.Report(ctx, err, map[string]string{
				"eventID": row.ID,
			})
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}

func toDBEvent(id uuid.UUID, event domain.Event, receivedAt time.Time) (dbEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return dbEvent{}, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	clubID, courtID := domain.EventTarget(event)

	row := dbEvent{
		ID:         id.String(),
		EventType:  string(event.Type()),
		ClubID:     clubID,
		CourtID:    nil,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}
	if courtID != 0 {
		row.CourtID = &courtID
	}
	return row, nil
}

func fromDBEvent(row dbEvent) (domain.JournaledEvent, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return domain.JournaledEvent{}, fmt.Errorf("failed to parse event id: %w", err)
	}

	courtID := 0
	if row.CourtID != nil {
		courtID = *row.CourtID
	}

	return domain.JournaledEvent{
		ID:         id,
		Type:       domain.EventType(row.EventType),
		ClubID:     row.ClubID,
		CourtID:    courtID,
		Payload:    json.RawMessage(row.Payload),
		ReceivedAt: row.ReceivedAt,
	}, nil
}
