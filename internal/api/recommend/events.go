package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/placepal/placepal/internal/types"
)

// EventRecorder is the fire-and-forget audit sink. Failures are logged by
// the caller and never affect the user-facing response.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event types.TurnEvent) error
}

// PGXExec is the subset of pgxpool.Pool the recorder uses.
type PGXExec interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ EventRecorder = (*EventRepository)(nil)

type EventRepository struct {
	pool   PGXExec
	logger *slog.Logger
}

func NewEventRepository(pool PGXExec, logger *slog.Logger) *EventRepository {
	return &EventRepository{pool: pool, logger: logger}
}

func (r *EventRepository) RecordEvent(ctx context.Context, event types.TurnEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	attempts, err := json.Marshal(event.Attempts)
	if err != nil {
		attempts = []byte("[]")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO turn_events (id, session_id, channel, message, intent,
		    decision, mode, result_count, attempts, duration_ms, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		event.ID, event.SessionID, event.Channel, event.Message, string(event.Intent),
		string(event.Decision), event.Mode, event.ResultCount, attempts,
		event.DurationMs, event.ErrorMessage, event.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
			r.logger.WarnContext(ctx, "Event table not provisioned, dropping event")
			return nil
		}
		return fmt.Errorf("insert turn event: %w", err)
	}
	return nil
}
