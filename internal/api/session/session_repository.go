package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/placepal/placepal/app/observability/metrics"
	"github.com/placepal/placepal/internal/types"
)

// PGXPool is the subset of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type PGXPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Repository = (*RepositoryImpl)(nil)

// Repository loads and saves session rows. A store that is not provisioned
// yet (undefined table) degrades to stateless behavior: Load returns nil,
// Save succeeds as a no-op, both with a warning logged. The turn proceeds.
type Repository interface {
	Load(ctx context.Context, id, channel string) (*types.ConversationSession, error)
	Save(ctx context.Context, sess *types.ConversationSession) error
}

type RepositoryImpl struct {
	pool   PGXPool
	logger *slog.Logger
}

func NewRepository(pool PGXPool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{pool: pool, logger: logger}
}

const loadSessionQuery = `
	SELECT id, channel, pending_action, pending_keyword, last_query,
	       last_lat, last_lng, last_radius_meters, next_page_token,
	       pending_since, updated_at
	FROM chat_sessions
	WHERE id = $1 AND channel = $2`

func (r *RepositoryImpl) Load(ctx context.Context, id, channel string) (*types.ConversationSession, error) {
	ctx, span := otel.Tracer("SessionRepository").Start(ctx, "Load", trace.WithAttributes(
		attribute.String("session.id", id),
	))
	defer span.End()

	var sess types.ConversationSession
	err := r.pool.QueryRow(ctx, loadSessionQuery, id, channel).Scan(
		&sess.ID, &sess.Channel, &sess.PendingAction, &sess.PendingKeyword,
		&sess.LastQuery, &sess.LastLat, &sess.LastLng, &sess.LastRadiusMeters,
		&sess.NextPageToken, &sess.PendingSince, &sess.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if isUndefinedTable(err) {
			r.logger.WarnContext(ctx, "Session table not provisioned, continuing stateless", slog.Any("error", err))
			return nil, nil
		}
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Session load failed")
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return &sess, nil
}

const saveSessionQuery = `
	INSERT INTO chat_sessions (id, channel, pending_action, pending_keyword,
	    last_query, last_lat, last_lng, last_radius_meters, next_page_token,
	    pending_since, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id, channel) DO UPDATE SET
	    pending_action = EXCLUDED.pending_action,
	    pending_keyword = EXCLUDED.pending_keyword,
	    last_query = EXCLUDED.last_query,
	    last_lat = EXCLUDED.last_lat,
	    last_lng = EXCLUDED.last_lng,
	    last_radius_meters = EXCLUDED.last_radius_meters,
	    next_page_token = EXCLUDED.next_page_token,
	    pending_since = EXCLUDED.pending_since,
	    updated_at = EXCLUDED.updated_at`

func (r *RepositoryImpl) Save(ctx context.Context, sess *types.ConversationSession) error {
	ctx, span := otel.Tracer("SessionRepository").Start(ctx, "Save", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
	))
	defer span.End()

	_, err := r.pool.Exec(ctx, saveSessionQuery,
		sess.ID, sess.Channel, sess.PendingAction, sess.PendingKeyword,
		sess.LastQuery, sess.LastLat, sess.LastLng, sess.LastRadiusMeters,
		sess.NextPageToken, sess.PendingSince, sess.UpdatedAt,
	)
	if err != nil {
		if isUndefinedTable(err) {
			r.logger.WarnContext(ctx, "Session table not provisioned, skipping save", slog.Any("error", err))
			return nil
		}
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Session save failed")
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// isUndefinedTable matches SQLSTATE 42P01 (undefined_table).
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
