package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/placepal/placepal/internal/types"
)

// PGXPool is the subset of pgxpool.Pool this repository uses.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ PGXPool = (*pgxpool.Pool)(nil)

var _ Repository = (*RepositoryImpl)(nil)

// Repository stores community feedback and serves the per-place aggregates
// the ranking engine folds in as a boost. A missing table degrades to empty
// aggregates; community data is an enhancement, never a dependency.
type Repository interface {
	Add(ctx context.Context, input types.FeedbackInput) error
	Aggregates(ctx context.Context, placeIDs []string) (map[string]types.CommunitySignal, error)
}

type RepositoryImpl struct {
	pool   PGXPool
	logger *slog.Logger
}

func NewRepository(pool PGXPool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{pool: pool, logger: logger}
}

func (r *RepositoryImpl) Add(ctx context.Context, input types.FeedbackInput) error {
	ctx, span := otel.Tracer("FeedbackRepository").Start(ctx, "Add", trace.WithAttributes(
		attribute.String("place.id", input.PlaceID),
	))
	defer span.End()

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO place_feedback (place_id, place_name, rating, comment, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		input.PlaceID, input.PlaceName, input.Rating, input.Comment, input.SessionID, createdAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Feedback insert failed")
		return fmt.Errorf("insert feedback for %s: %w", input.PlaceID, err)
	}
	return nil
}

func (r *RepositoryImpl) Aggregates(ctx context.Context, placeIDs []string) (map[string]types.CommunitySignal, error) {
	ctx, span := otel.Tracer("FeedbackRepository").Start(ctx, "Aggregates", trace.WithAttributes(
		attribute.Int("place.count", len(placeIDs)),
	))
	defer span.End()

	out := make(map[string]types.CommunitySignal, len(placeIDs))
	if len(placeIDs) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT place_id, AVG(rating), COUNT(*)
		FROM place_feedback
		WHERE place_id = ANY($1)
		GROUP BY place_id`,
		placeIDs,
	)
	if err != nil {
		if isUndefinedTable(err) {
			r.logger.WarnContext(ctx, "Feedback table not provisioned, ranking without community signal", slog.Any("error", err))
			return out, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Feedback aggregate query failed")
		return nil, fmt.Errorf("query feedback aggregates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var placeID string
		var sig types.CommunitySignal
		if err := rows.Scan(&placeID, &sig.AvgRating, &sig.Count); err != nil {
			return nil, fmt.Errorf("scan feedback aggregate: %w", err)
		}
		out[placeID] = sig
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback aggregates: %w", err)
	}
	return out, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
