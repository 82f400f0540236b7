package session

import (
	"context"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placepal/placepal/internal/types"
)

func TestRepositoryLoad(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("Found", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		updatedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		pendingAction := types.PendingActionRecommendPlaces
		pendingKeyword := "ramen"
		pendingSince := updatedAt.Add(-time.Minute)

		rows := pgxmock.NewRows([]string{
			"id", "channel", "pending_action", "pending_keyword", "last_query",
			"last_lat", "last_lng", "last_radius_meters", "next_page_token",
			"pending_since", "updated_at",
		}).AddRow(
			"s1", "web", &pendingAction, &pendingKeyword, "ramen",
			(*float64)(nil), (*float64)(nil), 0, (*string)(nil),
			&pendingSince, updatedAt,
		)
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM chat_sessions")).
			WithArgs("s1", "web").
			WillReturnRows(rows)

		repo := NewRepository(mockPool, logger)
		sess, err := repo.Load(ctx, "s1", "web")

		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, "s1", sess.ID)
		require.NotNil(t, sess.PendingKeyword)
		assert.Equal(t, "ramen", *sess.PendingKeyword)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFoundReturnsNil", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectQuery(regexp.QuoteMeta("FROM chat_sessions")).
			WithArgs("missing", "web").
			WillReturnRows(pgxmock.NewRows([]string{"id"}))

		repo := NewRepository(mockPool, logger)
		sess, err := repo.Load(ctx, "missing", "web")

		assert.NoError(t, err)
		assert.Nil(t, sess)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UndefinedTableDegradesToStateless", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectQuery(regexp.QuoteMeta("FROM chat_sessions")).
			WithArgs("s1", "web").
			WillReturnError(&pgconn.PgError{Code: "42P01"})

		repo := NewRepository(mockPool, logger)
		sess, err := repo.Load(ctx, "s1", "web")

		assert.NoError(t, err)
		assert.Nil(t, sess)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("OtherErrorsPropagate", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectQuery(regexp.QuoteMeta("FROM chat_sessions")).
			WithArgs("s1", "web").
			WillReturnError(&pgconn.PgError{Code: "57014"})

		repo := NewRepository(mockPool, logger)
		_, err = repo.Load(ctx, "s1", "web")

		assert.Error(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepositorySave(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	sess := &types.ConversationSession{
		ID:        "s1",
		Channel:   "web",
		LastQuery: "sushi",
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("Upsert", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_sessions")).
			WithArgs(sess.ID, sess.Channel, sess.PendingAction, sess.PendingKeyword,
				sess.LastQuery, sess.LastLat, sess.LastLng, sess.LastRadiusMeters,
				sess.NextPageToken, sess.PendingSince, sess.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewRepository(mockPool, logger)
		assert.NoError(t, repo.Save(ctx, sess))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UndefinedTableIsANoOp", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_sessions")).
			WithArgs(sess.ID, sess.Channel, sess.PendingAction, sess.PendingKeyword,
				sess.LastQuery, sess.LastLat, sess.LastLng, sess.LastRadiusMeters,
				sess.NextPageToken, sess.PendingSince, sess.UpdatedAt).
			WillReturnError(&pgconn.PgError{Code: "42P01"})

		repo := NewRepository(mockPool, logger)
		assert.NoError(t, repo.Save(ctx, sess))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
