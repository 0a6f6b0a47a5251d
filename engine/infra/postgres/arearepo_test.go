package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/hookline/engine/area"
	"github.com/hookline/hookline/engine/core"
)

func TestAreaRepo_ListAll(t *testing.T) {
	t.Run("Should list every stored area", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewAreaRepo(mockPool)

		now := time.Now().UTC()
		trigKind := "time_trigger"
		rows := mockPool.NewRows(areaColumns).
			AddRow(
				core.ID("area-1"), core.ID("user-1"), "time_action", "print_reaction",
				&trigKind,
				core.Params{}, core.Params{}, core.Params{"interval": float64(5)},
				now, now,
			).
			AddRow(
				core.ID("area-2"), core.ID("user-2"), "new_push", "send_message",
				(*string)(nil),
				core.Params{"repo": "octo/hello"}, core.Params{"channel_id": "42"}, core.Params{},
				now, now,
			)
		mockPool.ExpectQuery("SELECT (.+) FROM areas ORDER BY created_at, id").
			WillReturnRows(rows)

		areas, err := repo.ListAll(context.Background())
		require.NoError(t, err)
		require.Len(t, areas, 2)
		assert.Equal(t, core.ID("area-1"), areas[0].ID)
		assert.Equal(t, "time_trigger", areas[0].TriggerKind)
		assert.True(t, areas[0].Schedulable())
		assert.Equal(t, "", areas[1].TriggerKind)
		assert.False(t, areas[1].Schedulable())
		assert.Equal(t, core.Params{"repo": "octo/hello"}, areas[1].ActionConfig)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should return an empty slice for an empty table", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewAreaRepo(mockPool)

		mockPool.ExpectQuery("SELECT (.+) FROM areas").
			WillReturnRows(mockPool.NewRows(areaColumns))

		areas, err := repo.ListAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, areas)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestAreaRepo_Get(t *testing.T) {
	t.Run("Should fetch one area by id", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewAreaRepo(mockPool)

		now := time.Now().UTC()
		trigKind := "new_push"
		rows := mockPool.NewRows(areaColumns).
			AddRow(
				core.ID("area-1"), core.ID("user-1"), "new_push", "create_issue",
				&trigKind,
				core.Params{}, core.Params{"repository": "octo/hello"}, core.Params{"repo": "octo/hello"},
				now, now,
			)
		mockPool.ExpectQuery(`SELECT (.+) FROM areas WHERE id = \$1`).
			WithArgs(core.ID("area-1")).
			WillReturnRows(rows)

		got, err := repo.Get(context.Background(), "area-1")
		require.NoError(t, err)
		assert.Equal(t, "create_issue", got.ReactionKind)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should wrap missing rows in the not found sentinel", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewAreaRepo(mockPool)

		mockPool.ExpectQuery(`SELECT (.+) FROM areas WHERE id = \$1`).
			WithArgs(core.ID("ghost")).
			WillReturnRows(mockPool.NewRows(areaColumns))

		_, err = repo.Get(context.Background(), "ghost")
		require.ErrorIs(t, err, area.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestAreaRepo_Upsert(t *testing.T) {
	t.Run("Should insert with conflict update on id", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewAreaRepo(mockPool)

		a := &area.Area{
			ID:             "area-1",
			UserID:         "user-1",
			ActionKind:     "time_action",
			ReactionKind:   "print_reaction",
			TriggerKind:    "time_trigger",
			ActionConfig:   core.Params{},
			ReactionConfig: core.Params{},
			TriggerConfig:  core.Params{"interval": 5},
		}
		mockPool.ExpectExec("INSERT INTO areas").
			WithArgs(
				a.ID, a.UserID, a.ActionKind, a.ReactionKind, pgxmock.AnyArg(),
				a.ActionConfig, a.ReactionConfig, a.TriggerConfig,
				pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Upsert(context.Background(), a))
		assert.False(t, a.UpdatedAt.IsZero())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should refuse structurally invalid areas", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewAreaRepo(mockPool)

		err = repo.Upsert(context.Background(), &area.Area{ID: "x"})
		require.Error(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestAreaRepo_Delete(t *testing.T) {
	t.Run("Should delete by id", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewAreaRepo(mockPool)

		mockPool.ExpectExec("DELETE FROM areas").
			WithArgs(core.ID("area-1")).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(context.Background(), "area-1"))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report not found when nothing was deleted", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewAreaRepo(mockPool)

		mockPool.ExpectExec("DELETE FROM areas").
			WithArgs(core.ID("ghost")).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err = repo.Delete(context.Background(), "ghost")
		require.ErrorIs(t, err, area.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
