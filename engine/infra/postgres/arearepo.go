package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hookline/hookline/engine/area"
	"github.com/hookline/hookline/engine/core"
)

var areaColumns = []string{
	"id",
	"user_id",
	"action_kind",
	"reaction_kind",
	"trigger_kind",
	"action_config",
	"reaction_config",
	"trigger_config",
	"created_at",
	"updated_at",
}

// DB is the minimal database interface the repositories depend on (pgxpool
// or pgxmock).
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AreaRepo implements area.Repository backed by a pgx-compatible pool.
type AreaRepo struct {
	db DB
}

func NewAreaRepo(db DB) *AreaRepo {
	return &AreaRepo{db: db}
}

// areaRow mirrors the areas table; trigger columns are nullable because an
// area may exist without a trigger.
type areaRow struct {
	ID             core.ID     `db:"id"`
	UserID         core.ID     `db:"user_id"`
	ActionKind     string      `db:"action_kind"`
	ReactionKind   string      `db:"reaction_kind"`
	TriggerKind    *string     `db:"trigger_kind"`
	ActionConfig   core.Params `db:"action_config"`
	ReactionConfig core.Params `db:"reaction_config"`
	TriggerConfig  core.Params `db:"trigger_config"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (r *areaRow) toArea() *area.Area {
	out := &area.Area{
		ID:             r.ID,
		UserID:         r.UserID,
		ActionKind:     r.ActionKind,
		ReactionKind:   r.ReactionKind,
		ActionConfig:   r.ActionConfig,
		ReactionConfig: r.ReactionConfig,
		TriggerConfig:  r.TriggerConfig,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.TriggerKind != nil {
		out.TriggerKind = *r.TriggerKind
	}
	return out
}

func (r *AreaRepo) ListAll(ctx context.Context) ([]*area.Area, error) {
	sb := squirrel.Select(areaColumns...).
		From("areas").
		OrderBy("created_at", "id").
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}
	var rows []*areaRow
	if err := pgxscan.Select(ctx, r.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("scanning areas: %w", err)
	}
	out := make([]*area.Area, len(rows))
	for i, row := range rows {
		out[i] = row.toArea()
	}
	return out, nil
}

func (r *AreaRepo) Get(ctx context.Context, id core.ID) (*area.Area, error) {
	sb := squirrel.Select(areaColumns...).
		From("areas").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get query: %w", err)
	}
	var row areaRow
	if err := pgxscan.Get(ctx, r.db, &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("area %s: %w", id, area.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning area: %w", err)
	}
	return row.toArea(), nil
}

func (r *AreaRepo) Upsert(ctx context.Context, a *area.Area) error {
	if err := a.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	sb := squirrel.Insert("areas").
		Columns(areaColumns...).
		Values(
			a.ID,
			a.UserID,
			a.ActionKind,
			a.ReactionKind,
			nullIfEmpty(a.TriggerKind),
			a.ActionConfig,
			a.ReactionConfig,
			a.TriggerConfig,
			a.CreatedAt,
			a.UpdatedAt,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			action_kind = EXCLUDED.action_kind,
			reaction_kind = EXCLUDED.reaction_kind,
			trigger_kind = EXCLUDED.trigger_kind,
			action_config = EXCLUDED.action_config,
			reaction_config = EXCLUDED.reaction_config,
			trigger_config = EXCLUDED.trigger_config,
			updated_at = EXCLUDED.updated_at`).
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return fmt.Errorf("building upsert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upserting area %s: %w", a.ID, err)
	}
	return nil
}

func (r *AreaRepo) Delete(ctx context.Context, id core.ID) error {
	sb := squirrel.Delete("areas").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("deleting area %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("area %s: %w", id, area.ErrNotFound)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
