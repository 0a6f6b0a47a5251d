package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/hookline/hookline/engine/area"
	"github.com/hookline/hookline/engine/core"
)

// CredentialRepo implements area.CredentialResolver on the user_services
// table. Tokens are read fresh on every resolve; nothing is cached, so
// revoking a row takes effect at the next firing.
type CredentialRepo struct {
	db DB
}

func NewCredentialRepo(db DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

type credentialRow struct {
	AccessToken  string  `db:"access_token"`
	RefreshToken *string `db:"refresh_token"`
}

// Resolve returns the stored credential, or nil with no error when the user
// never linked the service.
func (r *CredentialRepo) Resolve(
	ctx context.Context,
	userID core.ID,
	service core.ServiceID,
) (*area.Credential, error) {
	sb := squirrel.Select("access_token", "refresh_token").
		From("user_services").
		Where(squirrel.Eq{"user_id": userID, "service_id": service}).
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building credential query: %w", err)
	}
	var row credentialRow
	if err := pgxscan.Get(ctx, r.db, &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning credential: %w", err)
	}
	cred := &area.Credential{AccessToken: row.AccessToken}
	if row.RefreshToken != nil {
		cred.RefreshToken = *row.RefreshToken
	}
	return cred, nil
}

// Upsert stores or replaces the credential for (user, service).
func (r *CredentialRepo) Upsert(
	ctx context.Context,
	userID core.ID,
	service core.ServiceID,
	cred *area.Credential,
) error {
	if cred == nil || cred.AccessToken == "" {
		return fmt.Errorf("credential for user %s service %s requires an access token", userID, service)
	}
	now := time.Now().UTC()
	sb := squirrel.Insert("user_services").
		Columns("user_id", "service_id", "access_token", "refresh_token", "created_at", "updated_at").
		Values(userID, service, cred.AccessToken, nullIfEmpty(cred.RefreshToken), now, now).
		Suffix(`ON CONFLICT (user_id, service_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			updated_at = EXCLUDED.updated_at`).
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return fmt.Errorf("building credential upsert: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upserting credential for user %s service %s: %w", userID, service, err)
	}
	return nil
}

// Delete removes the credential, unlinking the service from the user.
func (r *CredentialRepo) Delete(ctx context.Context, userID core.ID, service core.ServiceID) error {
	sb := squirrel.Delete("user_services").
		Where(squirrel.Eq{"user_id": userID, "service_id": service}).
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return fmt.Errorf("building credential delete: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("deleting credential for user %s service %s: %w", userID, service, err)
	}
	return nil
}
