package db

import (
	"context"
	"database/sql"
	stderrors "errors"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

// SaveUser replaces the cached session with u. The device holds at most one
// signed-in user.
func SaveUser(ctx context.Context, q Querier, u *models.User) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "clear users", err)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (id, email, role, tenant_id, token, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, string(u.Role), u.TenantID, u.Token, FormatTime(u.CreatedAt),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "save user", err)
	}
	return nil
}

// GetCurrentUser returns the cached session, or nil when nobody is signed in.
func GetCurrentUser(ctx context.Context, q Querier) (*models.User, error) {
	var (
		u         models.User
		role      string
		createdAt sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, email, role, tenant_id, token, created_at FROM users LIMIT 1`,
	).Scan(&u.ID, &u.Email, &role, &u.TenantID, &u.Token, &createdAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "get user", err)
	}
	u.Role = models.Role(role)
	if createdAt.Valid {
		if u.CreatedAt, err = ParseTime(createdAt.String); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "parse user created_at", err)
		}
	}
	return &u, nil
}

// ClearUsers removes the cached session.
func ClearUsers(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "clear users", err)
	}
	return nil
}
