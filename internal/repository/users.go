package repository

import (
	"context"
	"strings"

	"github.com/kimhsiao/shopfloor/backend/internal/db"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/uuid"
)

// Users manages the locally cached session. Tokens are issued elsewhere and
// only stored here.
type Users struct {
	store    *db.DB
	notify   *Notifier
	tenantID string
}

// Login caches a signed-in user, replacing any previous session.
func (u *Users) Login(ctx context.Context, email string, role models.Role, token string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.Newf(apperrors.ErrValidation, "invalid email %q", email)
	}
	if !role.Valid() {
		return nil, apperrors.Newf(apperrors.ErrValidation, "invalid role %q", role)
	}
	if token == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "token is required")
	}

	user := &models.User{
		ID:        uuid.New(),
		Email:     email,
		Role:      role,
		TenantID:  u.tenantID,
		Token:     token,
		CreatedAt: u.store.Now(),
	}
	if err := db.SaveUser(ctx, u.store, user); err != nil {
		return nil, err
	}
	u.notify.Publish(Change{Entity: "session", ID: user.ID, Action: "login"})
	return user, nil
}

// Current returns the signed-in user or UNAUTHENTICATED.
func (u *Users) Current(ctx context.Context) (*models.User, error) {
	user, err := db.GetCurrentUser(ctx, u.store)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "no user is signed in")
	}
	return user, nil
}

// Logout clears the session.
func (u *Users) Logout(ctx context.Context) error {
	if err := db.ClearUsers(ctx, u.store); err != nil {
		return err
	}
	u.notify.Publish(Change{Entity: "session", Action: "logout"})
	return nil
}
