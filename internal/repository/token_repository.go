package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
// Times are stored as unix seconds so both drivers compare them the same way.
type TokenRepo struct{ DB *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, username, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (username, token_hash, expires_at) VALUES (?,?,?)",
		username, tokenHash, exp.Unix())
	return err
}

// ValidateRefresh returns the username if a non-revoked, non-expired token exists.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
	var username string
	err := r.DB.GetContext(ctx, &username,
		"SELECT username FROM refresh_tokens WHERE token_hash=? AND revoked_at IS NULL AND expires_at > ? LIMIT 1",
		tokenHash, time.Now().UTC().Unix())
	if err != nil {
		return "", err
	}
	return username, nil
}

// RevokeByHash marks a token as revoked.  A token that is unknown or already
// revoked yields sql.ErrNoRows.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		time.Now().UTC().Unix(), tokenHash)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RevokeAllForUser revokes all of a user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, username string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE username=? AND revoked_at IS NULL",
		time.Now().UTC().Unix(), username)
	return err
}
