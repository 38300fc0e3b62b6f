package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/food-box-reservation/internal/database"
	"github.com/iliyamo/food-box-reservation/internal/model"
	"github.com/iliyamo/food-box-reservation/internal/utils"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes password with a fresh salt and inserts the user.  Owners must
// reference an existing shop.
func (r *UserRepo) Create(ctx context.Context, username, password, role string, shopID *int64, scryptN int) error {
	username = strings.TrimSpace(username)
	hash, salt, err := utils.HashPassword(password, scryptN)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, salt, role, shop_id) VALUES (?,?,?,?,?)",
		username, hash, salt, role, shopID)
	if database.IsUniqueViolation(err) {
		return ErrUsernameExists
	}
	return err
}

// GetByUsername fetches a user; sql.ErrNoRows when absent.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT username, password_hash, salt, role, shop_id FROM users WHERE username=? LIMIT 1",
		strings.TrimSpace(username))
	return u, err
}

// Stand-in credentials checked for unknown usernames, so that a miss costs
// the same scrypt work as a wrong password.
const (
	dummyHash = "0000000000000000000000000000000000000000000000000000000000000000"
	dummySalt = "00000000000000000000000000000000"
)

var verifyPassword = utils.VerifyPassword

// Authenticate returns the user when password matches.  Unknown users and
// wrong passwords both yield sql.ErrNoRows after the same amount of hashing,
// so callers cannot tell them apart.
func (r *UserRepo) Authenticate(ctx context.Context, username, password string, scryptN int) (model.User, error) {
	u, err := r.GetByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		verifyPassword(dummyHash, dummySalt, password, scryptN)
		return model.User{}, sql.ErrNoRows
	}
	if err != nil {
		return model.User{}, err
	}
	if !verifyPassword(u.PasswordHash, u.Salt, password, scryptN) {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}
