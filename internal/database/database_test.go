package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countItems(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM items"))
	return n
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(context.Background(), db))

	var tables []string
	require.NoError(t, db.Select(&tables, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"))
	assert.Equal(t, []string{"box_contents", "boxes", "items", "refresh_tokens", "reservations", "shop_boxes", "shops", "users"}, tables)
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	db := openTestDB(t)

	err := WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
		_, err := tx.Exec("INSERT INTO items (name) VALUES (?)", "bread")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, db))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec("INSERT INTO items (name) VALUES (?)", "bread"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countItems(t, db))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := openTestDB(t)

	assert.Panics(t, func() {
		_ = WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
			_, _ = tx.Exec("INSERT INTO items (name) VALUES (?)", "bread")
			panic("handler bug")
		})
	})
	// the single pooled connection must have been released
	assert.Equal(t, 0, countItems(t, db))
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec("INSERT INTO items (name) VALUES (?)", "milk")
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO items (name) VALUES (?)", "milk")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.True(t, IsUniqueViolation(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, IsUniqueViolation(&mysql.MySQLError{Number: 1452}))
	assert.False(t, IsUniqueViolation(errors.New("UNIQUE but not a driver error")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\n CREATE TABLE b (y INT);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"}, got)
}
