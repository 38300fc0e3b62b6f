package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// ReservationRepo reads and writes the reservations table.  Every write
// method is Tx-suffixed: a reservation row only ever changes together with
// an ownership resync in the same transaction.
type ReservationRepo struct {
	db *sqlx.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *ReservationRepo) DB() *sqlx.DB { return r.db }

// ListBoxIDs returns the ids of the boxes username currently holds, ascending.
func (r *ReservationRepo) ListBoxIDs(ctx context.Context, username string) ([]int64, error) {
	return listBoxIDs(ctx, r.db, username)
}

// ListBoxIDsTx is ListBoxIDs inside tx.
func (r *ReservationRepo) ListBoxIDsTx(ctx context.Context, tx *sqlx.Tx, username string) ([]int64, error) {
	return listBoxIDs(ctx, tx, username)
}

func listBoxIDs(ctx context.Context, q sqlx.QueryerContext, username string) ([]int64, error) {
	ids := []int64{}
	err := sqlx.SelectContext(ctx, q, &ids, `SELECT box_id FROM reservations WHERE username = ? ORDER BY box_id`, username)
	return ids, err
}

// HeldTx returns the subset of ids that username holds.
func (r *ReservationRepo) HeldTx(ctx context.Context, tx *sqlx.Tx, username string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT box_id FROM reservations WHERE username = ? AND box_id IN (?) ORDER BY box_id`, username, ids)
	if err != nil {
		return nil, err
	}
	var held []int64
	if err := tx.SelectContext(ctx, &held, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	return held, nil
}

// InsertTx creates one reservation row per id for username.  The unique
// index on box_id rejects a box that someone else already holds; callers
// detect that with database.IsUniqueViolation.
func (r *ReservationRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, username string, ids []int64, at time.Time) error {
	rows := make([][]any, len(ids))
	for i, id := range ids {
		rows[i] = []any{username, id, at.Unix()}
	}
	_, err := Exec(ctx, tx, InsertMany{
		Table:   "reservations",
		Columns: []string{"username", "box_id", "created_at"},
		Rows:    rows,
	})
	return err
}

// DeleteTx removes username's reservations on ids.  Rows held by other users
// are never touched.  It returns the number of rows deleted.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sqlx.Tx, username string, ids []int64) (int64, error) {
	return Exec(ctx, tx, DeleteMany{
		Table:  "reservations",
		Where:  []Eq{{Column: "username", Value: username}},
		In:     "box_id",
		Values: Int64s(ids),
	})
}

// DeleteAllForUserTx drops every reservation of username and returns the
// released box ids.
func (r *ReservationRepo) DeleteAllForUserTx(ctx context.Context, tx *sqlx.Tx, username string) ([]int64, error) {
	ids, err := listBoxIDs(ctx, tx, username)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE username = ?`, username); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteByBoxTx removes whatever reservation exists on boxID and returns the
// username that held it.  sql.ErrNoRows means the box was not reserved.
func (r *ReservationRepo) DeleteByBoxTx(ctx context.Context, tx *sqlx.Tx, boxID int64) (string, error) {
	var username string
	err := tx.GetContext(ctx, &username, `SELECT username FROM reservations WHERE box_id = ?`, boxID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sql.ErrNoRows
		}
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE box_id = ?`, boxID); err != nil {
		return "", err
	}
	return username, nil
}
