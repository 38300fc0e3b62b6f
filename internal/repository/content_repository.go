package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// ContentRepo reads and strips the content lines of a box.  Lines are never
// re-inserted once removed.
type ContentRepo struct {
	db *sqlx.DB
}

func NewContentRepo(db *sqlx.DB) *ContentRepo { return &ContentRepo{db: db} }

// NamesTx returns the live content item names of boxID in display order.
func (r *ContentRepo) NamesTx(ctx context.Context, tx *sqlx.Tx, boxID int64) ([]string, error) {
	var names []string
	err := tx.SelectContext(ctx, &names,
		`SELECT item_name FROM box_contents WHERE box_id = ? ORDER BY position, item_name`, boxID)
	return names, err
}

// DeleteNamesTx deletes the named lines of boxID and reports how many rows
// went away.
func (r *ContentRepo) DeleteNamesTx(ctx context.Context, tx *sqlx.Tx, boxID int64, names []string) (int64, error) {
	return Exec(ctx, tx, DeleteMany{
		Table:  "box_contents",
		Where:  []Eq{{Column: "box_id", Value: boxID}},
		In:     "item_name",
		Values: Strings(names),
	})
}
