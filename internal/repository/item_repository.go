package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/food-box-reservation/internal/database"
	"github.com/iliyamo/food-box-reservation/internal/model"
)

// ItemRepo manages the catalog of item names content lines may use.
type ItemRepo struct {
	db *sqlx.DB
}

func NewItemRepo(db *sqlx.DB) *ItemRepo { return &ItemRepo{db: db} }

// List returns every catalog item ordered by name.
func (r *ItemRepo) List(ctx context.Context) ([]model.Item, error) {
	items := []model.Item{}
	err := r.db.SelectContext(ctx, &items, `SELECT name FROM items ORDER BY name`)
	return items, err
}

// Create adds a catalog item.  Duplicate names yield ErrItemExists.
func (r *ItemRepo) Create(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	_, err := r.db.ExecContext(ctx, `INSERT INTO items (name) VALUES (?)`, name)
	if database.IsUniqueViolation(err) {
		return ErrItemExists
	}
	return err
}

// missingItemsTx returns the names that are not in the catalog, in input
// order.
func missingItemsTx(ctx context.Context, tx *sqlx.Tx, names []string) ([]string, error) {
	q, args, err := sqlx.In(`SELECT name FROM items WHERE name IN (?)`, names)
	if err != nil {
		return nil, err
	}
	var found []string
	if err := tx.SelectContext(ctx, &found, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(found))
	for _, n := range found {
		known[n] = struct{}{}
	}
	var missing []string
	for _, n := range names {
		if _, ok := known[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing, nil
}
