package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/food-box-reservation/internal/database"
	"github.com/iliyamo/food-box-reservation/internal/model"
)

// ShopRepo provides CRUD operations for shops and box placement.
type ShopRepo struct {
	db *sqlx.DB
}

func NewShopRepo(db *sqlx.DB) *ShopRepo { return &ShopRepo{db: db} }

// List returns all shops ordered by name.
func (r *ShopRepo) List(ctx context.Context) ([]model.Shop, error) {
	shops := []model.Shop{}
	err := r.db.SelectContext(ctx, &shops, `SELECT id, name, address, phone, food_type FROM shops ORDER BY name`)
	return shops, err
}

// GetByID returns one shop or ErrShopNotFound.
func (r *ShopRepo) GetByID(ctx context.Context, id int64) (*model.Shop, error) {
	var s model.Shop
	err := r.db.GetContext(ctx, &s, `SELECT id, name, address, phone, food_type FROM shops WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShopNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a shop and fills in its id.  A duplicate name yields
// ErrShopExists.
func (r *ShopRepo) Create(ctx context.Context, s *model.Shop) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO shops (name, address, phone, food_type) VALUES (?, ?, ?, ?)`,
		s.Name, s.Address, s.Phone, s.FoodType)
	if database.IsUniqueViolation(err) {
		return ErrShopExists
	}
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// AssignBox places an existing box in an existing shop.  Placing the same
// box twice in one shop yields ErrConflict; a box offered by another shop is
// rejected the same way, keeping placement one shop per box.
func (r *ShopRepo) AssignBox(ctx context.Context, shopID, boxID int64) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM shops WHERE id = ?`, shopID); err != nil {
			return err
		}
		if n == 0 {
			return ErrShopNotFound
		}
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM boxes WHERE id = ?`, boxID); err != nil {
			return err
		}
		if n == 0 {
			return ErrBoxNotFound
		}
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM shop_boxes WHERE box_id = ?`, boxID); err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO shop_boxes (shop_id, box_id) VALUES (?, ?)`, shopID, boxID)
		if database.IsUniqueViolation(err) {
			return ErrConflict
		}
		return err
	})
}
