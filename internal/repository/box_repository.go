package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/food-box-reservation/internal/database"
	"github.com/iliyamo/food-box-reservation/internal/model"
)

// BoxRepo provides access to boxes, their content lines and their shop
// placement.  Read methods run on the pool; methods with a Tx suffix take
// part in a caller-owned transaction and never commit or roll back.
type BoxRepo struct {
	db *sqlx.DB
}

// NewBoxRepo returns a new BoxRepo bound to the given database.
func NewBoxRepo(db *sqlx.DB) *BoxRepo { return &BoxRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions.
func (r *BoxRepo) DB() *sqlx.DB { return r.db }

// BoxState is the slice of a box row the reservation engine decides on.
type BoxState struct {
	ID        int64  `db:"id"`
	IsOwned   bool   `db:"is_owned"`
	WindowEnd string `db:"window_end"`
}

const boxColumns = `b.id, b.type, b.size, b.price, b.window_start, b.window_end, b.is_owned,
       (SELECT MIN(sb.shop_id) FROM shop_boxes sb WHERE sb.box_id = b.id) AS shop_id`

// List returns every box with its contents, ordered by id.
func (r *BoxRepo) List(ctx context.Context) ([]model.Box, error) {
	boxes := []model.Box{}
	q := `SELECT ` + boxColumns + ` FROM boxes b ORDER BY b.id`
	if err := sqlx.SelectContext(ctx, r.db, &boxes, q); err != nil {
		return nil, err
	}
	return boxes, r.attachContents(ctx, r.db, boxes)
}

// ListByIDs returns the boxes among ids that exist, ordered by id.
func (r *BoxRepo) ListByIDs(ctx context.Context, ids []int64) ([]model.Box, error) {
	if len(ids) == 0 {
		return []model.Box{}, nil
	}
	q, args, err := sqlx.In(`SELECT `+boxColumns+` FROM boxes b WHERE b.id IN (?) ORDER BY b.id`, ids)
	if err != nil {
		return nil, err
	}
	boxes := []model.Box{}
	if err := sqlx.SelectContext(ctx, r.db, &boxes, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return boxes, r.attachContents(ctx, r.db, boxes)
}

// ListByShop returns the boxes placed in a shop.  A shop that does not exist
// yields ErrShopNotFound.
func (r *BoxRepo) ListByShop(ctx context.Context, shopID int64) ([]model.Box, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, `SELECT COUNT(*) FROM shops WHERE id = ?`, shopID); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrShopNotFound
	}
	q := `SELECT ` + boxColumns + `
	      FROM boxes b
	      JOIN shop_boxes p ON p.box_id = b.id
	      WHERE p.shop_id = ?
	      ORDER BY b.id`
	boxes := []model.Box{}
	if err := sqlx.SelectContext(ctx, r.db, &boxes, q, shopID); err != nil {
		return nil, err
	}
	return boxes, r.attachContents(ctx, r.db, boxes)
}

// ListByShopName is ListByShop keyed by the shop's unique name.
func (r *BoxRepo) ListByShopName(ctx context.Context, name string) ([]model.Box, error) {
	var shopID int64
	err := r.db.GetContext(ctx, &shopID, `SELECT id FROM shops WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShopNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.ListByShop(ctx, shopID)
}

// GetByID returns a single box with its contents or ErrBoxNotFound.
func (r *BoxRepo) GetByID(ctx context.Context, id int64) (*model.Box, error) {
	var b model.Box
	err := r.db.GetContext(ctx, &b, `SELECT `+boxColumns+` FROM boxes b WHERE b.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBoxNotFound
	}
	if err != nil {
		return nil, err
	}
	boxes := []model.Box{b}
	if err := r.attachContents(ctx, r.db, boxes); err != nil {
		return nil, err
	}
	return &boxes[0], nil
}

func (r *BoxRepo) attachContents(ctx context.Context, q sqlx.QueryerContext, boxes []model.Box) error {
	if len(boxes) == 0 {
		return nil
	}
	ids := make([]int64, len(boxes))
	index := make(map[int64]int, len(boxes))
	for i := range boxes {
		ids[i] = boxes[i].ID
		index[boxes[i].ID] = i
		boxes[i].Contents = []model.ContentLine{}
	}
	query, args, err := sqlx.In(`SELECT box_id, item_name, quantity, position
	                             FROM box_contents
	                             WHERE box_id IN (?)
	                             ORDER BY box_id, position, item_name`, ids)
	if err != nil {
		return err
	}
	var lines []model.ContentLine
	if err := sqlx.SelectContext(ctx, q, &lines, r.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, l := range lines {
		i := index[l.BoxID]
		boxes[i].Contents = append(boxes[i].Contents, l)
	}
	return nil
}

// StatesTx reads the decision columns of the given boxes inside tx.  On
// MySQL the rows are locked until the transaction ends; SQLite transactions
// already run one at a time.  Missing ids are simply absent from the result.
func (r *BoxRepo) StatesTx(ctx context.Context, tx *sqlx.Tx, ids []int64) ([]BoxState, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	base := `SELECT id, is_owned, window_end FROM boxes WHERE id IN (?) ORDER BY id`
	if database.IsMySQL(tx) {
		base += ` FOR UPDATE`
	}
	q, args, err := sqlx.In(base, ids)
	if err != nil {
		return nil, err
	}
	var states []BoxState
	if err := sqlx.SelectContext(ctx, tx, &states, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	return states, nil
}

// syncOwnership is the single statement that derives is_owned from the
// existence of a reservation row.
var syncOwnership = `is_owned = CASE WHEN EXISTS (SELECT 1 FROM reservations r WHERE r.box_id = boxes.id) THEN 1 ELSE 0 END`

// SyncOwnershipTx recomputes the ownership flag of ids from the reservations
// table and returns the resulting flags.
func (r *BoxRepo) SyncOwnershipTx(ctx context.Context, tx *sqlx.Tx, ids []int64) (map[int64]bool, error) {
	if len(ids) == 0 {
		return map[int64]bool{}, nil
	}
	if _, err := Exec(ctx, tx, UpdateMany{
		Table:  "boxes",
		Set:    syncOwnership,
		In:     "id",
		Values: Int64s(ids),
	}); err != nil {
		return nil, fmt.Errorf("sync ownership: %w", err)
	}
	states, err := r.StatesTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	owned := make(map[int64]bool, len(states))
	for _, s := range states {
		owned[s.ID] = s.IsOwned
	}
	return owned, nil
}

// CreateTx inserts a box, its content lines and, when shopID is set, its
// shop placement.  Content item names must exist in the catalog, otherwise
// ErrUnknownItems is returned.  The generated id is written back into box.
func (r *BoxRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, box *model.Box, shopID *int64) error {
	if len(box.Contents) > 0 {
		names := make([]string, len(box.Contents))
		for i, c := range box.Contents {
			names[i] = c.ItemName
		}
		missing, err := missingItemsTx(ctx, tx, names)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %v", ErrUnknownItems, missing)
		}
	}
	if shopID != nil {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM shops WHERE id = ?`, *shopID); err != nil {
			return err
		}
		if n == 0 {
			return ErrShopNotFound
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO boxes (type, size, price, window_start, window_end, is_owned) VALUES (?, ?, ?, ?, ?, 0)`,
		box.Type, box.Size, box.Price, box.WindowStart, box.WindowEnd)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	box.ID = id
	box.IsOwned = false

	rows := make([][]any, len(box.Contents))
	for i := range box.Contents {
		box.Contents[i].BoxID = id
		box.Contents[i].Position = i
		rows[i] = []any{id, box.Contents[i].ItemName, box.Contents[i].Quantity, i}
	}
	if _, err := Exec(ctx, tx, InsertMany{
		Table:   "box_contents",
		Columns: []string{"box_id", "item_name", "quantity", "position"},
		Rows:    rows,
	}); err != nil {
		return err
	}

	if shopID != nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO shop_boxes (shop_id, box_id) VALUES (?, ?)`, *shopID, id); err != nil {
			return err
		}
		box.ShopID = shopID
	}
	return nil
}

// DeleteTx removes a box together with its content lines and shop
// placement.  When shopID is non-nil the box must be offered by that shop
// (ErrForbidden otherwise); admins pass nil.  A box that is currently
// reserved cannot be deleted (ErrConflict).
func (r *BoxRepo) DeleteTx(ctx context.Context, tx *sqlx.Tx, boxID int64, shopID *int64) error {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM boxes WHERE id = ?`, boxID); err != nil {
		return err
	}
	if n == 0 {
		return ErrBoxNotFound
	}
	if shopID != nil {
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM shop_boxes WHERE box_id = ? AND shop_id = ?`, boxID, *shopID); err != nil {
			return err
		}
		if n == 0 {
			return ErrForbidden
		}
	}
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM reservations WHERE box_id = ?`, boxID); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM box_contents WHERE box_id = ?`, boxID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM shop_boxes WHERE box_id = ?`, boxID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM boxes WHERE id = ?`, boxID)
	return err
}

// ShopOfBoxTx returns the shop offering boxID, or ErrBoxNotFound when the box
// is not placed anywhere.
func (r *BoxRepo) ShopOfBoxTx(ctx context.Context, tx *sqlx.Tx, boxID int64) (int64, error) {
	var shopID sql.NullInt64
	if err := tx.GetContext(ctx, &shopID, `SELECT MIN(shop_id) FROM shop_boxes WHERE box_id = ?`, boxID); err != nil {
		return 0, err
	}
	if !shopID.Valid {
		return 0, ErrBoxNotFound
	}
	return shopID.Int64, nil
}
