package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Box types and sizes accepted by the catalogue.
const (
	BoxTypeNormal   = "Normal"
	BoxTypeSurprise = "Surprise"

	BoxSizeSmall  = "Small"
	BoxSizeMedium = "Medium"
	BoxSizeLarge  = "Large"
)

// WindowLayout is the clock format of a retrieval window bound.
const WindowLayout = "15:04"

// Box is a unit of surplus food offered for reservation, as stored in the
// `boxes` table.  Normal boxes list their contents; Surprise boxes do not.
//
// Fields:
//  ID          – primary key identifier.
//  Type        – Normal or Surprise.
//  Size        – Small, Medium or Large.
//  Price       – positive price, two decimals in storage.
//  WindowStart – start of the same-day retrieval window (HH:MM).
//  WindowEnd   – end of the retrieval window (HH:MM).
//  IsOwned     – true iff a reservation row references the box.
//  ShopID      – offering shop when loaded through shop_boxes (nullable).
//  Contents    – ordered content lines; filled by the repository.
type Box struct {
	ID          int64           `db:"id" json:"id"`
	Type        string          `db:"type" json:"type"`
	Size        string          `db:"size" json:"size"`
	Price       decimal.Decimal `db:"price" json:"price"`
	WindowStart string          `db:"window_start" json:"window_start"`
	WindowEnd   string          `db:"window_end" json:"window_end"`
	IsOwned     bool            `db:"is_owned" json:"is_owned"`
	ShopID      *int64          `db:"shop_id" json:"shop_id,omitempty"`
	Contents    []ContentLine   `db:"-" json:"contents"`
}

// ContentLine is one (item, quantity) entry of a Normal box, as stored in
// `box_contents`.  Position keeps the display order stable.
type ContentLine struct {
	BoxID    int64  `db:"box_id" json:"-"`
	ItemName string `db:"item_name" json:"name"`
	Quantity int    `db:"quantity" json:"quantity"`
	Position int    `db:"position" json:"-"`
}

// ErrInvalidBox is wrapped by every Validate failure.
var ErrInvalidBox = errors.New("invalid box")

// Validate checks the invariants a box must satisfy before it is stored:
// a known type and size, a positive price, a well formed window that does
// not end before it starts, and contents only on Normal boxes with unique
// names and positive quantities.
func (b Box) Validate() error {
	switch b.Type {
	case BoxTypeNormal, BoxTypeSurprise:
	default:
		return fmt.Errorf("%w: type must be Normal or Surprise", ErrInvalidBox)
	}
	switch b.Size {
	case BoxSizeSmall, BoxSizeMedium, BoxSizeLarge:
	default:
		return fmt.Errorf("%w: size must be Small, Medium or Large", ErrInvalidBox)
	}
	if !b.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidBox)
	}
	start, err := time.Parse(WindowLayout, b.WindowStart)
	if err != nil {
		return fmt.Errorf("%w: window_start must be HH:MM", ErrInvalidBox)
	}
	end, err := time.Parse(WindowLayout, b.WindowEnd)
	if err != nil {
		return fmt.Errorf("%w: window_end must be HH:MM", ErrInvalidBox)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: window ends before it starts", ErrInvalidBox)
	}
	if b.Type == BoxTypeSurprise && len(b.Contents) > 0 {
		return fmt.Errorf("%w: surprise boxes have no contents", ErrInvalidBox)
	}
	seen := make(map[string]struct{}, len(b.Contents))
	for _, c := range b.Contents {
		if c.ItemName == "" || c.Quantity <= 0 {
			return fmt.Errorf("%w: content lines need a name and a positive quantity", ErrInvalidBox)
		}
		if _, dup := seen[c.ItemName]; dup {
			return fmt.Errorf("%w: duplicate content item %q", ErrInvalidBox, c.ItemName)
		}
		seen[c.ItemName] = struct{}{}
	}
	return nil
}
