package model

// Shop is a store offering boxes, as stored in the `shops` table.  Boxes
// are placed through the `shop_boxes` join table.
//
// Fields:
//  ID       – primary key identifier.
//  Name     – unique display name.
//  Address  – street address.
//  Phone    – contact number.
//  FoodType – cuisine tag shown to customers.
type Shop struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Address  string `db:"address" json:"address"`
	Phone    string `db:"phone" json:"phone"`
	FoodType string `db:"food_type" json:"food_type"`
}

// Item is an entry of the controlled vocabulary used by content lines.
type Item struct {
	Name string `db:"name" json:"name"`
}
