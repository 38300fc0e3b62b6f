package model

// Reservation records that a user currently holds a box.  At most one row
// per box may exist; the row is created and destroyed only together with a
// resync of the box's ownership flag.
//
// Fields:
//  ID        – primary key identifier.
//  Username  – holder of the box.
//  BoxID     – reserved box (unique across the table).
//  CreatedAt – unix seconds when the reservation was made.
type Reservation struct {
	ID        int64  `db:"id"`
	Username  string `db:"username"`
	BoxID     int64  `db:"box_id"`
	CreatedAt int64  `db:"created_at"`
}
