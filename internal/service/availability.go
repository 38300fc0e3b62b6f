package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/food-box-reservation/internal/model"
)

// Availability partitions the boxes a caller wants to add.  Both lists keep
// the order of the request.
type Availability struct {
	// Unavailable holds the boxes someone already reserved.
	Unavailable []int64
	// Expired holds free boxes whose retrieval window ended before now.
	Expired []int64
}

// CheckAvailability reads the ownership flag of ids inside tx.  It must run
// in the same transaction as the writes it guards.  Ids that match no box
// fail the whole check with a *NotFoundError.
func CheckAvailability(ctx context.Context, tx *sqlx.Tx, boxes BoxStore, ids []int64, now time.Time) (Availability, error) {
	var out Availability
	if len(ids) == 0 {
		return out, nil
	}
	states, err := boxes.StatesTx(ctx, tx, ids)
	if err != nil {
		return out, storageErr("check availability", err)
	}
	byID := make(map[int64]int, len(states))
	for i, s := range states {
		byID[s.ID] = i
	}
	var missing []int64
	for _, id := range ids {
		i, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		switch s := states[i]; {
		case s.IsOwned:
			out.Unavailable = append(out.Unavailable, id)
		case WindowEnded(s.WindowEnd, now):
			out.Expired = append(out.Expired, id)
		}
	}
	if len(missing) > 0 {
		return Availability{}, &NotFoundError{BoxIDs: missing}
	}
	return out, nil
}

// WindowEnded reports whether a same-day retrieval window closing at
// windowEnd (HH:MM, in now's location) is over.  Unparsable values never
// count as ended.
func WindowEnded(windowEnd string, now time.Time) bool {
	t, err := time.Parse(model.WindowLayout, windowEnd)
	if err != nil {
		return false
	}
	end := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	return end.Before(now)
}
