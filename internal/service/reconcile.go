package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/iliyamo/food-box-reservation/internal/database"
	"github.com/iliyamo/food-box-reservation/internal/metrics"
	"github.com/iliyamo/food-box-reservation/internal/queue"
	"github.com/iliyamo/food-box-reservation/internal/repository"
)

// BoxStore is the slice of repository.BoxRepo the engine needs.
type BoxStore interface {
	StatesTx(ctx context.Context, tx *sqlx.Tx, ids []int64) ([]repository.BoxState, error)
	SyncOwnershipTx(ctx context.Context, tx *sqlx.Tx, ids []int64) (map[int64]bool, error)
	ShopOfBoxTx(ctx context.Context, tx *sqlx.Tx, boxID int64) (int64, error)
}

// ReservationStore is the slice of repository.ReservationRepo the engine needs.
type ReservationStore interface {
	ListBoxIDsTx(ctx context.Context, tx *sqlx.Tx, username string) ([]int64, error)
	HeldTx(ctx context.Context, tx *sqlx.Tx, username string, ids []int64) ([]int64, error)
	InsertTx(ctx context.Context, tx *sqlx.Tx, username string, ids []int64, at time.Time) error
	DeleteTx(ctx context.Context, tx *sqlx.Tx, username string, ids []int64) (int64, error)
	DeleteAllForUserTx(ctx context.Context, tx *sqlx.Tx, username string) ([]int64, error)
	DeleteByBoxTx(ctx context.Context, tx *sqlx.Tx, boxID int64) (string, error)
}

// ContentStore is the slice of repository.ContentRepo the engine needs.
type ContentStore interface {
	NamesTx(ctx context.Context, tx *sqlx.Tx, boxID int64) ([]string, error)
	DeleteNamesTx(ctx context.Context, tx *sqlx.Tx, boxID int64, names []string) (int64, error)
}

// ReconcileRequest is one save of a customer's selection: the boxes to take,
// the boxes to give back, and per box the content lines to strip.
type ReconcileRequest struct {
	Username     string
	Add          []int64
	Remove       []int64
	RemovedItems map[int64][]string
}

// ReconcileResult describes a committed reconcile.  Added and Removed only
// list the ids that actually changed hands: AlreadyHeld were in Add but the
// caller held them before the save, NotHeld were in Remove but the caller no
// longer held them (a shop cancelled them, or an earlier save released them).
// Skipped lists boxes whose content removals were dropped for the same reason.
type ReconcileResult struct {
	Added        []int64            `json:"added"`
	Removed      []int64            `json:"removed"`
	AlreadyHeld  []int64            `json:"already_held"`
	NotHeld      []int64            `json:"not_held"`
	RemovedItems map[int64][]string `json:"removed_items"`
	Skipped      []int64            `json:"skipped"`
	Holdings     []int64            `json:"holdings"`
}

// Engine applies reservation changes.  Every public method is one
// transaction: it either commits completely or leaves no trace.
type Engine struct {
	db           *sqlx.DB
	boxes        BoxStore
	reservations ReservationStore
	contents     ContentStore
	publisher    EventPublisher
	log          *zap.Logger
	now          func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithPublisher sends an event after every committed change.
func WithPublisher(p EventPublisher) Option { return func(e *Engine) { e.publisher = p } }

// WithLogger sets the engine's logger (zap.NewNop by default).
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithClock replaces time.Now for retrieval window checks and timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine wires an Engine over db and the given stores.
func NewEngine(db *sqlx.DB, boxes BoxStore, reservations ReservationStore, contents ContentStore, opts ...Option) *Engine {
	if db == nil || boxes == nil || reservations == nil || contents == nil {
		panic("nil dependency passed to NewEngine")
	}
	e := &Engine{
		db:           db,
		boxes:        boxes,
		reservations: reservations,
		contents:     contents,
		log:          zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile moves the caller's reservations from their saved state to the
// submitted one.  In order, inside one transaction: check that every box in
// Add exists, is free and has not expired; insert the new reservations;
// delete the released ones; resync and assert the ownership flags; strip the
// requested content lines from boxes the caller now holds.  Boxes in Add the
// caller already holds and boxes in Remove the caller no longer holds are
// left alone and reported.  Any failure rolls everything back and is
// returned as is.
func (e *Engine) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	start := time.Now()
	add, remove, err := normalize(req)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, err
	}

	res := &ReconcileResult{
		Added:        []int64{},
		Removed:      []int64{},
		AlreadyHeld:  []int64{},
		NotHeld:      []int64{},
		RemovedItems: map[int64][]string{},
		Skipped:      []int64{},
	}
	err = database.WithTx(ctx, e.db, func(tx *sqlx.Tx) error {
		return e.apply(ctx, tx, req.Username, add, remove, req.RemovedItems, res)
	})
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.observeFailure(req.Username, err)
		return nil, err
	}

	metrics.ReconcileTotal.WithLabelValues(metrics.OutcomeCommitted).Inc()
	metrics.BoxesReservedTotal.Add(float64(len(res.Added)))
	metrics.BoxesReleasedTotal.Add(float64(len(res.Removed)))
	e.log.Info("reconcile committed",
		zap.String("username", req.Username),
		zap.Int64s("added", res.Added),
		zap.Int64s("removed", res.Removed),
		zap.Int("content_boxes", len(res.RemovedItems)),
	)
	e.publish(ctx, queue.ReservationEvent{
		Kind:         queue.KindReconciled,
		Username:     req.Username,
		Added:        res.Added,
		Removed:      res.Removed,
		RemovedItems: res.RemovedItems,
		Skipped:      res.Skipped,
		Holdings:     res.Holdings,
	})
	return res, nil
}

func normalize(req ReconcileRequest) (add, remove []int64, err error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, nil, validationErr("missing username")
	}
	add, remove = dedupe(req.Add), dedupe(req.Remove)
	for _, id := range append(append([]int64{}, add...), remove...) {
		if id <= 0 {
			return nil, nil, validationErr("box ids must be positive, got %d", id)
		}
	}
	if both := minus(add, minus(add, remove)); len(both) > 0 {
		return nil, nil, validationErr("boxes %s are both added and removed", joinIDs(both))
	}
	for boxID, names := range req.RemovedItems {
		if boxID <= 0 {
			return nil, nil, validationErr("box ids must be positive, got %d", boxID)
		}
		for _, n := range names {
			if strings.TrimSpace(n) == "" {
				return nil, nil, validationErr("empty item name for box %d", boxID)
			}
		}
	}
	return add, remove, nil
}

func (e *Engine) apply(ctx context.Context, tx *sqlx.Tx, username string, add, remove []int64, removedItems map[int64][]string, res *ReconcileResult) error {
	if len(add) > 0 {
		// a retried save lists boxes the first attempt already reserved
		already, err := e.reservations.HeldTx(ctx, tx, username, add)
		if err != nil {
			return storageErr("load held boxes", err)
		}
		if len(already) > 0 {
			e.log.Info("boxes already held by caller",
				zap.String("username", username), zap.Int64s("box_ids", already))
			res.AlreadyHeld = already
			add = minus(add, already)
		}
	}

	if len(add) > 0 {
		avail, err := CheckAvailability(ctx, tx, e.boxes, add, e.now())
		if err != nil {
			return err
		}
		if len(avail.Unavailable) > 0 {
			return &UnavailableError{BoxIDs: avail.Unavailable}
		}
		if len(avail.Expired) > 0 {
			return &ExpiredError{BoxIDs: avail.Expired}
		}
		if err := e.reservations.InsertTx(ctx, tx, username, add, e.now()); err != nil {
			if database.IsUniqueViolation(err) {
				return e.lostRace(ctx, tx, add)
			}
			return storageErr("insert reservations", err)
		}
	}

	if len(remove) > 0 {
		held, err := e.reservations.HeldTx(ctx, tx, username, remove)
		if err != nil {
			return storageErr("load held boxes", err)
		}
		if gone := minus(remove, held); len(gone) > 0 {
			e.log.Warn("skipping release of boxes not held by caller",
				zap.String("username", username), zap.Int64s("box_ids", gone))
			res.NotHeld = gone
			remove = minus(remove, gone)
		}
	}
	if len(remove) > 0 {
		n, err := e.reservations.DeleteTx(ctx, tx, username, remove)
		if err != nil {
			return storageErr("delete reservations", err)
		}
		if n != int64(len(remove)) {
			return ErrInvariant
		}
	}
	res.Added = append(res.Added, add...)
	res.Removed = append(res.Removed, remove...)

	if err := e.syncOwnership(ctx, tx, add, remove); err != nil {
		return err
	}

	holdings, err := e.reservations.ListBoxIDsTx(ctx, tx, username)
	if err != nil {
		return storageErr("load holdings", err)
	}
	if err := e.removeContents(ctx, tx, username, toSet(holdings), removedItems, res); err != nil {
		return err
	}
	res.Holdings = holdings
	return nil
}

// lostRace maps a unique violation on insert to the boxes that turned out to
// be owned.  It only triggers when a concurrent transaction slipped between
// the availability read and the insert.
func (e *Engine) lostRace(ctx context.Context, tx *sqlx.Tx, add []int64) error {
	states, err := e.boxes.StatesTx(ctx, tx, add)
	if err != nil {
		return storageErr("reload box states", err)
	}
	var taken []int64
	for _, s := range states {
		if s.IsOwned {
			taken = append(taken, s.ID)
		}
	}
	if len(taken) == 0 {
		taken = add
	}
	return &UnavailableError{BoxIDs: taken}
}

// syncOwnership recomputes the flag of every touched box from the
// reservations table and checks that each one made the expected transition.
func (e *Engine) syncOwnership(ctx context.Context, tx *sqlx.Tx, add, remove []int64) error {
	touched := append(append([]int64{}, add...), remove...)
	if len(touched) == 0 {
		return nil
	}
	owned, err := e.boxes.SyncOwnershipTx(ctx, tx, touched)
	if err != nil {
		return storageErr("sync ownership", err)
	}
	for _, id := range add {
		if !owned[id] {
			e.log.Error("box not owned after insert", zap.Int64("box_id", id))
			return ErrInvariant
		}
	}
	for _, id := range remove {
		if owned[id] {
			e.log.Error("box still owned after delete", zap.Int64("box_id", id))
			return ErrInvariant
		}
	}
	return nil
}

func (e *Engine) removeContents(ctx context.Context, tx *sqlx.Tx, username string, held map[int64]struct{}, removedItems map[int64][]string, res *ReconcileResult) error {
	boxIDs := make([]int64, 0, len(removedItems))
	for id, names := range removedItems {
		if len(names) > 0 {
			boxIDs = append(boxIDs, id)
		}
	}
	sort.Slice(boxIDs, func(i, j int) bool { return boxIDs[i] < boxIDs[j] })

	for _, boxID := range boxIDs {
		if _, ok := held[boxID]; !ok {
			e.log.Warn("skipping content removal for box not held by caller",
				zap.String("username", username), zap.Int64("box_id", boxID))
			metrics.StaleRemovalsSkippedTotal.Inc()
			res.Skipped = append(res.Skipped, boxID)
			continue
		}
		current, err := e.contents.NamesTx(ctx, tx, boxID)
		if err != nil {
			return storageErr("load box contents", err)
		}
		verdict := ValidateRemovals(current, removedItems[boxID])
		if len(verdict.OverCap) > 0 {
			return &RemovalCapError{BoxID: boxID, Requested: append(append([]string{}, verdict.Accepted...), verdict.OverCap...)}
		}
		if len(verdict.Rejected) > 0 {
			e.log.Warn("ignoring content names not in box",
				zap.Int64("box_id", boxID), zap.Strings("names", verdict.Rejected))
		}
		if len(verdict.Accepted) == 0 {
			continue
		}
		n, err := e.contents.DeleteNamesTx(ctx, tx, boxID, verdict.Accepted)
		if err != nil {
			return storageErr("delete content lines", err)
		}
		if n != int64(len(verdict.Accepted)) {
			return ErrInvariant
		}
		res.RemovedItems[boxID] = verdict.Accepted
		metrics.ContentLinesRemovedTotal.Add(float64(n))
	}
	return nil
}

// ReleaseAll gives back every box username holds and returns their ids.
func (e *Engine) ReleaseAll(ctx context.Context, username string) ([]int64, error) {
	if strings.TrimSpace(username) == "" {
		return nil, validationErr("missing username")
	}
	var released []int64
	err := database.WithTx(ctx, e.db, func(tx *sqlx.Tx) error {
		ids, err := e.reservations.DeleteAllForUserTx(ctx, tx, username)
		if err != nil {
			return storageErr("delete reservations", err)
		}
		released = ids
		return e.syncOwnership(ctx, tx, nil, ids)
	})
	if err != nil {
		return nil, err
	}
	if len(released) > 0 {
		metrics.BoxesReleasedTotal.Add(float64(len(released)))
		e.publish(ctx, queue.ReservationEvent{
			Kind:     queue.KindReleased,
			Username: username,
			Added:    []int64{},
			Removed:  released,
			Holdings: []int64{},
		})
	}
	return released, nil
}

// CancelReservation force-releases boxID on behalf of a shop.  When shopID
// is non-nil the box must be offered by that shop (repository.ErrForbidden
// otherwise); admins pass nil.  It returns the customer who lost the box, or
// ErrNotHeld when nobody held it.
func (e *Engine) CancelReservation(ctx context.Context, actor string, boxID int64, shopID *int64) (string, error) {
	var holder string
	err := database.WithTx(ctx, e.db, func(tx *sqlx.Tx) error {
		states, err := e.boxes.StatesTx(ctx, tx, []int64{boxID})
		if err != nil {
			return storageErr("load box", err)
		}
		if len(states) == 0 {
			return &NotFoundError{BoxIDs: []int64{boxID}}
		}
		if shopID != nil {
			owner, err := e.boxes.ShopOfBoxTx(ctx, tx, boxID)
			if errors.Is(err, repository.ErrBoxNotFound) || (err == nil && owner != *shopID) {
				return repository.ErrForbidden
			}
			if err != nil {
				return storageErr("load box shop", err)
			}
		}
		holder, err = e.reservations.DeleteByBoxTx(ctx, tx, boxID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotHeld
		}
		if err != nil {
			return storageErr("delete reservation", err)
		}
		return e.syncOwnership(ctx, tx, nil, []int64{boxID})
	})
	if err != nil {
		return "", err
	}
	metrics.BoxesReleasedTotal.Inc()
	e.log.Info("reservation cancelled",
		zap.String("actor", actor), zap.String("username", holder), zap.Int64("box_id", boxID))
	e.publish(ctx, queue.ReservationEvent{
		Kind:     queue.KindCancelled,
		Username: holder,
		Actor:    actor,
		Added:    []int64{},
		Removed:  []int64{boxID},
	})
	return holder, nil
}

func (e *Engine) observeFailure(username string, err error) {
	var (
		unavailable *UnavailableError
		storage     *StorageError
	)
	switch {
	case errors.As(err, &unavailable):
		metrics.ReconcileTotal.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		e.log.Info("reconcile rolled back: boxes unavailable",
			zap.String("username", username), zap.Int64s("box_ids", unavailable.BoxIDs))
	case errors.As(err, &storage), errors.Is(err, ErrInvariant), !isBusinessError(err):
		metrics.ReconcileTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		e.log.Error("reconcile rolled back", zap.String("username", username), zap.Error(err))
	default:
		metrics.ReconcileTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		e.log.Info("reconcile rolled back", zap.String("username", username), zap.Error(err))
	}
}

func isBusinessError(err error) bool {
	for _, target := range []error{ErrValidation, ErrUnavailable, ErrRemovalCap, ErrNotFound, ErrExpired} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (e *Engine) publish(ctx context.Context, ev queue.ReservationEvent) {
	if e.publisher == nil {
		return
	}
	ev.EventID = uuid.NewString()
	ev.OccurredAt = e.now().UTC().Format(time.RFC3339)
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := e.publisher.PublishReservation(pctx, ev); err != nil {
		metrics.EventPublishErrorsTotal.Inc()
		e.log.Warn("reservation event not delivered", zap.String("event_id", ev.EventID), zap.Error(err))
	}
}
