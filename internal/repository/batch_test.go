package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInsertMany(t *testing.T) {
	q, args, err := Build(InsertMany{
		Table:   "reservations",
		Columns: []string{"username", "box_id", "created_at"},
		Rows: [][]any{
			{"alice", int64(1), int64(100)},
			{"alice", int64(4), int64(100)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO reservations (username, box_id, created_at) VALUES (?, ?, ?), (?, ?, ?)", q)
	assert.Equal(t, []any{"alice", int64(1), int64(100), "alice", int64(4), int64(100)}, args)
}

func TestBuildInsertManyRejectsRaggedRows(t *testing.T) {
	_, _, err := Build(InsertMany{
		Table:   "reservations",
		Columns: []string{"username", "box_id"},
		Rows:    [][]any{{"alice"}},
	})
	assert.Error(t, err)
}

func TestBuildDeleteMany(t *testing.T) {
	q, args, err := Build(DeleteMany{
		Table:  "reservations",
		Where:  []Eq{{Column: "username", Value: "bob"}},
		In:     "box_id",
		Values: Int64s([]int64{7, 8, 9}),
	})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM reservations WHERE username = ? AND box_id IN (?, ?, ?)", q)
	assert.Equal(t, []any{"bob", int64(7), int64(8), int64(9)}, args)
}

func TestBuildUpdateManyBindsSetArgsFirst(t *testing.T) {
	q, args, err := Build(UpdateMany{
		Table:   "boxes",
		Set:     "is_owned = ?",
		SetArgs: []any{1},
		In:      "id",
		Values:  Int64s([]int64{3}),
	})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE boxes SET is_owned = ? WHERE id IN (?)", q)
	assert.Equal(t, []any{1, int64(3)}, args)
}

func TestBuildEmptyBatchesAreNoOps(t *testing.T) {
	for _, op := range []Op{
		InsertMany{Table: "items", Columns: []string{"name"}},
		DeleteMany{Table: "items", In: "name"},
		UpdateMany{Table: "boxes", Set: "is_owned = 0", In: "id"},
	} {
		q, args, err := Build(op)
		require.NoError(t, err)
		assert.Empty(t, q)
		assert.Empty(t, args)
	}
}

func TestBuildRejectsUnsafeIdentifiers(t *testing.T) {
	_, _, err := Build(DeleteMany{
		Table:  "reservations; DROP TABLE boxes",
		In:     "box_id",
		Values: Int64s([]int64{1}),
	})
	assert.Error(t, err)

	_, _, err = Build(DeleteMany{
		Table:  "reservations",
		Where:  []Eq{{Column: "username OR 1=1", Value: "x"}},
		In:     "box_id",
		Values: Int64s([]int64{1}),
	})
	assert.Error(t, err)
}
