package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageAppendsAuditLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "reservations.log")

	first, err := json.Marshal(ReservationEvent{
		EventID:      "e-1",
		Kind:         KindReconciled,
		Username:     "alice",
		Added:        []int64{4},
		Removed:      []int64{1},
		RemovedItems: map[int64][]string{4: {"milk", "eggs"}},
		Holdings:     []int64{2, 3, 4},
		OccurredAt:   "2026-03-14T12:00:00Z",
	})
	require.NoError(t, err)
	second, err := json.Marshal(ReservationEvent{
		EventID:    "e-2",
		Kind:       KindCancelled,
		Username:   "alice",
		Actor:      "owner1",
		Added:      []int64{},
		Removed:    []int64{4},
		OccurredAt: "2026-03-14T12:05:00Z",
	})
	require.NoError(t, err)

	require.NoError(t, handleMessage(first, path))
	require.NoError(t, handleMessage(second, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		`[2026-03-14T12:00:00Z] Reservation reconciled | event_id=e-1 | user="alice" | added=[4] | removed=[1] | removed_items=[4:milk+eggs] | holdings=[2,3,4]`,
		lines[0])
	assert.Equal(t,
		`[2026-03-14T12:05:00Z] Reservation cancelled | event_id=e-2 | user="alice" | actor="owner1" | added=[] | removed=[4]`,
		lines[1])
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	assert.Error(t, handleMessage([]byte("{not json"), path))
	assert.Error(t, handleMessage([]byte(`{"username":"alice"}`), path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
