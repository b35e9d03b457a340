package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	ts := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	j.Record(ctx, Entry{Timestamp: ts, Kind: "success", Message: "ok", ShipmentID: "45335511237", Container: "CAJA 1", Provider: "oca", Operator: "op-1"})
	j.Record(ctx, Entry{Timestamp: ts.Add(time.Minute), Kind: "duplicate", Message: "dup", ShipmentID: "45335511237"})

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "duplicate", entries[0].Kind)
	assert.Equal(t, "success", entries[1].Kind)
	assert.Equal(t, "CAJA 1", entries[1].Container)
	assert.True(t, entries[1].Timestamp.Equal(ts))
}

func TestRecentLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		j.Record(ctx, Entry{Timestamp: time.Now(), Kind: "comando", Message: "x"})
	}
	entries, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestNilJournalIsSafe(t *testing.T) {
	var j *Journal
	j.Record(context.Background(), Entry{Kind: "success"})
	assert.NoError(t, j.Close())
}
