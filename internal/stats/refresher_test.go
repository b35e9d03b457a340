package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/opslatam/pistoleado/internal/shipment"
)

type fakeReader struct {
	progress shipment.Progress
	err      error
	calls    int
}

func (f *fakeReader) Progress(context.Context, string, time.Time) (*shipment.Progress, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := f.progress
	return &p, nil
}

// unlimited removes the throttle so tests can poll freely.
func unlimited(r *Refresher) *Refresher {
	r.limiter = rate.NewLimiter(rate.Inf, 1)
	return r
}

func TestRefresh_EmptyProviderIsNoop(t *testing.T) {
	reader := &fakeReader{}
	r := unlimited(NewRefresher(reader))

	snap, err := r.Refresh(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Zero(t, reader.calls)
}

func TestRefresh_ReturnsSnapshot(t *testing.T) {
	reader := &fakeReader{progress: shipment.Progress{Scanned: 3, Total: 10, ByContainer: map[string]int{"CAJA 1": 3}}}
	r := unlimited(NewRefresher(reader))

	snap, err := r.Refresh(context.Background(), "oca")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.Scanned)
	assert.Equal(t, 10, snap.Total)
	assert.False(t, snap.Complete())
}

func TestSnapshotComplete(t *testing.T) {
	assert.True(t, (&Snapshot{Scanned: 10, Total: 10}).Complete())
	assert.False(t, (&Snapshot{Scanned: 9, Total: 10}).Complete())
	assert.False(t, (&Snapshot{Scanned: 0, Total: 0}).Complete(), "empty batch is never complete")
	assert.False(t, (*Snapshot)(nil).Complete())
}

func TestRefresh_ThrottleServesCachedSnapshot(t *testing.T) {
	reader := &fakeReader{progress: shipment.Progress{Scanned: 5, Total: 10}}
	r := NewRefresher(reader)
	r.limiter = rate.NewLimiter(rate.Every(time.Hour), 1) // one poll only

	first, err := r.Refresh(context.Background(), "oca")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := r.Refresh(context.Background(), "oca")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.Scanned, second.Scanned)
	assert.Equal(t, 1, reader.calls, "throttled refresh must not hit the endpoint")
}

func TestSync_BypassesThrottle(t *testing.T) {
	reader := &fakeReader{progress: shipment.Progress{Scanned: 9, Total: 10}}
	r := NewRefresher(reader)
	r.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	_, err := r.Refresh(context.Background(), "oca")
	require.NoError(t, err)
	require.Equal(t, 1, reader.calls)

	// The mutation path must see the real count even when the read-side
	// throttle is exhausted.
	reader.progress = shipment.Progress{Scanned: 10, Total: 10}
	snap, err := r.Sync(context.Background(), "oca")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2, reader.calls)
	assert.True(t, snap.Complete())
}

func TestSync_UpdatesCacheForReads(t *testing.T) {
	reader := &fakeReader{progress: shipment.Progress{Scanned: 4, Total: 10}}
	r := NewRefresher(reader)
	r.limiter = rate.NewLimiter(rate.Every(time.Hour), 0) // reads always throttled

	_, err := r.Sync(context.Background(), "oca")
	require.NoError(t, err)

	snap, err := r.Refresh(context.Background(), "oca")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 4, snap.Scanned, "throttled read serves the synced snapshot")

	last := r.Last()
	require.NotNil(t, last)
	assert.Equal(t, 4, last.Scanned)
}

func TestRefresh_ErrorPropagates(t *testing.T) {
	reader := &fakeReader{err: assert.AnError}
	r := unlimited(NewRefresher(reader))

	_, err := r.Refresh(context.Background(), "oca")
	assert.Error(t, err)
}
