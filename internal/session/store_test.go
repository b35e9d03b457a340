package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Defaults(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	assert.Empty(t, s.Provider())
	assert.Empty(t, s.Container())
	assert.Zero(t, s.ScanCount())
	assert.True(t, s.AudioEnabled())
	assert.Empty(t, s.Events())
}

func TestStore_PersistsAcrossRestart(t *testing.T) {
	backend := NewMemoryBackend()

	s := NewStore(backend)
	s.SetProvider("oca")
	s.SetContainer("CAJA 1")
	s.SetScanCount(7)
	s.SetAudioEnabled(false)
	s.Append(ScanEvent{Kind: EventSuccess, Message: "ok", Timestamp: time.Now(), ShipmentID: "45335511237"})

	// Cold start against the same backend.
	s2 := NewStore(backend)
	assert.Equal(t, "oca", s2.Provider())
	assert.Equal(t, "CAJA 1", s2.Container())
	assert.Equal(t, 7, s2.ScanCount())
	assert.False(t, s2.AudioEnabled())

	events := s2.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "45335511237", events[0].ShipmentID)
}

func TestStore_EventTimestampsRoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewStore(backend)

	ts := time.Date(2026, 8, 31, 14, 5, 3, 123456000, time.UTC)
	s.Append(ScanEvent{Kind: EventComando, Message: "Modo: CAJA 1", Timestamp: ts})

	s2 := NewStore(backend)
	events := s2.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(ts), "timestamp did not round-trip: %v != %v", events[0].Timestamp, ts)
}

func TestStore_MalformedStoredValuesFallBack(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Put(keyCount, []byte("not a number")))
	require.NoError(t, backend.Put(keyAudio, []byte("maybe")))
	require.NoError(t, backend.Put(keyEvents, []byte("{broken json")))

	s := NewStore(backend)
	assert.Zero(t, s.ScanCount())
	assert.True(t, s.AudioEnabled())
	assert.Empty(t, s.Events())
}

func TestStore_CounterNeverNegative(t *testing.T) {
	s := NewStore(NewMemoryBackend())

	assert.Equal(t, 0, s.DecrementScanCount())
	s.SetScanCount(2)
	assert.Equal(t, 1, s.DecrementScanCount())
	assert.Equal(t, 0, s.DecrementScanCount())
	assert.Equal(t, 0, s.DecrementScanCount())

	s.SetScanCount(-5)
	assert.Equal(t, 0, s.ScanCount())
}

func TestStore_EventLogBoundedAt50(t *testing.T) {
	s := NewStore(NewMemoryBackend())

	for i := 0; i < MaxEvents+20; i++ {
		s.Append(ScanEvent{Kind: EventComando, Message: fmt.Sprintf("evento %d", i), Timestamp: time.Now()})
	}

	events := s.Events()
	require.Len(t, events, MaxEvents)
	// Newest first: the most recent append leads the log.
	assert.Equal(t, fmt.Sprintf("evento %d", MaxEvents+19), events[0].Message)
	// The oldest surviving entry is the 21st append.
	assert.Equal(t, "evento 20", events[MaxEvents-1].Message)
}

func TestStore_EventIDsMonotonic(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewStore(backend)

	a := s.Append(ScanEvent{Kind: EventComando, Message: "a", Timestamp: time.Now()})
	b := s.Append(ScanEvent{Kind: EventError, Message: "b", Timestamp: time.Now()})
	assert.Greater(t, b.ID, a.ID)

	// Ids keep increasing after a restart.
	s2 := NewStore(backend)
	c := s2.Append(ScanEvent{Kind: EventComando, Message: "c", Timestamp: time.Now()})
	assert.Greater(t, c.ID, b.ID)
}

func TestStore_LastSuccessSkipsOtherKinds(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	s.Append(ScanEvent{Kind: EventSuccess, Message: "A", Timestamp: time.Now(), ShipmentID: "11111111"})
	s.Append(ScanEvent{Kind: EventError, Message: "boom", Timestamp: time.Now()})
	s.Append(ScanEvent{Kind: EventSuccess, Message: "B", Timestamp: time.Now(), ShipmentID: "22222222"})
	s.Append(ScanEvent{Kind: EventDuplicate, Message: "dup", Timestamp: time.Now()})

	ev, ok := s.LastSuccess()
	require.True(t, ok)
	assert.Equal(t, "22222222", ev.ShipmentID)
}

func TestStore_LastSuccessEmptyLog(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	_, ok := s.LastSuccess()
	assert.False(t, ok)
}

// Write failures are swallowed: the in-memory state stays authoritative.
func TestStore_BackendWriteFailureSwallowed(t *testing.T) {
	s := NewStore(&failingBackend{})

	s.SetProvider("andreani")
	s.SetScanCount(3)
	s.Append(ScanEvent{Kind: EventComando, Message: "Modo: CAJA 2", Timestamp: time.Now()})

	assert.Equal(t, "andreani", s.Provider())
	assert.Equal(t, 3, s.ScanCount())
	assert.Len(t, s.Events(), 1)
}

func TestStore_EventsReturnsCopy(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	s.Append(ScanEvent{Kind: EventComando, Message: "orig", Timestamp: time.Now()})

	events := s.Events()
	events[0].Message = "mutated"

	if diff := cmp.Diff("orig", s.Events()[0].Message); diff != "" {
		t.Errorf("log entry mutated through copy (-want +got):\n%s", diff)
	}
}

type failingBackend struct{}

func (f *failingBackend) Get(string) ([]byte, bool, error) { return nil, false, nil }
func (f *failingBackend) Put(string, []byte) error         { return assert.AnError }
func (f *failingBackend) Close() error                     { return nil }
