package audio

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opslatam/pistoleado/internal/bus"
)

type fakeSink struct {
	mu     sync.Mutex
	played []string
	err    error
	panics bool
}

func (f *fakeSink) Play(path string) error {
	if f.panics {
		panic("sink exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, path)
	return f.err
}

func (f *fakeSink) waitPlayed(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.played) >= n {
			out := append([]string(nil), f.played...)
			f.mu.Unlock()
			return out
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d plays", n)
	return nil
}

func writeCue(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name+".mp3")
	require.NoError(t, os.WriteFile(path, []byte("mp3"), 0o600))
	return path
}

func TestContainerCueTransform(t *testing.T) {
	assert.Equal(t, "caja_1", ContainerCue("CAJA 1"))
	assert.Equal(t, "por_fuera", ContainerCue("POR FUERA"))
	assert.Equal(t, "sueltos_12", ContainerCue("SUELTOS 12"))
}

func TestNumberedRange(t *testing.T) {
	assert.False(t, InNumberedRange(0))
	assert.True(t, InNumberedRange(1))
	assert.True(t, InNumberedRange(500))
	assert.False(t, InNumberedRange(501))
}

func TestPlayer_PlaysResolvedCue(t *testing.T) {
	dir := t.TempDir()
	path := writeCue(t, dir, "7")

	sink := &fakeSink{}
	p := NewPlayer(dir, sink)
	p.Play("7")

	played := sink.waitPlayed(t, 1)
	assert.Equal(t, path, played[0])
}

func TestPlayer_FallsBackToScanOK(t *testing.T) {
	dir := t.TempDir()
	fallback := writeCue(t, dir, CueScanOK)

	sink := &fakeSink{}
	p := NewPlayer(dir, sink)
	p.Play("caja_99") // no per-container recording

	played := sink.waitPlayed(t, 1)
	assert.Equal(t, fallback, played[0])
}

func TestPlayer_NothingAvailableIsSilent(t *testing.T) {
	sink := &fakeSink{}
	p := NewPlayer(t.TempDir(), sink)
	p.Play("caja_99")

	time.Sleep(50 * time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Empty(t, sink.played)
}

func TestPlayer_SinkPanicIsContained(t *testing.T) {
	dir := t.TempDir()
	writeCue(t, dir, CueScanOK)

	p := NewPlayer(dir, &fakeSink{panics: true})
	p.Play(CueScanOK)

	// The panic happens on the playback goroutine; give it time to be
	// recovered. A leaked panic would crash the test binary.
	time.Sleep(50 * time.Millisecond)
}

func TestPlayer_ResolutionIsCached(t *testing.T) {
	dir := t.TempDir()
	path := writeCue(t, dir, "3")

	sink := &fakeSink{}
	p := NewPlayer(dir, sink)
	p.Play("3")
	sink.waitPlayed(t, 1)

	// Removing the file does not affect subsequent plays: the handle was
	// resolved once and reused.
	require.NoError(t, os.Remove(path))
	p.Play("3")
	played := sink.waitPlayed(t, 2)
	assert.Equal(t, path, played[1])
}

func TestCueFor(t *testing.T) {
	tests := []struct {
		name   string
		msg    bus.Message
		want   string
		silent bool
	}{
		{"container", bus.Message{Outcome: bus.OutcomeContainerSet, Container: "CAJA 1"}, "caja_1", false},
		{"echo in range", bus.Message{Outcome: bus.OutcomeCounterEcho, Count: 7}, "7", false},
		{"echo out of range", bus.Message{Outcome: bus.OutcomeCounterEcho, Count: 501}, "", true},
		{"accepted in range", bus.Message{Outcome: bus.OutcomeAccepted, Count: 12}, "12", false},
		{"accepted out of range", bus.Message{Outcome: bus.OutcomeAccepted, Count: 600}, CueUploadOK, false},
		{"duplicate", bus.Message{Outcome: bus.OutcomeDuplicate}, CueScanDuplicate, false},
		{"mismatch", bus.Message{Outcome: bus.OutcomeMismatch}, CueInvalidScan, false},
		{"invalid", bus.Message{Outcome: bus.OutcomeInvalid}, CueInvalidScan, false},
		{"upload error", bus.Message{Outcome: bus.OutcomeUploadError}, CueUploadError, false},
		{"voided", bus.Message{Outcome: bus.OutcomeVoided}, CueAnulado, false},
		{"complete", bus.Message{Outcome: bus.OutcomeLoadComplete}, CueCargaCompleta, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cue, ok := CueFor(tt.msg)
			if tt.silent {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, cue)
		})
	}
}

func TestSubscriber_MuteSkipsCues(t *testing.T) {
	dir := t.TempDir()
	writeCue(t, dir, CueScanDuplicate)

	sink := &fakeSink{}
	player := NewPlayer(dir, sink)

	var enabled atomic.Bool
	s := NewSubscriber(player, enabled.Load)

	b := bus.New()
	subscription := b.Subscribe(bus.TopicOutcomes)
	done := make(chan struct{})
	go func() {
		s.Run(subscription)
		close(done)
	}()

	require.NoError(t, b.Publish(t.Context(), bus.TopicOutcomes, bus.Message{Outcome: bus.OutcomeDuplicate}))
	time.Sleep(50 * time.Millisecond)
	sink.mu.Lock()
	assert.Empty(t, sink.played, "muted cue should not play")
	sink.mu.Unlock()

	// Unmute takes effect on the next cue.
	enabled.Store(true)
	require.NoError(t, b.Publish(t.Context(), bus.TopicOutcomes, bus.Message{Outcome: bus.OutcomeDuplicate}))
	sink.waitPlayed(t, 1)

	require.NoError(t, subscription.Close())
	<-done
}
