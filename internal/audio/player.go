package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/opslatam/pistoleado/internal/log"
	"github.com/opslatam/pistoleado/internal/metrics"
)

// Sink plays one resolved audio file from the start. Implementations must be
// safe for concurrent use; each call restarts playback from position zero.
type Sink interface {
	Play(path string) error
}

// Player resolves cue ids to recordings and plays them through a Sink.
//
// Resolution results are cached: each cue is looked up on disk once and the
// verdict reused. A missing dynamically-named cue (container labels, odd
// counts) transparently falls back to the generic scan_ok cue so the operator
// is never left without confirmation.
type Player struct {
	dir    string
	sink   Sink
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]string // cue id -> resolved path, "" = known missing
}

// NewPlayer creates a Player resolving cues under dir.
func NewPlayer(dir string, sink Sink) *Player {
	return &Player{
		dir:    dir,
		sink:   sink,
		logger: log.WithComponent("audio"),
		cache:  make(map[string]string),
	}
}

// Play fires the cue and returns immediately. It never blocks the caller and
// never propagates a failure.
func (p *Player) Play(cue string) {
	go p.play(cue)
}

func (p *Player) play(cue string) {
	defer func() {
		if r := recover(); r != nil {
			metrics.AudioFailures.Inc()
			p.logger.Warn().Interface("panic", r).Str(log.FieldCue, cue).Msg("audio playback panicked")
		}
	}()

	path := p.resolve(cue)
	if path == "" && cue != CueScanOK {
		// Missing recording: substitute the generic confirmation.
		path = p.resolve(CueScanOK)
	}
	if path == "" {
		metrics.AudioFailures.Inc()
		p.logger.Debug().Str(log.FieldCue, cue).Msg("no recording available for cue")
		return
	}

	if err := p.sink.Play(path); err != nil {
		metrics.AudioFailures.Inc()
		p.logger.Warn().Err(err).Str(log.FieldCue, cue).Str(log.FieldPath, path).Msg("audio playback failed")
	}
}

// resolve maps a cue id to a file path, caching both hits and misses.
func (p *Player) resolve(cue string) string {
	p.mu.RLock()
	path, ok := p.cache[cue]
	p.mu.RUnlock()
	if ok {
		return path
	}

	path = ""
	candidate := filepath.Join(p.dir, cue+".mp3")
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		path = candidate
	}

	p.mu.Lock()
	p.cache[cue] = path
	p.mu.Unlock()
	return path
}

// ExecSink shells out to a player binary (mpg123, paplay, afplay...). Each
// invocation starts a fresh process, so playback always restarts from zero
// even when the same cue fires in rapid succession.
type ExecSink struct {
	Binary string
	Args   []string
}

func (s *ExecSink) Play(path string) error {
	args := append(append([]string(nil), s.Args...), path)
	cmd := exec.CommandContext(context.Background(), s.Binary, args...)
	return cmd.Run()
}

var _ Sink = (*ExecSink)(nil)
