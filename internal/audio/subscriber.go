package audio

import (
	"github.com/rs/zerolog"

	"github.com/opslatam/pistoleado/internal/bus"
	"github.com/opslatam/pistoleado/internal/log"
)

// Subscriber consumes pipeline outcome messages and maps them to cues. It is
// the only place that knows which outcome sounds like what, which keeps the
// pipeline testable without an audio backend.
type Subscriber struct {
	player  *Player
	enabled func() bool // global mute flag, read per cue
	logger  zerolog.Logger
}

// NewSubscriber wires a Player to the outcome topic. enabled is consulted on
// every message, so toggling the flag takes effect on the next cue.
func NewSubscriber(player *Player, enabled func() bool) *Subscriber {
	return &Subscriber{
		player:  player,
		enabled: enabled,
		logger:  log.WithComponent("audio"),
	}
}

// Run drains the subscription until its channel closes.
func (s *Subscriber) Run(sub bus.Subscriber) {
	for msg := range sub.C() {
		if !s.enabled() {
			continue
		}
		if cue, ok := CueFor(msg); ok {
			s.player.Play(cue)
		}
	}
	s.logger.Debug().Msg("outcome subscription closed")
}

// CueFor maps one outcome message to a cue id. The second return value is
// false when the outcome is intentionally silent.
func CueFor(msg bus.Message) (string, bool) {
	switch msg.Outcome {
	case bus.OutcomeContainerSet:
		// Player falls back to scan_ok when no per-container recording exists.
		return ContainerCue(msg.Container), true
	case bus.OutcomeCounterEcho:
		if InNumberedRange(msg.Count) {
			return NumberedCue(msg.Count), true
		}
		return "", false
	case bus.OutcomeAccepted:
		if InNumberedRange(msg.Count) {
			return NumberedCue(msg.Count), true
		}
		return CueUploadOK, true
	case bus.OutcomeDuplicate:
		return CueScanDuplicate, true
	case bus.OutcomeMismatch, bus.OutcomeInvalid:
		return CueInvalidScan, true
	case bus.OutcomeUploadError:
		return CueUploadError, true
	case bus.OutcomeVoided:
		return CueAnulado, true
	case bus.OutcomeLoadComplete:
		return CueCargaCompleta, true
	default:
		return "", false
	}
}
