// SPDX-License-Identifier: MIT

package session

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/opslatam/pistoleado/internal/log"
)

// Store holds the live session state and mirrors every write to its backend.
//
// The in-memory state is authoritative for the life of the process. Backend
// write failures are swallowed: losing persistence only costs session
// resumption after a restart, never correctness of the running session.
type Store struct {
	mu      sync.Mutex
	backend Backend
	logger  zerolog.Logger

	provider     string
	container    string
	scanCount    int
	audioEnabled bool
	events       []ScanEvent // newest first, len <= MaxEvents
	nextEventID  int64
}

// NewStore creates a Store bound to the given backend and repopulates state
// from it. Malformed stored values fall back to field defaults.
func NewStore(backend Backend) *Store {
	s := &Store{
		backend:      backend,
		logger:       log.WithComponent("session"),
		audioEnabled: true,
		nextEventID:  1,
	}
	s.load()
	return s
}

func (s *Store) load() {
	if v, ok := s.get(keyProvider); ok {
		s.provider = string(v)
	}
	if v, ok := s.get(keyContainer); ok {
		s.container = string(v)
	}
	if v, ok := s.get(keyCount); ok {
		if n, err := strconv.Atoi(string(v)); err == nil && n >= 0 {
			s.scanCount = n
		}
	}
	if v, ok := s.get(keyAudio); ok {
		if b, err := strconv.ParseBool(string(v)); err == nil {
			s.audioEnabled = b
		}
	}
	if v, ok := s.get(keyNextID); ok {
		if n, err := strconv.ParseInt(string(v), 10, 64); err == nil && n > 0 {
			s.nextEventID = n
		}
	}
	if v, ok := s.get(keyEvents); ok {
		var events []ScanEvent
		if err := json.Unmarshal(v, &events); err == nil {
			if len(events) > MaxEvents {
				events = events[:MaxEvents]
			}
			s.events = events
		} else {
			s.logger.Debug().Err(err).Msg("stored event log malformed, starting empty")
		}
	}
}

func (s *Store) get(key string) ([]byte, bool) {
	v, ok, err := s.backend.Get(key)
	if err != nil {
		s.logger.Debug().Err(err).Str(log.FieldPath, key).Msg("session read failed")
		return nil, false
	}
	return v, ok
}

// put mirrors one field to the backend, swallowing failures.
func (s *Store) put(key string, value []byte) {
	if err := s.backend.Put(key, value); err != nil {
		s.logger.Debug().Err(err).Str(log.FieldPath, key).Msg("session write failed, in-memory state remains authoritative")
	}
}

// Provider returns the selected logistics provider id, empty if none.
func (s *Store) Provider() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

// SetProvider records the selected logistics provider.
func (s *Store) SetProvider(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = id
	s.put(keyProvider, []byte(id))
}

// Container returns the active container label, empty if none.
func (s *Store) Container() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.container
}

// SetContainer records the active container label. Only a successful
// container command may call this; it is never inferred from a shipment scan.
func (s *Store) SetContainer(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.container = label
	s.put(keyContainer, []byte(label))
}

// ScanCount returns the operator's running successful-scan count.
func (s *Store) ScanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanCount
}

// SetScanCount sets the counter to the server-reported running count.
// Negative values clamp to zero.
func (s *Store) SetScanCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.scanCount = n
	s.put(keyCount, []byte(strconv.Itoa(n)))
}

// DecrementScanCount lowers the counter by one, never below zero, and
// returns the new value.
func (s *Store) DecrementScanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanCount > 0 {
		s.scanCount--
	}
	s.put(keyCount, []byte(strconv.Itoa(s.scanCount)))
	return s.scanCount
}

// AudioEnabled reports whether audio cues are enabled.
func (s *Store) AudioEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioEnabled
}

// SetAudioEnabled toggles the global audio mute flag.
func (s *Store) SetAudioEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioEnabled = enabled
	s.put(keyAudio, []byte(strconv.FormatBool(enabled)))
}

// Append adds an event to the front of the log, evicting the oldest entry
// beyond capacity, and returns the stored event with its assigned id.
func (s *Store) Append(ev ScanEvent) ScanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = s.nextEventID
	s.nextEventID++

	s.events = append([]ScanEvent{ev}, s.events...)
	if len(s.events) > MaxEvents {
		s.events = s.events[:MaxEvents]
	}

	s.put(keyNextID, []byte(strconv.FormatInt(s.nextEventID, 10)))
	if buf, err := json.Marshal(s.events); err == nil {
		s.put(keyEvents, buf)
	}
	return ev
}

// Events returns a copy of the log, newest first.
func (s *Store) Events() []ScanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScanEvent, len(s.events))
	copy(out, s.events)
	return out
}

// LastSuccess returns the newest success event, if any. Only success events
// are eligible targets for a void.
func (s *Store) LastSuccess() (ScanEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.Kind == EventSuccess {
			return ev, true
		}
	}
	return ScanEvent{}, false
}

// Close releases the persistence backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
