// Package bus is a small in-process pub/sub used to decouple the scan
// pipeline from its side-effect consumers. The pipeline publishes semantic
// outcome messages; subscribers (audio, journal) map them to their own
// effects. Delivery is at-least-once in-process while publish contexts
// remain active; the bus is not durable.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opslatam/pistoleado/internal/log"
)

// Outcome codes published on TopicOutcomes.
const (
	OutcomeContainerSet = "container_set"
	OutcomeCounterEcho  = "counter_echo"
	OutcomeAccepted     = "accepted"
	OutcomeDuplicate    = "duplicate"
	OutcomeMismatch     = "provider_mismatch"
	OutcomeInvalid      = "invalid"
	OutcomeUploadError  = "upload_error"
	OutcomeVoided       = "voided"
	OutcomeLoadComplete = "load_complete"
)

// TopicOutcomes carries one message per handled scan command.
const TopicOutcomes = "outcomes"

// Message is one semantic pipeline outcome.
type Message struct {
	Outcome   string
	Count     int    // running count, for numbered cues
	Container string // container label, for container cues
}

// Subscriber receives messages for one topic until closed.
type Subscriber interface {
	C() <-chan Message
	Close() error
}

// Bus is the in-process pub/sub.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]*sub
}

const dropLogEvery = 100

var dropCount atomic.Uint64

func New() *Bus {
	return &Bus{subs: make(map[string][]*sub)}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

// Publish delivers msg to every subscriber of topic, blocking until each
// accepts or ctx ends.
func (b *Bus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	subs := append([]*sub(nil), b.subs[topic]...)
	b.mu.RUnlock()
	for _, s := range subs {
		if err := s.send(ctx, msg); err != nil {
			reason := publishDropReason(err)
			count := dropCount.Add(1)
			if count%dropLogEvery == 0 {
				logger := log.WithComponent("bus")
				logger.Warn().
					Str("topic", topic).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("publish dropped due to context cancellation")
			}
			return fmt.Errorf("publish topic %q: %w", topic, err)
		}
	}
	return nil
}

// Subscribe registers a buffered subscriber for topic.
func (b *Bus) Subscribe(topic string) Subscriber {
	s := &sub{b: b, topic: topic, ch: make(chan Message, 64)}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	return s
}

type sub struct {
	b     *Bus
	topic string
	ch    chan Message

	// sendMu serializes sends against Close so the channel is never
	// closed mid-send.
	sendMu sync.Mutex
	closed bool
}

// send delivers msg unless the subscriber closed. A send racing Close waits
// at the mutex and observes closed on the other side.
func (s *sub) send(ctx context.Context, msg Message) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *sub) C() <-chan Message {
	return s.ch
}

func (s *sub) Close() error {
	s.b.mu.Lock()
	lst := s.b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	s.b.mu.Unlock()

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch) // signal subscriber to stop
	return nil
}
