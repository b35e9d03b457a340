// Package pipeline orchestrates the scan intake: it consumes parsed
// commands, validates preconditions against the session, talks to the remote
// shipment service, updates the session and event log, and publishes semantic
// outcomes for the feedback subscribers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/opslatam/pistoleado/internal/bus"
	"github.com/opslatam/pistoleado/internal/command"
	"github.com/opslatam/pistoleado/internal/journal"
	"github.com/opslatam/pistoleado/internal/log"
	"github.com/opslatam/pistoleado/internal/metrics"
	"github.com/opslatam/pistoleado/internal/session"
	"github.com/opslatam/pistoleado/internal/shipment"
	"github.com/opslatam/pistoleado/internal/stats"
)

// Remote is the mutation side of the shipment protocol.
type Remote interface {
	Submit(ctx context.Context, req shipment.SubmitRequest) (*shipment.Outcome, error)
	Retract(ctx context.Context, shipmentID, operatorID string) (*shipment.Retraction, error)
}

// Phase is the session's explicit state. Shipment scans are only accepted in
// PhaseReady; the other phases tell the operator which setup step is missing.
type Phase string

const (
	// PhaseIdle: no logistics provider selected yet.
	PhaseIdle Phase = "idle"
	// PhaseAwaitingContainer: provider selected, no container scanned.
	PhaseAwaitingContainer Phase = "awaiting_container"
	// PhaseReady: provider and container set, accepting shipment scans.
	PhaseReady Phase = "ready"
	// PhaseSubmitting: one shipment submission is outstanding.
	PhaseSubmitting Phase = "submitting"
)

// publishTimeout bounds outcome publication so a stalled subscriber can
// never wedge the intake.
const publishTimeout = 250 * time.Millisecond

// Pipeline is the scan intake orchestrator. Handle is safe for concurrent
// use; shipment submissions are serialized by the processing guard, and a
// scan arriving while one is outstanding is dropped, not queued.
type Pipeline struct {
	store   *session.Store
	remote  Remote
	bus     *bus.Bus
	stats   *stats.Refresher
	journal *journal.Journal
	logger  zerolog.Logger
	now     func() time.Time

	opMu     sync.RWMutex
	operator string

	processing atomic.Bool

	completeMu   sync.Mutex
	completeSeen map[string]bool // provider -> completion already announced
}

// New creates a Pipeline. journal may be nil.
func New(store *session.Store, remote Remote, b *bus.Bus, refresher *stats.Refresher, j *journal.Journal, operator string) *Pipeline {
	return &Pipeline{
		store:        store,
		remote:       remote,
		bus:          b,
		stats:        refresher,
		journal:      j,
		logger:       log.WithComponent("pipeline"),
		now:          time.Now,
		operator:     operator,
		completeSeen: make(map[string]bool),
	}
}

// Operator returns the current operator id.
func (p *Pipeline) Operator() string {
	p.opMu.RLock()
	defer p.opMu.RUnlock()
	return p.operator
}

// SetOperator records the operator identity for subsequent scans.
func (p *Pipeline) SetOperator(id string) {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.operator = id
}

// Phase reports the explicit session state.
func (p *Pipeline) Phase() Phase {
	if p.processing.Load() {
		return PhaseSubmitting
	}
	if p.store.Provider() == "" {
		return PhaseIdle
	}
	if p.store.Container() == "" {
		return PhaseAwaitingContainer
	}
	return PhaseReady
}

// Handle processes one raw scanned payload. Empty input is ignored. Every
// path returns with the intake ready for the next scan.
func (p *Pipeline) Handle(ctx context.Context, raw string) {
	cmd, ok := command.Parse(raw)
	if !ok {
		return
	}

	switch cmd.Kind {
	case command.KindContainer:
		p.handleContainer(ctx, cmd)
	case command.KindVoid:
		p.VoidLastScan(ctx)
	case command.KindCounterEcho:
		p.handleCounterEcho(ctx)
	case command.KindShipment:
		p.handleShipment(ctx, cmd)
	case command.KindUnknown:
		p.handleUnknown(ctx, cmd)
	}
}

// SelectProvider switches the active logistics provider and re-syncs the
// aggregate progress.
func (p *Pipeline) SelectProvider(ctx context.Context, id string) {
	p.store.SetProvider(id)
	p.appendEvent(ctx, session.EventComando, "Logística: "+id, "")
	p.refreshStats(ctx)
}

func (p *Pipeline) handleContainer(ctx context.Context, cmd command.Command) {
	p.store.SetContainer(cmd.Label)
	p.appendEvent(ctx, session.EventComando, "Modo: "+cmd.Label, "")
	p.publish(ctx, bus.Message{Outcome: bus.OutcomeContainerSet, Container: cmd.Label})
}

func (p *Pipeline) handleCounterEcho(ctx context.Context) {
	count := p.store.ScanCount()
	p.appendEvent(ctx, session.EventComando, fmt.Sprintf("Contador: %d", count), "")
	p.publish(ctx, bus.Message{Outcome: bus.OutcomeCounterEcho, Count: count})
}

func (p *Pipeline) handleUnknown(ctx context.Context, cmd command.Command) {
	p.appendEvent(ctx, session.EventError, fmt.Sprintf("Entrada no reconocida: %q", cmd.Raw), "")
}

func (p *Pipeline) handleShipment(ctx context.Context, cmd command.Command) {
	// Only shipment scans take the guard: they are the only commands with an
	// outstanding remote call. A scan racing an in-flight submission is a
	// doubled trigger pull, safe to drop.
	if !p.processing.CompareAndSwap(false, true) {
		metrics.GuardDropsTotal.Inc()
		p.logger.Debug().Str(log.FieldShipmentID, cmd.ShipmentID).Msg("scan dropped, submission outstanding")
		return
	}
	defer p.processing.Store(false)

	// Precondition order is fixed: provider, then container, then operator.
	// Operator-facing messages depend on this order.
	provider := p.store.Provider()
	if provider == "" {
		p.appendEvent(ctx, session.EventError, "Seleccione una logística antes de escanear", "")
		return
	}
	container := p.store.Container()
	if container == "" {
		p.appendEvent(ctx, session.EventError, "Escanee una caja antes del envío", "")
		return
	}
	operator := p.Operator()
	if operator == "" {
		p.appendEvent(ctx, session.EventError, "Operador no identificado", "")
		return
	}

	start := p.now()
	outcome, err := p.remote.Submit(ctx, shipment.SubmitRequest{
		ShipmentID: cmd.ShipmentID,
		Container:  container,
		ProviderID: provider,
		OperatorID: operator,
	})
	metrics.ObserveSubmit(p.now().Sub(start))
	if err != nil {
		outcome = &shipment.Outcome{Kind: shipment.OutcomeOtherError, Detail: submitErrorDetail(err)}
	}

	metrics.IncScan(string(outcome.Kind))

	switch outcome.Kind {
	case shipment.OutcomeAccepted:
		// The server-reported running count is authoritative: a local
		// increment would drift when the operator works across devices.
		p.store.SetScanCount(outcome.RunningCount)
		msg := fmt.Sprintf("Envío %s registrado: %s (%s)", cmd.ShipmentID, outcome.ReceiverName, outcome.LocationLabel)
		p.appendEvent(ctx, session.EventSuccess, msg, cmd.ShipmentID)
		p.publish(ctx, bus.Message{Outcome: bus.OutcomeAccepted, Count: outcome.RunningCount})
		p.refreshStats(ctx)

	case shipment.OutcomeAlreadyScanned:
		msg := fmt.Sprintf("Ya escaneado por %s en %s", outcome.ByOperator, outcome.InContainer)
		p.appendEvent(ctx, session.EventDuplicate, msg, "")
		p.publish(ctx, bus.Message{Outcome: bus.OutcomeDuplicate})

	case shipment.OutcomeProviderMismatch:
		msg := fmt.Sprintf("Logística incorrecta: asignada %s, intentada %s", outcome.AssignedProvider, outcome.AttemptedProvider)
		p.appendEvent(ctx, session.EventLogisticaError, msg, "")
		p.publish(ctx, bus.Message{Outcome: bus.OutcomeMismatch})

	case shipment.OutcomeNotFound:
		p.appendEvent(ctx, session.EventError, fmt.Sprintf("Envío %s no encontrado", cmd.ShipmentID), "")
		p.publish(ctx, bus.Message{Outcome: bus.OutcomeInvalid})

	case shipment.OutcomeOtherError:
		p.appendEvent(ctx, session.EventError, "Error al registrar envío: "+outcome.Detail, "")
		p.publish(ctx, bus.Message{Outcome: bus.OutcomeUploadError})
	}
}

func submitErrorDetail(err error) string {
	switch {
	case errors.Is(err, shipment.ErrTimeout):
		return "tiempo de espera agotado"
	case errors.Is(err, shipment.ErrUpstreamUnavailable):
		return "servidor inaccesible"
	default:
		var apiErr *shipment.APIError
		if errors.As(err, &apiErr) && apiErr.Body != "" {
			return apiErr.Body
		}
		return "error del servidor"
	}
}

// refreshStats re-syncs aggregate progress and announces the one-time
// completion transition. It bypasses the read-side throttle: the poll after
// the final scan of a batch must see the real count.
func (p *Pipeline) refreshStats(ctx context.Context) {
	provider := p.store.Provider()
	snap, err := p.stats.Sync(ctx, provider)
	if err != nil || snap == nil {
		return
	}
	if p.completionTransition(provider, snap.Complete()) {
		p.appendEvent(ctx, session.EventComplete, fmt.Sprintf("Carga completa: %d/%d", snap.Scanned, snap.Total), "")
		p.publish(ctx, bus.Message{Outcome: bus.OutcomeLoadComplete})
	}
}

// completionTransition reports whether this observation is the transition to
// 100% for provider. It fires once per transition; dropping below 100% (a
// void, or new shipments assigned) re-arms it. The latch lives here, not in
// the refresher, so read-only progress polls can never steal the transition.
func (p *Pipeline) completionTransition(provider string, complete bool) bool {
	p.completeMu.Lock()
	defer p.completeMu.Unlock()
	if !complete {
		delete(p.completeSeen, provider)
		return false
	}
	if p.completeSeen[provider] {
		return false
	}
	p.completeSeen[provider] = true
	return true
}

// appendEvent writes to the session log, the metrics and the journal.
func (p *Pipeline) appendEvent(ctx context.Context, kind session.EventKind, msg, shipmentID string) session.ScanEvent {
	ev := p.store.Append(session.ScanEvent{
		Kind:       kind,
		Message:    msg,
		Timestamp:  p.now(),
		ShipmentID: shipmentID,
	})
	metrics.IncEvent(string(kind))
	p.journal.Record(ctx, journal.Entry{
		Timestamp:  ev.Timestamp,
		Kind:       string(kind),
		Message:    msg,
		ShipmentID: shipmentID,
		Container:  p.store.Container(),
		Provider:   p.store.Provider(),
		Operator:   p.Operator(),
	})
	return ev
}

func (p *Pipeline) publish(ctx context.Context, msg bus.Message) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.bus.Publish(pubCtx, bus.TopicOutcomes, msg); err != nil {
		p.logger.Debug().Err(err).Str("outcome", msg.Outcome).Msg("outcome publish dropped")
	}
}
