package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/opslatam/pistoleado/internal/bus"
	"github.com/opslatam/pistoleado/internal/log"
	"github.com/opslatam/pistoleado/internal/metrics"
	"github.com/opslatam/pistoleado/internal/session"
	"github.com/opslatam/pistoleado/internal/shipment"
)

// VoidLastScan retracts the newest success in the event log.
//
// Only the most recent success is ever targeted: an accidental double-void
// reaches at most one step back, matching the physical reality that
// containers are packed in scan order.
func (p *Pipeline) VoidLastScan(ctx context.Context) {
	ev, ok := p.store.LastSuccess()
	if !ok {
		metrics.VoidsTotal.WithLabelValues("nothing_to_undo").Inc()
		p.appendEvent(ctx, session.EventError, "No hay escaneos para anular", "")
		return
	}

	ret, err := p.remote.Retract(ctx, ev.ShipmentID, p.Operator())
	if err != nil {
		metrics.VoidsTotal.WithLabelValues("error").Inc()
		p.logger.Warn().Err(err).Str(log.FieldShipmentID, ev.ShipmentID).Msg("retraction failed")
		p.appendEvent(ctx, session.EventError, "No se pudo anular "+ev.ShipmentID+": "+retractErrorDetail(err), "")
		return
	}

	metrics.VoidsTotal.WithLabelValues("ok").Inc()
	p.store.DecrementScanCount()
	p.appendEvent(ctx, session.EventAnulado, fmt.Sprintf("Anulado %s por %s", ev.ShipmentID, ret.RetractedBy), "")
	p.publish(ctx, bus.Message{Outcome: bus.OutcomeVoided})
	p.refreshStats(ctx)
}

func retractErrorDetail(err error) string {
	var apiErr *shipment.APIError
	if errors.As(err, &apiErr) && apiErr.Body != "" {
		return apiErr.Body
	}
	if errors.Is(err, shipment.ErrTimeout) {
		return "tiempo de espera agotado"
	}
	return "error del servidor"
}
