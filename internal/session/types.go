// Package session owns the per-station intake session: the selected logistics
// provider, the active container, the operator's running scan counter and a
// bounded event log. All state lives in an explicitly-owned Store and is
// mirrored to a pluggable persistence backend so a station restart resumes
// where the operator left off.
package session

import "time"

// EventKind is the taxonomy of log entries surfaced to the operator. The
// station UI keys icons and colors off these exact strings, and operators are
// trained against them, so they are part of the external contract.
type EventKind string

const (
	EventComando        EventKind = "comando"
	EventSuccess        EventKind = "success"
	EventDuplicate      EventKind = "duplicate"
	EventLogisticaError EventKind = "logistica_error"
	EventError          EventKind = "error"
	EventAnulado        EventKind = "anulado"
	EventComplete       EventKind = "complete"
)

// ScanEvent is one immutable entry in the session log. Only success events
// carry a shipment id and are eligible targets for a void.
type ScanEvent struct {
	ID         int64     `json:"id"`
	Kind       EventKind `json:"kind"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	ShipmentID string    `json:"shipment_id,omitempty"`
}

// MaxEvents bounds the session log. Older entries are silently evicted.
const MaxEvents = 50
