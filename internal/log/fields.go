package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID  = "request_id"
	FieldOperatorID = "operator_id"
	FieldSessionID  = "session_id"

	// Domain fields
	FieldShipmentID = "shipment_id"
	FieldContainer  = "container"
	FieldProvider   = "provider"
	FieldCommand    = "command"
	FieldCue        = "cue"
	FieldEventKind  = "event_kind"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldBackend   = "backend"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
