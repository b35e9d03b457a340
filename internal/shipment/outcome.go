// Package shipment is the client for the remote scan-submission protocol.
// The remote service owns the authoritative "which shipment is in which
// container" record; this client only submits, retracts and reads it.
package shipment

// OutcomeKind classifies the result of a scan submission.
type OutcomeKind string

const (
	// OutcomeAccepted: the shipment was recorded into the container.
	OutcomeAccepted OutcomeKind = "accepted"
	// OutcomeAlreadyScanned: another (or the same) operator already scanned it.
	OutcomeAlreadyScanned OutcomeKind = "already_scanned"
	// OutcomeProviderMismatch: the shipment belongs to a different provider.
	OutcomeProviderMismatch OutcomeKind = "provider_mismatch"
	// OutcomeNotFound: the shipment id is unknown to the remote service.
	OutcomeNotFound OutcomeKind = "not_found"
	// OutcomeOtherError: transport or server failure, detail in Detail.
	OutcomeOtherError OutcomeKind = "other_error"
)

// Outcome is the interpreted result of one scan submission. Which fields are
// populated depends on Kind.
type Outcome struct {
	Kind OutcomeKind

	// Accepted
	ReceiverName  string
	LocationLabel string
	RunningCount  int

	// AlreadyScanned
	ByOperator  string
	InContainer string

	// ProviderMismatch
	AssignedProvider  string
	AttemptedProvider string

	// OtherError
	Detail string
}

// SubmitRequest records that an operator placed a shipment into a container
// for a provider.
type SubmitRequest struct {
	ShipmentID string `json:"shipment_id"`
	Container  string `json:"container"`
	ProviderID string `json:"provider_id"`
	OperatorID string `json:"operator_id"`
}

// Retraction is the result of a successful void.
type Retraction struct {
	RetractedBy string `json:"retracted_by"`
}

// Progress is the aggregate scan progress for one provider and date.
type Progress struct {
	Scanned     int            `json:"scanned"`
	Total       int            `json:"total"`
	ByContainer map[string]int `json:"by_container"`
}

// Provider is one logistics provider available for a date.
type Provider struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ColorTag string `json:"color_tag"`
}
