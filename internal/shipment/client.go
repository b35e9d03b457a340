package shipment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// submitTimeout bounds one submission round trip. The protocol has no
// server-side timeout contract, so a hung request would otherwise hold the
// pipeline's processing guard forever.
const submitTimeout = 10 * time.Second

// Client talks to the remote shipment service.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the service at base.
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{
			Timeout:   submitTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Submit records that operator placed shipment into container for provider.
// A retry of an already-accepted submission surfaces as AlreadyScanned.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Outcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &APIError{Sentinel: ErrUpstreamBadResponse, Operation: "submit", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/scans", bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Sentinel: ErrUpstreamUnavailable, Operation: "submit", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError("submit", err)
	}
	defer func() { _ = res.Body.Close() }()

	switch res.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var p struct {
			Receiver string `json:"receiver"`
			Location string `json:"location"`
			Count    int    `json:"count"`
		}
		if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
			return nil, &APIError{Sentinel: ErrUpstreamBadResponse, Operation: "submit", Status: res.StatusCode, Err: err}
		}
		return &Outcome{
			Kind:          OutcomeAccepted,
			ReceiverName:  p.Receiver,
			LocationLabel: p.Location,
			RunningCount:  p.Count,
		}, nil

	case http.StatusConflict:
		var p struct {
			Operator  string `json:"operator"`
			Container string `json:"container"`
		}
		if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
			return nil, &APIError{Sentinel: ErrUpstreamBadResponse, Operation: "submit", Status: res.StatusCode, Err: err}
		}
		return &Outcome{Kind: OutcomeAlreadyScanned, ByOperator: p.Operator, InContainer: p.Container}, nil

	case http.StatusUnprocessableEntity:
		var p struct {
			AssignedProvider  string `json:"assigned_provider"`
			AttemptedProvider string `json:"attempted_provider"`
		}
		if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
			return nil, &APIError{Sentinel: ErrUpstreamBadResponse, Operation: "submit", Status: res.StatusCode, Err: err}
		}
		return &Outcome{Kind: OutcomeProviderMismatch, AssignedProvider: p.AssignedProvider, AttemptedProvider: p.AttemptedProvider}, nil

	case http.StatusNotFound:
		return &Outcome{Kind: OutcomeNotFound}, nil

	default:
		return nil, statusError("submit", res)
	}
}

// Retract voids a previously accepted scan. Only valid on a shipment
// currently scanned; the server rejects anything else.
func (c *Client) Retract(ctx context.Context, shipmentID, operatorID string) (*Retraction, error) {
	body, err := json.Marshal(map[string]string{"operator_id": operatorID})
	if err != nil {
		return nil, &APIError{Sentinel: ErrUpstreamBadResponse, Operation: "retract", Err: err}
	}

	u := fmt.Sprintf("%s/api/scans/%s/void", c.base, url.PathEscape(shipmentID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Sentinel: ErrUpstreamUnavailable, Operation: "retract", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError("retract", err)
	}
	defer func() { _ = res.Body.Close() }()

	switch res.StatusCode {
	case http.StatusOK:
		var r Retraction
		if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
			return nil, &APIError{Sentinel: ErrUpstreamBadResponse, Operation: "retract", Status: res.StatusCode, Err: err}
		}
		return &r, nil
	case http.StatusNotFound, http.StatusConflict:
		return nil, &APIError{Sentinel: ErrRetractRejected, Operation: "retract", Status: res.StatusCode, Body: readBody(res.Body)}
	default:
		return nil, statusError("retract", res)
	}
}

// Progress reads the aggregate scan progress for provider on date.
func (c *Client) Progress(ctx context.Context, providerID string, date time.Time) (*Progress, error) {
	u := fmt.Sprintf("%s/api/progress?provider=%s&date=%s",
		c.base, url.QueryEscape(providerID), date.Format("2006-01-02"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Sentinel: ErrUpstreamUnavailable, Operation: "progress", Err: err}
	}
	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError("progress", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, statusError("progress", res)
	}
	var p Progress
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return nil, &APIError{Sentinel: ErrUpstreamBadResponse, Operation: "progress", Err: err}
	}
	return &p, nil
}

// ListProviders returns the providers with shipments on date.
func (c *Client) ListProviders(ctx context.Context, date time.Time) ([]Provider, error) {
	u := fmt.Sprintf("%s/api/providers?date=%s", c.base, date.Format("2006-01-02"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Sentinel: ErrUpstreamUnavailable, Operation: "providers", Err: err}
	}
	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError("providers", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, statusError("providers", res)
	}
	var providers []Provider
	if err := json.NewDecoder(res.Body).Decode(&providers); err != nil {
		return nil, &APIError{Sentinel: ErrUpstreamBadResponse, Operation: "providers", Err: err}
	}
	return providers, nil
}

func transportError(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Sentinel: ErrTimeout, Operation: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Sentinel: ErrTimeout, Operation: op, Err: err}
	}
	return &APIError{Sentinel: ErrUpstreamUnavailable, Operation: op, Err: err}
}

func statusError(op string, res *http.Response) error {
	sentinel := ErrUpstreamError
	if res.StatusCode == http.StatusNotFound {
		sentinel = ErrNotFound
	}
	return &APIError{Sentinel: sentinel, Operation: op, Status: res.StatusCode, Body: readBody(res.Body)}
}

func readBody(r io.Reader) string {
	buf, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(buf))
}
