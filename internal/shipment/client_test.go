package shipment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDate() time.Time {
	return time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
}

func TestSubmit_Accepted(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.AddShipment("45335511237", "oca", "Juan Pérez")

	c := New(mock.URL)
	out, err := c.Submit(context.Background(), SubmitRequest{
		ShipmentID: "45335511237",
		Container:  "CAJA 1",
		ProviderID: "oca",
		OperatorID: "op-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, out.Kind)
	assert.Equal(t, "Juan Pérez", out.ReceiverName)
	assert.Equal(t, 1, out.RunningCount)
}

func TestSubmit_RetrySurfacesAsAlreadyScanned(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.AddShipment("45335511237", "oca", "Juan Pérez")

	c := New(mock.URL)
	req := SubmitRequest{ShipmentID: "45335511237", Container: "CAJA 1", ProviderID: "oca", OperatorID: "op-1"}

	first, err := c.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, first.Kind)

	second, err := c.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyScanned, second.Kind)
	assert.Equal(t, "op-1", second.ByOperator)
	assert.Equal(t, "CAJA 1", second.InContainer)
}

func TestSubmit_ProviderMismatch(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.AddShipment("99887766", "andreani", "Ana Díaz")

	c := New(mock.URL)
	out, err := c.Submit(context.Background(), SubmitRequest{
		ShipmentID: "99887766", Container: "CAJA 2", ProviderID: "oca", OperatorID: "op-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProviderMismatch, out.Kind)
	assert.Equal(t, "andreani", out.AssignedProvider)
	assert.Equal(t, "oca", out.AttemptedProvider)
}

func TestSubmit_NotFound(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	c := New(mock.URL)
	out, err := c.Submit(context.Background(), SubmitRequest{
		ShipmentID: "00000000", Container: "CAJA 1", ProviderID: "oca", OperatorID: "op-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, out.Kind)
}

func TestSubmit_ServerErrorCarriesDetail(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.AddShipment("45335511237", "oca", "Juan Pérez")
	mock.SetFailing(true)

	c := New(mock.URL)
	_, err := c.Submit(context.Background(), SubmitRequest{
		ShipmentID: "45335511237", Container: "CAJA 1", ProviderID: "oca", OperatorID: "op-1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamError))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Body, "base de datos")
}

func TestSubmit_TransportFailure(t *testing.T) {
	c := New("http://127.0.0.1:1") // nothing listening
	_, err := c.Submit(context.Background(), SubmitRequest{ShipmentID: "12345678"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestSubmit_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Submit(ctx, SubmitRequest{ShipmentID: "12345678"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
}

func TestRetract(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.AddShipment("45335511237", "oca", "Juan Pérez")

	c := New(mock.URL)
	_, err := c.Submit(context.Background(), SubmitRequest{
		ShipmentID: "45335511237", Container: "CAJA 1", ProviderID: "oca", OperatorID: "op-1",
	})
	require.NoError(t, err)

	ret, err := c.Retract(context.Background(), "45335511237", "op-1")
	require.NoError(t, err)
	assert.Equal(t, "op-1", ret.RetractedBy)
	assert.Zero(t, mock.ScannedCount())
}

func TestRetract_NeverScannedIsRejected(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	c := New(mock.URL)
	_, err := c.Retract(context.Background(), "45335511237", "op-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetractRejected))
}

func TestProgress(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.AddShipment("11111111", "oca", "A")
	mock.AddShipment("22222222", "oca", "B")

	c := New(mock.URL)
	_, err := c.Submit(context.Background(), SubmitRequest{
		ShipmentID: "11111111", Container: "CAJA 1", ProviderID: "oca", OperatorID: "op-1",
	})
	require.NoError(t, err)

	p, err := c.Progress(context.Background(), "oca", testDate())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Scanned)
	assert.Equal(t, 2, p.Total)
	assert.Equal(t, 1, p.ByContainer["CAJA 1"])
}

func TestListProviders(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.AddShipment("11111111", "oca", "A")
	mock.AddShipment("22222222", "andreani", "B")

	c := New(mock.URL)
	providers, err := c.ListProviders(context.Background(), testDate())
	require.NoError(t, err)
	assert.Len(t, providers, 2)
}
