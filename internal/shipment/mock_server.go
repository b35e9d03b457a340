// SPDX-License-Identifier: MIT
package shipment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer is a configurable in-process shipment service for tests. It
// reproduces the remote conflict semantics: a shipment can be scanned at
// most once, and a retry surfaces as a duplicate, never a re-accept.
type MockServer struct {
	*httptest.Server
	mu sync.Mutex

	// shipment id -> provider it is assigned to
	assignments map[string]string
	// shipment id -> record of the accepted scan
	scanned map[string]scanRecord
	// receivers per shipment id
	receivers map[string]string

	total int
	delay time.Duration
	fail  bool // force 500 on every mutation
}

type scanRecord struct {
	operator  string
	container string
}

// NewMockServer starts a mock shipment service.
func NewMockServer() *MockServer {
	m := &MockServer{
		assignments: make(map[string]string),
		scanned:     make(map[string]scanRecord),
		receivers:   make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/scans", m.handleSubmit)
	mux.HandleFunc("/api/scans/", m.handleVoid)
	mux.HandleFunc("/api/progress", m.handleProgress)
	mux.HandleFunc("/api/providers", m.handleProviders)

	m.Server = httptest.NewServer(mux)
	return m
}

// AddShipment registers a shipment assigned to a provider.
func (m *MockServer) AddShipment(id, provider, receiver string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[id] = provider
	m.receivers[id] = receiver
	m.total++
}

// SetDelay makes every handler sleep before responding.
func (m *MockServer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetFailing forces mutations to return HTTP 500.
func (m *MockServer) SetFailing(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// ScannedCount reports how many shipments are currently scanned.
func (m *MockServer) ScannedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scanned)
}

func (m *MockServer) sleep() {
	m.mu.Lock()
	d := m.delay
	m.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func (m *MockServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	m.sleep()

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		http.Error(w, "base de datos no disponible", http.StatusInternalServerError)
		return
	}

	assigned, known := m.assignments[req.ShipmentID]
	if !known {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if rec, dup := m.scanned[req.ShipmentID]; dup {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"operator":  rec.operator,
			"container": rec.container,
		})
		return
	}
	if assigned != req.ProviderID {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"assigned_provider":  assigned,
			"attempted_provider": req.ProviderID,
		})
		return
	}

	m.scanned[req.ShipmentID] = scanRecord{operator: req.OperatorID, container: req.Container}
	count := 0
	for id := range m.scanned {
		if rec := m.scanned[id]; rec.operator == req.OperatorID {
			count++
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"receiver": m.receivers[req.ShipmentID],
		"location": "Depósito Central",
		"count":    count,
	})
}

func (m *MockServer) handleVoid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/void") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	m.sleep()

	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/scans/"), "/void")
	var req struct {
		OperatorID string `json:"operator_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		http.Error(w, "base de datos no disponible", http.StatusInternalServerError)
		return
	}
	if _, ok := m.scanned[id]; !ok {
		http.Error(w, "envío nunca escaneado", http.StatusConflict)
		return
	}
	delete(m.scanned, id)
	_ = json.NewEncoder(w).Encode(Retraction{RetractedBy: req.OperatorID})
}

func (m *MockServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	m.sleep()
	m.mu.Lock()
	defer m.mu.Unlock()

	provider := r.URL.Query().Get("provider")
	scanned := 0
	byContainer := make(map[string]int)
	for id, rec := range m.scanned {
		if m.assignments[id] == provider {
			scanned++
			byContainer[rec.container]++
		}
	}
	total := 0
	for _, p := range m.assignments {
		if p == provider {
			total++
		}
	}
	_ = json.NewEncoder(w).Encode(Progress{Scanned: scanned, Total: total, ByContainer: byContainer})
}

func (m *MockServer) handleProviders(w http.ResponseWriter, r *http.Request) {
	m.sleep()
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var providers []Provider
	for _, p := range m.assignments {
		if !seen[p] {
			seen[p] = true
			providers = append(providers, Provider{ID: p, Name: strings.ToUpper(p), ColorTag: "gray"})
		}
	}
	_ = json.NewEncoder(w).Encode(providers)
}
