// Package command classifies raw scanned payloads into intake commands.
//
// Parsing is pure and total: every non-empty trimmed input maps to exactly
// one command kind. Empty or whitespace-only input yields no command.
package command

import (
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind identifies the interpretation of a scanned payload.
type Kind string

const (
	// KindContainer selects the active container ("CAJA 3", "EXTRA", ...).
	KindContainer Kind = "container"
	// KindVoid retracts the most recent successful scan.
	KindVoid Kind = "void"
	// KindCounterEcho replays the operator's running count as audio.
	KindCounterEcho Kind = "counter_echo"
	// KindShipment submits a shipment id to the remote service.
	KindShipment Kind = "shipment"
	// KindUnknown is anything that matched no other interpretation.
	KindUnknown Kind = "unknown"
)

// Control words recognised on the intake. Printed on laminated cards next to
// each scanning station, so they never change casually.
const (
	WordVoid        = "ANULAR"
	WordCounterEcho = "BACKUP"
)

// Command is the parsed form of one raw scan.
type Command struct {
	Kind Kind

	// Label is the normalised container label. Set only for KindContainer.
	Label string
	// ShipmentID is the extracted shipment identifier. Set only for KindShipment.
	ShipmentID string
	// Raw is the trimmed original payload, preserved for log messages.
	Raw string
}

var (
	numberedContainerRe = regexp.MustCompile(`^(CAJA|SUELTOS) ([1-9][0-9]*)$`)
	bareShipmentRe      = regexp.MustCompile(`^[0-9]{8,}$`)
)

// Fixed container labels with no numeric suffix.
var fixedContainers = map[string]bool{
	"EXTRA":     true,
	"POR FUERA": true,
}

// Parse classifies one raw scanned payload. The second return value is false
// when the input is empty after trimming and no command should be dispatched.
//
// Precedence: container labels win over every other interpretation, then the
// control words, then JSON payloads carrying an id, then bare digit strings,
// and finally Unknown.
func Parse(raw string) (Command, bool) {
	trimmed := strings.TrimSpace(norm.NFC.String(raw))
	if trimmed == "" {
		return Command{}, false
	}

	upper := collapseSpaces(strings.ToUpper(trimmed))

	if fixedContainers[upper] || numberedContainerRe.MatchString(upper) {
		return Command{Kind: KindContainer, Label: upper, Raw: trimmed}, true
	}

	switch upper {
	case WordVoid:
		return Command{Kind: KindVoid, Raw: trimmed}, true
	case WordCounterEcho:
		return Command{Kind: KindCounterEcho, Raw: trimmed}, true
	}

	if id, ok := shipmentIDFromJSON(trimmed); ok {
		return Command{Kind: KindShipment, ShipmentID: id, Raw: trimmed}, true
	}

	if bareShipmentRe.MatchString(trimmed) {
		return Command{Kind: KindShipment, ShipmentID: trimmed, Raw: trimmed}, true
	}

	return Command{Kind: KindUnknown, Raw: trimmed}, true
}

// shipmentIDFromJSON extracts an "id" (or "shipping_id") value from a JSON
// payload. QR labels encode ids as numbers or strings depending on the label
// generator version, so both are coerced to their decimal string form.
func shipmentIDFromJSON(s string) (string, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return "", false
	}

	for _, key := range []string{"id", "shipping_id"} {
		v, ok := payload[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val, true
			}
		case json.Number:
			return val.String(), true
		}
	}
	return "", false
}

// collapseSpaces normalises runs of whitespace to single spaces. Keyboard-wedge
// scanners occasionally double the space between label word and number.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
