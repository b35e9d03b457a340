// Package audio plays pre-recorded cues so the operator gets hands-free
// confirmation without looking at a screen. Playback is fire-and-forget and
// can never abort a scan outcome: every failure is swallowed at this
// package's boundary.
package audio

import (
	"strconv"
	"strings"
)

// Named cues for fixed outcomes.
const (
	CueScanOK        = "scan_ok"
	CueScanDuplicate = "scan_duplicate"
	CueInvalidScan   = "invalid_scan"
	CueUploadOK      = "upload_ok"
	CueUploadError   = "upload_error"
	CueAnulado       = "anulado"
	CueCargaCompleta = "carga_completa"
)

// Numbered cues cover counts 1 through 500, one recording per number.
const (
	MinNumbered = 1
	MaxNumbered = 500
)

// InNumberedRange reports whether n has a numbered recording.
func InNumberedRange(n int) bool {
	return n >= MinNumbered && n <= MaxNumbered
}

// NumberedCue returns the cue id for a running count. Callers must check
// InNumberedRange first.
func NumberedCue(n int) string {
	return strconv.Itoa(n)
}

// ContainerCue derives a cue id from a container label: lowercase, spaces to
// underscores. "CAJA 1" -> "caja_1", "POR FUERA" -> "por_fuera".
func ContainerCue(label string) string {
	return strings.ReplaceAll(strings.ToLower(label), " ", "_")
}
