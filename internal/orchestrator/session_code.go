package orchestrator

import "fmt"

// FormatSessionCode renders the human-readable P{NNN}S{NNN} code (§6.4):
// patient ordinal + zero-padded 3-digit session sequence (starting at 1).
// The Store is responsible for allocating patientOrdinal/sessionSeq
// atomically per patient; this function only handles presentation.
func FormatSessionCode(patientOrdinal, sessionSeq int) string {
	return fmt.Sprintf("P%03dS%03d", patientOrdinal, sessionSeq)
}
