package store

import (
	"encoding/json"
	"strconv"

	"github.com/clinictrack/emgcore/pkg/models"
)

// metadataToJSON serializes the C3D game-metadata map for the jsonb
// session.game_metadata column. A nil map encodes as SQL NULL rather than
// the literal string "null", matching pgx's jsonb NULL handling for a nil
// []byte parameter.
func metadataToJSON(m map[string]string) []byte {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}

// contractionsToJSON serializes a channel's per-contraction measurements for
// the channel_analytics.contractions jsonb column.
func contractionsToJSON(cs []models.Contraction) []byte {
	if cs == nil {
		return []byte("[]")
	}
	b, err := json.Marshal(cs)
	if err != nil {
		return []byte("[]")
	}
	return b
}

// decodeContractions deserializes the contractions jsonb column, tolerating
// a missing or malformed value as "no stored contractions" rather than
// failing the whole row scan.
func decodeContractions(raw []byte) []models.Contraction {
	if len(raw) == 0 {
		return nil
	}
	var out []models.Contraction
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// decodeRPEMapping deserializes the rpe_mapping jsonb column, falling back
// to the process-default mapping on a missing or malformed row rather than
// surfacing a scoring configuration with an unusable mapping.
func decodeRPEMapping(raw []byte) map[int]float64 {
	if len(raw) == 0 {
		return models.DefaultRPEMapping()
	}
	var stringKeyed map[string]float64
	if err := json.Unmarshal(raw, &stringKeyed); err != nil {
		return models.DefaultRPEMapping()
	}
	out := make(map[int]float64, len(stringKeyed))
	for k, v := range stringKeyed {
		rpe, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[rpe] = v
	}
	return out
}
