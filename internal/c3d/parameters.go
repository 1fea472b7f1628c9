package c3d

import (
	"encoding/binary"
	"math"

	"github.com/clinictrack/emgcore/internal/emgerrors"
)

// parseParameters walks the C3D parameter section: a 4-byte section header
// followed by a flat sequence of group and parameter records, each
// self-describing its own length via a relative next-record offset. Group
// records carry a negative group id; parameter records carry a positive one
// naming the group they belong to.
func parseParameters(section []byte, bo binary.ByteOrder) (map[string]Parameter, error) {
	if len(section) < 4 {
		return nil, emgerrors.Corrupt(stageName, "parameter section truncated", nil)
	}
	groupNames := map[int]string{}
	params := map[string]Parameter{}

	pos := 4
	for pos+2 <= len(section) {
		nameLen := int(int8(section[pos]))
		groupID := int(int8(section[pos+1]))
		if nameLen == 0 {
			break
		}
		absNameLen := nameLen
		if absNameLen < 0 {
			absNameLen = -absNameLen
		}
		cursor := pos + 2
		if cursor+absNameLen > len(section) {
			break
		}
		name := trimRight(string(section[cursor : cursor+absNameLen]))
		cursor += absNameLen

		if cursor+2 > len(section) {
			break
		}
		nextOffset := int(int16(bo.Uint16(section[cursor : cursor+2])))
		recordStart := cursor + 2
		nextPos := recordStart + nextOffset
		if nextOffset == 0 {
			nextPos = len(section)
		}

		if groupID < 0 {
			groupNames[-groupID] = name
		} else if groupID > 0 {
			p, err := decodeParameter(section, recordStart, nextPos, bo, groupNames[groupID], name)
			if err == nil {
				params[p.Group+"."+p.Name] = p
			}
		}

		if nextPos <= pos || nextPos > len(section) {
			break
		}
		pos = nextPos
	}

	return params, nil
}

func decodeParameter(section []byte, start, end int, bo binary.ByteOrder, group, name string) (Parameter, error) {
	if start >= end || start >= len(section) {
		return Parameter{}, emgerrors.Corrupt(stageName, "truncated parameter record", nil)
	}
	p := Parameter{Group: group, Name: name}
	dataType := int8(section[start])
	p.Kind = byte(dataType)
	cursor := start + 1
	if cursor >= len(section) {
		return p, nil
	}
	numDims := int(section[cursor])
	cursor++
	dims := make([]int, numDims)
	elemCount := 1
	for i := 0; i < numDims && cursor < len(section); i++ {
		dims[i] = int(section[cursor])
		elemCount *= maxInt(dims[i], 1)
		cursor++
	}
	if numDims == 0 {
		elemCount = 1
	}

	elemSize := absInt8(dataType)
	totalBytes := elemCount * elemSize
	if elemSize == 0 {
		return p, nil
	}
	if cursor+totalBytes > len(section) {
		totalBytes = len(section) - cursor
		if totalBytes < 0 {
			totalBytes = 0
		}
	}
	payload := section[cursor : cursor+totalBytes]
	cursor += totalBytes

	switch dataType {
	case -1: // character data
		p.Str = trimRight(string(payload))
	case 1: // byte / signed 8-bit
		for _, b := range payload {
			p.Ints = append(p.Ints, int(int8(b)))
		}
	case 2: // int16
		for i := 0; i+2 <= len(payload); i += 2 {
			p.Ints = append(p.Ints, int(int16(bo.Uint16(payload[i:i+2]))))
		}
	case 4: // float32
		for i := 0; i+4 <= len(payload); i += 4 {
			p.Floats = append(p.Floats, float64(math.Float32frombits(bo.Uint32(payload[i:i+4]))))
		}
	}
	_ = cursor
	return p, nil
}

func absInt8(v int8) int {
	if v < 0 {
		return int(-v)
	}
	return int(v)
}

// decodeAnalogFrames reads the DATA section's interleaved analog samples
// (point data is skipped entirely — C1 exposes analog channels only) and
// applies each channel's scale/offset to produce calibrated float64 series.
func decodeAnalogFrames(data []byte, bo binary.ByteOrder, channelCount, samplesPerFrame, frameCount int, scales, offsets []float64) ([][]float64, error) {
	if samplesPerFrame <= 0 {
		samplesPerFrame = 1
	}
	totalSamples := samplesPerFrame * frameCount
	out := make([][]float64, channelCount)
	for c := range out {
		out[c] = make([]float64, 0, totalSamples)
	}

	const bytesPerSample = 4 // assume float32-stored analog data (most common C3D encoding)
	needed := totalSamples * channelCount * bytesPerSample
	if needed > len(data) {
		// Gracefully truncate to what is actually present rather than
		// failing the whole file — partial tail frames are common in
		// streamed captures.
		usable := len(data) / (channelCount * bytesPerSample)
		totalSamples = usable
	}

	pos := 0
	for s := 0; s < totalSamples; s++ {
		for c := 0; c < channelCount; c++ {
			if pos+4 > len(data) {
				break
			}
			raw := math.Float32frombits(bo.Uint32(data[pos : pos+4]))
			pos += 4
			val := float64(raw)*scales[c] + offsets[c]
			out[c] = append(out[c], val)
		}
	}
	return out, nil
}
