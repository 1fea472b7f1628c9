// Package c3d decodes the C3D binary motion-capture container (C1). It is a
// pure decoder: no filtering, no scaling policy decisions beyond what the
// file itself declares, no fabricated defaults.
package c3d

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/clinictrack/emgcore/internal/emgerrors"
)

const stageName = "c3d"

// blockSize is the fixed C3D disk-block size every offset is expressed in.
const blockSize = 512

// processorType identifies the byte order / float encoding a C3D file was
// written with, taken from the fourth byte of the parameter section header.
type processorType int

const (
	processorUnknown processorType = iota
	processorIntel                 // little-endian, IEEE-754 floats
	processorDEC                   // little-endian, DEC floats (rare; unsupported)
	processorMIPS                  // big-endian
)

// Header is the decoded fixed-size C3D header block.
type Header struct {
	ParameterBlockNumber int
	AnalogChannelCount   int
	PointChannelCount    int
	FirstFrame           int
	LastFrame            int
	FrameRateHz          float64 // point frame rate; SamplingRateHz below is the analog rate
	AnalogSamplesPerFrame int
	SamplingRateHz       float64
	FrameCount           int
}

// File is the full decode result handed to the signal conditioner.
type File struct {
	Header         Header
	ChannelLabels  []string
	Parameters     map[string]Parameter
	AnalogChannels [][]float64 // [channel][sample], sample-major flattened per channel
}

// Parameter is one decoded parameter-section value. Exactly one of the
// typed accessors below is meaningful, selected by Kind.
type Parameter struct {
	Group  string
	Name   string
	Kind   byte // -1 char, 1 byte, 2 int16, 4 float32 (C3D parameter type codes)
	Str    string
	Floats []float64
	Ints   []int
}

// StringValue returns the parameter's string payload, or "" if absent.
func (p Parameter) StringValue() string { return p.Str }

// FloatValue returns the first float, or (0, false) if none is present.
func (p Parameter) FloatValue() (float64, bool) {
	if len(p.Floats) == 0 {
		return 0, false
	}
	return p.Floats[0], true
}

// Decode parses raw C3D bytes into a File. It never applies clinical
// defaults (e.g. the 1000 Hz sampling-rate fallback) — that policy belongs
// to the orchestrator, which substitutes its default when the file declares
// no analog rate before calling the signal conditioner.
func Decode(raw []byte) (*File, error) {
	if len(raw) < blockSize {
		return nil, emgerrors.Corrupt(stageName, "file shorter than one disk block", nil)
	}
	paramBlockNum := int(raw[0])
	magic := raw[1]
	if magic != 0x50 {
		return nil, emgerrors.Corrupt(stageName, fmt.Sprintf("bad magic byte 0x%02x, expected 0x50", magic), nil)
	}
	if paramBlockNum < 1 {
		return nil, emgerrors.Corrupt(stageName, "invalid parameter block pointer", nil)
	}
	paramOffset := (paramBlockNum - 1) * blockSize
	if paramOffset+blockSize > len(raw) {
		return nil, emgerrors.Corrupt(stageName, "parameter block pointer out of range", nil)
	}

	proc := detectProcessor(raw[paramOffset+3])
	if proc == processorUnknown {
		return nil, emgerrors.UnsupportedFormat(stageName, "unrecognized processor type byte", nil)
	}
	if proc == processorDEC {
		return nil, emgerrors.UnsupportedFormat(stageName, "DEC floating-point encoding is not supported", nil)
	}
	bo := byteOrderFor(proc)

	pointCount := int(bo.Uint16(raw[2:4]))
	analogCountTotal := int(bo.Uint16(raw[4:6]))
	firstFrame := int(bo.Uint16(raw[6:8]))
	lastFrame := int(bo.Uint16(raw[8:10]))
	analogPerFrame := int(int16(bo.Uint16(raw[10:12])))
	frameRate := math.Float32frombits(bo.Uint32(raw[14:18]))

	params, err := parseParameters(raw[paramOffset:], bo)
	if err != nil {
		return nil, err
	}

	if analogCountTotal <= 0 {
		return nil, emgerrors.UnsupportedFormat(stageName, "no analog channels present; ANALOG parameter group required", nil)
	}

	labels := analogLabels(params, analogCountTotal)

	frameCount := lastFrame - firstFrame + 1
	if frameCount <= 0 {
		return nil, emgerrors.Corrupt(stageName, "non-positive frame range in header", nil)
	}

	samplingRate := 0.0
	if v, ok := params["ANALOG.RATE"]; ok {
		if f, ok2 := v.FloatValue(); ok2 {
			samplingRate = f
		}
	}
	if samplingRate == 0 && frameRate > 0 && analogPerFrame > 0 {
		samplingRate = float64(frameRate) * float64(analogPerFrame)
	}

	// Default to the first block after the parameter section (whose block
	// count is the third byte of its header); POINT.DATA_START overrides.
	dataStartBlock := paramBlockNum + int(raw[paramOffset+2])
	if v, ok := params["POINT.DATA_START"]; ok {
		if iv := v.Ints; len(iv) > 0 {
			dataStartBlock = iv[0]
		}
	}
	dataOffset := (dataStartBlock - 1) * blockSize
	if dataStartBlock < 1 || dataOffset >= len(raw) {
		return nil, emgerrors.Corrupt(stageName, "data section pointer out of range", nil)
	}

	scales := analogScales(params, analogCountTotal)
	offsets := analogOffsets(params, analogCountTotal)

	analog, err := decodeAnalogFrames(raw[dataOffset:], bo, analogCountTotal, analogPerFrame, frameCount, scales, offsets)
	if err != nil {
		return nil, err
	}

	return &File{
		Header: Header{
			ParameterBlockNumber:  paramBlockNum,
			AnalogChannelCount:    analogCountTotal,
			PointChannelCount:     pointCount,
			FirstFrame:            firstFrame,
			LastFrame:             lastFrame,
			FrameRateHz:           float64(frameRate),
			AnalogSamplesPerFrame: analogPerFrame,
			SamplingRateHz:        samplingRate,
			FrameCount:            frameCount * maxInt(analogPerFrame, 1),
		},
		ChannelLabels:  labels,
		Parameters:     params,
		AnalogChannels: analog,
	}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// detectProcessor maps the parameter-section processor-type byte (value -
// 83 = {1: Intel, 2: DEC, 3: MIPS}) to a processorType.
func detectProcessor(b byte) processorType {
	switch b {
	case 84:
		return processorIntel
	case 85:
		return processorDEC
	case 86:
		return processorMIPS
	default:
		return processorUnknown
	}
}

func byteOrderFor(p processorType) binary.ByteOrder {
	if p == processorMIPS {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// GameMetadata extracts the GAME_NAME, LEVEL, THERAPIST_ID, PLAYER_NAME,
// GROUP_ID and GAME_SCORE parameters into a flat map, degrading gracefully:
// missing parameters are absent, except level, which defaults to "1".
func (f *File) GameMetadata() map[string]string {
	out := make(map[string]string)
	for _, key := range []string{"TRIAL.GAME_NAME", "TRIAL.LEVEL", "TRIAL.THERAPIST_ID", "TRIAL.PLAYER_NAME", "TRIAL.GROUP_ID", "TRIAL.GAME_SCORE"} {
		if p, ok := f.Parameters[key]; ok && p.Str != "" {
			out[shortKey(key)] = p.Str
		}
	}
	if _, ok := out["level"]; !ok {
		out["level"] = "1"
	}
	return out
}

func shortKey(groupDotName string) string {
	for i := len(groupDotName) - 1; i >= 0; i-- {
		if groupDotName[i] == '.' {
			return lower(groupDotName[i+1:])
		}
	}
	return lower(groupDotName)
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

// SessionTime parses the TRIAL.TIME parameter per §6.3 ("YYYY-MM-DD
// HH:MM:SS", interpreted as UTC). Returns the zero time and false if absent
// or malformed; the caller (orchestrator) applies the "now" fallback.
func (f *File) SessionTime() (time.Time, bool) {
	p, ok := f.Parameters["TRIAL.TIME"]
	if !ok || p.Str == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", p.Str, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func analogLabels(params map[string]Parameter, count int) []string {
	labels := make([]string, count)
	if p, ok := params["ANALOG.LABELS"]; ok && p.Str != "" {
		parts := splitFixedWidth(p.Str, count)
		copy(labels, parts)
	}
	for i, l := range labels {
		if l == "" {
			labels[i] = fmt.Sprintf("CH%d", i+1)
		}
	}
	return labels
}

func analogScales(params map[string]Parameter, count int) []float64 {
	scales := make([]float64, count)
	for i := range scales {
		scales[i] = 1.0
	}
	if p, ok := params["ANALOG.SCALE"]; ok {
		for i := 0; i < count && i < len(p.Floats); i++ {
			if p.Floats[i] != 0 {
				scales[i] = p.Floats[i]
			}
		}
	}
	return scales
}

func analogOffsets(params map[string]Parameter, count int) []float64 {
	offsets := make([]float64, count)
	if p, ok := params["ANALOG.OFFSET"]; ok {
		for i := 0; i < count && i < len(p.Ints); i++ {
			offsets[i] = float64(p.Ints[i])
		}
	}
	return offsets
}

// splitFixedWidth splits a C3D character-array parameter value into `count`
// equal-width fields (C3D packs fixed-width, space-padded label arrays).
func splitFixedWidth(s string, count int) []string {
	if count <= 0 || len(s) == 0 {
		return nil
	}
	width := len(s) / count
	if width == 0 {
		return nil
	}
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		start := i * width
		end := start + width
		if end > len(s) {
			end = len(s)
		}
		out = append(out, trimRight(s[start:end]))
	}
	return out
}

func trimRight(s string) string {
	return string(bytes.TrimRight([]byte(s), " \x00"))
}
