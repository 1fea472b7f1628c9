package c3d

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMinimalC3D assembles a tiny synthetic container: one 512-byte header
// block, one 512-byte parameter block with a single ANALOG group carrying
// RATE/LABELS/SCALE/OFFSET, and one data block with 2 channels x 4 samples.
func buildMinimalC3D(t *testing.T) []byte {
	t.Helper()
	bo := binary.LittleEndian

	header := make([]byte, blockSize)
	header[0] = 2 // parameter block number
	header[1] = 0x50
	bo.PutUint16(header[2:4], 0)  // point channel count
	bo.PutUint16(header[4:6], 2)  // analog channel count
	bo.PutUint16(header[6:8], 1)  // first frame
	bo.PutUint16(header[8:10], 4) // last frame
	bo.PutUint16(header[10:12], uint16(int16(1)))
	bo.PutUint32(header[14:18], math.Float32bits(1000))

	param := make([]byte, blockSize)
	param[0] = 1
	param[1] = 0x50
	param[2] = 1  // one parameter block
	param[3] = 84 // Intel processor
	pos := 4

	// Group -1: ANALOG
	pos = writeGroupHeader(param, pos, -1, "ANALOG", bo, 6)

	// Parameter: ANALOG.RATE = 1000.0 (float32, scalar)
	pos = writeFloatParam(param, pos, 1, "RATE", []float32{1000.0}, bo)
	// Parameter: ANALOG.SCALE = [1.0, 1.0]
	pos = writeFloatParam(param, pos, 1, "SCALE", []float32{1.0, 1.0}, bo)
	// Parameter: ANALOG.OFFSET = [0, 0] (int16)
	pos = writeIntParam(param, pos, 1, "OFFSET", []int16{0, 0}, bo)
	// Parameter: ANALOG.LABELS = "CH1   CH2   " (2 fields of width 6)
	pos = writeCharParam(param, pos, 1, "LABELS", "CH1   CH2   ", bo)

	_ = pos

	data := make([]byte, blockSize)
	samples := []float32{1.0, 2.0, 1.5, 2.5, 2.0, 3.0, 2.5, 3.5}
	off := 0
	for _, s := range samples {
		bo.PutUint32(data[off:off+4], math.Float32bits(s))
		off += 4
	}

	raw := append(header, param...)
	raw = append(raw, data...)
	return raw
}

func writeGroupHeader(buf []byte, pos int, groupID int8, name string, bo binary.ByteOrder, descLen int) int {
	buf[pos] = byte(int8(len(name)))
	buf[pos+1] = byte(groupID)
	pos += 2
	copy(buf[pos:], name)
	pos += len(name)
	nextFieldPos := pos
	pos += 2 // offset field, filled below
	descStart := pos
	pos++ // description length byte = 0
	buf[descStart] = 0
	bo.PutUint16(buf[nextFieldPos:nextFieldPos+2], uint16(int16(pos-(nextFieldPos+2))))
	return pos
}

func writeFloatParam(buf []byte, pos int, groupID int8, name string, values []float32, bo binary.ByteOrder) int {
	start := pos
	buf[pos] = byte(int8(len(name)))
	buf[pos+1] = byte(groupID)
	pos += 2
	copy(buf[pos:], name)
	pos += len(name)
	nextFieldPos := pos
	pos += 2
	recordStart := pos

	buf[pos] = byte(int8(4)) // float32
	pos++
	if len(values) == 1 {
		buf[pos] = 0 // scalar
		pos++
	} else {
		buf[pos] = 1
		pos++
		buf[pos] = byte(len(values))
		pos++
	}
	for _, v := range values {
		bo.PutUint32(buf[pos:pos+4], math.Float32bits(v))
		pos += 4
	}
	buf[pos] = 0 // description length
	pos++

	bo.PutUint16(buf[nextFieldPos:nextFieldPos+2], uint16(int16(pos-recordStart)))
	_ = start
	return pos
}

func writeIntParam(buf []byte, pos int, groupID int8, name string, values []int16, bo binary.ByteOrder) int {
	buf[pos] = byte(int8(len(name)))
	buf[pos+1] = byte(groupID)
	pos += 2
	copy(buf[pos:], name)
	pos += len(name)
	nextFieldPos := pos
	pos += 2
	recordStart := pos

	buf[pos] = byte(int8(2)) // int16
	pos++
	if len(values) == 1 {
		buf[pos] = 0
		pos++
	} else {
		buf[pos] = 1
		pos++
		buf[pos] = byte(len(values))
		pos++
	}
	for _, v := range values {
		bo.PutUint16(buf[pos:pos+2], uint16(v))
		pos += 2
	}
	buf[pos] = 0
	pos++

	bo.PutUint16(buf[nextFieldPos:nextFieldPos+2], uint16(int16(pos-recordStart)))
	return pos
}

func writeCharParam(buf []byte, pos int, groupID int8, name, value string, bo binary.ByteOrder) int {
	buf[pos] = byte(int8(len(name)))
	buf[pos+1] = byte(groupID)
	pos += 2
	copy(buf[pos:], name)
	pos += len(name)
	nextFieldPos := pos
	pos += 2
	recordStart := pos

	buf[pos] = byte(int8(-1)) // char
	pos++
	buf[pos] = 1
	pos++
	buf[pos] = byte(len(value))
	pos++
	copy(buf[pos:], value)
	pos += len(value)
	buf[pos] = 0
	pos++

	bo.PutUint16(buf[nextFieldPos:nextFieldPos+2], uint16(int16(pos-recordStart)))
	return pos
}

func TestDecode_MinimalContainer(t *testing.T) {
	raw := buildMinimalC3D(t)
	f, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, 2, f.Header.AnalogChannelCount)
	assert.Equal(t, 1000.0, f.Header.SamplingRateHz)
	assert.Len(t, f.AnalogChannels, 2)
	assert.InDelta(t, 1.0, f.AnalogChannels[0][0], 0.0001)
	assert.InDelta(t, 2.0, f.AnalogChannels[1][0], 0.0001)
}

func TestDecode_RejectsBadMagic(t *testing.T) {
	raw := make([]byte, blockSize*2)
	raw[0] = 2
	raw[1] = 0x00 // wrong magic
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestDecode_RejectsShortFile(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
}
