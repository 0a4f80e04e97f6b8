// Package audio provides WAV inspection for the TTS gateway. The gateway
// reports a duration with every synthesis result; when the engine does not
// supply one, it is measured from the WAV header of the produced bytes.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV container layout constants.
const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkMinSize = 16
	bitsPerByte     = 8
)

// Static errors.
var (
	ErrNotWAV           = errors.New("data is not a RIFF/WAVE stream")
	ErrTruncated        = errors.New("wav data is truncated")
	ErrMissingFmtChunk  = errors.New("wav data has no fmt chunk")
	ErrMissingDataChunk = errors.New("wav data has no data chunk")
	ErrInvalidFormat    = errors.New("wav format fields are invalid")
)

// Info describes the sample format and payload of a WAV stream.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataBytes     int
}

// DurationSeconds computes the playback duration from the sample format.
func (i Info) DurationSeconds() float64 {
	bytesPerSecond := i.SampleRate * i.Channels * i.BitsPerSample / bitsPerByte
	if bytesPerSecond == 0 {
		return 0
	}

	return float64(i.DataBytes) / float64(bytesPerSecond)
}

// Probe parses the RIFF header and chunk list of a WAV stream and returns
// its format info. Only the header is inspected; sample data is not
// decoded.
func Probe(data []byte) (Info, error) {
	if len(data) < riffHeaderSize {
		return Info{}, ErrTruncated
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Info{}, ErrNotWAV
	}

	var (
		info     Info
		haveFmt  bool
		haveData bool
	)

	offset := riffHeaderSize

	for offset+chunkHeaderSize <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderSize

		switch chunkID {
		case "fmt ":
			if chunkSize < fmtChunkMinSize || body+fmtChunkMinSize > len(data) {
				return Info{}, fmt.Errorf("%w: fmt chunk of %d bytes", ErrTruncated, chunkSize)
			}

			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			info.DataBytes = chunkSize
			haveData = true
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		offset = body + chunkSize + chunkSize%2
	}

	if !haveFmt {
		return Info{}, ErrMissingFmtChunk
	}

	if !haveData {
		return Info{}, ErrMissingDataChunk
	}

	if info.SampleRate <= 0 || info.Channels <= 0 || info.BitsPerSample <= 0 {
		return Info{}, fmt.Errorf("%w: rate=%d channels=%d bits=%d",
			ErrInvalidFormat, info.SampleRate, info.Channels, info.BitsPerSample)
	}

	return info, nil
}

// Duration returns the playback duration in seconds of a WAV stream, or 0
// with an error when the stream cannot be parsed.
func Duration(data []byte) (float64, error) {
	info, err := Probe(data)
	if err != nil {
		return 0, err
	}

	return info.DurationSeconds(), nil
}
