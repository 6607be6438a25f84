package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/lexiqai/narration-gateway/internal/apperror"
)

const (
	riffHeaderSize  = 12 // "RIFF" + size + "WAVE"
	chunkHeaderSize = 8  // id + size
	pcmFmtSize      = 16

	formatPCM        = 0x0001
	formatExtensible = 0xFFFE
)

// FormatParameters describes an uncompressed linear PCM stream
type FormatParameters struct {
	SampleRate    int `json:"sample_rate"`
	Channels      int `json:"channels"`
	BitsPerSample int `json:"bits_per_sample"`
}

// Validate checks that the parameters describe a writable PCM stream
func (p FormatParameters) Validate() error {
	if p.SampleRate <= 0 {
		return &FormatError{Reason: fmt.Sprintf("invalid sample rate %d", p.SampleRate)}
	}
	if p.Channels <= 0 || p.Channels > 0xFFFF {
		return &FormatError{Reason: fmt.Sprintf("invalid channel count %d", p.Channels)}
	}
	switch p.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return &FormatError{Reason: fmt.Sprintf("unsupported bits per sample %d", p.BitsPerSample)}
	}
	return nil
}

// BlockAlign is the size in bytes of one frame (one sample for every channel)
func (p FormatParameters) BlockAlign() int {
	return p.Channels * (p.BitsPerSample / 8)
}

// ByteRate is the number of sample bytes per second of audio
func (p FormatParameters) ByteRate() int {
	return p.SampleRate * p.BlockAlign()
}

func (p FormatParameters) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", p.SampleRate, p.Channels, p.BitsPerSample)
}

// FormatError reports a malformed or unsupported audio container
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "audio format: " + e.Reason
}

// ErrorKind implements apperror.Classified
func (e *FormatError) ErrorKind() apperror.Kind {
	return apperror.KindFormat
}

// Decoded is the parsed content of one container
type Decoded struct {
	Format         FormatParameters
	Samples        []byte
	DurationMillis float64
}

// Frames returns the sample bytes trimmed to a whole number of frames
func (d *Decoded) Frames() []byte {
	align := d.Format.BlockAlign()
	if align <= 0 {
		return d.Samples
	}
	return d.Samples[:len(d.Samples)-len(d.Samples)%align]
}

// DurationMillis derives a playback duration from the sample byte count.
// The container carries no duration field, so this is the only source.
func DurationMillis(sampleBytes int, p FormatParameters) float64 {
	rate := p.ByteRate()
	if rate <= 0 {
		return 0
	}
	return float64(sampleBytes) * 1000 / float64(rate)
}

// Decode parses a RIFF/WAVE container holding linear PCM.
// Chunks are located by scanning; unknown chunks (LIST, fact, ...) and pad
// bytes are skipped. A data chunk whose declared size exceeds the remaining
// bytes (streamed containers written before the length was known) is clamped.
func Decode(b []byte) (*Decoded, error) {
	if len(b) < riffHeaderSize {
		return nil, &FormatError{Reason: fmt.Sprintf("container too short (%d bytes)", len(b))}
	}
	if !bytes.Equal(b[0:4], []byte("RIFF")) {
		return nil, &FormatError{Reason: "missing RIFF marker"}
	}
	if !bytes.Equal(b[8:12], []byte("WAVE")) {
		return nil, &FormatError{Reason: "missing WAVE marker"}
	}

	var (
		format   FormatParameters
		samples  []byte
		haveFmt  bool
		haveData bool
	)
	offset := riffHeaderSize

	for offset+chunkHeaderSize <= len(b) {
		id := string(b[offset : offset+4])
		size := int64(binary.LittleEndian.Uint32(b[offset+4 : offset+8]))
		body := offset + chunkHeaderSize
		remaining := int64(len(b) - body)

		switch id {
		case "fmt ":
			if size < pcmFmtSize || size > remaining {
				return nil, &FormatError{Reason: fmt.Sprintf("fmt chunk truncated (%d bytes)", size)}
			}
			parsed, err := parseFmt(b[body : body+int(size)])
			if err != nil {
				return nil, err
			}
			format = parsed
			haveFmt = true
		case "data":
			if size > remaining {
				size = remaining
			}
			samples = b[body : body+int(size)]
			haveData = true
		}

		if size > remaining {
			break
		}
		next := int64(body) + size
		if size%2 == 1 {
			next++
		}
		offset = int(next)
	}

	if !haveFmt {
		return nil, &FormatError{Reason: "missing fmt chunk"}
	}
	if !haveData {
		return nil, &FormatError{Reason: "missing data chunk"}
	}

	return &Decoded{
		Format:         format,
		Samples:        samples,
		DurationMillis: DurationMillis(len(samples), format),
	}, nil
}

func parseFmt(body []byte) (FormatParameters, error) {
	audioFormat := binary.LittleEndian.Uint16(body[0:2])
	params := FormatParameters{
		Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
		SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
		BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
	}

	switch audioFormat {
	case formatPCM:
	case formatExtensible:
		// cbSize(2) validBits(2) channelMask(4) subFormat GUID(16); the GUID
		// starts with the plain format tag.
		if len(body) < 40 {
			return params, &FormatError{Reason: "extensible fmt chunk truncated"}
		}
		if binary.LittleEndian.Uint16(body[24:26]) != formatPCM {
			return params, &FormatError{Reason: "extensible sub-format is not PCM"}
		}
	default:
		return params, &FormatError{Reason: fmt.Sprintf("unsupported audio format tag 0x%04x", audioFormat)}
	}

	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// Encode wraps raw sample bytes in a canonical 44-byte-header RIFF/WAVE
// container whose size fields match len(samples).
func Encode(samples []byte, p FormatParameters) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	dataSize := len(samples)
	pad := dataSize % 2
	if uint64(dataSize)+uint64(pad)+36 > 0xFFFFFFFF {
		return nil, &FormatError{Reason: fmt.Sprintf("sample data too large (%d bytes)", dataSize)}
	}

	out := make([]byte, 0, riffHeaderSize+chunkHeaderSize+pcmFmtSize+chunkHeaderSize+dataSize+pad)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(4+chunkHeaderSize+pcmFmtSize+chunkHeaderSize+dataSize+pad))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, pcmFmtSize)
	out = binary.LittleEndian.AppendUint16(out, formatPCM)
	out = binary.LittleEndian.AppendUint16(out, uint16(p.Channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(p.SampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(p.ByteRate()))
	out = binary.LittleEndian.AppendUint16(out, uint16(p.BlockAlign()))
	out = binary.LittleEndian.AppendUint16(out, uint16(p.BitsPerSample))

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))
	out = append(out, samples...)
	if pad == 1 {
		out = append(out, 0)
	}
	return out, nil
}
