package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/lexiqai/narration-gateway/internal/apperror"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	formats := []FormatParameters{
		{SampleRate: 16000, Channels: 1, BitsPerSample: 16},
		{SampleRate: 24000, Channels: 1, BitsPerSample: 16},
		{SampleRate: 44100, Channels: 2, BitsPerSample: 16},
		{SampleRate: 48000, Channels: 2, BitsPerSample: 24},
		{SampleRate: 8000, Channels: 1, BitsPerSample: 8},
	}
	lengths := []int{1, 2, 3, 480, 48001}

	for _, format := range formats {
		for _, n := range lengths {
			samples := make([]byte, n)
			for i := range samples {
				samples[i] = byte(i * 7)
			}

			encoded, err := Encode(samples, format)
			if err != nil {
				t.Fatalf("Encode(%s, %d bytes) failed: %v", format, n, err)
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode(%s, %d bytes) failed: %v", format, n, err)
			}

			if decoded.Format != format {
				t.Errorf("Expected format %s, got %s", format, decoded.Format)
			}
			if !bytes.Equal(decoded.Samples, samples) {
				t.Errorf("Samples differ after round trip for %s, %d bytes", format, n)
			}
			want := float64(n) / float64(format.SampleRate*format.Channels*format.BitsPerSample/8) * 1000
			if math.Abs(decoded.DurationMillis-want) > 1e-9 {
				t.Errorf("Expected duration %f, got %f", want, decoded.DurationMillis)
			}
		}
	}
}

func TestEncode_HeaderFields(t *testing.T) {
	format := FormatParameters{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
	samples := make([]byte, 4800)

	encoded, err := Encode(samples, format)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if len(encoded) != 44+len(samples) {
		t.Errorf("Expected %d bytes, got %d", 44+len(samples), len(encoded))
	}
	if got := binary.LittleEndian.Uint32(encoded[4:8]); got != uint32(36+len(samples)) {
		t.Errorf("Expected RIFF size %d, got %d", 36+len(samples), got)
	}
	if got := binary.LittleEndian.Uint32(encoded[28:32]); got != 48000 {
		t.Errorf("Expected byte rate 48000, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(encoded[40:44]); got != uint32(len(samples)) {
		t.Errorf("Expected data size %d, got %d", len(samples), got)
	}
}

func TestEncode_InvalidFormat(t *testing.T) {
	_, err := Encode([]byte{1, 2}, FormatParameters{SampleRate: 0, Channels: 1, BitsPerSample: 16})
	if err == nil {
		t.Fatal("Expected error for zero sample rate")
	}
	if !apperror.Is(err, apperror.KindFormat) {
		t.Errorf("Expected format error kind, got %v", err)
	}
}

func TestDecode_DurationFormula(t *testing.T) {
	format := FormatParameters{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	// 1.2 seconds at 32000 bytes per second
	encoded, _ := Encode(make([]byte, 38400), format)

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.DurationMillis != 1200 {
		t.Errorf("Expected 1200ms, got %f", decoded.DurationMillis)
	}
}

// buildContainer assembles a RIFF/WAVE file from raw chunks
func buildContainer(chunks ...[]byte) []byte {
	var body bytes.Buffer
	body.WriteString("WAVE")
	for _, c := range chunks {
		body.Write(c)
	}
	out := []byte("RIFF")
	out = binary.LittleEndian.AppendUint32(out, uint32(body.Len()))
	return append(out, body.Bytes()...)
}

func chunk(id string, payload []byte) []byte {
	out := []byte(id)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	if len(payload)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func pcmFmt(format FormatParameters) []byte {
	out := binary.LittleEndian.AppendUint16(nil, formatPCM)
	out = binary.LittleEndian.AppendUint16(out, uint16(format.Channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(format.SampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(format.ByteRate()))
	out = binary.LittleEndian.AppendUint16(out, uint16(format.BlockAlign()))
	return binary.LittleEndian.AppendUint16(out, uint16(format.BitsPerSample))
}

func TestDecode_SkipsPaddedUnknownChunks(t *testing.T) {
	format := FormatParameters{SampleRate: 22050, Channels: 1, BitsPerSample: 16}
	samples := []byte{1, 2, 3, 4, 5, 6}

	container := buildContainer(
		chunk("LIST", []byte("INFOabc")), // odd length, padded
		chunk("fmt ", pcmFmt(format)),
		chunk("fact", []byte{0, 0, 0, 0}),
		chunk("data", samples),
	)

	decoded, err := Decode(container)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Format != format {
		t.Errorf("Expected format %s, got %s", format, decoded.Format)
	}
	if !bytes.Equal(decoded.Samples, samples) {
		t.Errorf("Expected samples %v, got %v", samples, decoded.Samples)
	}
}

func TestDecode_ClampsStreamingDataSize(t *testing.T) {
	format := FormatParameters{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
	samples := make([]byte, 960)

	container := buildContainer(chunk("fmt ", pcmFmt(format)))
	container = append(container, "data"...)
	container = binary.LittleEndian.AppendUint32(container, 0xFFFFFFFF)
	container = append(container, samples...)

	decoded, err := Decode(container)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Samples) != len(samples) {
		t.Errorf("Expected %d sample bytes, got %d", len(samples), len(decoded.Samples))
	}
	if decoded.DurationMillis != 20 {
		t.Errorf("Expected 20ms, got %f", decoded.DurationMillis)
	}
}

func TestDecode_Extensible(t *testing.T) {
	format := FormatParameters{SampleRate: 48000, Channels: 2, BitsPerSample: 16}
	ext := pcmFmt(format)
	ext[0], ext[1] = 0xFE, 0xFF
	ext = binary.LittleEndian.AppendUint16(ext, 22) // cbSize
	ext = binary.LittleEndian.AppendUint16(ext, 16) // valid bits
	ext = binary.LittleEndian.AppendUint32(ext, 3)  // channel mask
	guid := make([]byte, 16)
	binary.LittleEndian.PutUint16(guid, formatPCM)
	ext = append(ext, guid...)

	decoded, err := Decode(buildContainer(chunk("fmt ", ext), chunk("data", make([]byte, 8))))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Format != format {
		t.Errorf("Expected format %s, got %s", format, decoded.Format)
	}
}

func TestDecode_Errors(t *testing.T) {
	format := FormatParameters{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
	mp3Fmt := pcmFmt(format)
	mp3Fmt[0] = 0x55

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"short", []byte("RIFF")},
		{"no riff", append([]byte("RIFX\x00\x00\x00\x00WAVE"), chunk("data", []byte{0, 0})...)},
		{"no wave", append([]byte("RIFF\x00\x00\x00\x00AVI "), chunk("data", []byte{0, 0})...)},
		{"no fmt", buildContainer(chunk("data", []byte{0, 0}))},
		{"no data", buildContainer(chunk("fmt ", pcmFmt(format)))},
		{"compressed", buildContainer(chunk("fmt ", mp3Fmt), chunk("data", []byte{0, 0}))},
		{"truncated fmt", buildContainer([]byte("fmt \x10\x00\x00\x00\x01\x00"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Errorf("Expected *FormatError, got %T", err)
			}
		})
	}
}

func TestDecoded_Frames(t *testing.T) {
	d := &Decoded{
		Format:  FormatParameters{SampleRate: 24000, Channels: 2, BitsPerSample: 16},
		Samples: make([]byte, 11),
	}
	if got := len(d.Frames()); got != 8 {
		t.Errorf("Expected 8 frame bytes, got %d", got)
	}
}
