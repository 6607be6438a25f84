// Package storage persists finished batches: sibling audio and subtitle
// files sharing one base name, and a SQLite ledger of published batches.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// File suffixes of a published batch
const (
	SuffixAudio      = ".wav"
	SuffixSubtitles  = ".srt"
	SuffixTranslated = "_translated.srt"
	SuffixBilingual  = "_bilingual.srt"
)

// SanitizeVoice replaces every character outside [A-Za-z0-9] with '_'
func SanitizeVoice(voice string) string {
	if voice == "" {
		return "voice"
	}
	var b strings.Builder
	b.Grow(len(voice))
	for _, r := range voice {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// BaseName derives the shared file name stem for a batch
func BaseName(stamp time.Time, voice string) string {
	return fmt.Sprintf("%d_%s", stamp.UnixMilli(), SanitizeVoice(voice))
}
