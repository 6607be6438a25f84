package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lexiqai/narration-gateway/internal/audio"
)

func setupCLIEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TTS_BACKEND", "silence")
	t.Setenv("TTS_VOICE", "narrator")
	t.Setenv("OUTPUT_DIR", dir)
	t.Setenv("AUDIO_SAMPLE_RATE", "8000")
	t.Setenv("REDIS_URL", "")
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSpeak_JSON(t *testing.T) {
	dir := setupCLIEnv(t)

	out, err := runCLI(t, "", "speak", "--json", "Hello world.", "Bye.")
	if err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	var result struct {
		Timings []struct {
			Text      string  `json:"text"`
			EndMillis float64 `json:"end_ms"`
		} `json:"timings"`
		Files struct {
			AudioPath string `json:"audio_path"`
		} `json:"files"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("Failed to parse output %q: %v", out, err)
	}
	if len(result.Timings) != 2 || result.Timings[1].Text != "Bye." || result.Timings[1].EndMillis != 1020 {
		t.Errorf("Unexpected timings %+v", result.Timings)
	}
	if filepath.Dir(result.Files.AudioPath) != dir {
		t.Errorf("Expected audio under %s, got %s", dir, result.Files.AudioPath)
	}
}

func TestSpeak_Stdin(t *testing.T) {
	setupCLIEnv(t)

	out, err := runCLI(t, "First line. Second line.", "speak")
	if err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if !strings.Contains(out, "Second line.") || !strings.Contains(out, "Subtitles:") {
		t.Errorf("Expected timing table and file list, got:\n%s", out)
	}
}

func TestSpeak_EmptyInput(t *testing.T) {
	setupCLIEnv(t)

	if _, err := runCLI(t, "   ", "speak"); err == nil {
		t.Error("Expected error for empty input")
	}
	if _, err := runCLI(t, "", "speak", "--file", "x.txt", "text"); err == nil {
		t.Error("Expected error when both --file and arguments are given")
	}
}

func TestHistory(t *testing.T) {
	setupCLIEnv(t)

	out, err := runCLI(t, "", "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "No narrations") {
		t.Errorf("Expected empty history message, got %q", out)
	}

	if _, err := runCLI(t, "", "speak", "Hello."); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	out, err = runCLI(t, "", "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "_narrator") || !strings.Contains(out, "silence") {
		t.Errorf("Expected the published batch in history, got:\n%s", out)
	}
}

func TestInspect(t *testing.T) {
	format := audio.FormatParameters{SampleRate: 16000, Channels: 2, BitsPerSample: 16}
	container, err := audio.Encode(make([]byte, 16000*4/2), format)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(path, container, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "", "inspect", path)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	for _, want := range []string{"16000 Hz", "8000", "00:00:00,500"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}

	bad := filepath.Join(t.TempDir(), "bad.wav")
	os.WriteFile(bad, []byte("not a wav"), 0o644)
	if _, err := runCLI(t, "", "inspect", bad); err == nil {
		t.Error("Expected error for a non-WAV file")
	}
}
