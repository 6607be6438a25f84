package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lexiqai/narration-gateway/internal/apperror"
	"github.com/lexiqai/narration-gateway/internal/audio"
	"github.com/lexiqai/narration-gateway/internal/resilience"
)

// fakeDeepgram serves the speak endpoint; respond writes the answer
func fakeDeepgram(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	t.Setenv("DEEPGRAM_HOST", "")
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/v1/speak" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "token test-key" {
			t.Errorf("Expected token auth, got %q", got)
		}
		respond(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestDeepgram(srv *httptest.Server) *DeepgramClient {
	return NewDeepgramClient(DeepgramOptions{
		Host:       srv.URL,
		SampleRate: 16000,
		Retry:      &resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1},
	})
}

func deepgramRequest(t *testing.T) Request {
	return Request{
		Index:       1,
		Text:        "Hello world.",
		Voice:       "aura-asteria-en",
		Credentials: Credentials{APIKey: "test-key"},
		StagingPath: filepath.Join(t.TempDir(), "001.wav"),
	}
}

func TestDeepgramClient_Synthesize(t *testing.T) {
	format := audio.FormatParameters{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	container, err := audio.Encode(make([]byte, 16000), format)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	srv, _ := fakeDeepgram(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("model") != "aura-asteria-en" || q.Get("encoding") != "linear16" || q.Get("container") != "wav" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text != "Hello world." {
			t.Errorf("Unexpected body %+v (%v)", body, err)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("char-count", "12")
		w.Write(container)
	})

	req := deepgramRequest(t)
	fragment, err := newTestDeepgram(srv).Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if fragment.Index != 1 || fragment.Path != req.StagingPath {
		t.Errorf("Unexpected fragment %+v", fragment)
	}
	if fragment.DurationSource != DurationFromTotal {
		t.Errorf("Expected duration source %s, got %s", DurationFromTotal, fragment.DurationSource)
	}
	if fragment.ReportedMillis != 500 {
		t.Errorf("Expected 500ms reported, got %f", fragment.ReportedMillis)
	}
}

func TestDeepgramClient_RefusalCancels(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		reason  string
		partial bool
	}{
		{"deepgram error", http.StatusBadRequest, `{"err_code":"INVALID_MODEL","err_msg":"model not found"}`, "model not found", false},
		{"plain status", http.StatusUnauthorized, "", "401 Unauthorized", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := fakeDeepgram(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := newTestDeepgram(srv).Synthesize(context.Background(), deepgramRequest(t))
			var synthErr *SynthesisError
			if !errors.As(err, &synthErr) {
				t.Fatalf("Expected *SynthesisError, got %v", err)
			}
			if !synthErr.Canceled {
				t.Errorf("Expected a cancellation, got %+v", synthErr)
			}
			if tt.partial && !strings.Contains(synthErr.Reason, tt.reason) || !tt.partial && synthErr.Reason != tt.reason {
				t.Errorf("Expected reason %q, got %q", tt.reason, synthErr.Reason)
			}
			if transportFailure(err) {
				t.Error("Expected a refusal not to count against the circuit breaker")
			}
			if hits.Load() != 1 {
				t.Errorf("Expected no retry after a refusal, got %d requests", hits.Load())
			}
		})
	}
}

func TestDeepgramClient_ServerErrorIsTransport(t *testing.T) {
	srv, hits := fakeDeepgram(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream busy", http.StatusServiceUnavailable)
	})

	_, err := newTestDeepgram(srv).Synthesize(context.Background(), deepgramRequest(t))
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("Expected *SynthesisError, got %v", err)
	}
	if synthErr.Canceled {
		t.Errorf("Expected a transport error, got cancellation %q", synthErr.Reason)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected the 503 to be retried once, got %d requests", hits.Load())
	}
}

func TestDeepgramClient_DroppedConnection(t *testing.T) {
	srv, _ := fakeDeepgram(t, func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack failed: %v", err)
			return
		}
		conn.Close()
	})

	_, err := newTestDeepgram(srv).Synthesize(context.Background(), deepgramRequest(t))
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("Expected *SynthesisError, got %v", err)
	}
	if synthErr.Canceled || synthErr.Err == nil {
		t.Errorf("Expected a transport error, got %+v", synthErr)
	}
	if apperror.KindOf(err) != apperror.KindSynthesis {
		t.Errorf("Expected synthesis kind, got %s", apperror.KindOf(err))
	}
	if !transportFailure(err) {
		t.Error("Expected a dropped connection to count against the circuit breaker")
	}
}

func TestDeepgramClient_LocalWriteFailureIsNotCancellation(t *testing.T) {
	srv, _ := fakeDeepgram(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte{0}, 64))
	})

	req := deepgramRequest(t)
	req.StagingPath = filepath.Join(t.TempDir(), "missing", "001.wav")
	_, err := newTestDeepgram(srv).Synthesize(context.Background(), req)
	if err == nil {
		t.Fatal("Expected error for an unwritable staging path")
	}
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) && synthErr.Canceled {
		t.Errorf("Expected a local failure, got cancellation %q", synthErr.Reason)
	}
	if apperror.KindOf(err) != apperror.KindStorage {
		t.Errorf("Expected storage kind, got %s", apperror.KindOf(err))
	}
}
