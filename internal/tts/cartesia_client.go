package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lexiqai/narration-gateway/internal/audio"
	"github.com/lexiqai/narration-gateway/internal/resilience"
)

// CartesiaClient implements Synthesizer over Cartesia's websocket TTS API.
// Each sentence uses its own connection so concurrent fragments share nothing.
type CartesiaClient struct {
	wsURL          string
	modelID        string
	version        string
	format         audio.FormatParameters
	dialer         *websocket.Dialer
	reconnect      *resilience.ReconnectConfig
	circuitBreaker *resilience.CircuitBreaker
}

// CartesiaOptions configures a CartesiaClient
type CartesiaOptions struct {
	WSURL          string
	ModelID        string
	Version        string
	SampleRate     int
	Reconnect      *resilience.ReconnectConfig
	CircuitBreaker *resilience.CircuitBreaker
}

// cartesiaRequest is the generation request sent on the socket
type cartesiaRequest struct {
	ModelID       string               `json:"model_id"`
	Transcript    string               `json:"transcript"`
	Voice         cartesiaVoice        `json:"voice"`
	OutputFormat  cartesiaOutputFormat `json:"output_format"`
	ContextID     string               `json:"context_id"`
	AddTimestamps bool                 `json:"add_timestamps"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// cartesiaMessage covers every server message type: chunk, timestamps, done, error
type cartesiaMessage struct {
	Type           string                  `json:"type"`
	ContextID      string                  `json:"context_id"`
	StatusCode     int                     `json:"status_code"`
	Done           bool                    `json:"done"`
	Data           string                  `json:"data"`
	Error          string                  `json:"error"`
	WordTimestamps *cartesiaWordTimestamps `json:"word_timestamps"`
}

type cartesiaWordTimestamps struct {
	Words []string  `json:"words"`
	Start []float64 `json:"start"`
	End   []float64 `json:"end"`
}

// NewCartesiaClient creates a new Cartesia websocket synthesizer
func NewCartesiaClient(opts CartesiaOptions) *CartesiaClient {
	return &CartesiaClient{
		wsURL:   opts.WSURL,
		modelID: opts.ModelID,
		version: opts.Version,
		format: audio.FormatParameters{
			SampleRate:    opts.SampleRate,
			Channels:      1,
			BitsPerSample: 16,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		reconnect:      opts.Reconnect,
		circuitBreaker: opts.CircuitBreaker,
	}
}

// Name implements Synthesizer
func (c *CartesiaClient) Name() string {
	return "cartesia"
}

// CheckCredentials implements Synthesizer
func (c *CartesiaClient) CheckCredentials(creds Credentials) error {
	return requireAPIKey(c.Name(), creds)
}

// Synthesize streams one sentence and writes the received PCM as a WAV
// container to req.StagingPath
func (c *CartesiaClient) Synthesize(ctx context.Context, req Request) (*Fragment, error) {
	var fragment *Fragment
	call := func() error {
		var err error
		fragment, err = c.synthesize(ctx, req)
		return err
	}

	var err error
	if c.circuitBreaker != nil {
		err = c.circuitBreaker.Call(call, transportFailure)
	} else {
		err = call()
	}
	if err != nil {
		var synthErr *SynthesisError
		if errors.As(err, &synthErr) {
			return nil, synthErr
		}
		return nil, &SynthesisError{Index: req.Index, Backend: c.Name(), Err: err}
	}
	return fragment, nil
}

func (c *CartesiaClient) synthesize(ctx context.Context, req Request) (*Fragment, error) {
	conn, err := c.dial(ctx, req.Credentials)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Unblock reads when the caller gives up
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	contextID := uuid.New().String()
	if err := conn.WriteJSON(cartesiaRequest{
		ModelID:    c.modelID,
		Transcript: req.Text,
		Voice:      cartesiaVoice{Mode: "id", ID: req.Voice},
		OutputFormat: cartesiaOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: c.format.SampleRate,
		},
		ContextID:     contextID,
		AddTimestamps: true,
	}); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var pcm []byte
	furthest := 0.0 // seconds

	for {
		var msg cartesiaMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("read message: %w", err)
		}
		if msg.ContextID != "" && msg.ContextID != contextID {
			continue
		}

		switch msg.Type {
		case "chunk":
			data, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				return nil, fmt.Errorf("decode audio chunk: %w", err)
			}
			pcm = append(pcm, data...)

		case "timestamps":
			if msg.WordTimestamps != nil {
				for _, end := range msg.WordTimestamps.End {
					if end > furthest {
						furthest = end
					}
				}
			}

		case "error":
			reason := msg.Error
			if reason == "" {
				reason = fmt.Sprintf("status %d", msg.StatusCode)
			}
			return nil, &SynthesisError{Index: req.Index, Backend: c.Name(), Canceled: true, Reason: reason}
		}

		if msg.Done || msg.Type == "done" {
			break
		}
	}

	container, err := audio.Encode(pcm, c.format)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(req.StagingPath, container, 0o600); err != nil {
		return nil, fmt.Errorf("write staging file: %w", err)
	}

	fragment := &Fragment{
		Index:          req.Index,
		Path:           req.StagingPath,
		DurationSource: DurationUnknown,
	}
	if furthest > 0 {
		fragment.ReportedMillis = furthest * 1000
		fragment.DurationSource = DurationFromEvents
	}

	log.Debug().
		Str("backend", c.Name()).
		Int("sentence_index", req.Index).
		Int("pcm_bytes", len(pcm)).
		Float64("reported_ms", fragment.ReportedMillis).
		Msg("Fragment synthesized")

	return fragment, nil
}

func (c *CartesiaClient) dial(ctx context.Context, creds Credentials) (*websocket.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", creds.APIKey)
	q.Set("cartesia_version", c.version)
	u.RawQuery = q.Encode()

	var conn *websocket.Conn
	err = resilience.Reconnect(ctx, c.Name(), func(ctx context.Context) error {
		var dialErr error
		conn, _, dialErr = c.dialer.DialContext(ctx, u.String(), nil)
		return dialErr
	}, c.reconnect)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
