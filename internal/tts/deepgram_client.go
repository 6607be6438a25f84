package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/deepgram/deepgram-go-sdk/v3/pkg/api/version"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	speak "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/speak"
	"github.com/rs/zerolog/log"

	"github.com/lexiqai/narration-gateway/internal/apperror"
	"github.com/lexiqai/narration-gateway/internal/audio"
	"github.com/lexiqai/narration-gateway/internal/resilience"
)

// DeepgramOptions configures a DeepgramClient
type DeepgramOptions struct {
	Host           string // empty uses the SDK default
	SampleRate     int
	Retry          *resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreaker
}

// DeepgramClient implements Synthesizer using Deepgram's speak REST API.
// The voice is the Aura model name, e.g. "aura-asteria-en".
type DeepgramClient struct {
	host           string
	sampleRate     int
	retry          *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
}

// NewDeepgramClient creates a new Deepgram speak synthesizer
func NewDeepgramClient(opts DeepgramOptions) *DeepgramClient {
	return &DeepgramClient{
		host:           opts.Host,
		sampleRate:     opts.SampleRate,
		retry:          opts.Retry,
		circuitBreaker: opts.CircuitBreaker,
	}
}

// Name implements Synthesizer
func (d *DeepgramClient) Name() string {
	return "deepgram"
}

// CheckCredentials implements Synthesizer
func (d *DeepgramClient) CheckCredentials(creds Credentials) error {
	return requireAPIKey(d.Name(), creds)
}

// apiRefusal is a non-success HTTP answer from the speak endpoint
type apiRefusal struct {
	status int
	err    error
}

func (e *apiRefusal) Error() string { return e.err.Error() }

func (e *apiRefusal) Unwrap() error { return e.err }

// reason prefers the Deepgram error message over the raw status line
func (e *apiRefusal) reason() string {
	var statusErr *interfaces.StatusError
	if errors.As(e.err, &statusErr) && statusErr.DeepgramError != nil && statusErr.DeepgramError.ErrMsg != "" {
		return statusErr.DeepgramError.ErrMsg
	}
	return e.err.Error()
}

// Synthesize saves the sentence as a linear16 WAV container at req.StagingPath
func (d *DeepgramClient) Synthesize(ctx context.Context, req Request) (*Fragment, error) {
	// A client per call keeps credentials scoped to the batch
	client := speak.NewREST(req.Credentials.APIKey, &interfaces.ClientOptions{Host: d.host})
	if client == nil {
		return nil, apperror.Configuration("deepgram: invalid client options")
	}
	options := &interfaces.SpeakOptions{
		Model:      req.Voice,
		Encoding:   "linear16",
		Container:  "wav",
		SampleRate: d.sampleRate,
	}
	if err := options.Check(); err != nil {
		return nil, apperror.Configuration("deepgram: %v", err)
	}

	save := func() error {
		return resilience.Retry(ctx, func(ctx context.Context) error {
			return d.save(ctx, client, req, options)
		}, d.retry, resilience.IsRetryableNetworkError)
	}

	var err error
	if d.circuitBreaker != nil {
		err = d.circuitBreaker.Call(save, transportFailure)
	} else {
		err = save()
	}
	if err != nil {
		// Only a definitive API answer cancels the sentence; throttling,
		// server errors and local failures are transport errors
		var refusal *apiRefusal
		if errors.As(err, &refusal) && !resilience.IsRetryableStatus(refusal.status) {
			return nil, &SynthesisError{Index: req.Index, Backend: d.Name(), Canceled: true, Reason: refusal.reason()}
		}
		if kind := apperror.KindOf(err); kind == apperror.KindConfiguration || kind == apperror.KindStorage {
			return nil, err
		}
		return nil, &SynthesisError{Index: req.Index, Backend: d.Name(), Err: err}
	}

	fragment := &Fragment{
		Index:          req.Index,
		Path:           req.StagingPath,
		DurationSource: DurationUnknown,
	}

	// The speak API has no duration field; the saved container's declared
	// data length is the backend's total.
	if b, err := os.ReadFile(req.StagingPath); err == nil {
		if decoded, err := audio.Decode(b); err == nil {
			fragment.ReportedMillis = decoded.DurationMillis
			fragment.DurationSource = DurationFromTotal
		}
	} else {
		return nil, &SynthesisError{Index: req.Index, Backend: d.Name(), Err: fmt.Errorf("read saved audio: %w", err)}
	}

	log.Debug().
		Str("backend", d.Name()).
		Int("sentence_index", req.Index).
		Float64("reported_ms", fragment.ReportedMillis).
		Msg("Fragment synthesized")

	return fragment, nil
}

// save posts one sentence and streams the response body into the staging
// file. The SDK's own ToSave drops response errors, so the request is
// driven through its REST client directly.
func (d *DeepgramClient) save(ctx context.Context, client *speak.RESTClient, req Request, options *interfaces.SpeakOptions) error {
	uri, err := version.GetSpeakAPI(ctx, client.Options.Host, client.Options.APIVersion, client.Options.Path, options)
	if err != nil {
		return apperror.Configuration("deepgram: %v", err)
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(map[string]string{"text": req.Text}); err != nil {
		return err
	}
	httpReq, err := client.SetupRequest(ctx, http.MethodPost, uri, &body)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(req.StagingPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return apperror.Storage(err, "create staging file")
	}
	defer file.Close()

	return client.HTTPClient.Do(ctx, httpReq, func(res *http.Response) error {
		if _, err := client.HandleResponse(res, nil, file); err != nil {
			if res.StatusCode >= http.StatusMultipleChoices {
				refusal := &apiRefusal{status: res.StatusCode, err: err}
				if resilience.IsRetryableStatus(res.StatusCode) {
					return resilience.NewRetryableError(refusal)
				}
				return refusal
			}
			return fmt.Errorf("write audio: %w", err)
		}
		return nil
	})
}
