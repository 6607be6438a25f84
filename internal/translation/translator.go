// Package translation translates sentences one request per sentence, in
// parallel, with the same lowest-index-wins failure policy as synthesis.
package translation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lexiqai/narration-gateway/internal/apperror"
	"github.com/lexiqai/narration-gateway/internal/observability"
)

// Credentials identify a chat deployment; they are passed per batch
type Credentials struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
}

// Check reports a configuration error when a required field is missing
func (c Credentials) Check() error {
	switch {
	case c.Endpoint == "":
		return apperror.Configuration("translation requires an endpoint")
	case c.APIKey == "":
		return apperror.Configuration("translation requires an API key")
	case c.Deployment == "":
		return apperror.Configuration("translation requires a deployment name")
	}
	return nil
}

// Translator translates a single sentence
type Translator interface {
	Translate(ctx context.Context, sentence, targetLanguage string, creds Credentials) (string, error)
}

// Error is a per-sentence translation failure
type Error struct {
	Index   int // 1-based sentence index; 0 when not yet known
	Status  int // HTTP status, 0 for transport failures
	Message string
	Err     error
}

func (e *Error) Error() string {
	prefix := "translation"
	if e.Index > 0 {
		prefix = fmt.Sprintf("sentence %d: translation", e.Index)
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s failed with status %d: %s", prefix, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", prefix, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind implements apperror.Classified
func (e *Error) ErrorKind() apperror.Kind {
	return apperror.KindTranslation
}

// TranslateAll translates every sentence concurrently. The result is
// index-aligned with sentences. If any sentence fails, the error of the
// lowest failed index is returned and no translations are.
func TranslateAll(ctx context.Context, t Translator, sentences []string, targetLanguage string, creds Credentials) ([]string, error) {
	translations := make([]string, len(sentences))
	errs := make([]error, len(sentences))

	var wg sync.WaitGroup
	for i, sentence := range sentences {
		wg.Add(1)
		go func(i int, sentence string) {
			defer wg.Done()
			translations[i], errs[i] = t.Translate(ctx, sentence, targetLanguage, creds)
			observability.RecordTranslation(errs[i] == nil)
		}(i, sentence)
	}
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		var tErr *Error
		if errors.As(err, &tErr) {
			indexed := *tErr
			indexed.Index = i + 1
			return nil, &indexed
		}
		return nil, &Error{Index: i + 1, Err: err}
	}
	return translations, nil
}
