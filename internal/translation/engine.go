// Package translation runs text through an ordered chain of translation
// providers, falling through to the next provider on any error and repeating
// the whole chain a bounded number of times.
package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"DigestHarvester/internal/logging"
	"DigestHarvester/internal/ports"
)

// ErrTranslationFailed is the only failure Translate reports; provider errors
// are logged but never returned.
var ErrTranslationFailed = errors.New("translation failed")

var errEmptyResult = errors.New("provider returned empty text")

// Provider is one translation backend.
type Provider interface {
	Name() string
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// FailureObserver is told about every failed provider call.
type FailureObserver interface {
	ProviderFailed(provider string)
}

// Options configures an Engine.
type Options struct {
	SourceLang string
	TargetLang string
	Passes     int
	RetryDelay time.Duration
	Observer   FailureObserver
	Logger     *slog.Logger
}

// Engine implements ports.Translator over a fixed provider priority order.
type Engine struct {
	providers  []Provider
	sourceLang string
	targetLang string
	passes     int
	retryDelay time.Duration
	observer   FailureObserver
	logger     *slog.Logger
}

var _ ports.Translator = (*Engine)(nil)

// NewEngine keeps providers in the given order: the first is tried first on every pass.
func NewEngine(providers []Provider, opts Options) *Engine {
	if opts.Passes < 1 {
		opts.Passes = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Engine{
		providers:  providers,
		sourceLang: opts.SourceLang,
		targetLang: opts.TargetLang,
		passes:     opts.Passes,
		retryDelay: opts.RetryDelay,
		observer:   opts.Observer,
		logger:     opts.Logger,
	}
}

// Translate returns the first successful provider result. Each pass walks
// the providers in order; after a pass in which every provider failed the
// engine waits RetryDelay and starts again, up to Passes passes.
func (e *Engine) Translate(ctx context.Context, text string) (string, error) {
	if len(e.providers) == 0 {
		return "", fmt.Errorf("%w: no providers configured", ErrTranslationFailed)
	}

	var (
		result string
		pass   int
	)

	op := func() error {
		pass++
		out, ok := e.runPass(ctx, text, pass)
		if !ok {
			return errPassFailed
		}
		result = out
		return nil
	}

	notify := func(_ error, wait time.Duration) {
		e.logger.Warn("translation attempt failed", "attempt", pass, "passes", e.passes, "retry_in", wait)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.retryDelay), uint64(e.passes-1)),
		ctx,
	)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		e.logger.Error("translation failed", "passes", pass, "text_len", len(text))
		return "", fmt.Errorf("%w after %d pass(es)", ErrTranslationFailed, pass)
	}
	return result, nil
}

var errPassFailed = errors.New("all providers failed")

func (e *Engine) runPass(ctx context.Context, text string, pass int) (string, bool) {
	for _, provider := range e.providers {
		out, err := e.call(ctx, provider, text)
		if err == nil {
			if pass > 1 {
				e.logger.Info("translation succeeded after retry", "provider", provider.Name(), "pass", pass)
			}
			return out, true
		}

		e.logger.Debug("provider failed, falling back",
			"provider", provider.Name(),
			"pass", pass,
			"error", err)
		if e.observer != nil {
			e.observer.ProviderFailed(provider.Name())
		}
	}
	return "", false
}

// call shields the chain from provider panics and empty answers.
func (e *Engine) call(ctx context.Context, p Provider, text string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()

	out, err = p.Translate(ctx, text, e.sourceLang, e.targetLang)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmptyResult
	}
	return out, nil
}
