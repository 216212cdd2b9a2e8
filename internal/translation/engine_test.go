package translation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	results []string
	errs    []error
	calls   int
	langs   [2]string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Translate(_ context.Context, text, sourceLang, targetLang string) (string, error) {
	idx := f.calls
	f.calls++
	f.langs = [2]string{sourceLang, targetLang}
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	if len(f.errs) > 0 && f.errs[len(f.errs)-1] != nil {
		return "", f.errs[len(f.errs)-1]
	}
	return f.name + ":" + text, nil
}

func failing(name string) *fakeProvider {
	return &fakeProvider{name: name, errs: []error{errors.New(name + " down")}}
}

type countingObserver struct {
	mu       sync.Mutex
	failures map[string]int
}

func (o *countingObserver) ProviderFailed(provider string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failures == nil {
		o.failures = map[string]int{}
	}
	o.failures[provider]++
}

func newEngine(delay time.Duration, observer FailureObserver, providers ...Provider) *Engine {
	return NewEngine(providers, Options{
		SourceLang: "en",
		TargetLang: "gu",
		Passes:     3,
		RetryDelay: delay,
		Observer:   observer,
	})
}

func TestEngine_PrimarySucceeds(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	c := &fakeProvider{name: "c"}

	out, err := newEngine(time.Millisecond, nil, a, b, c).Translate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "a:hello", out)
	assert.Equal(t, 1, a.calls)
	assert.Zero(t, b.calls)
	assert.Zero(t, c.calls)
	assert.Equal(t, [2]string{"en", "gu"}, a.langs)
}

func TestEngine_FallsThroughWithinSamePass(t *testing.T) {
	a := failing("a")
	b := failing("b")
	c := &fakeProvider{name: "c", results: []string{"નમસ્તે"}}
	observer := &countingObserver{}

	out, err := newEngine(time.Hour, observer, a, b, c).Translate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "નમસ્તે", out)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, observer.failures)
}

func TestEngine_AllFailEveryPass(t *testing.T) {
	a, b, c := failing("a"), failing("b"), failing("c")
	delay := 20 * time.Millisecond

	start := time.Now()
	out, err := newEngine(delay, nil, a, b, c).Translate(context.Background(), "hello")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTranslationFailed)
	assert.Empty(t, out)
	assert.Equal(t, 9, a.calls+b.calls+c.calls)
	assert.Equal(t, 3, a.calls)
	assert.Equal(t, 3, b.calls)
	assert.Equal(t, 3, c.calls)
	assert.GreaterOrEqual(t, elapsed, 2*delay, "expected a delay between passes")
}

func TestEngine_RecoversOnLaterPass(t *testing.T) {
	a := &fakeProvider{name: "a", errs: []error{errors.New("rate limited"), nil}, results: []string{"", "second pass"}}
	b, c := failing("b"), failing("c")

	out, err := newEngine(time.Millisecond, nil, a, b, c).Translate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "second pass", out)
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
}

func TestEngine_EmptyResultIsAFailure(t *testing.T) {
	a := &fakeProvider{name: "a", results: []string{"   "}}
	b := &fakeProvider{name: "b"}

	out, err := newEngine(time.Millisecond, nil, a, b).Translate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "b:hello", out)
}

type panickingProvider struct{}

func (panickingProvider) Name() string { return "panicky" }

func (panickingProvider) Translate(context.Context, string, string, string) (string, error) {
	panic("boom")
}

func TestEngine_ProviderPanicIsIsolated(t *testing.T) {
	b := &fakeProvider{name: "b"}

	out, err := newEngine(time.Millisecond, nil, panickingProvider{}, b).Translate(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, "b:hi", out)
}

func TestEngine_NoProviders(t *testing.T) {
	_, err := newEngine(time.Millisecond, nil).Translate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrTranslationFailed)
}
