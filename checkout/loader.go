package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultScriptURL is the hosted checkout bundle fetched by the default
// loader.
const DefaultScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

const defaultLoadTimeout = 5 * time.Second

// ErrLoadTimeout is returned when the checkout bundle does not become
// available within the loader's bound.
var ErrLoadTimeout = errors.New("payment widget did not load in time")

// Loader fetches the gateway checkout bundle exactly once. Any number of
// concurrent callers share the single in-flight load and observe the same
// cached result afterwards, successful or not.
type Loader struct {
	key     string
	timeout time.Duration
	load    func(ctx context.Context) error

	mu      sync.Mutex
	started bool
	done    chan struct{}
	err     error
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithLoadTimeout overrides the default bound on the bundle fetch.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.timeout = d }
}

// WithLoadFunc replaces the HTTP fetch, for embedding or tests.
func WithLoadFunc(fn func(ctx context.Context) error) LoaderOption {
	return func(l *Loader) { l.load = fn }
}

// NewLoader builds a loader bound to the gateway public key. The key is
// checked at Ensure time so a misconfigured deploy fails fast.
func NewLoader(key string, opts ...LoaderOption) *Loader {
	l := &Loader{
		key:     key,
		timeout: defaultLoadTimeout,
		done:    make(chan struct{}),
	}
	l.load = l.fetchScript
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Ensure blocks until the checkout bundle is available. The first caller
// triggers the fetch; everyone else waits on it. The result is cached, so
// repeated calls after completion return immediately.
func (l *Loader) Ensure(ctx context.Context) error {
	if l.key == "" {
		return &ConfigurationError{Setting: "gateway key"}
	}

	l.mu.Lock()
	if !l.started {
		l.started = true
		go l.run()
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loader) run() {
	// The load runs detached from any single caller's context so that one
	// cancelled waiter cannot abort the shared fetch.
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	err := l.load(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = ErrLoadTimeout
	}
	l.err = err
	close(l.done)
}

func (l *Loader) fetchScript(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DefaultScriptURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("checkout bundle fetch returned status %d", resp.StatusCode)
	}
	return nil
}
