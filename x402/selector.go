package x402

import (
	"context"
	"sync"
	"time"
)

// BackendMethod identifies which signing backend a payment attempt uses.
type BackendMethod string

const (
	// BackendDelegate routes the whole paid call through the external
	// delegate signer program.
	BackendDelegate BackendMethod = "delegate"

	// BackendLocal signs the transfer authorization in-process with the
	// configured secret key.
	BackendLocal BackendMethod = "local"

	// BackendNone means no usable payment backend is configured.
	BackendNone BackendMethod = "none"
)

// DelegateStatus is the delegate signer's self-reported status snapshot.
type DelegateStatus struct {
	// Available reports whether the delegate program responded at all.
	Available bool `json:"available"`

	// Authenticated reports whether the delegate holds usable signing
	// credentials.
	Authenticated bool `json:"authenticated"`

	// Address is the delegate's paying address, when authenticated.
	Address string `json:"address,omitempty"`
}

// BackendConfig is the resolved signing backend for one payment attempt.
type BackendConfig struct {
	// Method is the selected backend.
	Method BackendMethod

	// Address is the paying address, when known.
	Address string

	// Delegate is the delegate status snapshot, when the delegate was
	// probed.
	Delegate *DelegateStatus
}

// StatusProber queries the delegate signer's status. Implemented by
// delegate.CLI; probe failures are degraded to unavailable by the
// selector, never propagated.
type StatusProber interface {
	Status(ctx context.Context) (*DelegateStatus, error)
}

// DefaultProbeTTL bounds how long a delegate status probe is reused
// before the external program is asked again.
const DefaultProbeTTL = 60 * time.Second

// Selector decides, per payment attempt, whether to use the delegate
// signer or the local key. The delegate probe result is cached for
// DefaultProbeTTL; the cache is a value+timestamp pair guarded by a
// mutex, so concurrent attempts cost at most a redundant probe.
type Selector struct {
	cfg    *Config
	prober StatusProber

	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	cached    *DelegateStatus
	fetchedAt time.Time
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithProbeTTL overrides the probe cache lifetime.
func WithProbeTTL(ttl time.Duration) SelectorOption {
	return func(s *Selector) { s.ttl = ttl }
}

// WithClock overrides the wall clock, for deterministic cache tests.
func WithClock(now func() time.Time) SelectorOption {
	return func(s *Selector) { s.now = now }
}

// NewSelector creates a backend selector for the given configuration.
// prober may be nil when no delegate program is installed.
func NewSelector(cfg *Config, prober StatusProber, opts ...SelectorOption) *Selector {
	s := &Selector{
		cfg:    cfg,
		prober: prober,
		ttl:    DefaultProbeTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select resolves the signing backend for one payment attempt.
//
// Policy, in priority order:
//  1. ForceDelegate set: probe the delegate; if it is unavailable or
//     unauthenticated the result is BackendNone. A configured local key
//     is deliberately not used as a fallback when forcing was explicit.
//  2. Delegate available and authenticated: BackendDelegate.
//  3. Local key configured: BackendLocal.
//  4. Otherwise BackendNone.
func (s *Selector) Select(ctx context.Context) *BackendConfig {
	if s.cfg.ForceDelegate {
		status := s.probe(ctx)
		if !status.Available || !status.Authenticated {
			return &BackendConfig{Method: BackendNone, Delegate: status}
		}
		return &BackendConfig{Method: BackendDelegate, Address: status.Address, Delegate: status}
	}

	status := s.probe(ctx)
	if status.Available && status.Authenticated {
		return &BackendConfig{Method: BackendDelegate, Address: status.Address, Delegate: status}
	}

	if s.cfg.HasLocalKey() {
		address, err := DeriveAddress(s.cfg.PrivateKey)
		if err != nil {
			return &BackendConfig{Method: BackendNone, Delegate: status}
		}
		return &BackendConfig{Method: BackendLocal, Address: address, Delegate: status}
	}

	return &BackendConfig{Method: BackendNone, Delegate: status}
}

// Invalidate drops the cached delegate status so the next Select probes
// the delegate program again.
func (s *Selector) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.fetchedAt = time.Time{}
}

// probe returns the cached delegate status, asking the external program
// only when the cache is stale. Probe failures degrade to an unavailable
// status; this is a deliberate no-throw boundary.
func (s *Selector) probe(ctx context.Context) *DelegateStatus {
	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		cached := s.cached
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	status := &DelegateStatus{Available: false}
	if s.prober != nil {
		probed, err := s.prober.Status(ctx)
		if err == nil && probed != nil {
			status = probed
		}
	}

	s.mu.Lock()
	s.cached = status
	s.fetchedAt = s.now()
	s.mu.Unlock()

	return status
}
