package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// backoffCap bounds the exponential backoff schedule (1s, 2s, 4s, 8s, 16s).
	backoffCap = 16 * time.Second
	// backoffForget clears a provider's backoff entry after a quiet period.
	backoffForget = 60 * time.Second
)

type backoffState struct {
	failures    int
	lastFailure time.Time
}

// Router routes requests through an ordered list of providers with automatic
// failover. Providers in backoff are skipped; transient failures (rate
// limits, timeouts, generic provider errors) move on to the next provider.
// The backoff map is the only long-lived mutable state and is owned
// exclusively by the Router.
type Router[P Provider] struct {
	capability Capability
	providers  []P

	mu      sync.Mutex
	backoff map[string]backoffState

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRouter builds a Router for one capability. Providers are tried in the
// given order, highest priority first. At least one provider is required.
func NewRouter[P Provider](capability Capability, providers ...P) (*Router[P], error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one %s provider is required", capability)
	}
	return &Router[P]{
		capability: capability,
		providers:  append([]P(nil), providers...),
		backoff:    map[string]backoffState{},
		now:        time.Now,
		sleep:      sleepContext,
	}, nil
}

// Capability returns the capability this router serves.
func (r *Router[P]) Capability() Capability { return r.capability }

// Providers returns the ordered provider list.
func (r *Router[P]) Providers() []P {
	return append([]P(nil), r.providers...)
}

// Primary returns the highest-priority provider.
func (r *Router[P]) Primary() P { return r.providers[0] }

// backoffDelay reports how much longer the provider must wait before being
// tried again. Zero means no backoff is active. Entries older than the
// forget window are dropped.
func (r *Router[P]) backoffDelay(name string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.backoff[name]
	if !ok {
		return 0
	}
	elapsed := r.now().Sub(state.lastFailure)
	if elapsed > backoffForget {
		delete(r.backoff, name)
		return 0
	}
	delay := backoffCap
	if state.failures < 6 {
		delay = min(time.Duration(1<<(state.failures-1))*time.Second, backoffCap)
	}
	return max(delay-elapsed, 0)
}

func (r *Router[P]) recordFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.backoff[name]
	r.backoff[name] = backoffState{failures: state.failures + 1, lastFailure: r.now()}
}

func (r *Router[P]) recordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.backoff, name)
}

// classify maps any error to a provider failure record. Already-classified
// errors pass through; everything else becomes a generic failure for the
// named provider.
func classify(name string, err error) *Error {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr
	}
	return NewError(name, err)
}

// Execute runs call against providers in priority order, failing over on
// transient errors, until one succeeds. Providers in backoff are skipped
// without being counted as a fresh failure. If every provider was either
// tried or skipped, one extra attempt is made against the skipped provider
// with the smallest remaining delay, sleeping out that delay first. If that
// also fails (or no provider remained), an AggregateError carrying every
// collected failure record is returned.
func Execute[P Provider, T any](ctx context.Context, r *Router[P], op string, call func(context.Context, P) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("route %s", op))
	defer span.End()
	span.SetAttributes(
		attribute.String("router.capability", string(r.capability)),
		attribute.String("router.operation", op),
	)

	var zero T
	var failures []*Error
	failed := map[string]bool{}

	for _, provider := range r.providers {
		name := provider.Name()

		if delay := r.backoffDelay(name); delay > 0 {
			logger.DebugContext(ctx, "provider in backoff, skipping",
				"capability", r.capability, "provider", name, "remaining", delay)
			continue
		}

		result, err := call(ctx, provider)
		if err == nil {
			r.recordSuccess(name)
			span.SetAttributes(attribute.String("router.provider", name))
			return result, nil
		}

		failure := classify(name, err)
		r.recordFailure(failure.Provider)
		failed[failure.Provider] = true
		failures = append(failures, failure)
		logger.WarnContext(ctx, "provider failed, trying next",
			"capability", r.capability, "provider", name,
			"kind", failure.Kind, "error", err)
	}

	// Every provider either failed or sat in backoff. Give the least
	// backed-off untried provider one more chance, sleeping out its delay.
	// Intentionally just one provider, not all: a courtesy toward rate
	// limited backends.
	type candidate struct {
		delay    time.Duration
		provider P
	}
	var candidates []candidate
	for _, provider := range r.providers {
		if failed[provider.Name()] {
			continue
		}
		candidates = append(candidates, candidate{delay: r.backoffDelay(provider.Name()), provider: provider})
	}
	if len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].delay < candidates[j].delay
		})
		retry := candidates[0]
		name := retry.provider.Name()
		if retry.delay > 0 {
			logger.InfoContext(ctx, "all providers exhausted, waiting for retry",
				"capability", r.capability, "provider", name, "delay", retry.delay)
			if err := r.sleep(ctx, retry.delay); err != nil {
				return zero, err
			}
		}

		result, err := call(ctx, retry.provider)
		if err == nil {
			r.recordSuccess(name)
			span.SetAttributes(attribute.String("router.provider", name))
			return result, nil
		}
		failure := classify(name, err)
		r.recordFailure(failure.Provider)
		failures = append(failures, failure)
	}

	aggErr := &AggregateError{Capability: r.capability, Failures: failures}
	span.RecordError(aggErr)
	span.SetStatus(codes.Error, aggErr.Error())
	return zero, aggErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
