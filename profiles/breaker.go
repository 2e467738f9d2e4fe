package profiles

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/matching"
	"github.com/Benwil1/latest-copy-sub000/metrics"
)

// BreakerSettings tunes the profile circuit breaker.
type BreakerSettings struct {
	// MinRequests before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio at or above which the circuit opens.
	FailureRatio float64
	// OpenTimeout before a half-open trial request.
	OpenTimeout time.Duration
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	return s
}

// Breaker guards a Source with a circuit breaker. While the circuit is open
// calls fail fast with StorageUnavailableError. Unknown ids do not count as
// failures.
type Breaker struct {
	next Source
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreaker(name string, next Source, settings BreakerSettings) *Breaker {
	settings = settings.withDefaults()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, matching.ErrProfileNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) GetProfile(ctx context.Context, id string) (matching.Profile, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.GetProfile(ctx, id)
	})
	if err != nil {
		return matching.Profile{}, b.wrap("get profile", err)
	}
	return v.(matching.Profile), nil
}

func (b *Breaker) GetProfiles(ctx context.Context, ids []string) (map[string]matching.Profile, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.GetProfiles(ctx, ids)
	})
	if err != nil {
		return nil, b.wrap("get profiles", err)
	}
	return v.(map[string]matching.Profile), nil
}

// State reports the breaker state name.
func (b *Breaker) State() string { return b.cb.State().String() }

func (b *Breaker) wrap(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &matching.StorageUnavailableError{Op: op, Err: err}
	}
	return err
}
