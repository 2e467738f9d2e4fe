package matching

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/metrics"
)

// withStorage runs fn under the storage timeout and retries it with
// exponential backoff while it fails with StorageUnavailableError.
func (e *Engine) withStorage(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = e.opts.RetryInitialInterval
	eb.MaxInterval = e.opts.RetryMaxInterval
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(e.opts.MaxRetries)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, e.opts.StorageTimeout)
		defer cancel()

		err := normalizeStorageErr(op, fn(actx))
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		metrics.StorageRetriesTotal.WithLabelValues(op).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("backoff", wait).Msg("storage unavailable, retrying")
	})
}
