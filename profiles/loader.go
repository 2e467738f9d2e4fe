package profiles

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

// DefaultLoaderWait is how long a loader collects keys before one batch.
const DefaultLoaderWait = 2 * time.Millisecond

// Loader batches and caches profile lookups for the lifetime of one request.
type Loader struct {
	loader *dataloader.Loader[string, matching.Profile]
}

// NewLoader builds a loader over src.
func NewLoader(src Source, wait time.Duration) *Loader {
	if wait <= 0 {
		wait = DefaultLoaderWait
	}
	return &Loader{
		loader: dataloader.NewBatchedLoader(batchFn(src), dataloader.WithWait[string, matching.Profile](wait)),
	}
}

// batchFn creates a batch function for loading profiles. Unknown ids resolve
// to ErrProfileNotFound, a failed batch fails every key.
func batchFn(src Source) dataloader.BatchFunc[string, matching.Profile] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[matching.Profile] {
		results := make([]*dataloader.Result[matching.Profile], len(keys))

		found, err := src.GetProfiles(ctx, keys)
		for i, key := range keys {
			switch p, ok := found[key]; {
			case err != nil:
				results[i] = &dataloader.Result[matching.Profile]{Error: err}
			case !ok:
				results[i] = &dataloader.Result[matching.Profile]{Error: matching.ErrProfileNotFound}
			default:
				results[i] = &dataloader.Result[matching.Profile]{Data: p}
			}
		}
		return results
	}
}

func (l *Loader) GetProfile(ctx context.Context, id string) (matching.Profile, error) {
	return l.loader.Load(ctx, id)()
}

// GetProfiles loads ids through the batch, omitting unknown ids.
func (l *Loader) GetProfiles(ctx context.Context, ids []string) (map[string]matching.Profile, error) {
	ps, errs := l.loader.LoadMany(ctx, ids)()
	out := make(map[string]matching.Profile, len(ids))
	for i, id := range ids {
		if i < len(errs) && errs[i] != nil {
			if errors.Is(errs[i], matching.ErrProfileNotFound) {
				continue
			}
			return nil, errs[i]
		}
		out[id] = ps[i]
	}
	return out, nil
}

type loaderKey struct{}

// WithLoader adds a loader to ctx.
func WithLoader(ctx context.Context, l *Loader) context.Context {
	return context.WithValue(ctx, loaderKey{}, l)
}

// LoaderFrom retrieves the request loader, or nil.
func LoaderFrom(ctx context.Context) *Loader {
	l, _ := ctx.Value(loaderKey{}).(*Loader)
	return l
}

// Middleware injects a fresh loader into every request context so lookups
// made while serving one request are batched and cached together.
func Middleware(src Source, wait time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoader(r.Context(), NewLoader(src, wait))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextSource prefers the request loader and falls back to the wrapped
// source outside a request.
type ContextSource struct {
	Fallback Source
}

func (s ContextSource) GetProfile(ctx context.Context, id string) (matching.Profile, error) {
	if l := LoaderFrom(ctx); l != nil {
		return l.GetProfile(ctx, id)
	}
	return s.Fallback.GetProfile(ctx, id)
}

func (s ContextSource) GetProfiles(ctx context.Context, ids []string) (map[string]matching.Profile, error) {
	if l := LoaderFrom(ctx); l != nil {
		return l.GetProfiles(ctx, ids)
	}
	return s.Fallback.GetProfiles(ctx, ids)
}
