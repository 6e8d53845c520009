package cacherouter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mkatragadda/Vitta-sub011/internal/cachestore"
)

// fetch performs one bounded network round trip and returns a response
// whose body has been drained into memory so it can be both stored and
// handed back to the caller.
func (r *Router) fetch(req *http.Request) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(req.Context(), r.opts.NetworkTimeout)
	defer cancel()
	resp, err := r.inner.RoundTrip(req.WithContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, body, nil
}

func (r *Router) storeClone(ctx context.Context, cache *cachestore.Cache, req *http.Request, resp *http.Response, body []byte) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return
	}
	entry := &cachestore.Entry{
		URL:    req.URL.String(),
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}
	if err := cache.Put(ctx, entry); err != nil {
		r.log.Warn("cache write failed", zap.String("url", entry.URL), zap.Error(err))
	}
}

// cacheFirst returns a cached entry without any network round trip; only a
// miss goes to the network.
func (r *Router) cacheFirst(cache *cachestore.Cache, req *http.Request) (*http.Response, error) {
	if e, ok := cache.Match(req.URL.String()); ok {
		r.opts.Stats.CacheHit()
		return entryResponse(e, req), nil
	}
	r.opts.Stats.CacheMiss()
	resp, body, err := r.fetch(req)
	if err != nil {
		r.log.Debug("cache-first fetch failed", zap.String("url", req.URL.String()), zap.Error(err))
		return r.fallback(req), nil
	}
	r.storeClone(req.Context(), cache, req, resp, body)
	return resp, nil
}

// networkFirst prefers a fresh response within the timeout, falling back to
// the cached entry and finally the offline fallback.
func (r *Router) networkFirst(cache *cachestore.Cache, req *http.Request) (*http.Response, error) {
	resp, body, err := r.fetch(req)
	if err == nil {
		r.storeClone(req.Context(), cache, req, resp, body)
		return resp, nil
	}
	r.log.Debug("network-first fetch failed", zap.String("url", req.URL.String()), zap.Error(err))
	if e, ok := cache.Match(req.URL.String()); ok {
		r.opts.Stats.CacheHit()
		return entryResponse(e, req), nil
	}
	r.opts.Stats.CacheMiss()
	return r.fallback(req), nil
}

// networkOnly never touches the cache. A failed fetch becomes a structured
// service-unavailable response callers can branch on, not a hard failure.
func (r *Router) networkOnly(req *http.Request) (*http.Response, error) {
	resp, _, err := r.fetch(req)
	if err != nil {
		r.log.Debug("network-only fetch failed", zap.String("url", req.URL.String()), zap.Error(err))
		r.opts.Stats.Fallback()
		return jsonUnavailable(req, "service unavailable"), nil
	}
	return resp, nil
}

// cacheFirstSized is cache-first, but stores only responses whose declared
// content length stays under the cap; unknown lengths are allowed through.
// Oversized responses are still returned to the caller, just not stored.
func (r *Router) cacheFirstSized(cache *cachestore.Cache, req *http.Request) (*http.Response, error) {
	if e, ok := cache.Match(req.URL.String()); ok {
		r.opts.Stats.CacheHit()
		return entryResponse(e, req), nil
	}
	r.opts.Stats.CacheMiss()
	resp, body, err := r.fetch(req)
	if err != nil {
		r.log.Debug("image fetch failed", zap.String("url", req.URL.String()), zap.Error(err))
		r.opts.Stats.Fallback()
		return placeholderImage(req), nil
	}
	if resp.ContentLength < 0 || resp.ContentLength <= r.opts.ImageSizeLimit {
		r.storeClone(req.Context(), cache, req, resp, body)
	}
	return resp, nil
}

// Install opens the current-generation static cache and precaches the
// asset manifest. Individual asset failures are logged and swallowed;
// install must not fail because of one missing asset.
func (r *Router) Install(ctx context.Context) error {
	for _, asset := range r.opts.PrecacheManifest {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
		if err != nil {
			r.log.Warn("precache skipped, bad asset url", zap.String("asset", asset), zap.Error(err))
			continue
		}
		resp, body, err := r.fetch(req)
		if err != nil {
			r.log.Warn("precache fetch failed", zap.String("asset", asset), zap.Error(err))
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			r.log.Warn("precache skipped non-success", zap.String("asset", asset), zap.Int("status", resp.StatusCode))
			continue
		}
		r.storeClone(ctx, r.static, req, resp, body)
	}
	r.log.Info("install complete", zap.Int("manifest", len(r.opts.PrecacheManifest)))
	return nil
}

// Activate purges caches of foreign generations and reports what was
// deleted. Runs immediately after install; there is no waiting phase.
func (r *Router) Activate(ctx context.Context) ([]string, error) {
	deleted, err := r.store.Activate(ctx)
	if err != nil {
		return nil, err
	}
	r.log.Info("activate complete", zap.Strings("purged", deleted))
	return deleted, nil
}

// SweepDynamic drops dynamic-cache entries older than the retention window.
func (r *Router) SweepDynamic(ctx context.Context, retention time.Duration) (int, error) {
	return r.dynamicCache().SweepOlderThan(ctx, time.Now().Add(-retention))
}

// ClearDynamic drops the whole dynamic cache, for the host CLEAR_CACHE
// control message. The cache is re-registered empty so later writes land
// in a listed cache; the swap happens under the handle lock so requests
// in flight see either the old or the new handle, never a torn one.
func (r *Router) ClearDynamic(ctx context.Context) error {
	if err := r.store.DeleteName(ctx, r.dynamicCache().Name()); err != nil {
		return err
	}
	c, err := r.store.Open(r.store.Name(cachestore.RoleDynamic))
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.dynamic = c
	r.mu.Unlock()
	return nil
}
