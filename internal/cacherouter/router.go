package cacherouter

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mkatragadda/Vitta-sub011/internal/cachestore"
)

// Options configures the router.
type Options struct {
	// APIPrefixes route to Network-First with the dedicated api cache.
	APIPrefixes []string
	// LiveInferencePrefixes route to Network-Only; checked before
	// APIPrefixes.
	LiveInferencePrefixes []string
	// NetworkTimeout bounds every network fetch the router issues.
	NetworkTimeout time.Duration
	// ImageSizeLimit caps what the image cache will store.
	ImageSizeLimit int64
	// PrecacheManifest lists critical asset URLs fetched at install.
	PrecacheManifest []string
	// OfflineDocumentURL is the precached page served as the HTML fallback.
	OfflineDocumentURL string
	// Bypass disables all interception (local development traffic); the
	// router becomes a transparent pass-through.
	Bypass bool
	// Stats receives cache outcome observations. Optional.
	Stats Stats
}

// Stats is the outcome hook the router reports into.
type Stats interface {
	CacheHit()
	CacheMiss()
	Fallback()
}

type noopStats struct{}

func (noopStats) CacheHit()  {}
func (noopStats) CacheMiss() {}
func (noopStats) Fallback()  {}

const (
	defaultNetworkTimeout = 5 * time.Second
	defaultImageSizeLimit = 5 << 20
)

// Router intercepts outbound GET requests and applies one caching strategy
// per request. Everything else passes through to the inner transport
// untouched. Implements http.RoundTripper.
//
// Concurrent requests for the same uncached URL may both miss and both
// fetch and store; the last write wins, which is harmless.
type Router struct {
	inner http.RoundTripper
	store *cachestore.Store
	opts  Options
	log   *zap.Logger

	static *cachestore.Cache
	images *cachestore.Cache
	api    *cachestore.Cache

	// mu guards dynamic, the only handle swapped after construction
	// (ClearDynamic replaces it while requests are in flight).
	mu      sync.RWMutex
	dynamic *cachestore.Cache
}

func (r *Router) dynamicCache() *cachestore.Cache {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dynamic
}

// New opens the current-generation caches and builds the router around the
// inner transport. A nil inner uses http.DefaultTransport.
func New(inner http.RoundTripper, store *cachestore.Store, opts Options, log *zap.Logger) (*Router, error) {
	if inner == nil {
		inner = http.DefaultTransport
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.NetworkTimeout <= 0 {
		opts.NetworkTimeout = defaultNetworkTimeout
	}
	if opts.ImageSizeLimit <= 0 {
		opts.ImageSizeLimit = defaultImageSizeLimit
	}
	if opts.Stats == nil {
		opts.Stats = noopStats{}
	}
	r := &Router{inner: inner, store: store, opts: opts, log: log.Named("cacherouter")}
	var err error
	for role, dst := range map[string]**cachestore.Cache{
		cachestore.RoleStatic:  &r.static,
		cachestore.RoleDynamic: &r.dynamic,
		cachestore.RoleImages:  &r.images,
		cachestore.RoleAPI:     &r.api,
	} {
		if *dst, err = store.Open(store.Name(role)); err != nil {
			return nil, fmt.Errorf("cacherouter: open %s cache: %w", role, err)
		}
	}
	return r, nil
}

// RoundTrip applies the strategy chosen by classification. Fetch failures
// never escape as errors from cached strategies; every path has an explicit
// fallback response.
func (r *Router) RoundTrip(req *http.Request) (*http.Response, error) {
	if r.opts.Bypass || req.Method != http.MethodGet ||
		(req.URL.Scheme != "http" && req.URL.Scheme != "https") {
		return r.inner.RoundTrip(req)
	}

	strategy := classify(req.URL, r.opts.APIPrefixes, r.opts.LiveInferencePrefixes)
	switch strategy {
	case StrategyCacheFirst:
		return r.cacheFirst(r.static, req)
	case StrategyNetworkOnly:
		return r.networkOnly(req)
	case StrategyCacheFirstSized:
		return r.cacheFirstSized(r.images, req)
	default:
		cache := r.dynamicCache()
		for _, p := range r.opts.APIPrefixes {
			if len(req.URL.Path) >= len(p) && req.URL.Path[:len(p)] == p {
				cache = r.api
				break
			}
		}
		return r.networkFirst(cache, req)
	}
}
