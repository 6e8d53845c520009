package cacherouter

import (
	"net/url"
	"path"
	"strings"
)

// Strategy is the caching behavior applied to one request.
type Strategy int

const (
	// StrategyNetworkFirst prefers a fresh response within the timeout and
	// falls back to cache. The default for anything unclassified.
	StrategyNetworkFirst Strategy = iota
	// StrategyCacheFirst serves from cache when present, no network trip.
	StrategyCacheFirst
	// StrategyNetworkOnly never reads or writes cache.
	StrategyNetworkOnly
	// StrategyCacheFirstSized is cache-first with a storage size cap.
	StrategyCacheFirstSized
)

func (s Strategy) String() string {
	switch s {
	case StrategyCacheFirst:
		return "cache-first"
	case StrategyNetworkOnly:
		return "network-only"
	case StrategyCacheFirstSized:
		return "cache-first-sized"
	default:
		return "network-first"
	}
}

var staticExts = map[string]struct{}{
	".js": {}, ".css": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {},
}

var imageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".ico": {},
}

// classify picks exactly one strategy for a GET URL. First match wins.
// Live-inference prefixes are checked before the general API rule so that
// AI-backed endpoints are never cached even though they share the API
// namespace.
func classify(u *url.URL, apiPrefixes, liveInferencePrefixes []string) Strategy {
	ext := strings.ToLower(path.Ext(u.Path))

	if _, ok := staticExts[ext]; ok {
		return StrategyCacheFirst
	}
	for _, p := range liveInferencePrefixes {
		if strings.HasPrefix(u.Path, p) {
			return StrategyNetworkOnly
		}
	}
	for _, p := range apiPrefixes {
		if strings.HasPrefix(u.Path, p) {
			return StrategyNetworkFirst
		}
	}
	if _, ok := imageExts[ext]; ok {
		return StrategyCacheFirstSized
	}
	if ext == ".htm" || ext == ".html" || u.Path == "/" || u.Path == "" {
		return StrategyNetworkFirst
	}
	return StrategyNetworkFirst
}
