// Package cacherouter intercepts outbound GET requests and applies one of
// four caching strategies chosen by resource classification.
//
// Classification precedence (first match wins): static asset extensions go
// Cache-First, live-inference path prefixes go Network-Only, other API
// prefixes go Network-First, image extensions go Cache-First with a size
// cap, and HTML navigations plus everything else go Network-First.
//
// A fetch failure never escapes the router as an error on cached
// strategies: every strategy ends in an explicit fallback - cached entry,
// precached offline document, structured offline JSON, or a placeholder
// image. Non-GET requests and non-HTTP schemes pass through to the inner
// transport untouched.
package cacherouter
