package cacherouter

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mkatragadda/Vitta-sub011/internal/cachestore"
)

// tinyGIF is a 1x1 transparent GIF used as the image placeholder.
var tinyGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3B,
}

const minimalOfflineHTML = `<!doctype html><html><head><title>Offline</title></head>` +
	`<body><h1>You are offline</h1><p>This page is not available without a connection.</p></body></html>`

// synthesize builds an in-memory response the caller can treat like any
// other round-trip result.
func synthesize(req *http.Request, status int, contentType string, body []byte) *http.Response {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	h.Set("X-Offline-Fallback", "true")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// entryResponse rehydrates a cached entry into a response.
func entryResponse(e *cachestore.Entry, req *http.Request) *http.Response {
	h := e.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("X-Offline-Cache", "hit")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: e.Size,
		Request:       req,
	}
}

// jsonUnavailable is the structured offline error body; callers branch on
// the offline field instead of handling a transport error.
func jsonUnavailable(req *http.Request, msg string) *http.Response {
	body := fmt.Sprintf(`{"error":%q,"offline":true}`, msg)
	return synthesize(req, http.StatusServiceUnavailable, "application/json", []byte(body))
}

// placeholderImage stands in for an unfetchable image.
func placeholderImage(req *http.Request) *http.Response {
	return synthesize(req, http.StatusOK, "image/gif", tinyGIF)
}

// fallback picks the offline response by the request's accepted content
// type: precached offline document for HTML, structured JSON error for
// JSON, minimal unavailable response otherwise.
func (r *Router) fallback(req *http.Request) *http.Response {
	r.opts.Stats.Fallback()
	accept := req.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "text/html"):
		if r.opts.OfflineDocumentURL != "" {
			if e, ok := r.static.Match(r.opts.OfflineDocumentURL); ok {
				resp := entryResponse(e, req)
				resp.StatusCode = http.StatusServiceUnavailable
				resp.Status = fmt.Sprintf("%d %s", http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))
				return resp
			}
		}
		return synthesize(req, http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(minimalOfflineHTML))
	case strings.Contains(accept, "application/json"):
		return jsonUnavailable(req, "offline")
	default:
		return synthesize(req, http.StatusServiceUnavailable, "text/plain; charset=utf-8", []byte("offline"))
	}
}
