package cacherouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mkatragadda/Vitta-sub011/internal/cachestore"
	pebblestore "github.com/mkatragadda/Vitta-sub011/internal/storage/pebble"
)

type fakeTransport struct {
	calls atomic.Int32
	fn    func(req *http.Request) (*http.Response, error)
}

func (t *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return t.fn(req)
}

func okResponse(req *http.Request, contentType string, body []byte) (*http.Response, error) {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	return &http.Response{
		StatusCode:    200,
		Status:        "200 OK",
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

func newTestRouter(t *testing.T, inner *fakeTransport, opts Options) (*Router, *cachestore.Store) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := cachestore.New(db, "v1", nil)
	if opts.APIPrefixes == nil {
		opts.APIPrefixes = []string{"/api/"}
	}
	if opts.LiveInferencePrefixes == nil {
		opts.LiveInferencePrefixes = []string{"/api/chat/completions", "/api/embeddings"}
	}
	r, err := New(inner, store, opts, nil)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return r, store
}

func get(t *testing.T, rawURL string, header http.Header) *http.Request {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	req := &http.Request{Method: http.MethodGet, URL: u, Header: header}
	if req.Header == nil {
		req.Header = http.Header{}
	}
	return req.WithContext(context.Background())
}

func TestClassifyPrecedence(t *testing.T) {
	api := []string{"/api/"}
	live := []string{"/api/chat/completions", "/api/embeddings"}
	cases := []struct {
		path string
		want Strategy
	}{
		{"/assets/app.js", StrategyCacheFirst},
		{"/fonts/inter.woff2", StrategyCacheFirst},
		{"/api/chat/completions", StrategyNetworkOnly},
		{"/api/embeddings", StrategyNetworkOnly},
		{"/api/cards", StrategyNetworkFirst},
		{"/media/photo.png", StrategyCacheFirstSized},
		{"/favicon.ico", StrategyCacheFirstSized},
		{"/index.html", StrategyNetworkFirst},
		{"/", StrategyNetworkFirst},
		{"/anything/else", StrategyNetworkFirst},
	}
	for _, tc := range cases {
		u := &url.URL{Scheme: "https", Host: "app.example.com", Path: tc.path}
		if got := classify(u, api, live); got != tc.want {
			t.Errorf("classify(%s) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestNonGETPassesThrough(t *testing.T) {
	inner := &fakeTransport{fn: func(req *http.Request) (*http.Response, error) {
		return okResponse(req, "application/json", []byte(`{}`))
	}}
	r, _ := newTestRouter(t, inner, Options{})
	u, _ := url.Parse("https://app.example.com/api/cards")
	req := (&http.Request{Method: http.MethodPost, URL: u, Header: http.Header{}, Body: io.NopCloser(bytes.NewReader(nil))}).WithContext(context.Background())
	resp, err := r.RoundTrip(req)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if resp.StatusCode != 200 || inner.calls.Load() != 1 {
		t.Fatalf("POST not passed through")
	}
}

func TestCacheFirstServesWithoutNetwork(t *testing.T) {
	inner := &fakeTransport{fn: func(req *http.Request) (*http.Response, error) {
		return okResponse(req, "text/javascript", []byte("console.log(1)"))
	}}
	r, store := newTestRouter(t, inner, Options{})
	ctx := context.Background()

	static, _ := store.Open(store.Name(cachestore.RoleStatic))
	url := "https://app.example.com/assets/app.js"
	if err := static.Put(ctx, &cachestore.Entry{URL: url, Status: 200, Body: []byte("cached")}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, err := r.RoundTrip(get(t, url, nil))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "cached" {
		t.Fatalf("body = %q", body)
	}
	if inner.calls.Load() != 0 {
		t.Fatalf("cache hit issued %d network fetches", inner.calls.Load())
	}
}

func TestCacheFirstMissFetchesAndStores(t *testing.T) {
	inner := &fakeTransport{fn: func(req *http.Request) (*http.Response, error) {
		return okResponse(req, "text/css", []byte("body{}"))
	}}
	r, store := newTestRouter(t, inner, Options{})

	url := "https://app.example.com/assets/site.css"
	resp, err := r.RoundTrip(get(t, url, nil))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "body{}" {
		t.Fatalf("body = %q", body)
	}
	static, _ := store.Open(store.Name(cachestore.RoleStatic))
	if _, ok := static.Match(url); !ok {
		t.Fatalf("miss was not stored")
	}
}

func TestNetworkOnlyNeverWritesCache(t *testing.T) {
	inner := &fakeTransport{fn: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}
	r, store := newTestRouter(t, inner, Options{})

	resp, err := r.RoundTrip(get(t, "https://app.example.com/api/chat/completions", nil))
	if err != nil {
		t.Fatalf("network-only must not propagate fetch errors: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Error   string `json:"error"`
		Offline bool   `json:"offline"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Offline || body.Error == "" {
		t.Fatalf("body = %+v", body)
	}
	total, _ := store.TotalSize(context.Background())
	if total != 0 {
		t.Fatalf("network-only wrote %d bytes to cache", total)
	}
}

func TestNetworkFirstFallsBackToCache(t *testing.T) {
	inner := &fakeTransport{fn: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("timeout")
	}}
	r, store := newTestRouter(t, inner, Options{})
	ctx := context.Background()

	api, _ := store.Open(store.Name(cachestore.RoleAPI))
	url := "https://app.example.com/api/cards"
	_ = api.Put(ctx, &cachestore.Entry{URL: url, Status: 200, Body: []byte(`[{"id":1}]`)})

	resp, err := r.RoundTrip(get(t, url, nil))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if resp.Header.Get("X-Offline-Cache") != "hit" {
		t.Fatalf("expected cached response, got %d", resp.StatusCode)
	}
}

func TestSizeLimitSkipsStorageButReturnsResponse(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 64) // body content is irrelevant
	inner := &fakeTransport{fn: func(req *http.Request) (*http.Response, error) {
		resp, _ := okResponse(req, "image/png", big)
		resp.ContentLength = 10 << 20 // declared 10 MiB
		return resp, nil
	}}
	r, store := newTestRouter(t, inner, Options{ImageSizeLimit: 5 << 20})

	url := "https://cdn.example.com/media/photo.png"
	resp, err := r.RoundTrip(get(t, url, nil))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("oversized response not returned: %d", resp.StatusCode)
	}
	images, _ := store.Open(store.Name(cachestore.RoleImages))
	if _, ok := images.Match(url); ok {
		t.Fatalf("oversized image was stored")
	}
}

func TestImageTotalFailureYieldsPlaceholder(t *testing.T) {
	inner := &fakeTransport{fn: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("unreachable")
	}}
	r, _ := newTestRouter(t, inner, Options{})
	resp, err := r.RoundTrip(get(t, "https://cdn.example.com/media/photo.png", nil))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if resp.StatusCode != 200 || resp.Header.Get("Content-Type") != "image/gif" {
		t.Fatalf("placeholder not served: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestFallbackByAcceptHeader(t *testing.T) {
	inner := &fakeTransport{fn: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("offline")
	}}
	r, _ := newTestRouter(t, inner, Options{})

	jsonHdr := http.Header{}
	jsonHdr.Set("Accept", "application/json")
	resp, _ := r.RoundTrip(get(t, "https://app.example.com/api/cards", jsonHdr))
	if resp.StatusCode != http.StatusServiceUnavailable ||
		resp.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("json fallback: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	htmlHdr := http.Header{}
	htmlHdr.Set("Accept", "text/html,application/xhtml+xml")
	resp, _ = r.RoundTrip(get(t, "https://app.example.com/", htmlHdr))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("html fallback status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("offline")) && !bytes.Contains(body, []byte("Offline")) {
		t.Fatalf("html fallback body = %q", body)
	}
}

func TestFallbackServesPrecachedOfflineDocument(t *testing.T) {
	inner := &fakeTransport{fn: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("offline")
	}}
	offlineURL := "https://app.example.com/offline.html"
	r, store := newTestRouter(t, inner, Options{OfflineDocumentURL: offlineURL})
	static, _ := store.Open(store.Name(cachestore.RoleStatic))
	_ = static.Put(context.Background(), &cachestore.Entry{
		URL: offlineURL, Status: 200, Body: []byte("<h1>precached offline page</h1>"),
	})

	hdr := http.Header{}
	hdr.Set("Accept", "text/html")
	resp, _ := r.RoundTrip(get(t, "https://app.example.com/", hdr))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "<h1>precached offline page</h1>" {
		t.Fatalf("body = %q", body)
	}
}

func TestInstallSwallowsIndividualFailures(t *testing.T) {
	inner := &fakeTransport{fn: func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == "/broken.js" {
			return nil, errors.New("missing asset")
		}
		return okResponse(req, "text/javascript", []byte("ok"))
	}}
	r, store := newTestRouter(t, inner, Options{
		PrecacheManifest: []string{
			"https://app.example.com/app.js",
			"https://app.example.com/broken.js",
		},
	})
	if err := r.Install(context.Background()); err != nil {
		t.Fatalf("install must not fail on one missing asset: %v", err)
	}
	static, _ := store.Open(store.Name(cachestore.RoleStatic))
	if _, ok := static.Match("https://app.example.com/app.js"); !ok {
		t.Fatalf("healthy asset not precached")
	}
	if _, ok := static.Match("https://app.example.com/broken.js"); ok {
		t.Fatalf("broken asset cached")
	}
}

func TestClearDynamicDuringTraffic(t *testing.T) {
	inner := &fakeTransport{fn: func(req *http.Request) (*http.Response, error) {
		return okResponse(req, "text/html", []byte("fresh"))
	}}
	r, _ := newTestRouter(t, inner, Options{})

	done := make(chan struct{})
	errCh := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				u := &url.URL{Scheme: "https", Host: "app.example.com", Path: "/page"}
				req := (&http.Request{Method: http.MethodGet, URL: u, Header: http.Header{}}).WithContext(context.Background())
				resp, err := r.RoundTrip(req)
				if err != nil {
					select {
					case errCh <- err:
					default:
					}
					return
				}
				_, _ = io.Copy(io.Discard, resp.Body)
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if err := r.ClearDynamic(context.Background()); err != nil {
			close(done)
			wg.Wait()
			t.Fatalf("clear during traffic: %v", err)
		}
	}
	close(done)
	wg.Wait()
	select {
	case err := <-errCh:
		t.Fatalf("round trip during clear: %v", err)
	default:
	}
}

func TestBypassDisablesInterception(t *testing.T) {
	inner := &fakeTransport{fn: func(req *http.Request) (*http.Response, error) {
		return okResponse(req, "text/javascript", []byte("raw"))
	}}
	r, store := newTestRouter(t, inner, Options{Bypass: true})
	url := "https://localhost:3000/assets/app.js"
	if _, err := r.RoundTrip(get(t, url, nil)); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	static, _ := store.Open(store.Name(cachestore.RoleStatic))
	if _, ok := static.Match(url); ok {
		t.Fatalf("bypass mode still cached")
	}
}
