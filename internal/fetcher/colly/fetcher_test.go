package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/bank-content-crawler/internal/crawler"
)

func TestFetcherDownloadsBinary(t *testing.T) {
	t.Parallel()

	payload := []byte("%PDF-1.4 fake body")
	agents := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	f := New(Config{UserAgent: "bank-agent/1.0", Timeout: 5 * time.Second})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: server.URL + "/doc.pdf"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, payload, resp.Body)
	require.Equal(t, "application/pdf", resp.Headers.Get("Content-Type"))
	require.Equal(t, "bank-agent/1.0", <-agents)

	// Same URL again: the collector must not treat it as already visited.
	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: server.URL + "/doc.pdf"})
	require.NoError(t, err)
}

func TestFetcherReportsHTTPFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: server.URL + "/missing.pdf"})
	require.ErrorIs(t, err, crawler.ErrDownload)
	require.Contains(t, err.Error(), "404")
}

func TestFetcherCapsBodySize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer server.Close()

	f := New(Config{MaxBodySize: 1024})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: server.URL})
	require.NoError(t, err)
	require.Len(t, resp.Body, 1024)
}

func TestFetcherHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(ctx, crawler.FetchRequest{URL: server.URL})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetcherConcurrentFetchesKeepOwnTimeouts(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow.pdf" {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	f := New(Config{Timeout: 5 * time.Second})

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := crawler.FetchRequest{URL: fmt.Sprintf("%s/doc-%d.pdf", server.URL, i)}
			if i%2 == 0 {
				req = crawler.FetchRequest{URL: server.URL + "/slow.pdf", Timeout: 100 * time.Millisecond}
			}
			_, err := f.Fetch(context.Background(), req)
			if i%2 == 0 {
				if !errors.Is(err, crawler.ErrDownload) {
					errs <- fmt.Errorf("slow fetch %d: want download error, got %v", i, err)
				}
				return
			}
			if err != nil {
				errs <- fmt.Errorf("fetch %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", Timeout: time.Second, MaxBodySize: 10})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collector := f.buildCollector(ctx, crawler.FetchRequest{URL: "https://standardbank.co.mz"},
		time.Unix(0, 0), &crawler.FetchResponse{}, new(error))
	require.Equal(t, ctx, collector.Context)
	require.Equal(t, "coverage-agent", collector.UserAgent)
	require.True(t, collector.IgnoreRobotsTxt)
	require.True(t, collector.AllowURLRevisit)
	require.Equal(t, 10, collector.MaxBodySize)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := crawler.FetchRequest{
		URL:     "https://www.standardbank.co.mz/doc.pdf",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	var result crawler.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	require.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, req.URL)},
	})
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "ok", result.Headers.Get("X-Resp"))

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("Bad Gateway"))
	require.EqualError(t, fetchErr, "status 502: Bad Gateway")

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(crawler.FetchRequest{}, collyReq)
	require.Empty(t, *collyReq.Headers)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
