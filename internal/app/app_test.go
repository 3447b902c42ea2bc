package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/bank-content-crawler/internal/app"
	"github.com/JakeFAU/bank-content-crawler/internal/clock"
	"github.com/JakeFAU/bank-content-crawler/internal/config"
	"github.com/JakeFAU/bank-content-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/bank-content-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/bank-content-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/bank-content-crawler/internal/publisher"
	memorypublisher "github.com/JakeFAU/bank-content-crawler/internal/publisher/memory"
	"github.com/JakeFAU/bank-content-crawler/internal/storage/gcs"
	memorystorage "github.com/JakeFAU/bank-content-crawler/internal/storage/memory"
	"github.com/JakeFAU/bank-content-crawler/internal/storage/postgres"
)

const homeText = "O Standard Bank oferece contas de poupança, crédito à habitação e serviços " +
	"bancários digitais para clientes particulares e empresas em todo o país. "

// MockRecordSink mocks app.RecordSink.
type MockRecordSink struct {
	mock.Mock
}

func (m *MockRecordSink) Name() string { return "postgres" }

func (m *MockRecordSink) Save(ctx context.Context, dataset crawler.Dataset) error {
	args := m.Called(ctx, dataset)
	return args.Error(0)
}

func (m *MockRecordSink) EnsureSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRecordSink) Close() {
	m.Called()
}

// MockCloser mocks io.Closer for the GCS client.
type MockCloser struct {
	mock.Mock
}

func (m *MockCloser) Close() error {
	args := m.Called()
	return args.Error(0)
}

type closingPublisher struct {
	*memorypublisher.Publisher
	MockCloser
}

type stubRenderer struct {
	mu    sync.Mutex
	pages map[string]crawler.RenderedPage
	cfg   headless.Config
	calls int
}

func (r *stubRenderer) Start(context.Context) error { return nil }
func (r *stubRenderer) Close() error                { return nil }

func (r *stubRenderer) Render(_ context.Context, rawURL string) (crawler.RenderedPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	page, ok := r.pages[rawURL]
	if !ok {
		return crawler.RenderedPage{}, crawler.NewFetchError(crawler.ErrNavigation, rawURL, errors.New("status 404"))
	}
	page.URL = rawURL
	return page, nil
}

type staticID string

func (s staticID) NewID() (string, error) { return string(s), nil }

type unusedFetcher struct{}

func (unusedFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	return crawler.FetchResponse{}, crawler.NewFetchError(crawler.ErrDownload, req.URL, errors.New("offline"))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Output.File = filepath.Join(dir, "out", "dataset.json")
	cfg.PDF.Dir = filepath.Join(dir, "pdfs")
	cfg.Crawler.RequestDelayMs = 0
	return cfg
}

func testProviders(renderer *stubRenderer) app.Providers {
	p := app.DefaultProviders()
	p.Renderer = func(cfg headless.Config) (crawler.Renderer, error) {
		renderer.cfg = cfg
		return renderer, nil
	}
	p.Fetcher = func(collyfetcher.Config) crawler.Fetcher { return unusedFetcher{} }
	p.Clock = clock.NewFixed(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	p.IDs = staticID("run-1")
	return p
}

func homeRenderer(base string) *stubRenderer {
	return &stubRenderer{pages: map[string]crawler.RenderedPage{
		base: {Markup: "<html><body><main><p>" + strings.Repeat(homeText, 5) + "</p></main></body></html>"},
	}}
}

func TestNewWithProviders_RunWritesDataset(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	renderer := homeRenderer(cfg.Target.BaseURL)
	a, err := app.NewWithProviders(context.Background(), cfg, zap.NewNop(), testProviders(renderer))
	require.NoError(t, err)
	defer a.Close()

	require.Equal(t, cfg.Crawler.UserAgent, renderer.cfg.UserAgent)
	require.Equal(t, cfg.NavigationTimeout(), renderer.cfg.NavigationTimeout)
	require.True(t, renderer.cfg.NoSandbox)

	dataset, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, dataset.Summary.TotalItems)
	require.Equal(t, "run-1", dataset.Summary.RunID)
	require.Equal(t, crawler.PhaseTerminated, a.Engine().Progress().Phase)

	raw, err := os.ReadFile(cfg.Output.File)
	require.NoError(t, err)
	var written struct {
		Summary map[string]any   `json:"summary"`
		Data    []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &written))
	require.Len(t, written.Data, 1)
	assert.Equal(t, "html", written.Data[0]["type"])
	assert.Equal(t, "pt", written.Data[0]["language"])
	assert.Equal(t, cfg.Target.Domain, written.Summary["domain"])

	info, err := os.Stat(cfg.PDF.Dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewWithProviders_RendererError(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	p := testProviders(homeRenderer(cfg.Target.BaseURL))
	p.Renderer = func(headless.Config) (crawler.Renderer, error) {
		return nil, errors.New("no chrome")
	}
	_, err := app.NewWithProviders(context.Background(), cfg, nil, p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "init renderer")
}

func TestNewWithProviders_OptionalServices(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.PDF.GCSBucket = "archive"
	cfg.DB.DSN = "postgres://localhost/crawl"
	cfg.PubSub.ProjectID = "proj"
	cfg.PubSub.TopicName = "crawls"

	gcsClient := new(MockCloser)
	gcsClient.On("Close").Return(nil).Once()
	records := new(MockRecordSink)
	records.On("EnsureSchema", mock.Anything).Return(nil).Once()
	records.On("Save", mock.Anything, mock.MatchedBy(func(d crawler.Dataset) bool {
		return len(d.Data) == 1
	})).Return(nil).Once()
	records.On("Close").Return().Once()
	pub := &closingPublisher{Publisher: memorypublisher.New()}
	pub.On("Close").Return(errors.New("already closed")).Once()

	p := testProviders(homeRenderer(cfg.Target.BaseURL))
	p.Archive = func(_ context.Context, gc gcs.Config) (crawler.BlobStore, io.Closer, error) {
		assert.Equal(t, "archive", gc.Bucket)
		assert.Equal(t, "pdfs", gc.Prefix)
		return memorystorage.NewBlobStore(), gcsClient, nil
	}
	p.Records = func(_ context.Context, rc postgres.RecordStoreConfig) (app.RecordSink, error) {
		assert.Equal(t, cfg.DB.DSN, rc.DSN)
		assert.Equal(t, "content_records", rc.Table)
		return records, nil
	}
	p.Publisher = func(_ context.Context, project, topic string) (app.NotificationPublisher, error) {
		assert.Equal(t, "proj", project)
		assert.Equal(t, "crawls", topic)
		return pub, nil
	}

	a, err := app.NewWithProviders(context.Background(), cfg, zap.NewNop(), p)
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	require.NoError(t, err)
	a.Close()

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, publisher.EventCrawlCompleted, msgs[0].Event)
	gcsClient.AssertExpectations(t)
	records.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestNewWithProviders_SchemaFailureReleasesClients(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.DB.DSN = "postgres://localhost/crawl"
	records := new(MockRecordSink)
	records.On("EnsureSchema", mock.Anything).Return(errors.New("permission denied")).Once()
	records.On("Close").Return().Once()

	p := testProviders(homeRenderer(cfg.Target.BaseURL))
	p.Records = func(context.Context, postgres.RecordStoreConfig) (app.RecordSink, error) {
		return records, nil
	}

	_, err := app.NewWithProviders(context.Background(), cfg, zap.NewNop(), p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "permission denied")
	records.AssertExpectations(t)
}

func TestNewWithProviders_ArchiveFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.PDF.GCSBucket = "missing"
	p := testProviders(homeRenderer(cfg.Target.BaseURL))
	p.Archive = func(context.Context, gcs.Config) (crawler.BlobStore, io.Closer, error) {
		return nil, nil, errors.New("bucket not found")
	}

	_, err := app.NewWithProviders(context.Background(), cfg, zap.NewNop(), p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "init pdf archive")
}

func TestRun_InterruptedWithoutSave(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	renderer := homeRenderer(cfg.Target.BaseURL)
	a, err := app.NewWithProviders(context.Background(), cfg, zap.NewNop(), testProviders(renderer))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dataset, err := a.Run(ctx)
	require.NoError(t, err)
	require.Empty(t, dataset.Data)
	require.Zero(t, renderer.calls)

	_, statErr := os.Stat(cfg.Output.File)
	require.True(t, os.IsNotExist(statErr))
}

func TestRun_InterruptedWithSave(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Output.SaveOnInterrupt = true
	a, err := app.NewWithProviders(context.Background(), cfg, zap.NewNop(), testProviders(homeRenderer(cfg.Target.BaseURL)))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Run(ctx)
	require.NoError(t, err)

	raw, err := os.ReadFile(cfg.Output.File)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"data": []`)
}

func TestRun_OutputFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	cfg.Output.File = filepath.Join(blocker, "dataset.json")

	a, err := app.NewWithProviders(context.Background(), cfg, zap.NewNop(), testProviders(homeRenderer(cfg.Target.BaseURL)))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, crawler.ErrFileSystem)
}
