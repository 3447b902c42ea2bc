package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/bank-content-crawler/internal/config"
	"github.com/JakeFAU/bank-content-crawler/internal/crawler"
)

type fakeApp struct {
	runErr error
	ran    bool
	closed bool
}

func (f *fakeApp) Run(context.Context) (crawler.Dataset, error) {
	f.ran = true
	return crawler.Dataset{Summary: crawler.Summary{TotalItems: 3, HTMLPages: 2, PDFDocuments: 1}}, f.runErr
}

func (f *fakeApp) Close() { f.closed = true }

func newTestOptions(fake *fakeApp, captured *config.Config, buildErr error) *rootOptions {
	return &rootOptions{
		newApp: func(_ context.Context, cfg config.Config, _ *zap.Logger) (crawlApp, error) {
			*captured = cfg
			if buildErr != nil {
				return nil, buildErr
			}
			return fake, nil
		},
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// The crawl command installs a global logger, so these tests run serially.

func TestRootCmd_HasCrawlAndConfigFlag(t *testing.T) {
	cmd := newRootCmd(defaultOptions())

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	crawl, _, err := cmd.Find([]string{"crawl"})
	require.NoError(t, err)
	require.Equal(t, "crawl", crawl.Name())
	require.NotNil(t, crawl.Flags().Lookup("output"))
	require.NotNil(t, crawl.Flags().Lookup("max-pages"))
	require.NotNil(t, crawl.Flags().Lookup("port"))
}

func TestCrawlCmd_RunsAppWithConfig(t *testing.T) {
	path := writeConfig(t, "crawler:\n  max_pages: 7\nlogging:\n  development: false\n")
	fake := &fakeApp{}
	var captured config.Config
	cmd := newRootCmd(newTestOptions(fake, &captured, nil))
	cmd.SetArgs([]string{"crawl", "--config", path, "--output", "custom.json"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	require.True(t, fake.ran)
	require.True(t, fake.closed)
	require.Equal(t, 7, captured.Crawler.MaxPages)
	require.Equal(t, "custom.json", captured.Output.File)
}

func TestCrawlCmd_FlagOverridesValidated(t *testing.T) {
	fake := &fakeApp{}
	var captured config.Config
	cmd := newRootCmd(newTestOptions(fake, &captured, nil))
	cmd.SetArgs([]string{"crawl", "--max-pages", "0"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "crawler.max_pages")
	require.False(t, fake.ran)
}

func TestCrawlCmd_BadConfigFile(t *testing.T) {
	fake := &fakeApp{}
	var captured config.Config
	cmd := newRootCmd(newTestOptions(fake, &captured, nil))
	cmd.SetArgs([]string{"crawl", "--config", filepath.Join(t.TempDir(), "missing.yaml")})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "load config")
}

func TestCrawlCmd_BuildFailure(t *testing.T) {
	fake := &fakeApp{}
	var captured config.Config
	cmd := newRootCmd(newTestOptions(fake, &captured, errors.New("bucket not found")))
	cmd.SetArgs([]string{"crawl", "--port", "9100"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "bucket not found")
	require.Equal(t, 9100, captured.Server.Port)
	require.False(t, fake.closed)
}

func TestCrawlCmd_RunFailureClosesApp(t *testing.T) {
	fake := &fakeApp{runErr: crawler.ErrRendererUnavailable}
	var captured config.Config
	cmd := newRootCmd(newTestOptions(fake, &captured, nil))
	cmd.SetArgs([]string{"crawl"})

	err := cmd.ExecuteContext(context.Background())
	require.ErrorIs(t, err, crawler.ErrRendererUnavailable)
	require.True(t, fake.closed)
}

func TestCrawlCmd_RejectsArgs(t *testing.T) {
	cmd := newRootCmd(defaultOptions())
	cmd.SetArgs([]string{"crawl", "extra"})
	cmd.SetOut(&bytes.Buffer{})

	require.Error(t, cmd.ExecuteContext(context.Background()))
}
