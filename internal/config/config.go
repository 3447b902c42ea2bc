// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent is the desktop Chrome identity presented to the target site.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Target   TargetConfig   `mapstructure:"target"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Content  ContentConfig  `mapstructure:"content"`
	Output   OutputConfig   `mapstructure:"output"`
	PDF      PDFConfig      `mapstructure:"pdf"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Server   ServerConfig   `mapstructure:"server"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TargetConfig names the site being crawled.
type TargetConfig struct {
	Domain  string `mapstructure:"domain"`
	BaseURL string `mapstructure:"base_url"`
}

// CrawlerConfig governs the batch loop and the fetchers.
type CrawlerConfig struct {
	MaxConcurrent       int      `mapstructure:"max_concurrent"`
	MaxPages            int      `mapstructure:"max_pages"`
	RequestDelayMs      int      `mapstructure:"request_delay_ms"`
	NavigationTimeoutMs int      `mapstructure:"navigation_timeout_ms"`
	DownloadTimeoutMs   int      `mapstructure:"download_timeout_ms"`
	MaxDownloadBytes    int      `mapstructure:"max_download_bytes"`
	UserAgent           string   `mapstructure:"user_agent"`
	PDFExtensions       []string `mapstructure:"pdf_extensions"`
}

// ContentConfig controls normalization and chunking.
type ContentConfig struct {
	ChunkSize        int      `mapstructure:"chunk_size"`
	MinContentLength int      `mapstructure:"min_content_length"`
	RemoveSelectors  []string `mapstructure:"remove_selectors"`
}

// OutputConfig sets where the dataset is written.
type OutputConfig struct {
	File            string `mapstructure:"file"`
	SaveOnInterrupt bool   `mapstructure:"save_on_interrupt"`
}

// PDFConfig sets where downloaded PDFs are kept. GCSBucket enables an
// additional bucket archive.
type PDFConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// HeadlessConfig configures the browser launch.
type HeadlessConfig struct {
	NoSandbox bool   `mapstructure:"no_sandbox"`
	ExecPath  string `mapstructure:"exec_path"`
}

// ServerConfig controls the status server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig controls the optional Postgres mirror. An empty DSN disables it.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds the optional completion notification target.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from defaults, an optional file and the environment.
// Environment keys use the CRAWLER_ prefix, e.g. CRAWLER_CRAWLER_MAX_PAGES.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.domain", "standardbank.co.mz")
	v.SetDefault("target.base_url", "https://www.standardbank.co.mz")
	v.SetDefault("crawler.max_concurrent", 5)
	v.SetDefault("crawler.max_pages", 1000)
	v.SetDefault("crawler.request_delay_ms", 1000)
	v.SetDefault("crawler.navigation_timeout_ms", 30000)
	v.SetDefault("crawler.download_timeout_ms", 30000)
	v.SetDefault("crawler.max_download_bytes", 50<<20)
	v.SetDefault("crawler.user_agent", DefaultUserAgent)
	v.SetDefault("crawler.pdf_extensions", []string{".pdf"})
	v.SetDefault("content.chunk_size", 500)
	v.SetDefault("content.min_content_length", 50)
	v.SetDefault("content.remove_selectors", []string{})
	v.SetDefault("output.file", "standardbank_dataset.json")
	v.SetDefault("output.save_on_interrupt", false)
	v.SetDefault("pdf.dir", "downloaded_pdfs")
	v.SetDefault("pdf.prefix", "pdfs")
	v.SetDefault("headless.no_sandbox", true)
	v.SetDefault("server.port", 0)
	v.SetDefault("db.table", "content_records")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Target.Domain) == "" {
		return errors.New("target.domain is required")
	}
	u, err := url.Parse(c.Target.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("target.base_url must be an absolute http(s) URL, got %q", c.Target.BaseURL)
	}
	if !strings.Contains(u.Hostname(), c.Target.Domain) {
		return fmt.Errorf("target.base_url host %q is outside target.domain %q", u.Hostname(), c.Target.Domain)
	}
	if c.Crawler.MaxConcurrent <= 0 {
		return errors.New("crawler.max_concurrent must be > 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return errors.New("crawler.max_pages must be > 0")
	}
	if c.Crawler.RequestDelayMs < 0 {
		return errors.New("crawler.request_delay_ms must be >= 0")
	}
	if c.Crawler.NavigationTimeoutMs <= 0 {
		return errors.New("crawler.navigation_timeout_ms must be > 0")
	}
	if c.Crawler.DownloadTimeoutMs <= 0 {
		return errors.New("crawler.download_timeout_ms must be > 0")
	}
	if len(c.Crawler.PDFExtensions) == 0 {
		return errors.New("crawler.pdf_extensions must not be empty")
	}
	if c.Content.ChunkSize <= 0 {
		return errors.New("content.chunk_size must be > 0")
	}
	if c.Content.MinContentLength < 0 {
		return errors.New("content.min_content_length must be >= 0")
	}
	if strings.TrimSpace(c.Output.File) == "" {
		return errors.New("output.file is required")
	}
	if strings.TrimSpace(c.PDF.Dir) == "" {
		return errors.New("pdf.dir is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return errors.New("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// RequestDelay is the pause between batches.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Crawler.RequestDelayMs) * time.Millisecond
}

// NavigationTimeout bounds one page render.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Crawler.NavigationTimeoutMs) * time.Millisecond
}

// DownloadTimeout bounds one PDF download.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Crawler.DownloadTimeoutMs) * time.Millisecond
}
