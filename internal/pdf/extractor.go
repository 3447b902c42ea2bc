// Package pdf downloads linked PDF documents, keeps a copy of the raw bytes
// and extracts their text.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/JakeFAU/bank-content-crawler/internal/crawler"
	"github.com/JakeFAU/bank-content-crawler/internal/textnorm"
)

const (
	contentType     = "application/pdf"
	defaultFilename = "document.pdf"
)

// Config wires the extractor's collaborators.
type Config struct {
	Fetcher crawler.Fetcher
	// Store receives every downloaded file under its derived filename.
	Store crawler.BlobStore
	// Archive is an optional second copy, e.g. a GCS bucket. Failures are
	// logged only.
	Archive crawler.BlobStore
	Timeout time.Duration
	Logger  *zap.Logger
}

type preparer interface {
	Prepare() error
}

// Extractor implements crawler.PDFExtractor.
type Extractor struct {
	fetcher crawler.Fetcher
	store   crawler.BlobStore
	archive crawler.BlobStore
	timeout time.Duration
	logger  *zap.Logger
}

// New builds an Extractor. When the store can prepare its target directory it
// is asked to do so once; a failure there is logged and ignored, and surfaces
// later as a per-document file system error.
func New(cfg Config) (*Extractor, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("pdf: fetcher is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("pdf: store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("pdf")
	if p, ok := cfg.Store.(preparer); ok {
		if err := p.Prepare(); err != nil {
			logger.Warn("Failed to prepare PDF directory", zap.Error(err))
		}
	}
	return &Extractor{
		fetcher: cfg.Fetcher,
		store:   cfg.Store,
		archive: cfg.Archive,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// FetchAndExtract resolves pdfURL against baseURL, downloads it, stores the
// bytes and returns the normalized text with the page count.
func (e *Extractor) FetchAndExtract(ctx context.Context, pdfURL, baseURL string) (crawler.PDFDocument, error) {
	abs, err := crawler.ResolveURL(pdfURL, baseURL)
	if err != nil {
		return crawler.PDFDocument{}, crawler.NewFetchError(crawler.ErrMalformedURL, pdfURL, err)
	}
	e.logger.Info("Processing PDF", zap.String("url", abs))

	resp, err := e.fetcher.Fetch(ctx, crawler.FetchRequest{URL: abs, Timeout: e.timeout})
	switch {
	case err == nil:
	case ctx.Err() != nil, errors.Is(err, crawler.ErrDownload):
		return crawler.PDFDocument{}, err
	default:
		return crawler.PDFDocument{}, crawler.NewFetchError(crawler.ErrDownload, abs, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return crawler.PDFDocument{}, crawler.NewFetchError(crawler.ErrDownload, abs,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	filename := FilenameFromURL(abs)
	uri, err := e.store.PutObject(ctx, filename, contentType, bytes.NewReader(resp.Body))
	if err != nil {
		return crawler.PDFDocument{}, crawler.NewFetchError(crawler.ErrFileSystem, abs, err)
	}
	if e.archive != nil {
		if archived, err := e.archive.PutObject(ctx, filename, contentType, bytes.NewReader(resp.Body)); err != nil {
			e.logger.Warn("Failed to archive PDF", zap.String("url", abs), zap.Error(err))
		} else {
			e.logger.Debug("Archived PDF", zap.String("uri", archived))
		}
	}

	raw, pages, err := Extract(resp.Body)
	if err != nil {
		return crawler.PDFDocument{}, crawler.NewFetchError(crawler.ErrExtraction, abs, err)
	}
	text := textnorm.NormalizeText(raw)
	e.logger.Info("PDF processed",
		zap.String("filename", filename),
		zap.Int("pages", pages),
		zap.Int("characters", utf8.RuneCountInString(text)),
	)
	return crawler.PDFDocument{
		URL:      abs,
		Text:     text,
		Pages:    pages,
		Filename: filename,
		URI:      uri,
	}, nil
}

// Extract returns the plain text of every page and the page count. Pages
// whose text cannot be decoded are skipped. Panics from the parser on
// malformed input are reported as errors.
func Extract(content []byte) (text string, pages int, err error) {
	if len(content) < 4 || string(content[:4]) != "%PDF" {
		return "", 0, fmt.Errorf("not a valid PDF file, content starts with %q", string(content[:min(20, len(content))]))
	}
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("parse PDF: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("parse PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), doc.NumPage(), nil
}

// FilenameFromURL derives the stored filename from the last path segment,
// forcing a .pdf suffix.
func FilenameFromURL(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	switch name {
	case "", ".", "/", "..":
		return defaultFilename
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
