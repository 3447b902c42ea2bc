package crawler

import (
	"context"
	"io"
	"time"
)

// Renderer is the headless-browser capability. Start acquires the browser,
// Close releases it; Render opens and closes its own tab per call.
type Renderer interface {
	Start(ctx context.Context) error
	Render(ctx context.Context, rawURL string) (RenderedPage, error)
	Close() error
}

// Fetcher performs raw binary downloads.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// PDFExtractor downloads a PDF, persists it and extracts normalized text.
type PDFExtractor interface {
	FetchAndExtract(ctx context.Context, pdfURL, baseURL string) (PDFDocument, error)
}

// HTMLNormalizer reduces rendered markup to clean text.
type HTMLNormalizer interface {
	NormalizeHTML(markup string) string
}

// Classifier tags text with its dominant language.
type Classifier interface {
	Classify(text, sourceURL string) Language
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// DatasetSink receives the finished dataset.
type DatasetSink interface {
	Name() string
	Save(ctx context.Context, dataset Dataset) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
