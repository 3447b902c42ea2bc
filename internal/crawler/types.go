// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// ContentType identifies the kind of document a record was extracted from.
type ContentType string

// Supported content types.
const (
	ContentTypeHTML ContentType = "html"
	ContentTypePDF  ContentType = "pdf"
)

// Language is the dominant language tag attached to a record.
type Language string

// Supported languages. Portuguese is the regional default.
const (
	LanguagePortuguese Language = "pt"
	LanguageEnglish    Language = "en"
)

// ContentRecord is one chunk of extracted text and the unit of crawl output.
// ChunkIndex and TotalChunks are both nil when the source produced a single
// chunk, and both set (1-based, total >= 2) otherwise.
type ContentRecord struct {
	SourceURL   string      `json:"source_url"`
	Type        ContentType `json:"type"`
	Language    Language    `json:"language"`
	Content     string      `json:"content"`
	ChunkIndex  *int        `json:"chunk_index"`
	TotalChunks *int        `json:"total_chunks"`
	PDFPages    *int        `json:"pdf_pages,omitempty"`
	Filename    *string     `json:"filename,omitempty"`
	ScrapedAt   time.Time   `json:"scraped_at"`
}

// Summary aggregates a finished crawl. It is always derived from the record
// collection via Summarize, never stored on its own.
type Summary struct {
	RunID        string     `json:"run_id,omitempty"`
	TotalItems   int        `json:"total_items"`
	HTMLPages    int        `json:"html_pages"`
	PDFDocuments int        `json:"pdf_documents"`
	Languages    []Language `json:"languages"`
	ScrapedAt    time.Time  `json:"scraped_at"`
	Domain       string     `json:"domain"`
}

// Dataset is the document written at the end of a run.
type Dataset struct {
	Summary Summary         `json:"summary"`
	Data    []ContentRecord `json:"data"`
}

// RenderedPage is the result of a rendered HTML fetch.
type RenderedPage struct {
	URL    string
	Markup string
	// Links holds every anchor href, already resolved against URL.
	Links    []string
	Duration time.Duration
}

// PDFDocument is the result of downloading and extracting a PDF.
type PDFDocument struct {
	URL      string
	Text     string
	Pages    int
	Filename string
	// URI points at the persisted copy of the raw bytes.
	URI string
}

// FetchRequest captures everything needed for a raw HTTP download.
type FetchRequest struct {
	URL     string
	Headers http.Header
	Timeout time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
