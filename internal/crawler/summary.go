package crawler

import "time"

// Summarize derives the run summary from the record collection. Languages
// are listed in first-seen order.
func Summarize(records []ContentRecord, domain, runID string, now time.Time) Summary {
	s := Summary{
		RunID:      runID,
		TotalItems: len(records),
		Languages:  []Language{},
		ScrapedAt:  now,
		Domain:     domain,
	}
	seen := make(map[Language]struct{})
	for _, rec := range records {
		switch rec.Type {
		case ContentTypeHTML:
			s.HTMLPages++
		case ContentTypePDF:
			s.PDFDocuments++
		}
		if _, ok := seen[rec.Language]; !ok {
			seen[rec.Language] = struct{}{}
			s.Languages = append(s.Languages, rec.Language)
		}
	}
	return s
}

// NewDataset bundles records with their derived summary.
func NewDataset(records []ContentRecord, domain, runID string, now time.Time) Dataset {
	data := records
	if data == nil {
		data = []ContentRecord{}
	}
	return Dataset{
		Summary: Summarize(data, domain, runID, now),
		Data:    data,
	}
}

// BuildRecords turns the chunks of one document into records. Index fields
// are only set when there is more than one chunk.
func BuildRecords(
	sourceURL string,
	kind ContentType,
	lang Language,
	chunks []string,
	pdf *PDFDocument,
	now time.Time,
) []ContentRecord {
	records := make([]ContentRecord, 0, len(chunks))
	total := len(chunks)
	for i, chunk := range chunks {
		rec := ContentRecord{
			SourceURL: sourceURL,
			Type:      kind,
			Language:  lang,
			Content:   chunk,
			ScrapedAt: now,
		}
		if total > 1 {
			idx, tot := i+1, total
			rec.ChunkIndex = &idx
			rec.TotalChunks = &tot
		}
		if pdf != nil {
			pages, name := pdf.Pages, pdf.Filename
			rec.PDFPages = &pages
			rec.Filename = &name
		}
		records = append(records, rec)
	}
	return records
}
