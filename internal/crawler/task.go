package crawler

import "strings"

// TaskKind selects the processing path for a URL.
type TaskKind int

// Task kinds. The set is closed.
const (
	TaskHTML TaskKind = iota
	TaskPDF
)

func (k TaskKind) String() string {
	switch k {
	case TaskPDF:
		return "pdf"
	default:
		return "html"
	}
}

// ContentType maps the task kind to the record content type.
func (k TaskKind) ContentType() ContentType {
	if k == TaskPDF {
		return ContentTypePDF
	}
	return ContentTypeHTML
}

// ClassifyTask picks the PDF path when the lower-cased URL contains any of the
// configured extensions, and the HTML path otherwise.
func ClassifyTask(rawURL string, pdfExtensions []string) TaskKind {
	lower := strings.ToLower(rawURL)
	for _, ext := range pdfExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && strings.Contains(lower, ext) {
			return TaskPDF
		}
	}
	return TaskHTML
}
