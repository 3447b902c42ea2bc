// Package output writes the finished dataset to disk.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/bank-content-crawler/internal/crawler"
)

// JSONFile writes the dataset as a single indented JSON document.
type JSONFile struct {
	path string
}

// NewJSONFile returns a sink writing to path. An existing file is replaced.
func NewJSONFile(path string) (*JSONFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("output file is required")
	}
	return &JSONFile{path: path}, nil
}

// Name identifies the sink in logs.
func (f *JSONFile) Name() string {
	return "json:" + f.path
}

// Path returns the target file.
func (f *JSONFile) Path() string {
	return f.path
}

// Save serializes dataset with two-space indentation and writes it.
func (f *JSONFile) Save(ctx context.Context, dataset crawler.Dataset) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if dataset.Data == nil {
		dataset.Data = []crawler.ContentRecord{}
	}
	if dataset.Summary.Languages == nil {
		dataset.Summary.Languages = []crawler.Language{}
	}
	payload, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("%w: create output dir %s: %w", crawler.ErrFileSystem, dir, err)
		}
	}
	if err := os.WriteFile(f.path, payload, 0o600); err != nil {
		return fmt.Errorf("%w: write dataset %s: %w", crawler.ErrFileSystem, f.path, err)
	}
	return nil
}
