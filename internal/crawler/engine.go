package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/bank-content-crawler/internal/chunker"
	"github.com/JakeFAU/bank-content-crawler/internal/metrics"
)

// EngineConfig holds the settings for one crawl run.
type EngineConfig struct {
	Domain           string
	BaseURL          string
	MaxConcurrent    int
	MaxPages         int
	RequestDelay     time.Duration
	ChunkSize        int
	MinContentLength int
	PDFExtensions    []string
	SaveOnInterrupt  bool
}

// Validate checks the settings the engine cannot run without.
func (c EngineConfig) Validate() error {
	if c.Domain == "" {
		return errors.New("engine: domain is required")
	}
	if c.BaseURL == "" {
		return errors.New("engine: base url is required")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("engine: max concurrent must be positive, got %d", c.MaxConcurrent)
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("engine: max pages must be positive, got %d", c.MaxPages)
	}
	return nil
}

// EngineDeps wires the engine's collaborators. Output receives the dataset
// first and its failure is returned; Mirrors are best-effort and only run once
// Output has succeeded.
type EngineDeps struct {
	Renderer   Renderer
	PDFs       PDFExtractor
	Normalizer HTMLNormalizer
	Classifier Classifier
	Output     DatasetSink
	Mirrors    []DatasetSink
	Clock      Clock
	IDs        IDGenerator
	Logger     *zap.Logger
}

// Engine runs the batch crawl loop.
type Engine struct {
	cfg        EngineConfig
	renderer   Renderer
	pdfs       PDFExtractor
	normalizer HTMLNormalizer
	classifier Classifier
	output     DatasetSink
	mirrors    []DatasetSink
	clock      Clock
	ids        IDGenerator
	logger     *zap.Logger
	pauser     pauseController

	mu       sync.RWMutex
	progress Progress
}

// NewEngine validates cfg and deps and returns a ready engine.
func NewEngine(cfg EngineConfig, deps EngineDeps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Renderer == nil:
		return nil, errors.New("engine: renderer is required")
	case deps.PDFs == nil:
		return nil, errors.New("engine: pdf extractor is required")
	case deps.Normalizer == nil:
		return nil, errors.New("engine: normalizer is required")
	case deps.Classifier == nil:
		return nil, errors.New("engine: classifier is required")
	case deps.Clock == nil:
		return nil, errors.New("engine: clock is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		renderer:   deps.Renderer,
		pdfs:       deps.PDFs,
		normalizer: deps.Normalizer,
		classifier: deps.Classifier,
		output:     deps.Output,
		mirrors:    deps.Mirrors,
		clock:      deps.Clock,
		ids:        deps.IDs,
		logger:     logger.Named("engine"),
		pauser:     &timerPauseController{},
	}, nil
}

// Progress returns a snapshot of the current run.
func (e *Engine) Progress() Progress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.progress
}

// Run crawls from the base URL until the frontier is exhausted or the record
// cap is reached, then hands the dataset to the sinks. When ctx is cancelled
// the in-flight batch is allowed to return, the renderer is released and
// ctx.Err() is returned; the dataset is only saved in that case when
// SaveOnInterrupt is set.
func (e *Engine) Run(ctx context.Context) (Dataset, error) {
	runID := e.newRunID()
	e.update(func(p *Progress) {
		p.RunID = runID
		p.Phase = PhaseRunning
		p.StartedAt = e.clock.Now()
	})
	defer e.update(func(p *Progress) {
		p.Phase = PhaseTerminated
		p.FinishedAt = e.clock.Now()
	})

	if err := e.renderer.Start(ctx); err != nil {
		e.logger.Error("Failed to start renderer", zap.Error(err))
		return Dataset{}, fmt.Errorf("%w: %w", ErrRendererUnavailable, err)
	}
	defer func() {
		if err := e.renderer.Close(); err != nil {
			e.logger.Warn("Failed to release renderer", zap.Error(err))
		}
	}()

	state := CrawlState{Frontier: NewFrontier(e.cfg.Domain)}
	if !state.Frontier.Seed(e.cfg.BaseURL) {
		return Dataset{}, fmt.Errorf("seed %q: %w", e.cfg.BaseURL, ErrMalformedURL)
	}
	e.logger.Info("Starting crawl",
		zap.String("run_id", runID),
		zap.String("base_url", e.cfg.BaseURL),
		zap.String("domain", e.cfg.Domain),
		zap.Int("max_concurrent", e.cfg.MaxConcurrent),
		zap.Int("max_pages", e.cfg.MaxPages),
	)

	for e.shouldContinue(state) {
		if ctx.Err() != nil {
			break
		}
		batch := state.Frontier.DequeueBatch(e.cfg.MaxConcurrent)
		state = e.runBatch(ctx, state, batch)
		if ctx.Err() != nil {
			break
		}
		if e.shouldContinue(state) {
			e.pauser.Pause(ctx, e.cfg.RequestDelay)
		}
	}

	if err := ctx.Err(); err != nil {
		return e.drain(ctx, state, runID, err)
	}

	e.update(func(p *Progress) { p.Phase = PhaseCompleted })
	dataset := NewDataset(state.Records, e.cfg.Domain, runID, e.clock.Now())
	e.logger.Info("Crawl completed",
		zap.String("run_id", runID),
		zap.Int("total_items", dataset.Summary.TotalItems),
		zap.Int("html_pages", dataset.Summary.HTMLPages),
		zap.Int("pdf_documents", dataset.Summary.PDFDocuments),
		zap.Any("languages", dataset.Summary.Languages),
		zap.Int("processed", state.Processed),
		zap.Int("failed", state.Failed),
	)
	return dataset, e.save(ctx, dataset)
}

func (e *Engine) drain(ctx context.Context, state CrawlState, runID string, cause error) (Dataset, error) {
	e.update(func(p *Progress) { p.Phase = PhaseDraining })
	e.logger.Warn("Crawl interrupted",
		zap.String("run_id", runID),
		zap.Int("records", len(state.Records)),
		zap.Int("pending", state.Frontier.Pending()),
	)
	if !e.cfg.SaveOnInterrupt {
		return Dataset{}, cause
	}
	dataset := NewDataset(state.Records, e.cfg.Domain, runID, e.clock.Now())
	if err := e.save(context.WithoutCancel(ctx), dataset); err != nil {
		return dataset, errors.Join(cause, err)
	}
	return dataset, cause
}

func (e *Engine) shouldContinue(state CrawlState) bool {
	return !state.Frontier.IsExhausted() && len(state.Records) < e.cfg.MaxPages
}

// runBatch processes batch concurrently and folds the outcomes into state in
// batch order once every task has returned.
func (e *Engine) runBatch(ctx context.Context, state CrawlState, batch []string) CrawlState {
	start := e.clock.Now()
	outcomes := make([]TaskOutcome, len(batch))

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrent)
	for i, rawURL := range batch {
		g.Go(func() error {
			outcomes[i] = e.process(ctx, rawURL)
			return nil
		})
	}
	_ = g.Wait()

	for _, outcome := range outcomes {
		state = e.apply(state, outcome)
	}
	state.Batches++

	elapsed := e.clock.Now().Sub(start)
	metrics.ObserveBatch(elapsed, state.Frontier.Pending())
	e.logger.Info("Batch finished",
		zap.Int("batch", state.Batches),
		zap.Int("size", len(batch)),
		zap.Int("records", len(state.Records)),
		zap.Int("pending", state.Frontier.Pending()),
		zap.Duration("duration", elapsed),
	)
	e.update(func(p *Progress) {
		p.Processed = state.Processed
		p.Failed = state.Failed
		p.Records = len(state.Records)
		p.Pending = state.Frontier.Pending()
		p.Visited = state.Frontier.VisitedCount()
		p.Batches = state.Batches
	})
	return state
}

func (e *Engine) apply(state CrawlState, outcome TaskOutcome) CrawlState {
	contentType := string(outcome.Kind.ContentType())
	if outcome.Err != nil {
		state.Failed++
		class := Classify(outcome.Err)
		metrics.ObservePage(outcome.URL, contentType, class)
		metrics.ObserveFailure(class)
		e.logger.Warn("Failed to process URL",
			zap.String("url", outcome.URL),
			zap.String("type", contentType),
			zap.String("class", class),
			zap.Error(outcome.Err),
		)
		return state
	}

	state.Processed++
	metrics.ObservePage(outcome.URL, contentType, "ok")
	if len(outcome.Records) > 0 {
		metrics.ObserveRecords(contentType, string(outcome.Records[0].Language), len(outcome.Records))
	}
	state.Records = append(state.Records, outcome.Records...)

	added := 0
	for _, link := range outcome.Links {
		if state.Frontier.EnqueueIfInScope(link, outcome.URL) {
			added++
		}
	}
	if added > 0 {
		e.logger.Debug("Queued links", zap.String("url", outcome.URL), zap.Int("count", added))
	}
	return state
}

func (e *Engine) process(ctx context.Context, rawURL string) TaskOutcome {
	kind := ClassifyTask(rawURL, e.cfg.PDFExtensions)
	e.logger.Info("Processing URL", zap.String("url", rawURL), zap.Stringer("type", kind))
	if kind == TaskPDF {
		return e.processPDF(ctx, rawURL)
	}
	return e.processHTML(ctx, rawURL)
}

func (e *Engine) processHTML(ctx context.Context, rawURL string) TaskOutcome {
	outcome := TaskOutcome{URL: rawURL, Kind: TaskHTML}
	page, err := e.renderer.Render(ctx, rawURL)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Links = page.Links

	text := e.normalizer.NormalizeHTML(page.Markup)
	if !e.substantial(text) {
		e.logger.Debug("Skipping thin page", zap.String("url", rawURL), zap.Int("length", utf8.RuneCountInString(text)))
		return outcome
	}
	outcome.Records = e.records(rawURL, ContentTypeHTML, text, nil)
	return outcome
}

func (e *Engine) processPDF(ctx context.Context, rawURL string) TaskOutcome {
	outcome := TaskOutcome{URL: rawURL, Kind: TaskPDF}
	doc, err := e.pdfs.FetchAndExtract(ctx, rawURL, e.cfg.BaseURL)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if !e.substantial(doc.Text) {
		e.logger.Debug("Skipping thin PDF", zap.String("url", rawURL), zap.Int("pages", doc.Pages))
		return outcome
	}
	outcome.Records = e.records(rawURL, ContentTypePDF, doc.Text, &doc)
	return outcome
}

func (e *Engine) substantial(text string) bool {
	return text != "" && utf8.RuneCountInString(text) >= e.cfg.MinContentLength
}

func (e *Engine) records(rawURL string, kind ContentType, text string, doc *PDFDocument) []ContentRecord {
	lang := e.classifier.Classify(text, rawURL)
	chunks := chunker.Chunk(text, e.cfg.ChunkSize, e.cfg.MinContentLength)
	e.logger.Info("Extracted content",
		zap.String("url", rawURL),
		zap.String("type", string(kind)),
		zap.String("language", string(lang)),
		zap.Int("chunks", len(chunks)),
	)
	return BuildRecords(rawURL, kind, lang, chunks, doc, e.clock.Now())
}

func (e *Engine) save(ctx context.Context, dataset Dataset) error {
	if e.output != nil {
		if err := e.output.Save(ctx, dataset); err != nil {
			e.logger.Error("Failed to save dataset", zap.String("sink", e.output.Name()), zap.Error(err))
			return fmt.Errorf("save dataset to %s: %w", e.output.Name(), err)
		}
		e.logger.Info("Dataset saved", zap.String("sink", e.output.Name()), zap.Int("records", len(dataset.Data)))
	}
	for _, sink := range e.mirrors {
		if err := sink.Save(ctx, dataset); err != nil {
			e.logger.Warn("Failed to mirror dataset", zap.String("sink", sink.Name()), zap.Error(err))
			continue
		}
		e.logger.Info("Dataset mirrored", zap.String("sink", sink.Name()))
	}
	return nil
}

func (e *Engine) newRunID() string {
	if e.ids == nil {
		return ""
	}
	id, err := e.ids.NewID()
	if err != nil {
		e.logger.Warn("Failed to generate run id", zap.Error(err))
		return ""
	}
	return id
}

func (e *Engine) update(fn func(p *Progress)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.progress)
}
