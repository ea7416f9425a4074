package capture

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/webshot/internal/metrics"
	"github.com/JakeFAU/webshot/internal/policy/ratelimit"
)

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultContentType       = "image/png"
	finishTimeout            = 10 * time.Second
)

// Config controls Pipeline behavior.
type Config struct {
	NavigationTimeout time.Duration
	// Concurrency bounds how many pages are open at once; 1 keeps the batch strictly sequential.
	Concurrency int
	// URLPrefix is joined with the filename to build the image_path returned to clients.
	URLPrefix   string
	ContentType string
	Topic       string
	// DomainQPS limits navigations per host; 0 disables the budget.
	DomainQPS float64
}

// Pipeline captures screenshots for batches of URLs against one browser session per batch.
type Pipeline struct {
	launcher  Launcher
	store     BlobStore
	recorder  ResultRecorder
	publisher Publisher
	clock     Clock
	idGen     IDGenerator
	stamper   *Stamper
	cfg       Config
	logger    *zap.Logger
	budget    *ratelimit.Limiter
}

// NewPipeline constructs a Pipeline. recorder and publisher are optional.
func NewPipeline(
	launcher Launcher,
	store BlobStore,
	recorder ResultRecorder,
	publisher Publisher,
	clock Clock,
	idGen IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ContentType == "" {
		cfg.ContentType = defaultContentType
	}
	var budget *ratelimit.Limiter
	if cfg.DomainQPS > 0 {
		budget = ratelimit.New(ratelimit.Config{RPS: cfg.DomainQPS, Burst: 1})
	}
	return &Pipeline{
		launcher:  launcher,
		store:     store,
		recorder:  recorder,
		publisher: publisher,
		clock:     clock,
		idGen:     idGen,
		stamper:   NewStamper(clock),
		cfg:       cfg,
		logger:    logger,
		budget:    budget,
	}
}

// Run processes rawURLs in order and returns exactly one Result per input.
// An empty input returns an empty slice without launching a browser.
func (p *Pipeline) Run(ctx context.Context, rawURLs []string) []Result {
	if len(rawURLs) == 0 {
		return []Result{}
	}

	batch := Batch{ID: p.newBatchID(), StartedAt: p.clock.Now()}
	logger := p.logger.With(zap.String("batch_id", batch.ID), zap.Int("urls", len(rawURLs)))
	logger.Info("batch started")

	batch.Results = p.runBatch(ctx, rawURLs, logger)
	batch.FinishedAt = p.clock.Now()
	p.finish(ctx, batch, logger)
	return batch.Results
}

func (p *Pipeline) runBatch(ctx context.Context, rawURLs []string, logger *zap.Logger) []Result {
	session, err := p.launcher.Launch(ctx)
	if err != nil {
		logger.Error("browser launch failed", zap.Error(fmt.Errorf("%w: %w", ErrBrowserSetup, err)))
		metrics.ObserveBatch(metrics.BatchSetupFailed)
		return fanOut(rawURLs, setupFailureMessage(err))
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("browser close failed", zap.Error(cerr))
		}
	}()

	results := make([]Result, len(rawURLs))
	filled := make([]bool, len(rawURLs))
	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, raw := range rawURLs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = p.captureOne(ctx, session, raw, logger)
			filled[i] = true
			return nil
		})
	}
	_ = g.Wait() // per-URL tasks never return errors

	aborted := false
	for i := range results {
		if !filled[i] {
			aborted = true
			results[i] = errorResult(rawURLs[i], abortedMessage(context.Cause(ctx)))
		}
	}
	if aborted {
		logger.Warn("batch aborted before all URLs were processed", zap.Error(context.Cause(ctx)))
		metrics.ObserveBatch(metrics.BatchAborted)
	} else {
		metrics.ObserveBatch(metrics.BatchCompleted)
	}
	return results
}

func (p *Pipeline) captureOne(ctx context.Context, session Session, raw string, logger *zap.Logger) (result Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic while capturing", zap.String("url", raw), zap.Any("panic", rec))
			result = errorResult(raw, fmt.Sprintf("Unexpected error: %v", rec))
		}
		metrics.ObserveScreenshot(string(result.Status), time.Since(start))
	}()

	normalized, err := NormalizeURL(raw)
	if err != nil {
		logger.Debug("skipping invalid url", zap.String("url", raw))
		return errorResult(raw, invalidURLMessage)
	}
	filename := SanitizeFilename(normalized, p.stamper.Next())

	if err := p.shoot(ctx, session, normalized, filename); err != nil {
		reason := conciseReason(err, p.cfg.NavigationTimeout)
		logger.Warn("screenshot failed",
			zap.String("url", normalized),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return errorResult(raw, reason)
	}

	logger.Info("screenshot saved",
		zap.String("url", normalized),
		zap.String("file", filename),
		zap.Duration("duration", time.Since(start)),
	)
	return successResult(raw, p.imagePath(filename))
}

func (p *Pipeline) shoot(ctx context.Context, session Session, target, filename string) error {
	if err := p.waitDomainBudget(ctx, target); err != nil {
		return err
	}
	page, err := session.NewPage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			p.logger.Debug("page close failed", zap.String("url", target), zap.Error(cerr))
		}
	}()

	if err := page.Goto(ctx, target, p.cfg.NavigationTimeout); err != nil {
		return err
	}
	image, err := page.Screenshot(ctx)
	if err != nil {
		return err
	}
	if _, err := p.store.PutObject(ctx, filename, p.cfg.ContentType, bytes.NewReader(image)); err != nil {
		return fmt.Errorf("save screenshot: %w", err)
	}
	return nil
}

func (p *Pipeline) finish(ctx context.Context, batch Batch, logger *zap.Logger) {
	succeeded, failed := batch.Counts()
	logger.Info("batch finished",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Duration("duration", batch.FinishedAt.Sub(batch.StartedAt)),
	)
	metrics.ObserveBatchDuration(batch.FinishedAt.Sub(batch.StartedAt))

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if p.recorder != nil {
		if err := p.recorder.RecordBatch(finishCtx, batch); err != nil {
			logger.Error("record batch failed", zap.Error(err))
		}
	}
	if p.publisher != nil && p.cfg.Topic != "" {
		id, err := p.publisher.Publish(finishCtx, p.cfg.Topic, batch.Summary())
		if err != nil {
			logger.Error("publish batch summary failed", zap.String("topic", p.cfg.Topic), zap.Error(err))
			return
		}
		logger.Debug("batch summary published", zap.String("message_id", id))
	}
}

func (p *Pipeline) imagePath(filename string) string {
	prefix := strings.TrimSpace(p.cfg.URLPrefix)
	if prefix == "" {
		return filename
	}
	return path.Join(prefix, filename)
}

func (p *Pipeline) newBatchID() string {
	if p.idGen == nil {
		return ""
	}
	id, err := p.idGen.NewID()
	if err != nil {
		p.logger.Warn("batch id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func (p *Pipeline) waitDomainBudget(ctx context.Context, target string) error {
	if p.budget == nil {
		return nil
	}
	if err := p.budget.Wait(ctx, target); err != nil {
		return fmt.Errorf("wait navigation budget: %w", err)
	}
	return nil
}

func fanOut(rawURLs []string, message string) []Result {
	results := make([]Result, len(rawURLs))
	for i, raw := range rawURLs {
		results[i] = errorResult(raw, message)
	}
	return results
}
