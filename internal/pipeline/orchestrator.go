package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/clock/system"
	"github.com/JakeFAU/dealfeed-collector/internal/collector"
	"github.com/JakeFAU/dealfeed-collector/internal/metrics"
	"github.com/JakeFAU/dealfeed-collector/internal/random"
)

// State is a message's position in the pipeline.
type State string

// Pipeline states.
const (
	StateScanning    State = "scanning"
	StateResolving   State = "resolving"
	StateClassifying State = "classifying"
	StateIngesting   State = "ingesting"
	StateRecording   State = "recording"
	StateDone        State = "done"
	StateSkipped     State = "skipped"
)

// Config controls an Orchestrator.
type Config struct {
	Table    string
	Patterns []string
	// CandidateDelayMin/Max bound the pause between candidate links of one message.
	CandidateDelayMin time.Duration
	CandidateDelayMax time.Duration
	// Topic enables per-record notifications when set.
	Topic      string
	ExportPath string
}

// Summary reports what a run produced.
type Summary struct {
	RunID          string
	Scanned        int
	Produced       int
	Skipped        int
	Captchas       int
	ResolveErrors  int
	IngestFailures int
	StoreFailures  int
	Published      int
	Records        []collector.IngestRecord
}

// Waiter pauses between candidates; it returns early when ctx ends.
type Waiter func(ctx context.Context, d time.Duration) error

// Orchestrator drives messages from a feed through resolution, classification,
// ingestion and recording.
type Orchestrator struct {
	feed      collector.Feed
	resolver  collector.PageResolver
	extractor collector.CategoryExtractor
	ingestor  collector.MediaIngestor
	records   collector.RecordStore
	publisher collector.Publisher
	clock     collector.Clock
	rng       random.Source
	wait      Waiter
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator. publisher and ingestor may be nil.
func New(
	feed collector.Feed,
	resolver collector.PageResolver,
	extractor collector.CategoryExtractor,
	ingestor collector.MediaIngestor,
	records collector.RecordStore,
	publisher collector.Publisher,
	clock collector.Clock,
	rng random.Source,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Table == "" {
		cfg.Table = "telegram_messages"
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = DefaultPatterns
	}
	if rng == nil {
		rng = random.NewDefault()
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		feed:      feed,
		resolver:  resolver,
		extractor: extractor,
		ingestor:  ingestor,
		records:   records,
		publisher: publisher,
		clock:     clock,
		rng:       rng,
		wait:      sleepCtx,
		cfg:       cfg,
		logger:    logger,
	}
}

// SetWaiter replaces the inter-candidate pause, mostly for tests.
func (o *Orchestrator) SetWaiter(w Waiter) {
	if w != nil {
		o.wait = w
	}
}

// Run processes one bounded page of the feed and exports the batch once at the end.
func (o *Orchestrator) Run(ctx context.Context, runID string) (Summary, error) {
	sum := Summary{RunID: runID, Records: []collector.IngestRecord{}}
	log := o.logger.With(zap.String("run_id", runID))

	msgs, err := o.feed.Messages(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetch feed: %w", err)
	}
	log.Info("feed fetched", zap.Int("messages", len(msgs)))

	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		sum.Scanned++
		rec, state := o.process(ctx, msg, &sum)
		metrics.ObserveMessage(string(state))
		if state != StateDone {
			sum.Skipped++
			continue
		}
		sum.Produced++
		sum.Records = append(sum.Records, rec)
		metrics.ObserveRecord()
	}

	if o.cfg.ExportPath != "" {
		if err := ExportJSON(o.cfg.ExportPath, sum.Records); err != nil {
			return sum, err
		}
		log.Info("batch exported", zap.String("path", o.cfg.ExportPath), zap.Int("records", len(sum.Records)))
	}

	log.Info("run finished",
		zap.Int("scanned", sum.Scanned),
		zap.Int("produced", sum.Produced),
		zap.Int("captchas", sum.Captchas),
		zap.Int("store_failures", sum.StoreFailures),
	)
	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("run interrupted: %w", err)
	}
	return sum, nil
}

// Process runs a single message through the pipeline.
func (o *Orchestrator) Process(ctx context.Context, msg collector.Message) (collector.IngestRecord, State) {
	var sum Summary
	return o.process(ctx, msg, &sum)
}

func (o *Orchestrator) process(ctx context.Context, msg collector.Message, sum *Summary) (rec collector.IngestRecord, state State) {
	log := o.logger.With(zap.Int64("message_id", msg.ID))
	state = StateScanning
	defer func() {
		if r := recover(); r != nil {
			log.Error("message processing panicked", zap.String("state", string(state)), zap.Any("panic", r))
			rec, state = collector.IngestRecord{}, StateSkipped
		}
	}()

	links := ScanLinks(msg, o.cfg.Patterns)
	if len(links) == 0 {
		log.Debug("no qualifying links")
		return rec, StateSkipped
	}

	state = StateResolving
	origin, category := o.classify(ctx, links, log, sum)

	state = StateIngesting
	mediaURL, imageID := o.ingest(ctx, msg, log, sum)

	state = StateRecording
	text := CleanText(msg.Text)
	rec = collector.IngestRecord{
		ID:             msg.ID,
		CreatedAt:      o.clock.Now().UTC().Truncate(time.Second),
		Text:           text,
		Views:          msg.Views,
		OriginItemURL:  origin,
		BucketImageURL: mediaURL,
		Price:          ExtractPrice(text),
		Category:       category,
		ImageID:        imageID,
	}

	if err := o.records.InsertRecord(ctx, o.cfg.Table, rec); err != nil {
		sum.StoreFailures++
		metrics.ObserveStoreWriteFailure(o.cfg.Table)
		log.Error("record insert failed, keeping record for export",
			zap.String("url", origin),
			zap.Error(fmt.Errorf("%w: %w", collector.ErrStoreWrite, err)),
		)
	}
	if o.publish(ctx, rec, log) {
		sum.Published++
	}

	log.Info("record produced", zap.String("url", origin), zap.Bool("categorized", category != nil))
	return rec, StateDone
}

// classify resolves candidates in order until one yields a category.
func (o *Orchestrator) classify(
	ctx context.Context,
	links []collector.CandidateLink,
	log *zap.Logger,
	sum *Summary,
) (string, *string) {
	firstResolved := ""
	for i, link := range links {
		if i > 0 {
			delay := random.Duration(o.rng, o.cfg.CandidateDelayMin, o.cfg.CandidateDelayMax)
			if err := o.wait(ctx, delay); err != nil {
				break
			}
		}

		page := o.resolver.Resolve(ctx, link.URL)
		switch page.Status {
		case collector.PageStatusCaptcha:
			sum.Captchas++
			log.Warn("candidate blocked by captcha", zap.String("url", link.URL))
			continue
		case collector.PageStatusError:
			sum.ResolveErrors++
			log.Warn("candidate resolution failed", zap.String("url", link.URL), zap.Error(page.Err))
			continue
		}
		if i == 0 {
			firstResolved = page.FinalURL
		}

		cat := o.extractor.ExtractCategory(page.HTML, page.FinalURL)
		if cat.Found() {
			label := cat.Label
			origin := cat.URL
			if origin == "" {
				origin = page.FinalURL
			}
			return origin, &label
		}
		log.Debug("no category on candidate", zap.String("url", link.URL))
	}

	if firstResolved != "" {
		return firstResolved, nil
	}
	return links[0].Raw, nil
}

// ingest stores the message photo, if any. Failures yield a null reference.
func (o *Orchestrator) ingest(ctx context.Context, msg collector.Message, log *zap.Logger, sum *Summary) (*string, string) {
	if !msg.HasPhoto || o.ingestor == nil {
		return nil, ""
	}
	raw, err := o.feed.DownloadMedia(ctx, msg)
	if err != nil {
		sum.IngestFailures++
		log.Warn("media download failed", zap.Error(err))
		return nil, ""
	}
	ref, err := o.ingestor.Ingest(ctx, raw)
	if err != nil {
		sum.IngestFailures++
		log.Warn("media ingest failed", zap.Error(err))
		return nil, ""
	}
	url := ref.URL
	return &url, ref.Digest
}

func (o *Orchestrator) publish(ctx context.Context, rec collector.IngestRecord, log *zap.Logger) bool {
	if o.cfg.Topic == "" || o.publisher == nil {
		return false
	}
	payload := rec.Row()
	payload["timestamp"] = o.clock.Now().UTC().Format(time.RFC3339)
	id, err := o.publisher.Publish(ctx, o.cfg.Topic, payload)
	if err != nil {
		log.Warn("record publish failed", zap.Error(err))
		return false
	}
	log.Debug("record published", zap.String("publish_id", id))
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("candidate delay: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
