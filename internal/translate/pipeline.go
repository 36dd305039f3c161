// Package translate implements the resilient chunked translation pipeline:
// structure-aware splitting, retry/fallback orchestration against the text
// service, healing and reassembly of the translated document, and delivery
// in either bulk or streamed mode.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziedsayadi/Cvmodel/internal/chunker"
	"github.com/ziedsayadi/Cvmodel/internal/langdetect"
	"github.com/ziedsayadi/Cvmodel/internal/language"
)

// ErrInvalidRequest marks a request rejected before any network call.
var ErrInvalidRequest = errors.New("invalid translation request")

// ResultCache stores whole-document translations keyed by content and
// target language. Implemented by the cache package; may be nil.
type ResultCache interface {
	Get(document []byte, language string) ([]byte, bool)
	Put(document []byte, language string, payload []byte)
}

// Options tune one pipeline instance. Zero values fall back to defaults.
type Options struct {
	MaxChunkLen     int
	Workers         int
	MaxAttempts     int
	FallbackAttempt int
	BackoffSeed     time.Duration
	StreamPause     time.Duration
}

const (
	defaultWorkers     = 4
	defaultStreamPause = 150 * time.Millisecond
)

// Pipeline runs translations. One instance is shared across requests; all
// per-request state lives in the run, so concurrent use is safe.
type Pipeline struct {
	invoker *Invoker
	cache   ResultCache
	logger  zerolog.Logger
	opts    Options
}

func New(invoker *Invoker, resultCache ResultCache, logger zerolog.Logger, opts Options) *Pipeline {
	return &Pipeline{
		invoker: invoker,
		cache:   resultCache,
		logger:  logger,
		opts:    opts,
	}
}

// Result is the fast-path outcome of a whole-document translation.
type Result struct {
	Document     json.RawMessage `json:"document"`
	SegmentCount int             `json:"segmentCount"`
	CacheHit     bool            `json:"cacheHit"`
	SourceLang   string          `json:"sourceLanguage,omitempty"`
}

// runInput is the prepared, validated state for one pipeline run.
type runInput struct {
	serialized  []byte
	decoded     any
	langKey     string
	targetLabel string
	sourceCode  string
	sourceLabel string
}

func (p *Pipeline) prepare(document json.RawMessage, targetLang string) (*runInput, error) {
	if strings.TrimSpace(targetLang) == "" {
		return nil, fmt.Errorf("%w: target language is required", ErrInvalidRequest)
	}
	if len(bytes.TrimSpace(document)) == 0 {
		return nil, fmt.Errorf("%w: document is required", ErrInvalidRequest)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, document); err != nil {
		return nil, fmt.Errorf("%w: document is not valid JSON: %v", ErrInvalidRequest, err)
	}
	serialized := buf.Bytes()

	var decoded any
	if err := json.Unmarshal(serialized, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", ErrInvalidRequest, err)
	}

	langKey := language.NormalizeTag(targetLang)
	if langKey == "" {
		langKey = strings.ToLower(strings.TrimSpace(targetLang))
	}

	sourceCode := langdetect.DetectISO6391(collectLeafText(decoded))
	sourceLabel := ""
	if sourceCode != "" {
		sourceLabel = languageLabels[sourceCode]
	}

	return &runInput{
		serialized:  serialized,
		decoded:     decoded,
		langKey:     langKey,
		targetLabel: TargetLabel(targetLang),
		sourceCode:  sourceCode,
		sourceLabel: sourceLabel,
	}, nil
}

func (p *Pipeline) newRetryer() *Retryer {
	return &Retryer{
		MaxAttempts:     p.opts.MaxAttempts,
		FallbackAttempt: p.opts.FallbackAttempt,
		BackoffSeed:     p.opts.BackoffSeed,
		Logger:          p.logger,
	}
}

func (p *Pipeline) workers() int {
	if p.opts.Workers > 0 {
		return p.opts.Workers
	}
	return defaultWorkers
}

func (p *Pipeline) streamPause() time.Duration {
	if p.opts.StreamPause > 0 {
		return p.opts.StreamPause
	}
	if p.opts.StreamPause == 0 {
		return defaultStreamPause
	}
	return 0
}

func (p *Pipeline) buildSegments(serialized []byte) []*Segment {
	parts := chunker.Split(string(serialized), p.opts.MaxChunkLen)
	segments := make([]*Segment, len(parts))
	for i, part := range parts {
		segments[i] = &Segment{Index: i, RawText: part, State: SegmentPending}
	}
	return segments
}

// translateSegment resolves one segment through the per-run cache and the
// retry/fallback orchestrator. Only the calling worker touches seg.
func (p *Pipeline) translateSegment(ctx context.Context, in *runInput, seg *Segment, rc *runCache) error {
	if cached, ok := rc.get(seg.RawText, in.langKey); ok {
		seg.Translated = cached
		seg.State = SegmentDone
		return nil
	}

	seg.State = SegmentInFlight
	out, err := p.newRetryer().Do(ctx, func(ctx context.Context, tier ModelTier) (string, error) {
		return p.invoker.InvokeDocument(ctx, seg.RawText, in.targetLabel, in.sourceLabel, tier)
	})
	if err != nil {
		seg.State = SegmentFailed
		return err
	}

	seg.Translated = out
	seg.State = SegmentDone
	rc.put(seg.RawText, in.langKey, out)
	return nil
}

// assemble concatenates the per-segment results in order, heals the result,
// parses it strictly and writes the cache entry. A parse failure here is
// terminal for the whole document.
func (p *Pipeline) assemble(in *runInput, segments []*Segment) (*Result, error) {
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteString(seg.Translated)
	}

	healed := Heal(sb.String())
	parsed, err := Parse(healed)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("encode translated document: %w", err)
	}

	if p.cache != nil {
		p.cache.Put(in.serialized, in.langKey, payload)
	}

	return &Result{
		Document:     payload,
		SegmentCount: len(segments),
		SourceLang:   in.sourceCode,
	}, nil
}

// Translate is the fast/bulk path: a fixed pool of workers pulls segments
// from a shared queue and writes each result back at the segment's original
// index, so out-of-order completion never corrupts ordering. A single
// segment's unrecoverable failure does not abort the batch; its original
// text is substituted and processing continues.
func (p *Pipeline) Translate(ctx context.Context, document json.RawMessage, targetLang string) (*Result, error) {
	in, err := p.prepare(document, targetLang)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if payload, ok := p.cache.Get(in.serialized, in.langKey); ok {
			p.logger.Debug().Str("lang", in.langKey).Msg("translation cache hit")
			return &Result{Document: payload, CacheHit: true, SourceLang: in.sourceCode}, nil
		}
	}

	segments := p.buildSegments(in.serialized)
	p.runBulk(ctx, in, segments)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return p.assemble(in, segments)
}

// runBulk drains the segment queue with a fixed worker pool. Each worker
// writes its result back into the claimed segment, so completion order never
// affects assembly order. An unrecoverable segment keeps its original text.
func (p *Pipeline) runBulk(ctx context.Context, in *runInput, segments []*Segment) {
	rc := newRunCache()

	queue := make(chan *Segment, len(segments))
	for _, seg := range segments {
		queue <- seg
	}
	close(queue)

	workers := p.workers()
	if workers > len(segments) {
		workers = len(segments)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seg := range queue {
				if ctx.Err() != nil {
					return
				}
				if err := p.translateSegment(ctx, in, seg, rc); err != nil {
					p.logger.Error().
						Err(err).
						Int("segment", seg.Index).
						Msg("segment translation failed, substituting original text")
					seg.Translated = seg.RawText
				}
			}
		}()
	}
	wg.Wait()
}

// Stream is the ordered incremental path: one segment in flight at a time,
// a progress notification after each success and a short pacing pause to
// keep delivery readable. Any segment failure aborts the whole stream with
// a terminal error event; nothing is cached for a failed document.
func (p *Pipeline) Stream(ctx context.Context, document json.RawMessage, targetLang string, emit func(ProgressEvent) error) error {
	in, err := p.prepare(document, targetLang)
	if err != nil {
		return err
	}

	if p.cache != nil {
		if payload, ok := p.cache.Get(in.serialized, in.langKey); ok {
			if err := emit(ProgressEvent{Kind: EventStart, SegmentCount: 1}); err != nil {
				return err
			}
			if err := emit(ProgressEvent{Kind: EventChunk, Index: 0, Text: string(payload), Percentage: 100}); err != nil {
				return err
			}
			return emit(ProgressEvent{Kind: EventDone})
		}
	}

	segments := p.buildSegments(in.serialized)
	if err := emit(ProgressEvent{Kind: EventStart, SegmentCount: len(segments)}); err != nil {
		return err
	}

	rc := newRunCache()
	for completed, seg := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.translateSegment(ctx, in, seg, rc); err != nil {
			emitErr := emit(ProgressEvent{Kind: EventError, Message: err.Error()})
			if emitErr != nil {
				return emitErr
			}
			return err
		}

		percentage := int(math.Round(100 * float64(completed+1) / float64(len(segments))))
		if err := emit(ProgressEvent{
			Kind:       EventChunk,
			Index:      seg.Index,
			Text:       seg.Translated,
			Percentage: percentage,
		}); err != nil {
			return err
		}

		if pause := p.streamPause(); pause > 0 {
			if err := sleepWithContext(ctx, pause); err != nil {
				return err
			}
		}
	}

	if _, err := p.assemble(in, segments); err != nil {
		emitErr := emit(ProgressEvent{Kind: EventError, Message: err.Error()})
		if emitErr != nil {
			return emitErr
		}
		return err
	}

	return emit(ProgressEvent{Kind: EventDone})
}
