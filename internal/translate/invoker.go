package translate

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ziedsayadi/Cvmodel/internal/llm"
)

// Invoker sends one segment to the text-completion service and normalizes
// the raw output. It holds no cache of its own: whole-document caching is
// the cache component's job, and exact repeats within a run are absorbed by
// the pipeline's per-run cache.
type Invoker struct {
	client        llm.Client
	primaryModel  string
	fallbackModel string
	logger        zerolog.Logger
}

func NewInvoker(client llm.Client, primaryModel, fallbackModel string, logger zerolog.Logger) *Invoker {
	return &Invoker{
		client:        client,
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
		logger:        logger,
	}
}

func (iv *Invoker) modelFor(tier ModelTier) string {
	if tier == TierFallback {
		return iv.fallbackModel
	}
	return iv.primaryModel
}

// InvokeDocument translates one JSON-shaped segment.
func (iv *Invoker) InvokeDocument(ctx context.Context, segmentText, targetLabel, sourceLabel string, tier ModelTier) (string, error) {
	prompt := buildDocumentPrompt(segmentText, targetLabel, sourceLabel)
	raw, err := iv.client.Generate(ctx, iv.modelFor(tier), prompt)
	if err != nil {
		return "", err
	}
	return StripFences(raw), nil
}

// InvokeField translates one plain-text resume field.
func (iv *Invoker) InvokeField(ctx context.Context, fieldText, targetLabel, sourceLabel string, tier ModelTier) (string, error) {
	prompt := buildFieldPrompt(fieldText, targetLabel, sourceLabel)
	raw, err := iv.client.Generate(ctx, iv.modelFor(tier), prompt)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(raw)
	// Some models quote short answers back.
	if len(out) >= 2 && strings.HasPrefix(out, `"`) && strings.HasSuffix(out, `"`) &&
		!strings.Contains(fieldText, `"`) {
		out = strings.TrimSpace(out[1 : len(out)-1])
	}
	return out, nil
}

// runCache absorbs exact repeated sub-segments within a single pipeline run.
// Keys hash the full text so long segments sharing a prefix never collide.
type runCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newRunCache() *runCache {
	return &runCache{entries: make(map[string]string)}
}

func (rc *runCache) key(text, lang string) string {
	h := fnv.New64a()
	h.Write([]byte(text))
	return strconv.FormatUint(h.Sum64(), 16) + "\x00" + lang
}

func (rc *runCache) get(text, lang string) (string, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	value, ok := rc.entries[rc.key(text, lang)]
	return value, ok
}

func (rc *runCache) put(text, lang, translated string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries[rc.key(text, lang)] = translated
}
