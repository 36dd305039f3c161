package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// fieldsLangPrefix keeps whole-document and per-field cache entries for the
// same document and language from colliding.
const fieldsLangPrefix = "fields|"

// fieldTask is one translatable string leaf together with a setter that
// writes the translation back into the decoded document.
type fieldTask struct {
	text   string
	assign func(string)
}

// TranslateFields translates each string leaf of the document individually,
// leaving keys and non-string values untouched. Leaves that carry no natural
// language (URLs, emails, bare numbers) are passed through unchanged, as is
// any leaf whose translation ultimately fails.
func (p *Pipeline) TranslateFields(ctx context.Context, document json.RawMessage, targetLang string) (*Result, error) {
	in, err := p.prepare(document, targetLang)
	if err != nil {
		return nil, err
	}
	cacheLang := fieldsLangPrefix + in.langKey

	if p.cache != nil {
		if payload, ok := p.cache.Get(in.serialized, cacheLang); ok {
			p.logger.Debug().Str("lang", in.langKey).Msg("field translation cache hit")
			return &Result{Document: payload, CacheHit: true, SourceLang: in.sourceCode}, nil
		}
	}

	tasks := collectFieldTasks(in.decoded)
	results := make([]string, len(tasks))

	queue := make(chan int, len(tasks))
	for i := range tasks {
		queue <- i
	}
	close(queue)

	workers := p.workers()
	if workers > len(tasks) {
		workers = len(tasks)
	}

	rc := newRunCache()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				if ctx.Err() != nil {
					return
				}
				results[i] = p.translateField(ctx, in, tasks[i].text, rc)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, task := range tasks {
		task.assign(results[i])
	}

	payload, err := json.Marshal(in.decoded)
	if err != nil {
		return nil, fmt.Errorf("encode translated document: %w", err)
	}

	if p.cache != nil {
		p.cache.Put(in.serialized, cacheLang, payload)
	}

	return &Result{
		Document:     payload,
		SegmentCount: len(tasks),
		SourceLang:   in.sourceCode,
	}, nil
}

// translateField resolves one leaf, falling back to the original text when
// every attempt fails. Field failures never abort the batch.
func (p *Pipeline) translateField(ctx context.Context, in *runInput, text string, rc *runCache) string {
	if cached, ok := rc.get(text, in.langKey); ok {
		return cached
	}

	out, err := p.newRetryer().Do(ctx, func(ctx context.Context, tier ModelTier) (string, error) {
		return p.invoker.InvokeField(ctx, text, in.targetLabel, in.sourceLabel, tier)
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("field translation failed, keeping original text")
		return text
	}

	rc.put(text, in.langKey, out)
	return out
}

// collectFieldTasks walks the decoded document and gathers every string leaf
// worth translating. Map keys are visited in sorted order so task indices
// are deterministic for a given document.
func collectFieldTasks(value any) []fieldTask {
	var tasks []fieldTask
	walkStrings(value, func(text string, set func(string)) {
		if shouldSkipLeaf(text) {
			return
		}
		tasks = append(tasks, fieldTask{text: text, assign: set})
	})
	return tasks
}

func walkStrings(value any, visit func(text string, set func(string))) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			k := k
			if s, ok := v[k].(string); ok {
				visit(s, func(out string) { v[k] = out })
				continue
			}
			walkStrings(v[k], visit)
		}
	case []any:
		for i, item := range v {
			i := i
			if s, ok := item.(string); ok {
				visit(s, func(out string) { v[i] = out })
				continue
			}
			walkStrings(item, visit)
		}
	}
}

// collectLeafText concatenates string leaves into a sample for language
// detection, capped so huge documents stay cheap.
func collectLeafText(value any) string {
	const sampleCap = 2000
	var sb strings.Builder
	walkStrings(value, func(text string, _ func(string)) {
		if sb.Len() >= sampleCap {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	})
	return sb.String()
}

// shouldSkipLeaf filters leaves that carry no translatable language:
// empty strings, URLs, email addresses and letterless values such as
// phone numbers or dates.
func shouldSkipLeaf(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	lowered := strings.ToLower(trimmed)
	if strings.Contains(lowered, "://") || strings.HasPrefix(lowered, "www.") {
		return true
	}
	if strings.Contains(trimmed, "@") && !strings.ContainsAny(trimmed, " \t") {
		return true
	}
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
