package translate

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziedsayadi/Cvmodel/internal/llm"
)

// stubClient is an in-memory text service. Prompts carry the payload after
// the final blank line, so the stub can recover the segment text.
type stubClient struct {
	mu       sync.Mutex
	calls    int
	generate func(payload string) (string, error)
	delay    func(payload string) time.Duration
}

func (c *stubClient) Generate(_ context.Context, _ string, prompt string) (string, error) {
	payload := promptPayload(prompt)
	if c.delay != nil {
		time.Sleep(c.delay(payload))
	}
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.generate(payload)
}

func (c *stubClient) ListModels(context.Context) ([]string, error) {
	return []string{"primary", "fallback"}, nil
}

func (c *stubClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func promptPayload(prompt string) string {
	if i := strings.LastIndex(prompt, "\n\n"); i >= 0 {
		return prompt[i+2:]
	}
	return prompt
}

func identityGenerate(payload string) (string, error) {
	return payload, nil
}

// uppercaseLeaves parses a JSON payload and uppercases its string leaves,
// leaving keys and non-string values alone.
func uppercaseLeaves(payload string) (string, error) {
	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return "", err
	}
	walkStrings(value, func(text string, set func(string)) {
		set(strings.ToUpper(text))
	})
	out, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (m *memCache) key(document []byte, language string) string {
	return language + "|" + string(document)
}

func (m *memCache) Get(document []byte, language string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.entries[m.key(document, language)]
	return payload, ok
}

func (m *memCache) Put(document []byte, language string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.key(document, language)] = payload
}

func newTestPipeline(client llm.Client, resultCache ResultCache) *Pipeline {
	invoker := NewInvoker(client, "primary", "fallback", zerolog.Nop())
	return New(invoker, resultCache, zerolog.Nop(), Options{
		Workers:     4,
		StreamPause: -1,
	})
}

func mustUnmarshal(t *testing.T, raw []byte) any {
	t.Helper()
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		t.Fatalf("unmarshal %q: %v", raw, err)
	}
	return value
}

func TestTranslate_IdentityRoundTrip(t *testing.T) {
	doc := json.RawMessage(`{
		"basics": {"name": "Ada Lovelace", "label": "Software Engineer"},
		"skills": ["Go", "Distributed Systems"],
		"summary": "shipped v2 [see {notes}, ] and more",
		"experienceYears": 12,
		"remote": true
	}`)

	client := &stubClient{generate: identityGenerate}
	p := newTestPipeline(client, nil)

	result, err := p.Translate(context.Background(), doc, "es")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if result.SegmentCount != 1 {
		t.Errorf("SegmentCount = %d, want 1", result.SegmentCount)
	}
	if result.CacheHit {
		t.Error("CacheHit = true without a cache")
	}

	got := mustUnmarshal(t, result.Document)
	want := mustUnmarshal(t, doc)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip changed the document:\ngot  %v\nwant %v", got, want)
	}
}

func TestTranslate_OnlyStringLeavesChange(t *testing.T) {
	doc := json.RawMessage(`{"title":"Hello","tags":["a","b"],"count":3}`)

	client := &stubClient{generate: uppercaseLeaves}
	p := newTestPipeline(client, nil)

	result, err := p.Translate(context.Background(), doc, "fr")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	got := mustUnmarshal(t, result.Document)
	want := mustUnmarshal(t, []byte(`{"title":"HELLO","tags":["A","B"],"count":3}`))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// Workers that finish in reverse order must not disturb segment order: each
// result lands at its segment's original index before assembly.
func TestRunBulk_PreservesOrderUnderReverseCompletion(t *testing.T) {
	serialized := `{"one":1,"two":"alpha","three":"beta","four":4}`
	cuts := []int{11, 24, 38}

	var segments []*Segment
	prev := 0
	for _, cut := range append(cuts, len(serialized)) {
		segments = append(segments, &Segment{
			Index:   len(segments),
			RawText: serialized[prev:cut],
			State:   SegmentPending,
		})
		prev = cut
	}

	delays := make(map[string]time.Duration, len(segments))
	for i, seg := range segments {
		delays[seg.RawText] = time.Duration(len(segments)-i) * 20 * time.Millisecond
	}

	client := &stubClient{
		generate: identityGenerate,
		delay:    func(payload string) time.Duration { return delays[payload] },
	}
	p := newTestPipeline(client, nil)
	in := &runInput{serialized: []byte(serialized), langKey: "es", targetLabel: "Spanish"}

	p.runBulk(context.Background(), in, segments)

	for i, seg := range segments {
		if seg.Translated != seg.RawText {
			t.Errorf("segment %d translated to %q, want %q", i, seg.Translated, seg.RawText)
		}
		if seg.State != SegmentDone {
			t.Errorf("segment %d state = %v, want done", i, seg.State)
		}
	}

	result, err := p.assemble(in, segments)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	got := mustUnmarshal(t, result.Document)
	want := mustUnmarshal(t, []byte(serialized))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("assembled document = %v, want %v", got, want)
	}
}

// In bulk mode an unrecoverable segment is substituted with its original
// text instead of failing the batch.
func TestTranslate_SubstitutesOriginalOnSegmentFailure(t *testing.T) {
	doc := json.RawMessage(`{"title":"Hello","body":"World"}`)

	client := &stubClient{
		generate: func(string) (string, error) {
			return "", &llm.UpstreamError{Kind: llm.KindPermanent, Status: 400, Err: errors.New("rejected")}
		},
	}
	p := newTestPipeline(client, nil)

	result, err := p.Translate(context.Background(), doc, "de")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	got := mustUnmarshal(t, result.Document)
	want := mustUnmarshal(t, doc)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("substituted document = %v, want original %v", got, want)
	}
}

func TestTranslate_RejectsInvalidRequests(t *testing.T) {
	client := &stubClient{generate: identityGenerate}
	p := newTestPipeline(client, nil)

	_, err := p.Translate(context.Background(), json.RawMessage(`{"a":1}`), "  ")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("missing language: err = %v, want ErrInvalidRequest", err)
	}

	_, err = p.Translate(context.Background(), json.RawMessage(`{"a":`), "es")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("malformed document: err = %v, want ErrInvalidRequest", err)
	}

	_, err = p.Translate(context.Background(), nil, "es")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty document: err = %v, want ErrInvalidRequest", err)
	}

	if client.callCount() != 0 {
		t.Errorf("rejected requests still made %d upstream calls", client.callCount())
	}
}

func TestTranslate_CacheAvoidsRepeatCalls(t *testing.T) {
	doc := json.RawMessage(`{"title":"Hello"}`)
	client := &stubClient{generate: uppercaseLeaves}
	p := newTestPipeline(client, newMemCache())

	first, err := p.Translate(context.Background(), doc, "es")
	if err != nil {
		t.Fatalf("first Translate: %v", err)
	}
	if first.CacheHit {
		t.Error("first request reported a cache hit")
	}
	callsAfterFirst := client.callCount()

	second, err := p.Translate(context.Background(), doc, "es")
	if err != nil {
		t.Fatalf("second Translate: %v", err)
	}
	if !second.CacheHit {
		t.Error("second request missed the cache")
	}
	if client.callCount() != callsAfterFirst {
		t.Errorf("cached request made %d extra upstream calls", client.callCount()-callsAfterFirst)
	}
	if string(first.Document) != string(second.Document) {
		t.Errorf("cached payload %s differs from original %s", second.Document, first.Document)
	}

	// A different target language is a different cache entry.
	third, err := p.Translate(context.Background(), doc, "fr")
	if err != nil {
		t.Fatalf("third Translate: %v", err)
	}
	if third.CacheHit {
		t.Error("different language reported a cache hit")
	}
}

func TestStream_EmitsOrderedEvents(t *testing.T) {
	doc := json.RawMessage(`{"title":"Hello"}`)
	client := &stubClient{generate: uppercaseLeaves}
	p := newTestPipeline(client, nil)

	var events []ProgressEvent
	err := p.Stream(context.Background(), doc, "es", func(ev ProgressEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("got %d events (%v), want 3", len(events), events)
	}
	if events[0].Kind != EventStart || events[0].SegmentCount != 1 {
		t.Errorf("first event = %+v, want start with segmentCount 1", events[0])
	}
	if events[1].Kind != EventChunk || events[1].Index != 0 || events[1].Percentage != 100 {
		t.Errorf("second event = %+v, want chunk index 0 at 100%%", events[1])
	}
	got := mustUnmarshal(t, []byte(events[1].Text))
	want := mustUnmarshal(t, []byte(`{"title":"HELLO"}`))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("chunk text = %v, want %v", got, want)
	}
	if events[2].Kind != EventDone {
		t.Errorf("last event = %+v, want done", events[2])
	}
}

func TestStream_AbortsOnSegmentFailure(t *testing.T) {
	doc := json.RawMessage(`{"title":"Hello"}`)
	client := &stubClient{
		generate: func(string) (string, error) {
			return "", &llm.UpstreamError{Kind: llm.KindPermanent, Status: 400, Err: errors.New("rejected")}
		},
	}
	cache := newMemCache()
	p := newTestPipeline(client, cache)

	var events []ProgressEvent
	err := p.Stream(context.Background(), doc, "es", func(ev ProgressEvent) error {
		events = append(events, ev)
		return nil
	})
	if err == nil {
		t.Fatal("Stream succeeded on a failing upstream")
	}

	if len(events) != 2 {
		t.Fatalf("got %d events (%v), want start and error", len(events), events)
	}
	if events[0].Kind != EventStart {
		t.Errorf("first event = %+v, want start", events[0])
	}
	if events[1].Kind != EventError || events[1].Message == "" {
		t.Errorf("second event = %+v, want error with message", events[1])
	}

	if len(cache.entries) != 0 {
		t.Error("failed stream wrote a cache entry")
	}
}

func TestStream_ServesCacheHitAsSingleChunk(t *testing.T) {
	doc := json.RawMessage(`{"title":"Hello"}`)
	client := &stubClient{generate: uppercaseLeaves}
	p := newTestPipeline(client, newMemCache())

	if _, err := p.Translate(context.Background(), doc, "es"); err != nil {
		t.Fatalf("warm-up Translate: %v", err)
	}
	callsAfterWarmup := client.callCount()

	var events []ProgressEvent
	err := p.Stream(context.Background(), doc, "es", func(ev ProgressEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if client.callCount() != callsAfterWarmup {
		t.Error("cached stream still called the upstream")
	}

	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	want := []EventKind{EventStart, EventChunk, EventDone}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("event kinds = %v, want %v", kinds, want)
	}
}

func TestTranslateFields_SkipsNonLanguageLeaves(t *testing.T) {
	doc := json.RawMessage(`{
		"name": "John Doe",
		"email": "john@example.com",
		"site": "https://johndoe.dev",
		"years": "12",
		"summary": "Builds reliable systems"
	}`)

	client := &stubClient{
		generate: func(payload string) (string, error) {
			return strings.ToUpper(payload), nil
		},
	}
	p := newTestPipeline(client, nil)

	result, err := p.TranslateFields(context.Background(), doc, "es")
	if err != nil {
		t.Fatalf("TranslateFields: %v", err)
	}
	if result.SegmentCount != 2 {
		t.Errorf("SegmentCount = %d, want 2 translatable fields", result.SegmentCount)
	}

	got := mustUnmarshal(t, result.Document)
	want := mustUnmarshal(t, []byte(`{
		"name": "JOHN DOE",
		"email": "john@example.com",
		"site": "https://johndoe.dev",
		"years": "12",
		"summary": "BUILDS RELIABLE SYSTEMS"
	}`))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// Whole-document and field-by-field results for the same document and
// language must not share cache entries.
func TestTranslateFields_SeparateCacheNamespace(t *testing.T) {
	doc := json.RawMessage(`{"title":"Hello"}`)
	client := &stubClient{generate: uppercaseLeaves}
	p := newTestPipeline(client, newMemCache())

	if _, err := p.Translate(context.Background(), doc, "es"); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	result, err := p.TranslateFields(context.Background(), doc, "es")
	if err != nil {
		t.Fatalf("TranslateFields: %v", err)
	}
	if result.CacheHit {
		t.Error("field mode hit the whole-document cache entry")
	}
}

func TestShouldSkipLeaf(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"https://example.com/cv", true},
		{"www.example.com", true},
		{"someone@example.com", true},
		{"+33 6 12 34 56 78", true},
		{"2019-2023", true},
		{"Senior Backend Engineer", false},
		{"contact me @ the office", false},
	}
	for _, tt := range tests {
		if got := shouldSkipLeaf(tt.in); got != tt.want {
			t.Errorf("shouldSkipLeaf(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRunCache_DistinctLongTextsDoNotCollide(t *testing.T) {
	rc := newRunCache()
	prefix := strings.Repeat("x", 128)

	rc.put(prefix+"alpha", "es", "first")
	if _, ok := rc.get(prefix+"beta", "es"); ok {
		t.Fatal("run cache served a translation for a different text sharing a prefix")
	}
	if got, ok := rc.get(prefix+"alpha", "es"); !ok || got != "first" {
		t.Fatalf("run cache lost its own entry: got %q, ok=%v", got, ok)
	}
	if _, ok := rc.get(prefix+"alpha", "fr"); ok {
		t.Fatal("run cache served a translation for a different language")
	}
}
