package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/luminote/luminote/domain/kgraph"
	"github.com/luminote/luminote/domain/ledger"
	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/ports"
)

// fakeLedger is an in-memory ledger with scriptable commit failures.
type fakeLedger struct {
	mu         sync.Mutex
	balances   map[string]int
	spends     []ledger.Spend
	failCommit bool
}

func newFakeLedger(balances map[string]int) *fakeLedger {
	return &fakeLedger{balances: balances}
}

func (f *fakeLedger) RecordSpend(ctx context.Context, spend ledger.Spend, day time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCommit {
		return &ledger.CommitError{UserID: spend.UserID, Tokens: spend.Tokens, Cause: fmt.Errorf("commit refused")}
	}
	f.spends = append(f.spends, spend)
	f.balances[spend.UserID] -= spend.Tokens
	return nil
}

func (f *fakeLedger) Balance(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *fakeLedger) UsageBetween(ctx context.Context, userID string, start, end time.Time) ([]ledger.UsageRecord, error) {
	return nil, nil
}

// scriptedStream replays chunks and optionally fails midway.
type scriptedStream struct {
	chunks []llm.RawChunk
	failAt int // fail before delivering chunk index failAt; -1 = never
	pos    int
}

func (s *scriptedStream) Recv() (llm.RawChunk, error) {
	if s.failAt >= 0 && s.pos == s.failAt {
		return llm.RawChunk{}, &llm.UpstreamError{Provider: "stub", Status: 502}
	}
	if s.pos >= len(s.chunks) {
		return llm.RawChunk{}, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *scriptedStream) Close() error { return nil }

// stubProvider scripts one stream per attempt.
type stubProvider struct {
	name     string
	strategy llm.Strategy

	// streams are consumed one per Stream call; failAts pairs with
	// them (-1 for success).
	streams [][]llm.RawChunk
	failAts []int
	calls   int

	completion   llm.Completion
	completeErr  error
	completeErrs int // fail this many Complete calls before succeeding
}

func (p *stubProvider) Name() string           { return p.name }
func (p *stubProvider) Strategy() llm.Strategy { return p.strategy }

func (p *stubProvider) Stream(ctx context.Context, msgs []llm.Message) (llm.ChunkStream, error) {
	if p.calls >= len(p.streams) {
		return nil, fmt.Errorf("unexpected attempt %d", p.calls+1)
	}
	failAt := -1
	if p.calls < len(p.failAts) {
		failAt = p.failAts[p.calls]
	}
	stream := &scriptedStream{chunks: p.streams[p.calls], failAt: failAt}
	p.calls++
	return stream, nil
}

func (p *stubProvider) Complete(ctx context.Context, msgs []llm.Message) (llm.Completion, error) {
	p.calls++
	if p.completeErrs > 0 {
		p.completeErrs--
		return llm.Completion{}, &llm.UpstreamError{Provider: p.name, Status: 502}
	}
	if p.completeErr != nil {
		return llm.Completion{}, p.completeErr
	}
	return p.completion, nil
}

// suffixChunks builds a suffix-diff stream ending with a usage chunk.
func suffixChunks(tokens int, steps ...string) []llm.RawChunk {
	chunks := make([]llm.RawChunk, 0, len(steps))
	for i, s := range steps {
		chunk := llm.RawChunk{Content: s}
		if i == len(steps)-1 {
			chunk.TotalTokens = tokens
			chunk.HasUsage = true
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// collectSink records emitted events and counts resets.
type collectSink struct {
	events []llm.DeltaEvent
	resets int
}

func (s *collectSink) Emit(ev llm.DeltaEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *collectSink) Reset() {
	s.events = nil
	s.resets++
}

func (s *collectSink) text() string {
	var out string
	for _, ev := range s.events {
		if ev.Kind == llm.EventContent {
			out += ev.Text
		}
	}
	return out
}

// fakeCache is a map-backed ports.Cache without TTL eviction.
type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    int
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
}

func (c *fakeCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deletes = append(c.deletes, key)
}

// fakeNotes serves canned notes.
type fakeNotes struct {
	byChapter map[string][]ports.Note
	byUser    map[string][]ports.Note
}

func (f *fakeNotes) ListByChapter(ctx context.Context, chapterID string) ([]ports.Note, error) {
	return f.byChapter[chapterID], nil
}

func (f *fakeNotes) RecentByUser(ctx context.Context, userID string, since time.Time) ([]ports.Note, error) {
	var out []ports.Note
	for _, n := range f.byUser[userID] {
		if !n.CreatedAt.Before(since) {
			out = append(out, n)
		}
	}
	return out, nil
}

// fakeChats records appends and serves canned history.
type fakeChats struct {
	appended []ports.ChatMessage
	byUser   map[string][]ports.ChatMessage
	failNext error
}

func (f *fakeChats) Append(ctx context.Context, msgs []ports.ChatMessage) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.appended = append(f.appended, msgs...)
	return nil
}

func (f *fakeChats) RecentByUser(ctx context.Context, userID string, since time.Time) ([]ports.ChatMessage, error) {
	var out []ports.ChatMessage
	for _, m := range f.byUser[userID] {
		if !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeQuestions is an in-memory ports.QuestionStore.
type fakeQuestions struct {
	questions map[string]ports.Question
}

func (f *fakeQuestions) Get(ctx context.Context, id string) (ports.Question, error) {
	q, ok := f.questions[id]
	if !ok {
		return ports.Question{}, fmt.Errorf("question %s not found", id)
	}
	return q, nil
}

func (f *fakeQuestions) UpdateAnswer(ctx context.Context, id, answer string) error {
	q := f.questions[id]
	q.Answer = answer
	f.questions[id] = q
	return nil
}

func (f *fakeQuestions) UpdateSimilar(ctx context.Context, id, question string) error {
	q := f.questions[id]
	q.SimilarQuestion = question
	f.questions[id] = q
	return nil
}

func (f *fakeQuestions) UpdateSimilarAnswer(ctx context.Context, id, answer string) error {
	q := f.questions[id]
	q.SimilarAnswer = answer
	f.questions[id] = q
	return nil
}

// fakeGraphs records replacements.
type fakeGraphs struct {
	replaced map[string]kgraph.Graph
	nextID   int
}

func (f *fakeGraphs) Replace(ctx context.Context, chapterID string, g kgraph.Graph) (string, error) {
	if f.replaced == nil {
		f.replaced = make(map[string]kgraph.Graph)
	}
	f.replaced[chapterID] = g
	f.nextID++
	return fmt.Sprintf("g%d", f.nextID), nil
}

func (f *fakeGraphs) GetByChapter(ctx context.Context, chapterID string) (kgraph.Graph, error) {
	g, ok := f.replaced[chapterID]
	if !ok {
		return kgraph.Graph{}, fmt.Errorf("no graph for chapter %s", chapterID)
	}
	return g, nil
}

// fakeVision returns a canned reading.
type fakeVision struct {
	text  string
	calls int
}

func (f *fakeVision) Describe(ctx context.Context, imageURL string) (string, error) {
	f.calls++
	return f.text, nil
}

// fakeAudio returns a canned transcript.
type fakeAudio struct {
	text  string
	calls int
}

func (f *fakeAudio) Transcribe(ctx context.Context, audioURL string) (string, error) {
	f.calls++
	return f.text, nil
}

// Compile-time checks that the fakes satisfy their ports.
var (
	_ ports.LedgerStore    = (*fakeLedger)(nil)
	_ ports.TextProvider   = (*stubProvider)(nil)
	_ ports.Cache          = (*fakeCache)(nil)
	_ ports.NoteStore      = (*fakeNotes)(nil)
	_ ports.ChatStore      = (*fakeChats)(nil)
	_ ports.QuestionStore  = (*fakeQuestions)(nil)
	_ ports.GraphStore     = (*fakeGraphs)(nil)
	_ ports.VisionProvider = (*fakeVision)(nil)
	_ ports.AudioProvider  = (*fakeAudio)(nil)
	_ Sink                 = (*collectSink)(nil)
)
