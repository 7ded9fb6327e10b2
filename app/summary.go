package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/ports"
)

const summaryTTL = 30 * time.Minute

// SummaryService summarizes a chapter's notes.
type SummaryService struct {
	gen      *GenerateService
	notes    ports.NoteStore
	cache    ports.Cache
	provider ports.TextProvider
	logger   zerolog.Logger
}

// SummaryDeps contains dependencies for SummaryService.
type SummaryDeps struct {
	Generate *GenerateService
	Notes    ports.NoteStore
	Cache    ports.Cache
	Provider ports.TextProvider
	Logger   zerolog.Logger
}

// NewSummaryService creates a new summary service.
func NewSummaryService(deps SummaryDeps) *SummaryService {
	return &SummaryService{
		gen:      deps.Generate,
		notes:    deps.Notes,
		cache:    deps.Cache,
		provider: deps.Provider,
		logger:   deps.Logger,
	}
}

func summaryKey(chapterID string) string { return "note:summary:" + chapterID }

// Cached returns the chapter's cached summary, if any.
func (s *SummaryService) Cached(ctx context.Context, chapterID string) (string, bool) {
	raw, ok := s.cache.Get(ctx, summaryKey(chapterID))
	if !ok {
		return "", false
	}
	return string(raw), true
}

// Invalidate drops the chapter's cached summary. Called when the
// chapter's notes change.
func (s *SummaryService) Invalidate(ctx context.Context, chapterID string) {
	s.cache.Delete(ctx, summaryKey(chapterID))
}

// Stream summarizes the chapter's notes, forwarding deltas to sink,
// then caches the summary text.
func (s *SummaryService) Stream(ctx context.Context, userID, chapterID string, sink Sink) (llm.StreamResult, error) {
	notes, err := s.notes.ListByChapter(ctx, chapterID)
	if err != nil {
		return llm.StreamResult{}, err
	}
	if len(notes) == 0 {
		return llm.StreamResult{}, fmt.Errorf("chapter %s has no notes", chapterID)
	}

	contents := make([]string, len(notes))
	for i, n := range notes {
		contents[i] = noteText(n)
	}

	result, err := s.gen.Stream(ctx, userID, s.provider, summaryPrompt(contents), sink)
	if err != nil {
		return llm.StreamResult{}, err
	}

	s.cache.Set(ctx, summaryKey(chapterID), []byte(result.FullText), summaryTTL)
	return result, nil
}
