package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/luminote/luminote/domain/kgraph"
	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/ports"
)

// GraphService extracts a knowledge graph from a chapter's notes. The
// model output is strictly parsed and validated before it replaces the
// chapter's stored graph; malformed output fails the request without
// touching the previous graph.
type GraphService struct {
	gen      *GenerateService
	notes    ports.NoteStore
	graphs   ports.GraphStore
	provider ports.TextProvider
	logger   zerolog.Logger
}

// GraphDeps contains dependencies for GraphService.
type GraphDeps struct {
	Generate *GenerateService
	Notes    ports.NoteStore
	Graphs   ports.GraphStore
	Provider ports.TextProvider
	Logger   zerolog.Logger
}

// NewGraphService creates a new graph service.
func NewGraphService(deps GraphDeps) *GraphService {
	return &GraphService{
		gen:      deps.Generate,
		notes:    deps.Notes,
		graphs:   deps.Graphs,
		provider: deps.Provider,
		logger:   deps.Logger,
	}
}

// ExtractResult is a regenerated graph and its storage id.
type ExtractResult struct {
	GraphID string
	Graph   kgraph.Graph
}

// Extract regenerates the chapter's knowledge graph from its notes.
func (s *GraphService) Extract(ctx context.Context, userID, chapterID string) (ExtractResult, error) {
	notes, err := s.notes.ListByChapter(ctx, chapterID)
	if err != nil {
		return ExtractResult{}, err
	}
	if len(notes) == 0 {
		return ExtractResult{}, fmt.Errorf("chapter %s has no notes", chapterID)
	}

	contents := make([]string, len(notes))
	for i, n := range notes {
		contents[i] = noteText(n)
	}

	completion, err := s.gen.Complete(ctx, userID, s.provider, graphPrompt(contents))
	if err != nil {
		return ExtractResult{}, err
	}

	graph, err := kgraph.Parse(completion.Text)
	if err != nil {
		var parseErr *llm.ParseError
		if errors.As(err, &parseErr) {
			s.logger.Warn().Err(err).Str("chapter_id", chapterID).Msg("model returned unparseable graph")
		}
		return ExtractResult{}, err
	}

	graphID, err := s.graphs.Replace(ctx, chapterID, graph)
	if err != nil {
		return ExtractResult{}, err
	}
	return ExtractResult{GraphID: graphID, Graph: graph}, nil
}

// Get returns the chapter's current graph.
func (s *GraphService) Get(ctx context.Context, chapterID string) (kgraph.Graph, error) {
	return s.graphs.GetByChapter(ctx, chapterID)
}
