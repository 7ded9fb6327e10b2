package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/luminote/luminote/adapters/clock"
	"github.com/luminote/luminote/adapters/metrics"
	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/domain/retry"
	"github.com/luminote/luminote/ports"
)

func graphFixture(t *testing.T, modelOutput string) (*GraphService, *fakeGraphs, *fakeLedger) {
	t.Helper()
	ledger := newFakeLedger(map[string]int{"u1": 100})
	gen := NewGenerateService(GenerateDeps{
		Ledger:  ledger,
		Clock:   clock.NewFake(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)),
		Metrics: metrics.NewWithRegistry(prometheus.NewRegistry()),
		Logger:  zerolog.Nop(),
	}, retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond})

	notes := &fakeNotes{byChapter: map[string][]ports.Note{
		"ch1": {
			{ID: "n1", ChapterID: "ch1", Content: "导数是变化率", ImageDescribe: "切线图"},
			{ID: "n2", ChapterID: "ch1", Content: "积分是面积"},
		},
	}}
	graphs := &fakeGraphs{}
	provider := &stubProvider{
		name:       "dashscope",
		strategy:   llm.StrategySuffixDiff,
		completion: llm.Completion{Text: modelOutput, TotalTokens: 40},
	}

	svc := NewGraphService(GraphDeps{
		Generate: gen,
		Notes:    notes,
		Graphs:   graphs,
		Provider: provider,
		Logger:   zerolog.Nop(),
	})
	return svc, graphs, ledger
}

func TestGraph_ExtractParsesAndReplaces(t *testing.T) {
	out := "```json\n" + `{
		"items": [
			{"name": "导数", "description": "变化率"},
			{"name": "积分", "description": "面积"}
		],
		"relations": [
			{"item_a": "导数", "item_b": "积分", "relation_type": "互逆"}
		]
	}` + "\n```"

	svc, graphs, ledger := graphFixture(t, out)
	result, err := svc.Extract(context.Background(), "u1", "ch1")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.GraphID == "" {
		t.Error("empty graph id")
	}
	if len(result.Graph.Items) != 2 || len(result.Graph.Relations) != 1 {
		t.Errorf("graph = %+v", result.Graph)
	}
	if _, ok := graphs.replaced["ch1"]; !ok {
		t.Error("graph not stored")
	}
	if len(ledger.spends) != 1 || ledger.spends[0].Tokens != 40 {
		t.Errorf("spends = %+v, want one of 40", ledger.spends)
	}
}

func TestGraph_MalformedOutputLeavesStoreUntouched(t *testing.T) {
	svc, graphs, _ := graphFixture(t, "根据您提供的笔记内容，知识图谱如下...")

	_, err := svc.Extract(context.Background(), "u1", "ch1")
	var parseErr *llm.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %T (%v), want *llm.ParseError", err, err)
	}
	if len(graphs.replaced) != 0 {
		t.Error("store touched despite parse failure")
	}
}

func TestGraph_EmptyChapter(t *testing.T) {
	svc, _, _ := graphFixture(t, "{}")
	if _, err := svc.Extract(context.Background(), "u1", "empty"); err == nil {
		t.Fatal("expected error for chapter without notes")
	}
}
