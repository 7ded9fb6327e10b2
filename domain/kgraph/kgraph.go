// Package kgraph parses model-generated knowledge graphs. Model output
// is untrusted text: it is decoded with strict JSON parsing against the
// items/relations schema and validated, never evaluated.
package kgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/luminote/luminote/domain/llm"
)

// Item is one concept node.
type Item struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Relation links two declared items.
type Relation struct {
	ItemA        string `json:"item_a"`
	ItemB        string `json:"item_b"`
	RelationType string `json:"relation_type"`
}

// Graph is a validated knowledge graph extracted from notes.
type Graph struct {
	Items     []Item     `json:"items"`
	Relations []Relation `json:"relations"`
}

// Parse decodes raw model output into a Graph. Markdown code fences
// around the JSON are tolerated since models add them despite prompt
// instructions. Any structural problem yields a recoverable ParseError.
func Parse(raw string) (Graph, error) {
	payload := stripFences(raw)

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.DisallowUnknownFields()

	var g Graph
	if err := dec.Decode(&g); err != nil {
		return Graph{}, &llm.ParseError{What: "knowledge graph", Cause: err}
	}
	if err := g.validate(); err != nil {
		return Graph{}, &llm.ParseError{What: "knowledge graph", Cause: err}
	}
	return g, nil
}

func (g Graph) validate() error {
	if len(g.Items) == 0 {
		return fmt.Errorf("no items")
	}

	names := make(map[string]bool, len(g.Items))
	for i, item := range g.Items {
		if item.Name == "" {
			return fmt.Errorf("item %d has no name", i)
		}
		if names[item.Name] {
			return fmt.Errorf("duplicate item %q", item.Name)
		}
		names[item.Name] = true
	}

	for i, rel := range g.Relations {
		if !names[rel.ItemA] {
			return fmt.Errorf("relation %d references undeclared item %q", i, rel.ItemA)
		}
		if !names[rel.ItemB] {
			return fmt.Errorf("relation %d references undeclared item %q", i, rel.ItemB)
		}
		if rel.RelationType == "" {
			return fmt.Errorf("relation %d has no type", i)
		}
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
