package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/luminote/luminote/domain/kgraph"
	"github.com/luminote/luminote/ports"
)

// GraphStore implements ports.GraphStore using SQLite.
type GraphStore struct {
	db    *DB
	ids   ports.IDGenerator
	clock ports.Clock
}

// NewGraphStore creates a new SQLite graph store.
func NewGraphStore(db *DB, ids ports.IDGenerator, clock ports.Clock) *GraphStore {
	return &GraphStore{db: db, ids: ids, clock: clock}
}

// Replace stores g as the chapter's current graph. The previous graph is
// marked replaced rather than deleted so a failed write cannot leave the
// chapter without one.
func (s *GraphStore) Replace(ctx context.Context, chapterID string, g kgraph.Graph) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE knowledge_graphs SET status = 'replaced'
		WHERE chapter_id = ? AND status = 'active'
	`, chapterID)
	if err != nil {
		return "", err
	}

	graphID := s.ids.New()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO knowledge_graphs (id, chapter_id, status, created_at)
		VALUES (?, ?, 'active', ?)
	`, graphID, chapterID, s.clock.Now().UTC())
	if err != nil {
		return "", err
	}

	for _, item := range g.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO graph_items (id, graph_id, name, description)
			VALUES (?, ?, ?, ?)
		`, s.ids.New(), graphID, item.Name, item.Description)
		if err != nil {
			return "", err
		}
	}
	for _, rel := range g.Relations {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO graph_relations (id, graph_id, item_a, item_b, relation_type)
			VALUES (?, ?, ?, ?, ?)
		`, s.ids.New(), graphID, rel.ItemA, rel.ItemB, rel.RelationType)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return graphID, nil
}

// GetByChapter returns the chapter's current graph.
func (s *GraphStore) GetByChapter(ctx context.Context, chapterID string) (kgraph.Graph, error) {
	var graphID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM knowledge_graphs
		WHERE chapter_id = ? AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`, chapterID).Scan(&graphID)
	if errors.Is(err, sql.ErrNoRows) {
		return kgraph.Graph{}, ErrNotFound
	}
	if err != nil {
		return kgraph.Graph{}, err
	}

	var g kgraph.Graph
	itemRows, err := s.db.QueryContext(ctx, `
		SELECT name, description FROM graph_items WHERE graph_id = ?
	`, graphID)
	if err != nil {
		return kgraph.Graph{}, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item kgraph.Item
		if err := itemRows.Scan(&item.Name, &item.Description); err != nil {
			return kgraph.Graph{}, err
		}
		g.Items = append(g.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return kgraph.Graph{}, err
	}

	relRows, err := s.db.QueryContext(ctx, `
		SELECT item_a, item_b, relation_type FROM graph_relations WHERE graph_id = ?
	`, graphID)
	if err != nil {
		return kgraph.Graph{}, err
	}
	defer relRows.Close()
	for relRows.Next() {
		var rel kgraph.Relation
		if err := relRows.Scan(&rel.ItemA, &rel.ItemB, &rel.RelationType); err != nil {
			return kgraph.Graph{}, err
		}
		g.Relations = append(g.Relations, rel)
	}
	return g, relRows.Err()
}

// Ensure interface compliance.
var _ ports.GraphStore = (*GraphStore)(nil)
