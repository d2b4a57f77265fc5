package service

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"counselflow.org/internal/domain"
)

// Companies and actions both form trees persisted as closure tables: one row
// per ancestor/descendant pair including the zero-depth self pair. The
// helpers below keep those tables consistent across inserts and reparenting.

// insertClosure records a freshly inserted node: its self pair plus, when a
// parent is set, pairs linking it to every ancestor of the parent.
func insertClosure(ctx context.Context, idb bun.IDB, table string, id int64, parentID *int64) error {
	if _, err := idb.ExecContext(ctx,
		"INSERT INTO "+table+" (ancestor_id, descendant_id, depth) VALUES (?, ?, 0)", id, id); err != nil {
		return err
	}
	if parentID == nil {
		return nil
	}
	_, err := idb.ExecContext(ctx,
		"INSERT INTO "+table+" (ancestor_id, descendant_id, depth) "+
			"SELECT ancestor_id, ?, depth + 1 FROM "+table+" WHERE descendant_id = ?",
		id, *parentID)
	return err
}

// moveSubtree reparents a node. The node's subtree is detached from every
// ancestor outside the subtree and re-linked under the new parent's ancestor
// chain. A nil newParentID promotes the node to a root.
func moveSubtree(ctx context.Context, idb bun.IDB, table string, id int64, newParentID *int64) error {
	if newParentID != nil {
		if *newParentID == id {
			return fmt.Errorf("%w: node cannot be its own parent", domain.ErrInvalidInput)
		}
		// Reject a parent inside the node's own subtree.
		inSubtree, err := idb.NewSelect().
			Table(table).
			Where("ancestor_id = ?", id).
			Where("descendant_id = ?", *newParentID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if inSubtree {
			return fmt.Errorf("%w: new parent is a descendant of the node", domain.ErrInvalidInput)
		}
	}

	if _, err := idb.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE descendant_id IN "+
			"(SELECT descendant_id FROM (SELECT descendant_id FROM "+table+" WHERE ancestor_id = ?) AS sub) "+
			"AND ancestor_id NOT IN "+
			"(SELECT descendant_id FROM (SELECT descendant_id FROM "+table+" WHERE ancestor_id = ?) AS sub2)",
		id, id); err != nil {
		return err
	}
	if newParentID == nil {
		return nil
	}
	_, err := idb.ExecContext(ctx,
		"INSERT INTO "+table+" (ancestor_id, descendant_id, depth) "+
			"SELECT super.ancestor_id, sub.descendant_id, super.depth + sub.depth + 1 "+
			"FROM "+table+" AS super, "+table+" AS sub "+
			"WHERE super.descendant_id = ? AND sub.ancestor_id = ?",
		*newParentID, id)
	return err
}
