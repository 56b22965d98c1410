package catalog

import (
	"context"

	"github.com/google/uuid"
)

// FamilyTree returns a category and all of its descendants. The walk is
// breadth-first over an explicit queue with a visited set, so it neither
// recurses unboundedly nor loops on an accidentally introduced cycle.
func (s *Store) FamilyTree(ctx context.Context, rootID uuid.UUID) ([]*Category, error) {
	root, err := s.GetCategory(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}

	visited := map[uuid.UUID]bool{root.ID: true}
	tree := []*Category{root}
	queue := []uuid.UUID{root.ID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		children, err := s.Subcategories(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			tree = append(tree, child)
			queue = append(queue, child.ID)
		}
	}
	return tree, nil
}

// PathToCategory returns the chain from the top-level ancestor down to
// the given category. A visited set terminates accidental parent cycles.
func (s *Store) PathToCategory(ctx context.Context, id uuid.UUID) ([]*Category, error) {
	var reversed []*Category
	visited := make(map[uuid.UUID]bool)

	for {
		if visited[id] {
			break
		}
		visited[id] = true

		c, err := s.GetCategory(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			break
		}
		reversed = append(reversed, c)
		if !c.ParentID.Valid {
			break
		}
		id = c.ParentID.UUID
	}

	path := make([]*Category, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path, nil
}

// TopInCategory returns the most-used subscriptions in a category's
// whole family tree. limit <= 0 returns all of them.
func (s *Store) TopInCategory(ctx context.Context, categoryID uuid.UUID, limit int) ([]*Subscription, error) {
	tree, err := s.FamilyTree(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if len(tree) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(tree))
	for i, c := range tree {
		ids[i] = c.ID
	}
	if limit <= 0 {
		limit = 1 << 30
	}
	return s.SubscriptionsInCategories(ctx, ids, limit)
}
