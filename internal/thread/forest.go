// Package thread assembles flat comment lists into reply trees.
package thread

import "github.com/spec-kit/ticket-tracker/internal/domain"

// Node is a comment together with its direct replies.
type Node struct {
	Comment  domain.Comment
	Children []*Node
}

// BuildForest links comments to their parents. Input is expected in
// ascending created_at order and that order is kept for roots and for
// every child list. A comment whose parent is not in the set (or which
// names itself as parent) becomes a root.
func BuildForest(comments []domain.Comment) []*Node {
	nodes := make(map[string]*Node, len(comments))
	for i := range comments {
		nodes[comments[i].ID] = &Node{Comment: comments[i], Children: []*Node{}}
	}

	roots := make([]*Node, 0)
	for i := range comments {
		node := nodes[comments[i].ID]
		parentID := comments[i].ParentID
		if parentID != nil && *parentID != comments[i].ID {
			if parent, ok := nodes[*parentID]; ok && !reachesUp(parent, node.Comment.ID, nodes) {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// reachesUp reports whether walking parent links from start hits id. It
// keeps a hand-built parent cycle from detaching comments from every root.
func reachesUp(start *Node, id string, nodes map[string]*Node) bool {
	seen := map[string]struct{}{}
	for cur := start; cur != nil; {
		if cur.Comment.ID == id {
			return true
		}
		if _, ok := seen[cur.Comment.ID]; ok {
			return false
		}
		seen[cur.Comment.ID] = struct{}{}
		if cur.Comment.ParentID == nil {
			return false
		}
		cur = nodes[*cur.Comment.ParentID]
	}
	return false
}

// Count returns the number of comments held in the forest.
func Count(roots []*Node) int {
	n := 0
	for _, root := range roots {
		n += 1 + Count(root.Children)
	}
	return n
}
