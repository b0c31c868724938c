// Package tree implements copy-on-write updates over a nested comment thread.
//
// Every function here leaves its input untouched. When nothing matches, the
// input slice itself is returned, so callers can compare backing arrays to
// skip redundant work. When something matches, only the slices on the path
// from the root to the match are reallocated; every other subtree keeps its
// identity.
package tree

import "github.com/example/oblivion-comments/internal/comments/model"

// Transform produces the replacement for a matched node.
type Transform func(model.Comment) model.Comment

// FindAndTransform replaces the node with the given id by fn(node).
func FindAndTransform(nodes []model.Comment, id model.ID, fn Transform) []model.Comment {
	out, _ := transform(nodes, id, fn)
	return out
}

func transform(nodes []model.Comment, id model.ID, fn Transform) ([]model.Comment, bool) {
	for i := range nodes {
		if nodes[i].ID == id {
			out := clone(nodes)
			out[i] = fn(nodes[i])
			return out, true
		}
		if len(nodes[i].Replies) == 0 {
			continue
		}
		replies, changed := transform(nodes[i].Replies, id, fn)
		if changed {
			out := clone(nodes)
			out[i].Replies = replies
			return out, true
		}
	}
	return nodes, false
}

// Find returns the first node with the given id, searching depth-first.
func Find(nodes []model.Comment, id model.ID) (model.Comment, bool) {
	for i := range nodes {
		if nodes[i].ID == id {
			return nodes[i], true
		}
		if c, ok := Find(nodes[i].Replies, id); ok {
			return c, true
		}
	}
	return model.Comment{}, false
}

// Contains reports whether id appears anywhere in the tree.
func Contains(nodes []model.Comment, id model.ID) bool {
	_, ok := Find(nodes, id)
	return ok
}

// Remove drops the node with the given id together with its subtree.
func Remove(nodes []model.Comment, id model.ID) []model.Comment {
	out, _ := remove(nodes, id)
	return out
}

func remove(nodes []model.Comment, id model.ID) ([]model.Comment, bool) {
	for i := range nodes {
		if nodes[i].ID == id {
			out := make([]model.Comment, 0, len(nodes)-1)
			out = append(out, nodes[:i]...)
			out = append(out, nodes[i+1:]...)
			return out, true
		}
		if len(nodes[i].Replies) == 0 {
			continue
		}
		replies, changed := remove(nodes[i].Replies, id)
		if changed {
			out := clone(nodes)
			out[i].Replies = replies
			return out, true
		}
	}
	return nodes, false
}

// Prepend inserts c at the head of the top level when parentID is empty, or
// at the head of the parent's replies otherwise. An unknown parent leaves the
// tree unchanged.
func Prepend(nodes []model.Comment, parentID model.ID, c model.Comment) []model.Comment {
	if parentID == "" {
		return prepend(nodes, c)
	}
	return FindAndTransform(nodes, parentID, func(p model.Comment) model.Comment {
		p.Replies = prepend(p.Replies, c)
		return p
	})
}

// Filter keeps the nodes for which keep returns true, at every depth. A
// dropped node takes its subtree with it.
func Filter(nodes []model.Comment, keep func(model.Comment) bool) []model.Comment {
	out, _ := filter(nodes, keep)
	return out
}

func filter(nodes []model.Comment, keep func(model.Comment) bool) ([]model.Comment, bool) {
	var out []model.Comment
	changed := false
	for i := range nodes {
		if !keep(nodes[i]) {
			if !changed {
				out = make([]model.Comment, 0, len(nodes))
				out = append(out, nodes[:i]...)
				changed = true
			}
			continue
		}
		n := nodes[i]
		if len(n.Replies) > 0 {
			if replies, ch := filter(n.Replies, keep); ch {
				n.Replies = replies
				if !changed {
					out = make([]model.Comment, 0, len(nodes))
					out = append(out, nodes[:i]...)
					changed = true
				}
			}
		}
		if changed {
			out = append(out, n)
		}
	}
	if !changed {
		return nodes, false
	}
	return out, true
}

// Walk visits every node depth-first, parents before children.
func Walk(nodes []model.Comment, fn func(model.Comment)) {
	for i := range nodes {
		fn(nodes[i])
		Walk(nodes[i].Replies, fn)
	}
}

func prepend(nodes []model.Comment, c model.Comment) []model.Comment {
	out := make([]model.Comment, 0, len(nodes)+1)
	out = append(out, c)
	return append(out, nodes...)
}

func clone(nodes []model.Comment) []model.Comment {
	out := make([]model.Comment, len(nodes))
	copy(out, nodes)
	return out
}
