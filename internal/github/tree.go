// internal/github/tree.go
package github

import (
	"context"
	"log/slog"

	"colorscheme-indexer/internal/model"
)

// DefaultTreeBudget is the number of list-tree calls one repository walk may make.
const DefaultTreeBudget = 20

// TreeLister lists the direct entries of a tree.
type TreeLister interface {
	ListTree(ctx context.Context, owner, name, sha string) Result[[]model.FileTreeEntry]
}

// TreeWalker enumerates the files of a repository depth-first, making at most
// budget list-tree calls per walk.
type TreeWalker struct {
	lister TreeLister
	budget int
	logger *slog.Logger
}

func NewTreeWalker(lister TreeLister, budget int, logger *slog.Logger) *TreeWalker {
	if budget <= 0 {
		budget = DefaultTreeBudget
	}
	return &TreeWalker{lister: lister, budget: budget, logger: logger}
}

type pendingTree struct {
	sha    string
	prefix string
}

// ListFiles returns the blobs reachable from ref with root-relative paths.
// When the budget runs out the files collected so far are returned. complete
// is false when a tree could not be listed for a transient reason.
func (w *TreeWalker) ListFiles(ctx context.Context, owner, name, ref string) (files []model.FileTreeEntry, complete bool) {
	complete = true
	stack := []pendingTree{{sha: ref}}
	calls := 0

	for len(stack) > 0 {
		if calls >= w.budget {
			w.logger.Debug("Tree budget exhausted", "owner", owner, "repo", name, "pending", len(stack), "files", len(files))
			break
		}
		if ctx.Err() != nil {
			complete = false
			break
		}

		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		calls++
		res := w.lister.ListTree(ctx, owner, name, next.sha)
		if res.Outcome == Transient {
			w.logger.Warn("Failed to list tree", "owner", owner, "repo", name, "sha", next.sha, "error", res.Err)
			complete = false
		}
		if !res.OK() {
			continue
		}

		var subtrees []pendingTree
		for _, e := range res.Value {
			e.Path = next.prefix + e.Path
			switch e.Type {
			case model.BlobEntry:
				files = append(files, e)
			case model.TreeEntry:
				subtrees = append(subtrees, pendingTree{sha: e.SHA, prefix: e.Path + "/"})
			}
		}
		// reversed so the first subtree is walked next
		for i := len(subtrees) - 1; i >= 0; i-- {
			stack = append(stack, subtrees[i])
		}
	}

	return files, complete
}
