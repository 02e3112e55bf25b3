// internal/github/tree_test.go
package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"colorscheme-indexer/internal/model"

	"github.com/stretchr/testify/assert"
)

// fakeTrees serves trees from memory and counts calls.
type fakeTrees struct {
	trees  map[string][]model.FileTreeEntry
	failed map[string]bool
	calls  int
}

func (f *fakeTrees) ListTree(ctx context.Context, owner, name, sha string) Result[[]model.FileTreeEntry] {
	f.calls++
	if f.failed[sha] {
		return Result[[]model.FileTreeEntry]{Outcome: Transient, Err: fmt.Errorf("listing %s: bad gateway", sha)}
	}
	entries, ok := f.trees[sha]
	if !ok {
		return Result[[]model.FileTreeEntry]{Outcome: NotFound}
	}
	return Result[[]model.FileTreeEntry]{Value: entries, Outcome: Success}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTreeWalker_ListFiles(t *testing.T) {
	t.Run("returns blobs with root-relative paths", func(t *testing.T) {
		trees := &fakeTrees{trees: map[string][]model.FileTreeEntry{
			"main": {
				{Path: "README.md", Type: model.BlobEntry, SHA: "b1"},
				{Path: "colors", Type: model.TreeEntry, SHA: "t1"},
				{Path: "lua", Type: model.TreeEntry, SHA: "t2"},
			},
			"t1": {{Path: "dark.vim", Type: model.BlobEntry, SHA: "b2"}},
			"t2": {{Path: "theme", Type: model.TreeEntry, SHA: "t3"}},
			"t3": {{Path: "init.lua", Type: model.BlobEntry, SHA: "b3"}},
		}}
		walker := NewTreeWalker(trees, DefaultTreeBudget, discardLogger())

		files, complete := walker.ListFiles(context.Background(), "o", "r", "main")

		assert.True(t, complete)
		var paths []string
		for _, f := range files {
			assert.Equal(t, model.BlobEntry, f.Type)
			paths = append(paths, f.Path)
		}
		assert.Equal(t, []string{"README.md", "colors/dark.vim", "lua/theme/init.lua"}, paths)
		assert.Equal(t, 4, trees.calls)
	})

	t.Run("stops at the budget and returns a prefix", func(t *testing.T) {
		// a complete binary tree of depth 8 with one blob per node
		trees := &fakeTrees{trees: map[string][]model.FileTreeEntry{}}
		all := map[string]bool{}
		var build func(sha, prefix string, depth int)
		build = func(sha, prefix string, depth int) {
			entries := []model.FileTreeEntry{{Path: "f.vim", Type: model.BlobEntry}}
			all[prefix+"f.vim"] = true
			if depth < 8 {
				for i := 0; i < 2; i++ {
					child := fmt.Sprintf("%s%d", sha, i)
					dir := fmt.Sprintf("d%d", i)
					entries = append(entries, model.FileTreeEntry{Path: dir, Type: model.TreeEntry, SHA: child})
					build(child, prefix+dir+"/", depth+1)
				}
			}
			trees.trees[sha] = entries
		}
		build("root", "", 0)
		walker := NewTreeWalker(trees, DefaultTreeBudget, discardLogger())

		files, complete := walker.ListFiles(context.Background(), "o", "r", "root")

		assert.True(t, complete, "running out of budget is not a failure")
		assert.Equal(t, DefaultTreeBudget, trees.calls)
		assert.Len(t, files, DefaultTreeBudget)
		for _, f := range files {
			assert.True(t, all[f.Path], "unexpected path %s", f.Path)
		}
	})

	t.Run("failed subtrees still consume budget", func(t *testing.T) {
		entries := make([]model.FileTreeEntry, 0, 30)
		for i := 0; i < 30; i++ {
			entries = append(entries, model.FileTreeEntry{Path: fmt.Sprintf("missing%d", i), Type: model.TreeEntry, SHA: fmt.Sprintf("gone%d", i)})
		}
		trees := &fakeTrees{trees: map[string][]model.FileTreeEntry{"main": entries}}
		walker := NewTreeWalker(trees, 5, discardLogger())

		files, complete := walker.ListFiles(context.Background(), "o", "r", "main")

		assert.Empty(t, files)
		assert.True(t, complete, "missing subtrees are not transient")
		assert.Equal(t, 5, trees.calls)
	})

	t.Run("transient subtree failure marks the listing incomplete", func(t *testing.T) {
		trees := &fakeTrees{
			trees: map[string][]model.FileTreeEntry{
				"main": {
					{Path: "colors", Type: model.TreeEntry, SHA: "t1"},
					{Path: "lua", Type: model.TreeEntry, SHA: "t2"},
				},
				"t2": {{Path: "init.lua", Type: model.BlobEntry}},
			},
			failed: map[string]bool{"t1": true},
		}
		walker := NewTreeWalker(trees, DefaultTreeBudget, discardLogger())

		files, complete := walker.ListFiles(context.Background(), "o", "r", "main")

		assert.False(t, complete)
		assert.Len(t, files, 1)
		assert.Equal(t, 3, trees.calls, "remaining subtrees are still walked")
	})

	t.Run("budget is reset per walk", func(t *testing.T) {
		trees := &fakeTrees{trees: map[string][]model.FileTreeEntry{
			"main": {{Path: "a.vim", Type: model.BlobEntry}},
		}}
		walker := NewTreeWalker(trees, 1, discardLogger())

		first, _ := walker.ListFiles(context.Background(), "o", "r", "main")
		second, _ := walker.ListFiles(context.Background(), "o", "r2", "main")

		assert.Len(t, first, 1)
		assert.Len(t, second, 1)
	})
}
