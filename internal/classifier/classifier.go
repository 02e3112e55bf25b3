// internal/classifier/classifier.go
package classifier

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"colorscheme-indexer/internal/github"
	"colorscheme-indexer/internal/model"
)

// DefaultCollectionThreshold is the candidate file count above which a
// repository is treated as a bulk collection.
const DefaultCollectionThreshold = 20

var (
	targetPathRegex = regexp.MustCompile(`^.*\.(vim|erb|lua)$`)
	// matches let g:colors_name = 'x', let colors_name = "x" and vim.g.colors_name = "x"
	nameRegex = regexp.MustCompile(`(let (g:)?|vim\.g\.)colors?_name ?= ?('|")([a-zA-Z0-9_-]+)('|")`)
)

// ContentFetcher returns the raw content of a file URL.
type ContentFetcher interface {
	GetRaw(ctx context.Context, url string) github.Result[string]
}

// Classification is the verdict on a repository's files.
type Classification struct {
	Names      []string
	Valid      bool
	Candidates int
	// Collection is set when the candidate count exceeded the threshold.
	Collection bool
	// Incomplete is set when a candidate could not be fetched for a
	// transient reason, so a missing name proves nothing.
	Incomplete bool
	// IsLua and IsVim tell which kind of file declared a name.
	IsLua bool
	IsVim bool
}

// Settled reports whether the verdict can be stored. A repository without
// names is only settled when every file was listed and fetched.
func (c Classification) Settled(listingComplete bool) bool {
	return c.Valid || c.Collection || (listingComplete && !c.Incomplete)
}

// Classifier decides whether a repository holds color schemes and names them.
type Classifier struct {
	fetcher   ContentFetcher
	threshold int
	logger    *slog.Logger
}

func New(fetcher ContentFetcher, threshold int, logger *slog.Logger) *Classifier {
	if threshold <= 0 {
		threshold = DefaultCollectionThreshold
	}
	return &Classifier{fetcher: fetcher, threshold: threshold, logger: logger}
}

// Candidates returns the files whose extension marks them as possible color schemes.
func Candidates(files []model.FileTreeEntry) []model.FileTreeEntry {
	var candidates []model.FileTreeEntry
	for _, f := range files {
		if targetPathRegex.MatchString(f.Path) {
			candidates = append(candidates, f)
		}
	}
	return candidates
}

// ExtractName returns the color scheme name declared in content.
func ExtractName(content string) (string, bool) {
	m := nameRegex.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[4], true
}

// Classify fetches every candidate file and collects the declared names.
// Repositories with more candidates than the threshold are rejected without
// fetching anything.
func (c *Classifier) Classify(ctx context.Context, owner, name, branch string, files []model.FileTreeEntry) Classification {
	logger := c.logger.With("owner", owner, "repo", name)
	candidates := Candidates(files)

	if len(candidates) > c.threshold {
		logger.Info("Repository contains too many color scheme files; probably a collection", "candidates", len(candidates))
		return Classification{Names: []string{}, Candidates: len(candidates), Collection: true}
	}

	result := Classification{Names: []string{}, Candidates: len(candidates)}
	for _, f := range candidates {
		res := c.fetcher.GetRaw(ctx, github.RawContentURL(owner, name, branch, f.Path))
		if res.Outcome == github.Transient {
			result.Incomplete = true
		}
		if !res.OK() {
			continue
		}
		n, found := ExtractName(res.Value)
		if !found {
			continue
		}
		if strings.HasSuffix(f.Path, ".lua") {
			result.IsLua = true
		} else {
			result.IsVim = true
		}
		if slices.Contains(result.Names, n) {
			continue
		}
		logger.Debug("Found color scheme name", "name", n, "path", f.Path)
		result.Names = append(result.Names, n)
	}

	result.Valid = len(result.Names) > 0
	return result
}
