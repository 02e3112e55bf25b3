// internal/github/raw.go
package github

import (
	"fmt"
	"strings"
)

// RawContentURL builds the raw.githubusercontent.com URL of a file on branch.
// Whitespace in the path is encoded as %20.
func RawContentURL(owner, name, branch, path string) string {
	return urlify(fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", owner, name, branch, path))
}

func urlify(s string) string {
	return strings.Join(strings.Fields(s), "%20")
}
