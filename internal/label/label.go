// Package label turns bazel labels from a dependency dump into plain
// relative paths.
//
// "//tensorflow/core:lib.cc" becomes "tensorflow/core/lib.cc". Labels that
// point into an external repository ("@com_google_protobuf//:foo") are not
// buildable here; they are split off and only reported.
package label

import (
	"regexp"
	"slices"
	"strings"
)

const (
	rootMarker = "//"
	targetSep  = ":"
)

var externalRe = regexp.MustCompile(`^@(\w*)`)

// Record is one label of a dump after parsing.
type Record struct {
	Raw      string
	Path     string // empty for external records
	External bool
	Repo     string // repository name of an external record, may be empty
}

// Parse classifies and normalizes a single label.
func Parse(raw string) Record {
	if m := externalRe.FindStringSubmatch(raw); m != nil {
		return Record{Raw: raw, External: true, Repo: m[1]}
	}
	return Record{Raw: raw, Path: Clean(raw)}
}

// Clean rewrites a label into a relative filesystem path. Cleaning an already
// clean path returns it unchanged.
func Clean(raw string) string {
	p := strings.TrimPrefix(raw, rootMarker)
	return strings.ReplaceAll(p, targetSep, "/")
}

// Normalize parses every label, keeping the order of local paths. The second
// result is the deduplicated, sorted set of external repository names.
func Normalize(raws []string) (paths []string, external []string) {
	seen := make(map[string]struct{})
	paths = make([]string, 0, len(raws))
	for _, raw := range raws {
		rec := Parse(raw)
		if !rec.External {
			paths = append(paths, rec.Path)
			continue
		}
		if _, ok := seen[rec.Repo]; !ok {
			seen[rec.Repo] = struct{}{}
			external = append(external, rec.Repo)
		}
	}
	slices.Sort(external)
	return paths, external
}
