// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pdiddy/cad-export/pkg/types"
)

// Expand turns patterns into document sources, in pattern order. Relative
// patterns are evaluated against workDir; "**" matches any number of
// directories. Directories are never matched. With dedupe false a path
// matched by several patterns appears once per match.
func Expand(workDir string, patterns []string, dedupe bool) ([]types.DocumentSource, error) {
	seen := make(map[string]bool)
	var out []types.DocumentSource

	for _, pattern := range patterns {
		matches, err := glob(workDir, pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", ErrConfig, pattern, err)
		}
		for _, m := range matches {
			key := filepath.Clean(m.path)
			if dedupe && seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, types.DocumentSource{
				Kind: types.KindForPath(m.path),
				Path: m.path,
				Rel:  m.rel,
			})
		}
	}
	return out, nil
}

type match struct {
	path string // what the host opens
	rel  string // what output targets are built from
}

// glob expands one pattern. Like shell globbing, wildcards never match
// names starting with "." and "**" never descends into such directories;
// a pattern element that itself starts with "." can still name them.
func glob(workDir, pattern string) ([]match, error) {
	if filepath.IsAbs(pattern) || escapes(filepath.Clean(pattern)) {
		abs := pattern
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(workDir, pattern)
		}
		paths, err := doublestar.FilepathGlob(abs, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		base, rest := doublestar.SplitPattern(filepath.ToSlash(filepath.Clean(abs)))
		out := make([]match, 0, len(paths))
		for _, p := range paths {
			under, err := filepath.Rel(filepath.FromSlash(base), p)
			if err != nil || !visible(rest, under) {
				continue
			}
			out = append(out, match{path: p, rel: relTo(workDir, p)})
		}
		return out, nil
	}

	clean := filepath.ToSlash(filepath.Clean(pattern))
	paths, err := doublestar.Glob(os.DirFS(workDir), clean, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	out := make([]match, 0, len(paths))
	for _, p := range paths {
		if !visible(clean, p) {
			continue
		}
		rel := filepath.FromSlash(p)
		out = append(out, match{path: filepath.Join(workDir, rel), rel: rel})
	}
	return out, nil
}

// visible reports whether every hidden element of path is named by a
// pattern element that starts with ".".
func visible(pattern, path string) bool {
	var dotted []string
	for _, seg := range strings.Split(filepath.ToSlash(pattern), "/") {
		if hidden(seg) {
			dotted = append(dotted, seg)
		}
	}
	for _, el := range strings.Split(filepath.ToSlash(path), "/") {
		if !hidden(el) {
			continue
		}
		named := false
		for _, seg := range dotted {
			if ok, _ := doublestar.Match(seg, el); ok {
				named = true
				break
			}
		}
		if !named {
			return false
		}
	}
	return true
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// relTo returns p relative to workDir. Paths outside workDir lose their
// volume, leading separator and leading ".." elements so targets always
// land under the output root.
func relTo(workDir, p string) string {
	if r, err := filepath.Rel(workDir, p); err == nil && !escapes(r) {
		return r
	}
	p = filepath.Clean(p)
	p = strings.TrimPrefix(p, filepath.VolumeName(p))
	p = strings.TrimLeft(p, string(filepath.Separator))
	for escapes(p) {
		p = strings.TrimPrefix(strings.TrimPrefix(p, ".."), string(filepath.Separator))
	}
	return p
}

func escapes(p string) bool {
	return p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator))
}

// OutputTarget is the file written for rel in format under root.
func OutputTarget(root, rel, format string) string {
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(root, stem+"."+format)
}
