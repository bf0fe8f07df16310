package transfer

import (
	"fmt"
	"path"
	"strings"

	"github.com/versopress/verso/internal/feat/page"
)

// PagePath computes the relative export path for a page.
//
// A root leaf page lives at {slug}.md; a nested page lives inside
// directories named by its ancestor slugs. A page that itself has children
// materializes at {chain}/{slug}/{slug}.md so its children can nest inside
// the directory bearing its own slug.
func PagePath(slug string, ancestors []string, hasChildren bool) string {
	segs := make([]string, 0, len(ancestors)+2)
	segs = append(segs, ancestors...)
	if hasChildren {
		segs = append(segs, slug)
	}
	segs = append(segs, slug+".md")
	return path.Join(segs...)
}

// ParsePagePath is the inverse of PagePath: the final segment (minus
// extension) is the slug, preceding segments are the ancestor chain in
// root-to-leaf order. The own-directory form ({chain}/{slug}/{slug}.md)
// collapses back to {chain}. A chain implying a level beyond the depth cap
// fails with ErrHierarchyTooDeep.
func ParsePagePath(rel string) (slug string, chain []string, err error) {
	rel = strings.TrimPrefix(path.Clean(strings.TrimPrefix(rel, "/")), "./")
	if rel == "" || rel == "." || strings.HasPrefix(rel, "..") {
		return "", nil, fmt.Errorf("invalid page path %q", rel)
	}
	if !strings.HasSuffix(rel, ".md") {
		return "", nil, fmt.Errorf("invalid page path %q: not a markdown file", rel)
	}

	segs := strings.Split(rel, "/")
	slug = strings.TrimSuffix(segs[len(segs)-1], ".md")
	if slug == "" {
		return "", nil, fmt.Errorf("invalid page path %q: empty slug", rel)
	}

	chain = segs[:len(segs)-1]
	if len(chain) > 0 && chain[len(chain)-1] == slug {
		chain = chain[:len(chain)-1]
	}
	for _, seg := range chain {
		if seg == "" {
			return "", nil, fmt.Errorf("invalid page path %q: empty directory segment", rel)
		}
	}

	if len(chain) > page.MaxLevel {
		return "", nil, fmt.Errorf("path %q implies level %d: %w", rel, len(chain), page.ErrHierarchyTooDeep)
	}

	return slug, chain, nil
}
