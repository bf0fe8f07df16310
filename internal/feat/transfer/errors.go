package transfer

import (
	"errors"

	"github.com/versopress/verso/internal/feat/page"
)

var (
	// ErrMalformedDocument is returned when a document has no frontmatter
	// block, the block is not valid YAML, or the mandatory title is missing.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrParentNotFound is returned when a document names a parent slug
	// that does not resolve within the target site.
	ErrParentNotFound = errors.New("parent page not found")

	// ErrArchiveTooLarge is returned when a generated archive exceeds the
	// configured size ceiling.
	ErrArchiveTooLarge = errors.New("archive exceeds size limit")
)

// errorKind maps a pipeline error to its report label, used in batch
// import reports and HTTP error codes.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedDocument):
		return "MalformedDocument"
	case errors.Is(err, ErrParentNotFound):
		return "ParentNotFound"
	case errors.Is(err, page.ErrHierarchyTooDeep):
		return "HierarchyTooDeep"
	case errors.Is(err, page.ErrSlugConflict):
		return "SlugConflict"
	case errors.Is(err, page.ErrNotFound):
		return "PageNotFound"
	case errors.Is(err, ErrArchiveTooLarge):
		return "ArchiveTooLarge"
	default:
		return "Internal"
	}
}
