package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/versopress/verso/internal/feat/page"
	"github.com/versopress/verso/pkg/vs/logger"
)

// Mode selects how an import treats an existing page with the same slug.
type Mode string

const (
	// ModeCreate fails with a slug conflict when the page already exists.
	ModeCreate Mode = "create"

	// ModeUpsert updates the existing page in place, preserving its
	// identity (id, short id, creation time, position).
	ModeUpsert Mode = "upsert"
)

// ParseMode validates a mode string, defaulting to create when empty.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeCreate:
		return ModeCreate, nil
	case ModeUpsert:
		return ModeUpsert, nil
	default:
		return "", fmt.Errorf("unknown import mode %q", s)
	}
}

// ImportOptions carries per-document import context.
type ImportOptions struct {
	Mode Mode

	// PathChain is the ancestor slug chain implied by the document's
	// location when it arrives from an archive or batch with paths.
	// Explicit frontmatter parentSlug wins over it.
	PathChain []string
}

// ImportResult reports the outcome of importing one document.
type ImportResult struct {
	Page     *page.Page
	Created  bool
	Warnings []string
}

// Importer turns frontmatter documents back into stored pages.
type Importer struct {
	store Store
	log   logger.Logger
}

func NewImporter(store Store, log logger.Logger) *Importer {
	return &Importer{store: store, log: log}
}

// Import decodes and persists one document within a site.
//
// The document's slug defaults to a slugified title. The parent is
// resolved by slug, from the frontmatter first and the path chain second;
// a parent slug that does not resolve fails with ErrParentNotFound. Tags
// are created on first use. In create mode an existing slug fails with
// page.ErrSlugConflict; in upsert mode the existing page is rewritten
// while keeping its identity.
func (im *Importer) Import(ctx context.Context, siteID int64, content string, opts ImportOptions) (*ImportResult, error) {
	doc, err := DecodeDocument(content)
	if err != nil {
		return nil, err
	}
	fm := doc.Frontmatter

	slug := fm.Slug
	if slug == "" {
		slug = page.Slugify(fm.Title)
	}
	if fm.Status != "" && !page.ValidStatus(fm.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedDocument, fm.Status)
	}

	var warnings []string
	for _, section := range fm.Sections {
		if t := section.Type(); t != "" && !page.KnownSectionType(t) {
			warnings = append(warnings, fmt.Sprintf("unknown section type %q", t))
		}
	}

	parentSlug := fm.ParentSlug
	if parentSlug == "" && len(opts.PathChain) > 0 {
		parentSlug = opts.PathChain[len(opts.PathChain)-1]
	} else if fm.ParentSlug != "" && len(opts.PathChain) > 0 &&
		fm.ParentSlug != opts.PathChain[len(opts.PathChain)-1] {
		warnings = append(warnings, fmt.Sprintf("frontmatter parent %q overrides path parent %q",
			fm.ParentSlug, opts.PathChain[len(opts.PathChain)-1]))
	}

	var parentID *int64
	if parentSlug != "" {
		parent, err := im.store.GetPageBySlug(ctx, siteID, parentSlug)
		if err != nil {
			if errors.Is(err, page.ErrNotFound) {
				return nil, fmt.Errorf("parent %q: %w", parentSlug, ErrParentNotFound)
			}
			return nil, err
		}
		parentID = &parent.ID
	}

	tagIDs := make([]int64, 0, len(fm.Tags))
	var tags []*page.Tag
	for _, tagSlug := range fm.Tags {
		tag, err := im.store.GetOrCreateTag(ctx, siteID, page.Slugify(tagSlug))
		if err != nil {
			return nil, err
		}
		tagIDs = append(tagIDs, tag.ID)
		tags = append(tags, tag)
	}

	existing, err := im.store.GetPageBySlug(ctx, siteID, slug)
	switch {
	case err == nil:
		if opts.Mode != ModeUpsert {
			return nil, fmt.Errorf("page slug %q: %w", slug, page.ErrSlugConflict)
		}
	case errors.Is(err, page.ErrNotFound):
		existing = nil
	default:
		return nil, err
	}

	created := existing == nil
	target := existing
	if created {
		target = page.NewPage(siteID, slug, fm.Title)
	}
	applyFrontmatter(target, fm, doc.Body, parentID)

	if created {
		err = im.store.CreatePage(ctx, target)
	} else {
		err = im.store.UpdatePage(ctx, target)
	}
	if err != nil {
		return nil, err
	}

	if err := im.store.SetPageTags(ctx, target.ID, tagIDs); err != nil {
		return nil, err
	}
	target.Tags = tags

	im.log.Debugf("Imported page %q (site %d, created=%t)", slug, siteID, created)
	return &ImportResult{Page: target, Created: created, Warnings: warnings}, nil
}

// applyFrontmatter overwrites a page's content fields from a document.
// Identity fields (id, short id, created_at, position) are left alone so
// upserts keep pages stable across round trips.
func applyFrontmatter(p *page.Page, fm Frontmatter, body string, parentID *int64) {
	p.Title = fm.Title
	p.Description = fm.Description
	p.Body = body
	p.MetaTitle = fm.MetaTitle
	p.MetaDescription = fm.MetaDescription
	p.OGImage = fm.OGImage
	p.CanonicalURL = fm.CanonicalURL
	p.Noindex = fm.Noindex
	p.HideHeader = fm.HideHeader
	p.HideFooter = fm.HideFooter
	p.ParentID = parentID

	if fm.Status != "" {
		p.Status = fm.Status
	}
	if fm.Sections != nil {
		p.Sections = fm.Sections
	} else {
		p.Sections = page.SectionList{}
	}
}
