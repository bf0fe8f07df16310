package transfer

import (
	"context"
	"fmt"

	"github.com/versopress/verso/internal/feat/media"
	"github.com/versopress/verso/internal/feat/page"
	"github.com/versopress/verso/pkg/vs/logger"
)

// Store is the slice of the page service the transfer pipeline depends on.
type Store interface {
	GetPage(ctx context.Context, siteID, id int64) (*page.Page, error)
	GetPageBySlug(ctx context.Context, siteID int64, slug string) (*page.Page, error)
	ListPages(ctx context.Context, siteID int64) ([]*page.Page, error)
	CreatePage(ctx context.Context, p *page.Page) error
	UpdatePage(ctx context.Context, p *page.Page) error
	HasChildren(ctx context.Context, pageID int64) (bool, error)
	AncestorSlugs(ctx context.Context, p *page.Page) ([]string, error)
	GetOrCreateTag(ctx context.Context, siteID int64, slug string) (*page.Tag, error)
	SetPageTags(ctx context.Context, pageID int64, tagIDs []int64) error
	GetPageTags(ctx context.Context, pageID int64) ([]*page.Tag, error)
}

// ExportUnit is one exported page: its hierarchy-relative path, the
// rendered document, and the internal media assets it references.
type ExportUnit struct {
	Path    string
	Content string
	Media   []media.Key
}

// Exporter renders pages as portable frontmatter documents.
type Exporter struct {
	store Store
	log   logger.Logger
}

func NewExporter(store Store, log logger.Logger) *Exporter {
	return &Exporter{store: store, log: log}
}

// Export renders a single page. The returned path places the document
// within the site's hierarchy so that a later import can restore parent
// links even when the frontmatter is stripped by hand.
func (e *Exporter) Export(ctx context.Context, siteID, pageID int64) (*ExportUnit, error) {
	p, err := e.store.GetPage(ctx, siteID, pageID)
	if err != nil {
		return nil, err
	}
	return e.exportPage(ctx, p)
}

func (e *Exporter) exportPage(ctx context.Context, p *page.Page) (*ExportUnit, error) {
	ancestors, err := e.store.AncestorSlugs(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve ancestors of page %q: %w", p.Slug, err)
	}

	hasChildren, err := e.store.HasChildren(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	doc := &Document{Frontmatter: frontmatterOf(p, ancestors), Body: p.Body}
	content, err := EncodeDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("cannot encode page %q: %w", p.Slug, err)
	}

	keys, err := ExtractMediaKeys(p.Sections)
	if err != nil {
		return nil, fmt.Errorf("cannot extract media from page %q: %w", p.Slug, err)
	}

	return &ExportUnit{
		Path:    PagePath(p.Slug, ancestors, hasChildren),
		Content: content,
		Media:   keys,
	}, nil
}

// frontmatterOf projects a page onto its portable header. The parent is
// referenced by slug (the last ancestor); tags are referenced by slug in
// the store's stable order.
func frontmatterOf(p *page.Page, ancestors []string) Frontmatter {
	fm := Frontmatter{
		Title:           p.Title,
		Slug:            p.Slug,
		Description:     p.Description,
		Status:          p.Status,
		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		OGImage:         p.OGImage,
		CanonicalURL:    p.CanonicalURL,
		Noindex:         p.Noindex,
		HideHeader:      p.HideHeader,
		HideFooter:      p.HideFooter,
		Sections:        p.Sections,
	}
	if len(ancestors) > 0 {
		fm.ParentSlug = ancestors[len(ancestors)-1]
	}
	for _, tag := range p.Tags {
		fm.Tags = append(fm.Tags, tag.Slug)
	}
	return fm
}
