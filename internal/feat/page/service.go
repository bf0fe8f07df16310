package page

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/versopress/verso/pkg/vs/config"
	"github.com/versopress/verso/pkg/vs/logger"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrSlugConflict is returned when a page slug is already taken within
	// its site, whether detected by lookup or by the store's uniqueness
	// constraint (the upsert race window).
	ErrSlugConflict = errors.New("slug already in use")

	// ErrHierarchyTooDeep is returned when a page would exceed the
	// three-level depth cap.
	ErrHierarchyTooDeep = errors.New("hierarchy too deep")
)

// Service defines the page persistence service interface.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Site operations
	CreateSite(ctx context.Context, site *Site) error
	GetSite(ctx context.Context, id int64) (*Site, error)
	GetSiteBySlug(ctx context.Context, slug string) (*Site, error)
	ListSites(ctx context.Context) ([]*Site, error)

	// Page operations
	CreatePage(ctx context.Context, page *Page) error
	GetPage(ctx context.Context, siteID, id int64) (*Page, error)
	GetPageBySlug(ctx context.Context, siteID int64, slug string) (*Page, error)
	ListPages(ctx context.Context, siteID int64) ([]*Page, error)
	UpdatePage(ctx context.Context, page *Page) error
	DeletePage(ctx context.Context, siteID, id int64) error
	HasChildren(ctx context.Context, pageID int64) (bool, error)
	AncestorSlugs(ctx context.Context, page *Page) ([]string, error)

	// Tag operations
	GetOrCreateTag(ctx context.Context, siteID int64, slug string) (*Tag, error)
	ListTags(ctx context.Context, siteID int64) ([]*Tag, error)
	SetPageTags(ctx context.Context, pageID int64, tagIDs []int64) error
	GetPageTags(ctx context.Context, pageID int64) ([]*Tag, error)
}

// DBProvider provides access to the database.
type DBProvider interface {
	GetDB() *sql.DB
}

type service struct {
	dbProvider DBProvider
	db         *sql.DB
	cfg        *config.Config
	log        logger.Logger
}

// NewService creates a new page service.
func NewService(dbProvider DBProvider, cfg *config.Config, log logger.Logger) Service {
	return &service{
		dbProvider: dbProvider,
		cfg:        cfg,
		log:        log,
	}
}

func (s *service) Start(ctx context.Context) error {
	s.log.Info("Page service started")
	return nil
}

func (s *service) Stop(ctx context.Context) error {
	s.log.Info("Page service stopped")
	return nil
}

func (s *service) ensureDB() *sql.DB {
	if s.db == nil && s.dbProvider != nil {
		s.db = s.dbProvider.GetDB()
	}
	return s.db
}

// --- Site Operations ---

func (s *service) CreateSite(ctx context.Context, site *Site) error {
	db := s.ensureDB()

	res, err := db.ExecContext(ctx,
		`INSERT INTO sites (short_id, slug, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		site.ShortID, site.Slug, site.Name, site.CreatedAt, site.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("site slug %q: %w", site.Slug, ErrSlugConflict)
		}
		return fmt.Errorf("cannot create site: %w", err)
	}

	site.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("cannot read site id: %w", err)
	}
	return nil
}

func (s *service) GetSite(ctx context.Context, id int64) (*Site, error) {
	db := s.ensureDB()
	return scanSite(db.QueryRowContext(ctx,
		`SELECT id, short_id, slug, name, created_at, updated_at FROM sites WHERE id = ?`, id))
}

func (s *service) GetSiteBySlug(ctx context.Context, slug string) (*Site, error) {
	db := s.ensureDB()
	return scanSite(db.QueryRowContext(ctx,
		`SELECT id, short_id, slug, name, created_at, updated_at FROM sites WHERE slug = ?`, slug))
}

func (s *service) ListSites(ctx context.Context) ([]*Site, error) {
	db := s.ensureDB()

	rows, err := db.QueryContext(ctx,
		`SELECT id, short_id, slug, name, created_at, updated_at FROM sites ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("cannot list sites: %w", err)
	}
	defer rows.Close()

	var sites []*Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// --- Page Operations ---

const pageColumns = `id, site_id, short_id, slug, title, description, body, sections, status,
	meta_title, meta_description, og_image, canonical_url, noindex,
	hide_header, hide_footer, level, position, parent_id, created_at, updated_at`

func (s *service) CreatePage(ctx context.Context, page *Page) error {
	db := s.ensureDB()

	if err := s.resolveLevel(ctx, page); err != nil {
		return err
	}
	if errs := page.Validate(); errs.HasErrors() {
		return fmt.Errorf("invalid page: %w", errs)
	}

	sections, err := marshalSections(page.Sections)
	if err != nil {
		return err
	}

	if page.Position == 0 {
		page.Position = s.nextPosition(ctx, page.SiteID, page.ParentID)
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO pages (site_id, short_id, slug, title, description, body, sections, status,
			meta_title, meta_description, og_image, canonical_url, noindex,
			hide_header, hide_footer, level, position, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		page.SiteID, page.ShortID, page.Slug, page.Title, page.Description, page.Body, sections, page.Status,
		page.MetaTitle, page.MetaDescription, page.OGImage, page.CanonicalURL, boolToInt(page.Noindex),
		boolToInt(page.HideHeader), boolToInt(page.HideFooter), page.Level, page.Position, page.ParentID,
		page.CreatedAt, page.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("page slug %q: %w", page.Slug, ErrSlugConflict)
		}
		return fmt.Errorf("cannot create page: %w", err)
	}

	page.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("cannot read page id: %w", err)
	}
	return nil
}

func (s *service) GetPage(ctx context.Context, siteID, id int64) (*Page, error) {
	db := s.ensureDB()

	page, err := scanPage(db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE site_id = ? AND id = ?`, siteID, id))
	if err != nil {
		return nil, err
	}

	page.Tags, err = s.GetPageTags(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *service) GetPageBySlug(ctx context.Context, siteID int64, slug string) (*Page, error) {
	db := s.ensureDB()

	page, err := scanPage(db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE site_id = ? AND slug = ?`, siteID, slug))
	if err != nil {
		return nil, err
	}

	page.Tags, err = s.GetPageTags(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// ListPages returns the site's pages as a flat list ordered by level then id.
// Tags are not populated; callers needing them load pages individually.
func (s *service) ListPages(ctx context.Context, siteID int64) ([]*Page, error) {
	db := s.ensureDB()

	rows, err := db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE site_id = ? ORDER BY level, id`, siteID)
	if err != nil {
		return nil, fmt.Errorf("cannot list pages: %w", err)
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func (s *service) UpdatePage(ctx context.Context, page *Page) error {
	db := s.ensureDB()

	if err := s.resolveLevel(ctx, page); err != nil {
		return err
	}
	if errs := page.Validate(); errs.HasErrors() {
		return fmt.Errorf("invalid page: %w", errs)
	}

	sections, err := marshalSections(page.Sections)
	if err != nil {
		return err
	}

	page.UpdatedAt = time.Now()

	res, err := db.ExecContext(ctx,
		`UPDATE pages SET slug = ?, title = ?, description = ?, body = ?, sections = ?, status = ?,
			meta_title = ?, meta_description = ?, og_image = ?, canonical_url = ?, noindex = ?,
			hide_header = ?, hide_footer = ?, level = ?, position = ?, parent_id = ?, updated_at = ?
		WHERE site_id = ? AND id = ?`,
		page.Slug, page.Title, page.Description, page.Body, sections, page.Status,
		page.MetaTitle, page.MetaDescription, page.OGImage, page.CanonicalURL, boolToInt(page.Noindex),
		boolToInt(page.HideHeader), boolToInt(page.HideFooter), page.Level, page.Position, page.ParentID,
		page.UpdatedAt, page.SiteID, page.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("page slug %q: %w", page.Slug, ErrSlugConflict)
		}
		return fmt.Errorf("cannot update page: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cannot update page: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *service) DeletePage(ctx context.Context, siteID, id int64) error {
	db := s.ensureDB()

	if _, err := db.ExecContext(ctx, `DELETE FROM pages WHERE site_id = ? AND id = ?`, siteID, id); err != nil {
		return fmt.Errorf("cannot delete page: %w", err)
	}
	return nil
}

func (s *service) HasChildren(ctx context.Context, pageID int64) (bool, error) {
	db := s.ensureDB()

	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM pages WHERE parent_id = ?`, pageID).Scan(&n); err != nil {
		return false, fmt.Errorf("cannot count children: %w", err)
	}
	return n > 0, nil
}

// AncestorSlugs returns the page's ancestor chain slugs in root-to-leaf
// order, excluding the page itself. The walk is bounded by the depth cap.
func (s *service) AncestorSlugs(ctx context.Context, page *Page) ([]string, error) {
	db := s.ensureDB()

	var chain []string
	parentID := page.ParentID
	for hops := 0; parentID != nil && hops < MaxLevel; hops++ {
		var slug string
		var next sql.NullInt64
		err := db.QueryRowContext(ctx,
			`SELECT slug, parent_id FROM pages WHERE id = ?`, *parentID).Scan(&slug, &next)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("ancestor %d: %w", *parentID, ErrNotFound)
			}
			return nil, fmt.Errorf("cannot load ancestor: %w", err)
		}

		chain = append([]string{slug}, chain...)
		if !next.Valid {
			break
		}
		id := next.Int64
		parentID = &id
	}

	return chain, nil
}

// --- Tag Operations ---

func (s *service) GetOrCreateTag(ctx context.Context, siteID int64, slug string) (*Tag, error) {
	db := s.ensureDB()

	tag, err := scanTag(db.QueryRowContext(ctx,
		`SELECT id, site_id, short_id, name, slug, created_at, updated_at FROM tags WHERE site_id = ? AND slug = ?`,
		siteID, slug))
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tag = NewTag(siteID, slug)
	tag.Slug = slug

	res, err := db.ExecContext(ctx,
		`INSERT INTO tags (site_id, short_id, name, slug, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		tag.SiteID, tag.ShortID, tag.Name, tag.Slug, tag.CreatedAt, tag.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a create race; the tag exists now.
			return s.GetOrCreateTag(ctx, siteID, slug)
		}
		return nil, fmt.Errorf("cannot create tag: %w", err)
	}

	tag.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("cannot read tag id: %w", err)
	}
	return tag, nil
}

func (s *service) ListTags(ctx context.Context, siteID int64) ([]*Tag, error) {
	db := s.ensureDB()

	rows, err := db.QueryContext(ctx,
		`SELECT id, site_id, short_id, name, slug, created_at, updated_at FROM tags WHERE site_id = ? ORDER BY slug`,
		siteID)
	if err != nil {
		return nil, fmt.Errorf("cannot list tags: %w", err)
	}
	defer rows.Close()

	return collectTags(rows)
}

func (s *service) SetPageTags(ctx context.Context, pageID int64, tagIDs []int64) error {
	db := s.ensureDB()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cannot begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM page_tags WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("cannot clear page tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO page_tags (page_id, tag_id) VALUES (?, ?)`, pageID, tagID); err != nil {
			return fmt.Errorf("cannot attach tag %d: %w", tagID, err)
		}
	}

	return tx.Commit()
}

func (s *service) GetPageTags(ctx context.Context, pageID int64) ([]*Tag, error) {
	db := s.ensureDB()

	rows, err := db.QueryContext(ctx,
		`SELECT t.id, t.site_id, t.short_id, t.name, t.slug, t.created_at, t.updated_at
		FROM tags t JOIN page_tags pt ON pt.tag_id = t.id
		WHERE pt.page_id = ? ORDER BY t.slug`, pageID)
	if err != nil {
		return nil, fmt.Errorf("cannot load page tags: %w", err)
	}
	defer rows.Close()

	return collectTags(rows)
}

// --- Helpers ---

// resolveLevel recomputes the page's level from a fresh parent lookup. The
// caller-supplied level is never trusted; combined with the depth cap this
// keeps parent cycles structurally unreachable.
func (s *service) resolveLevel(ctx context.Context, page *Page) error {
	if page.ParentID == nil {
		page.Level = 0
		return nil
	}

	parent, err := s.GetPage(ctx, page.SiteID, *page.ParentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("parent page %d: %w", *page.ParentID, ErrNotFound)
		}
		return err
	}
	if parent.ID == page.ID {
		return fmt.Errorf("page %q cannot be its own parent: %w", page.Slug, ErrHierarchyTooDeep)
	}
	if parent.Level+1 > MaxLevel {
		return fmt.Errorf("parent %q is already at level %d: %w", parent.Slug, parent.Level, ErrHierarchyTooDeep)
	}

	page.Level = parent.Level + 1
	return nil
}

func (s *service) nextPosition(ctx context.Context, siteID int64, parentID *int64) int {
	db := s.ensureDB()

	var pos int
	// "parent_id IS ?" matches NULL parents when parentID is nil.
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM pages WHERE site_id = ? AND parent_id IS ?`,
		siteID, parentID).Scan(&pos)
	if err != nil {
		return 0
	}
	return pos
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*Site, error) {
	var site Site
	err := row.Scan(&site.ID, &site.ShortID, &site.Slug, &site.Name, &site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cannot scan site: %w", err)
	}
	return &site, nil
}

func scanPage(row rowScanner) (*Page, error) {
	var p Page
	var sections string
	var noindex, hideHeader, hideFooter int64
	var parentID sql.NullInt64

	err := row.Scan(&p.ID, &p.SiteID, &p.ShortID, &p.Slug, &p.Title, &p.Description, &p.Body,
		&sections, &p.Status, &p.MetaTitle, &p.MetaDescription, &p.OGImage, &p.CanonicalURL,
		&noindex, &hideHeader, &hideFooter, &p.Level, &p.Position, &parentID,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cannot scan page: %w", err)
	}

	p.Noindex = noindex == 1
	p.HideHeader = hideHeader == 1
	p.HideFooter = hideFooter == 1
	if parentID.Valid {
		id := parentID.Int64
		p.ParentID = &id
	}

	if err := json.Unmarshal([]byte(sections), &p.Sections); err != nil {
		return nil, fmt.Errorf("cannot decode sections for page %d: %w", p.ID, err)
	}
	if p.Sections == nil {
		p.Sections = SectionList{}
	}

	return &p, nil
}

func scanTag(row rowScanner) (*Tag, error) {
	var tag Tag
	err := row.Scan(&tag.ID, &tag.SiteID, &tag.ShortID, &tag.Name, &tag.Slug, &tag.CreatedAt, &tag.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cannot scan tag: %w", err)
	}
	return &tag, nil
}

func collectTags(rows *sql.Rows) ([]*Tag, error) {
	var tags []*Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func marshalSections(sections SectionList) (string, error) {
	if sections == nil {
		sections = SectionList{}
	}
	data, err := json.Marshal(sections)
	if err != nil {
		return "", fmt.Errorf("cannot encode sections: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
