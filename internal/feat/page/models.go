package page

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/versopress/verso/pkg/vs/validation"
)

// Publication statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// MaxLevel is the deepest allowed nesting level. Levels are 0 (root),
// 1 (child) and 2 (grandchild); the page tree is capped at three levels.
const MaxLevel = 2

// Site is the scoping unit for pages, tags and media.
type Site struct {
	ID        int64     `json:"id"`
	ShortID   string    `json:"short_id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSite creates a new Site instance.
func NewSite(name, slug string) *Site {
	now := time.Now()
	return &Site{
		ShortID:   uuid.New().String()[:8],
		Name:      name,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Section is one typed content block in a page's ordered section list.
// Beyond the "type" tag its shape is owned by the rendering layer; pages
// carry sections opaquely and must preserve them exactly.
type Section map[string]any

// Type returns the section's type tag, or "" if absent.
func (s Section) Type() string {
	t, _ := s["type"].(string)
	return t
}

// SectionList is a page's ordered list of sections.
type SectionList []Section

// Page is a node in a site's page tree.
type Page struct {
	ID          int64       `json:"id"`
	SiteID      int64       `json:"site_id"`
	ShortID     string      `json:"short_id"`
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Body        string      `json:"body,omitempty"`
	Sections    SectionList `json:"sections"`
	Status      string      `json:"status"`

	// SEO metadata
	MetaTitle       string `json:"meta_title,omitempty"`
	MetaDescription string `json:"meta_description,omitempty"`
	OGImage         string `json:"og_image,omitempty"`
	CanonicalURL    string `json:"canonical_url,omitempty"`
	Noindex         bool   `json:"noindex"`

	// Layout flags
	HideHeader bool `json:"hide_header"`
	HideFooter bool `json:"hide_footer"`

	Level    int    `json:"level"`
	Position int    `json:"position"`
	ParentID *int64 `json:"parent_id,omitempty"`

	Tags []*Tag `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPage creates a new root-level draft Page.
func NewPage(siteID int64, slug, title string) *Page {
	now := time.Now()
	return &Page{
		SiteID:    siteID,
		ShortID:   uuid.New().String()[:8],
		Slug:      slug,
		Title:     title,
		Sections:  SectionList{},
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the page's own field invariants. Parent linkage and level
// consistency are enforced by the service, which recomputes the level from a
// fresh parent lookup.
func (p *Page) Validate() validation.ValidationErrors {
	var errs validation.ValidationErrors

	if !validation.IsRequired(p.Title) {
		errs.Add("title", "is required")
	}
	if !validation.IsRequired(p.Slug) {
		errs.Add("slug", "is required")
	}
	if p.Slug != Slugify(p.Slug) {
		errs.Add("slug", "must be lowercase alphanumeric with hyphens")
	}
	if !ValidStatus(p.Status) {
		errs.Add("status", "must be draft or published")
	}
	if p.Level < 0 || p.Level > MaxLevel {
		errs.Add("level", "must be between 0 and 2")
	}

	return errs
}

// ValidStatus reports whether s is a known publication status.
func ValidStatus(s string) bool {
	return s == StatusDraft || s == StatusPublished
}

// Tag is a named label attached to pages many-to-many.
type Tag struct {
	ID        int64     `json:"id"`
	SiteID    int64     `json:"site_id"`
	ShortID   string    `json:"short_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTag creates a new Tag instance.
func NewTag(siteID int64, name string) *Tag {
	now := time.Now()
	return &Tag{
		SiteID:    siteID,
		ShortID:   uuid.New().String()[:8],
		Name:      name,
		Slug:      Slugify(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a string to a URL-friendly slug.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = nonAlphanumericRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
