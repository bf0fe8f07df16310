package page

import (
	"context"
	"errors"
	"testing"

	"github.com/versopress/verso/internal/testutil"
	"github.com/versopress/verso/pkg/vs/config"
	"github.com/versopress/verso/pkg/vs/logger"
)

func setupTestService(t *testing.T) Service {
	t.Helper()

	db := testutil.MustDB(t)
	svc := NewService(&testutil.TestDBProvider{DB: db}, &config.Config{}, logger.NewNoopLogger())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("cannot start service: %v", err)
	}
	t.Cleanup(func() { svc.Stop(context.Background()) })
	return svc
}

func createTestSite(t *testing.T, svc Service) *Site {
	t.Helper()

	site := NewSite("Test Site", "test-site")
	if err := svc.CreateSite(context.Background(), site); err != nil {
		t.Fatalf("cannot create test site: %v", err)
	}
	return site
}

func createTestPage(t *testing.T, svc Service, siteID int64, slug string, parentID *int64) *Page {
	t.Helper()

	p := NewPage(siteID, slug, "Page "+slug)
	p.ParentID = parentID
	if err := svc.CreatePage(context.Background(), p); err != nil {
		t.Fatalf("cannot create page %q: %v", slug, err)
	}
	return p
}

func TestCreateAndGetPage(t *testing.T) {
	svc := setupTestService(t)
	site := createTestSite(t, svc)
	ctx := context.Background()

	p := NewPage(site.ID, "about", "About Us")
	p.Description = "Who we are"
	p.Sections = SectionList{
		{"type": "hero", "heading": "About"},
		{"type": "cta", "label": "Contact", "href": "/contact"},
	}
	if err := svc.CreatePage(ctx, p); err != nil {
		t.Fatalf("CreatePage() error: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("page ID not assigned")
	}

	got, err := svc.GetPage(ctx, site.ID, p.ID)
	if err != nil {
		t.Fatalf("GetPage() error: %v", err)
	}
	if got.Slug != "about" || got.Title != "About Us" {
		t.Errorf("got slug=%q title=%q", got.Slug, got.Title)
	}
	if len(got.Sections) != 2 {
		t.Fatalf("sections not preserved: %v", got.Sections)
	}
	if got.Sections[0].Type() != "hero" || got.Sections[1].Type() != "cta" {
		t.Errorf("section order not preserved: %v", got.Sections)
	}
	if got.Level != 0 {
		t.Errorf("root page level = %d, want 0", got.Level)
	}
}

func TestGetPageNotFound(t *testing.T) {
	svc := setupTestService(t)
	site := createTestSite(t, svc)

	_, err := svc.GetPage(context.Background(), site.ID, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPage() error = %v, want ErrNotFound", err)
	}
}

func TestSlugUniquePerSite(t *testing.T) {
	svc := setupTestService(t)
	site := createTestSite(t, svc)
	ctx := context.Background()

	createTestPage(t, svc, site.ID, "pricing", nil)

	dup := NewPage(site.ID, "pricing", "Pricing Again")
	if err := svc.CreatePage(ctx, dup); !errors.Is(err, ErrSlugConflict) {
		t.Errorf("CreatePage() error = %v, want ErrSlugConflict", err)
	}

	// The same slug is fine in a different site.
	other := NewSite("Other", "other-site")
	if err := svc.CreateSite(ctx, other); err != nil {
		t.Fatalf("cannot create site: %v", err)
	}
	p := NewPage(other.ID, "pricing", "Pricing")
	if err := svc.CreatePage(ctx, p); err != nil {
		t.Errorf("CreatePage() in second site error: %v", err)
	}
}

func TestHierarchyLevels(t *testing.T) {
	svc := setupTestService(t)
	site := createTestSite(t, svc)
	ctx := context.Background()

	root := createTestPage(t, svc, site.ID, "services", nil)
	child := createTestPage(t, svc, site.ID, "web-design", &root.ID)
	grand := createTestPage(t, svc, site.ID, "portfolio", &child.ID)

	if child.Level != 1 {
		t.Errorf("child level = %d, want 1", child.Level)
	}
	if grand.Level != 2 {
		t.Errorf("grandchild level = %d, want 2", grand.Level)
	}

	deep := NewPage(site.ID, "too-deep", "Too Deep")
	deep.ParentID = &grand.ID
	if err := svc.CreatePage(ctx, deep); !errors.Is(err, ErrHierarchyTooDeep) {
		t.Errorf("CreatePage() error = %v, want ErrHierarchyTooDeep", err)
	}

	chain, err := svc.AncestorSlugs(ctx, grand)
	if err != nil {
		t.Fatalf("AncestorSlugs() error: %v", err)
	}
	if len(chain) != 2 || chain[0] != "services" || chain[1] != "web-design" {
		t.Errorf("AncestorSlugs() = %v, want [services web-design]", chain)
	}

	hasKids, err := svc.HasChildren(ctx, root.ID)
	if err != nil {
		t.Fatalf("HasChildren() error: %v", err)
	}
	if !hasKids {
		t.Error("HasChildren(root) = false, want true")
	}
	hasKids, err = svc.HasChildren(ctx, grand.ID)
	if err != nil {
		t.Fatalf("HasChildren() error: %v", err)
	}
	if hasKids {
		t.Error("HasChildren(leaf) = true, want false")
	}
}

func TestUpdatePageRecomputesLevel(t *testing.T) {
	svc := setupTestService(t)
	site := createTestSite(t, svc)
	ctx := context.Background()

	root := createTestPage(t, svc, site.ID, "company", nil)
	p := createTestPage(t, svc, site.ID, "team", nil)

	p.ParentID = &root.ID
	p.Level = 0 // stale caller value, must be recomputed
	if err := svc.UpdatePage(ctx, p); err != nil {
		t.Fatalf("UpdatePage() error: %v", err)
	}

	got, err := svc.GetPage(ctx, site.ID, p.ID)
	if err != nil {
		t.Fatalf("GetPage() error: %v", err)
	}
	if got.Level != 1 {
		t.Errorf("level after reparenting = %d, want 1", got.Level)
	}
}

func TestUpdatePageSelfParent(t *testing.T) {
	svc := setupTestService(t)
	site := createTestSite(t, svc)

	p := createTestPage(t, svc, site.ID, "loop", nil)
	p.ParentID = &p.ID
	if err := svc.UpdatePage(context.Background(), p); !errors.Is(err, ErrHierarchyTooDeep) {
		t.Errorf("UpdatePage() error = %v, want ErrHierarchyTooDeep", err)
	}
}

func TestListPagesOrder(t *testing.T) {
	svc := setupTestService(t)
	site := createTestSite(t, svc)

	root := createTestPage(t, svc, site.ID, "a-root", nil)
	createTestPage(t, svc, site.ID, "a-child", &root.ID)
	createTestPage(t, svc, site.ID, "b-root", nil)

	pages, err := svc.ListPages(context.Background(), site.ID)
	if err != nil {
		t.Fatalf("ListPages() error: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("ListPages() returned %d pages, want 3", len(pages))
	}
	for i := 1; i < len(pages); i++ {
		if pages[i].Level < pages[i-1].Level {
			t.Errorf("pages not ordered by level: %d before %d", pages[i-1].Level, pages[i].Level)
		}
	}
}

func TestTags(t *testing.T) {
	svc := setupTestService(t)
	site := createTestSite(t, svc)
	ctx := context.Background()

	tag, err := svc.GetOrCreateTag(ctx, site.ID, "featured")
	if err != nil {
		t.Fatalf("GetOrCreateTag() error: %v", err)
	}
	again, err := svc.GetOrCreateTag(ctx, site.ID, "featured")
	if err != nil {
		t.Fatalf("GetOrCreateTag() second call error: %v", err)
	}
	if tag.ID != again.ID {
		t.Errorf("GetOrCreateTag() not idempotent: %d vs %d", tag.ID, again.ID)
	}

	other, err := svc.GetOrCreateTag(ctx, site.ID, "news")
	if err != nil {
		t.Fatalf("GetOrCreateTag() error: %v", err)
	}

	p := createTestPage(t, svc, site.ID, "tagged", nil)
	if err := svc.SetPageTags(ctx, p.ID, []int64{tag.ID, other.ID}); err != nil {
		t.Fatalf("SetPageTags() error: %v", err)
	}

	tags, err := svc.GetPageTags(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPageTags() error: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("GetPageTags() returned %d tags, want 2", len(tags))
	}
	// Stable slug order.
	if tags[0].Slug != "featured" || tags[1].Slug != "news" {
		t.Errorf("tags = [%s %s], want [featured news]", tags[0].Slug, tags[1].Slug)
	}

	// Replacement clears old links.
	if err := svc.SetPageTags(ctx, p.ID, []int64{other.ID}); err != nil {
		t.Fatalf("SetPageTags() error: %v", err)
	}
	tags, err = svc.GetPageTags(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPageTags() error: %v", err)
	}
	if len(tags) != 1 || tags[0].Slug != "news" {
		t.Errorf("tags after replacement = %v", tags)
	}
}

func TestDeletePage(t *testing.T) {
	svc := setupTestService(t)
	site := createTestSite(t, svc)
	ctx := context.Background()

	p := createTestPage(t, svc, site.ID, "ephemeral", nil)
	if err := svc.DeletePage(ctx, site.ID, p.ID); err != nil {
		t.Fatalf("DeletePage() error: %v", err)
	}
	if _, err := svc.GetPage(ctx, site.ID, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPage() after delete error = %v, want ErrNotFound", err)
	}
}
