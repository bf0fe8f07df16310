package page

import (
	"context"
	"fmt"

	"github.com/versopress/verso/pkg/vs/logger"
)

// Seeder creates a demo site with a small page tree on first boot so the
// service is explorable without manual setup.
type Seeder struct {
	service Service
	log     logger.Logger
}

func NewSeeder(service Service, log logger.Logger) *Seeder {
	return &Seeder{
		service: service,
		log:     log,
	}
}

func (s *Seeder) Start(ctx context.Context) error {
	sites, err := s.service.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("cannot list sites: %w", err)
	}

	if len(sites) > 0 {
		s.log.Info("Sites already exist, skipping seeding")
		return nil
	}

	site := NewSite("Demo Site", "demo")
	if err := s.service.CreateSite(ctx, site); err != nil {
		return fmt.Errorf("cannot seed demo site: %w", err)
	}

	if err := s.seedDemoPages(ctx, site); err != nil {
		return fmt.Errorf("cannot seed demo pages: %w", err)
	}

	s.log.Infof("Seeded demo site: %s", site.Name)
	return nil
}

func (s *Seeder) seedDemoPages(ctx context.Context, site *Site) error {
	home := NewPage(site.ID, "home", "Welcome")
	home.Description = "Landing page for the demo site"
	home.Status = StatusPublished
	home.Body = "# Welcome\n\nThis site was seeded automatically.\n"
	home.Sections = SectionList{
		{
			"type":     "hero",
			"headline": "Build landing pages fast",
			"tagline":  "Compose pages from reusable sections",
			"image":    fmt.Sprintf("/media/%s/image/hero.png", site.Slug),
		},
		{
			"type": "cta",
			"text": "Get started",
			"href": "/contact",
		},
	}
	if err := s.service.CreatePage(ctx, home); err != nil {
		return err
	}

	services := NewPage(site.ID, "services", "Services")
	services.Status = StatusPublished
	services.Sections = SectionList{
		{
			"type": "feature-grid",
			"items": []any{
				map[string]any{"title": "Web Design", "href": "/services/web-design"},
				map[string]any{"title": "Consulting", "href": "/services/consulting"},
			},
		},
	}
	if err := s.service.CreatePage(ctx, services); err != nil {
		return err
	}

	webDesign := NewPage(site.ID, "web-design", "Web Design")
	webDesign.ParentID = &services.ID
	webDesign.Sections = SectionList{
		{
			"type": "rich-text",
			"text": "We design responsive marketing sites.",
		},
	}
	if err := s.service.CreatePage(ctx, webDesign); err != nil {
		return err
	}

	tag, err := s.service.GetOrCreateTag(ctx, site.ID, "featured")
	if err != nil {
		return err
	}
	return s.service.SetPageTags(ctx, home.ID, []int64{tag.ID})
}
