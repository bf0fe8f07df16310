package page

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/versopress/verso/pkg/vs/config"
	"github.com/versopress/verso/pkg/vs/logger"
	"github.com/versopress/verso/pkg/vs/middleware"
)

// Handler implements the admin JSON API for sites, pages and tags.
type Handler struct {
	service   Service
	previewer *Previewer
	cfg       *config.Config
	log       logger.Logger
}

// NewHandler creates a new page handler.
func NewHandler(service Service, cfg *config.Config, log logger.Logger) *Handler {
	return &Handler{
		service:   service,
		previewer: NewPreviewer(),
		cfg:       cfg,
		log:       log,
	}
}

// Start initializes the handler.
func (h *Handler) Start(ctx context.Context) error {
	h.log.Info("Page handler started")
	return nil
}

// RegisterRoutes registers the admin CRUD routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	h.log.Info("Registering page routes")

	// Flat patterns: the transfer feature registers its own routes under
	// the same /api/v1/sites subtree, which rules out mounting a subrouter
	// here.
	r.Get("/api/v1/sites", h.HandleListSites)
	r.With(middleware.RequireRole("admin")).
		Post("/api/v1/sites", h.HandleCreateSite)

	r.Get("/api/v1/sites/{site}/pages", h.HandleListPages)
	r.Get("/api/v1/sites/{site}/pages/{id}", h.HandleGetPage)
	r.Get("/api/v1/sites/{site}/pages/{id}/preview", h.HandlePreviewPage)
	r.Get("/api/v1/sites/{site}/tags", h.HandleListTags)
	r.Get("/api/v1/sites/{site}/section-types", h.HandleListSectionTypes)

	editor := r.With(middleware.RequireRole("editor", "admin"))
	editor.Post("/api/v1/sites/{site}/pages", h.HandleCreatePage)
	editor.Put("/api/v1/sites/{site}/pages/{id}", h.HandleUpdatePage)
	editor.Delete("/api/v1/sites/{site}/pages/{id}", h.HandleDeletePage)
}

// --- JSON helpers ---

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func (h *Handler) site(w http.ResponseWriter, r *http.Request) *Site {
	slug := chi.URLParam(r, "site")
	site, err := h.service.GetSiteBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			jsonError(w, http.StatusNotFound, "site_not_found", "Unknown site: "+slug)
		} else {
			h.log.Errorf("Cannot load site %q: %v", slug, err)
			jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot load site")
		}
		return nil
	}
	return site
}

func pageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_id", "Invalid page ID")
		return 0, false
	}
	return id, true
}

// --- Sites ---

func (h *Handler) HandleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.service.ListSites(r.Context())
	if err != nil {
		h.log.Errorf("Cannot list sites: %v", err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot list sites")
		return
	}
	jsonOK(w, map[string]any{"sites": sites})
}

func (h *Handler) HandleCreateSite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Slug == "" {
		req.Slug = Slugify(req.Name)
	}

	site := NewSite(req.Name, req.Slug)
	if err := h.service.CreateSite(r.Context(), site); err != nil {
		if errors.Is(err, ErrSlugConflict) {
			jsonError(w, http.StatusConflict, "slug_conflict", err.Error())
			return
		}
		h.log.Errorf("Cannot create site: %v", err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot create site")
		return
	}

	jsonCreated(w, site)
}

// --- Pages ---

type pageRequest struct {
	Slug            string      `json:"slug"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Body            string      `json:"body"`
	Sections        SectionList `json:"sections"`
	Status          string      `json:"status"`
	MetaTitle       string      `json:"meta_title"`
	MetaDescription string      `json:"meta_description"`
	OGImage         string      `json:"og_image"`
	CanonicalURL    string      `json:"canonical_url"`
	Noindex         bool        `json:"noindex"`
	HideHeader      bool        `json:"hide_header"`
	HideFooter      bool        `json:"hide_footer"`
	ParentID        *int64      `json:"parent_id"`
	Tags            []string    `json:"tags"`
}

func (req *pageRequest) apply(p *Page) {
	p.Slug = req.Slug
	p.Title = req.Title
	p.Description = req.Description
	p.Body = req.Body
	if req.Sections != nil {
		p.Sections = req.Sections
	}
	if req.Status != "" {
		p.Status = req.Status
	}
	p.MetaTitle = req.MetaTitle
	p.MetaDescription = req.MetaDescription
	p.OGImage = req.OGImage
	p.CanonicalURL = req.CanonicalURL
	p.Noindex = req.Noindex
	p.HideHeader = req.HideHeader
	p.HideFooter = req.HideFooter
	p.ParentID = req.ParentID
}

func (h *Handler) HandleListPages(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}

	pages, err := h.service.ListPages(r.Context(), site.ID)
	if err != nil {
		h.log.Errorf("Cannot list pages: %v", err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot list pages")
		return
	}
	jsonOK(w, map[string]any{"pages": pages})
}

func (h *Handler) HandleGetPage(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}
	id, ok := pageID(w, r)
	if !ok {
		return
	}

	page, err := h.service.GetPage(r.Context(), site.ID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			jsonError(w, http.StatusNotFound, "page_not_found", "Page not found")
			return
		}
		h.log.Errorf("Cannot get page %d: %v", id, err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot get page")
		return
	}
	jsonOK(w, page)
}

func (h *Handler) HandleCreatePage(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}

	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Slug == "" {
		req.Slug = Slugify(req.Title)
	}

	page := NewPage(site.ID, req.Slug, req.Title)
	req.apply(page)

	if err := h.service.CreatePage(r.Context(), page); err != nil {
		h.writePageError(w, err)
		return
	}
	if err := h.attachTags(r.Context(), site.ID, page, req.Tags); err != nil {
		h.log.Errorf("Cannot attach tags to page %d: %v", page.ID, err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot attach tags")
		return
	}

	jsonCreated(w, page)
}

func (h *Handler) HandleUpdatePage(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}
	id, ok := pageID(w, r)
	if !ok {
		return
	}

	page, err := h.service.GetPage(r.Context(), site.ID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			jsonError(w, http.StatusNotFound, "page_not_found", "Page not found")
			return
		}
		h.log.Errorf("Cannot get page %d: %v", id, err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot get page")
		return
	}

	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Slug == "" {
		req.Slug = page.Slug
	}
	req.apply(page)

	if err := h.service.UpdatePage(r.Context(), page); err != nil {
		h.writePageError(w, err)
		return
	}
	if req.Tags != nil {
		if err := h.attachTags(r.Context(), site.ID, page, req.Tags); err != nil {
			h.log.Errorf("Cannot attach tags to page %d: %v", page.ID, err)
			jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot attach tags")
			return
		}
	}

	jsonOK(w, page)
}

func (h *Handler) HandleDeletePage(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}
	id, ok := pageID(w, r)
	if !ok {
		return
	}

	hasChildren, err := h.service.HasChildren(r.Context(), id)
	if err != nil {
		h.log.Errorf("Cannot check children of page %d: %v", id, err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot delete page")
		return
	}
	if hasChildren {
		jsonError(w, http.StatusConflict, "has_children", "Page has child pages; move or delete them first")
		return
	}

	if err := h.service.DeletePage(r.Context(), site.ID, id); err != nil {
		h.log.Errorf("Cannot delete page %d: %v", id, err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot delete page")
		return
	}
	jsonOK(w, map[string]string{"status": "deleted"})
}

func (h *Handler) HandlePreviewPage(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}
	id, ok := pageID(w, r)
	if !ok {
		return
	}

	page, err := h.service.GetPage(r.Context(), site.ID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			jsonError(w, http.StatusNotFound, "page_not_found", "Page not found")
			return
		}
		h.log.Errorf("Cannot get page %d: %v", id, err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot get page")
		return
	}

	html, err := h.previewer.Render(page.Body)
	if err != nil {
		h.log.Errorf("Cannot render preview for page %d: %v", id, err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot render preview")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// --- Tags & Registry ---

func (h *Handler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}

	tags, err := h.service.ListTags(r.Context(), site.ID)
	if err != nil {
		h.log.Errorf("Cannot list tags: %v", err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot list tags")
		return
	}
	jsonOK(w, map[string]any{"tags": tags})
}

func (h *Handler) HandleListSectionTypes(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]any{"section_types": SectionTypes()})
}

func (h *Handler) attachTags(ctx context.Context, siteID int64, page *Page, slugs []string) error {
	var tags []*Tag
	var ids []int64
	for _, slug := range slugs {
		slug = Slugify(slug)
		if slug == "" {
			continue
		}
		tag, err := h.service.GetOrCreateTag(ctx, siteID, slug)
		if err != nil {
			return err
		}
		tags = append(tags, tag)
		ids = append(ids, tag.ID)
	}

	if err := h.service.SetPageTags(ctx, page.ID, ids); err != nil {
		return err
	}
	page.Tags = tags
	return nil
}

func (h *Handler) writePageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSlugConflict):
		jsonError(w, http.StatusConflict, "slug_conflict", err.Error())
	case errors.Is(err, ErrHierarchyTooDeep):
		jsonError(w, http.StatusUnprocessableEntity, "hierarchy_too_deep", err.Error())
	case errors.Is(err, ErrNotFound):
		jsonError(w, http.StatusUnprocessableEntity, "parent_not_found", err.Error())
	default:
		h.log.Errorf("Page write failed: %v", err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot save page")
	}
}
