package transfer

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/versopress/verso/internal/feat/page"
	"github.com/versopress/verso/pkg/vs/config"
	"github.com/versopress/verso/pkg/vs/logger"
	"github.com/versopress/verso/pkg/vs/middleware"
)

// Handler exposes the export/import API for a site's pages.
type Handler struct {
	service  page.Service
	exporter *Exporter
	importer *Importer
	archiver *Archiver
	cfg      *config.Config
	maxBytes int64
	log      logger.Logger
}

// NewHandler creates a new transfer handler.
func NewHandler(service page.Service, mediaStore MediaStore, cfg *config.Config, log logger.Logger) *Handler {
	maxBytes := cfg.Export.MaxArchiveBytes
	if maxBytes == 0 {
		maxBytes = config.DefaultMaxArchiveBytes
	}
	return &Handler{
		service:  service,
		exporter: NewExporter(service, log),
		importer: NewImporter(service, log),
		archiver: NewArchiver(service, mediaStore, maxBytes, log),
		cfg:      cfg,
		maxBytes: maxBytes,
		log:      log,
	}
}

// Start initializes the handler.
func (h *Handler) Start(ctx context.Context) error {
	h.log.Info("Transfer handler started")
	return nil
}

// RegisterRoutes registers the export/import routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	h.log.Info("Registering transfer routes")

	r.Get("/api/v1/sites/{site}/export", h.HandleExportSite)
	r.Get("/api/v1/sites/{site}/pages/{id}/export", h.HandleExportPage)

	editor := r.With(middleware.RequireRole("editor", "admin"))
	editor.Post("/api/v1/sites/{site}/import", h.HandleImportPage)
	editor.Post("/api/v1/sites/{site}/import/batch", h.HandleImportBatch)
	editor.Post("/api/v1/sites/{site}/import/archive", h.HandleImportArchive)
}

// HandleExportPage returns one page as a markdown document with
// frontmatter. The suggested filename is the document's hierarchy leaf.
func (h *Handler) HandleExportPage(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_id", "Invalid page ID")
		return
	}

	unit, err := h.exporter.Export(r.Context(), site.ID, id)
	if err != nil {
		if errors.Is(err, page.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "page_not_found", "Unknown page")
			return
		}
		h.log.Errorf("Cannot export page %d: %v", id, err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot export page")
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(unit.Path)))
	w.Header().Set("X-Export-Path", unit.Path)
	io.WriteString(w, unit.Content)
}

// HandleExportSite streams the full-site zip archive. Errors surfacing
// before the first archive byte produce a JSON error; once streaming has
// begun the response is aborted and the error logged.
func (h *Handler) HandleExportSite(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", site.Slug+".zip"))

	rec := &streamRecorder{ResponseWriter: w}
	if _, err := h.archiver.ExportAll(r.Context(), site, rec); err != nil {
		h.log.Errorf("Cannot export site %q: %v", site.Slug, err)
		if rec.wrote {
			return
		}
		w.Header().Del("Content-Disposition")
		if errors.Is(err, ErrArchiveTooLarge) {
			jsonError(w, http.StatusRequestEntityTooLarge, "archive_too_large", err.Error())
			return
		}
		jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot export site")
	}
}

// HandleImportPage imports a single markdown document posted as the
// request body. The mode query parameter selects create (default) or
// upsert semantics.
func (h *Handler) HandleImportPage(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}
	mode, ok := h.mode(w, r)
	if !ok {
		return
	}

	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_request", "Cannot read request body")
		return
	}

	res, err := h.importer.Import(r.Context(), site.ID, string(content), ImportOptions{Mode: mode})
	if err != nil {
		h.importError(w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"page":     res.Page,
		"created":  res.Created,
		"warnings": res.Warnings,
	})
}

// HandleImportBatch imports a JSON batch of documents. The response is
// always 200 with a per-item report; item failures never fail the call.
func (h *Handler) HandleImportBatch(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}
	mode, ok := h.mode(w, r)
	if !ok {
		return
	}

	var req struct {
		Items []BatchItem `json:"items"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 32<<20)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		jsonError(w, http.StatusBadRequest, "invalid_request", "Batch contains no items")
		return
	}

	report, err := h.importer.ImportAll(r.Context(), site.ID, req.Items, mode)
	if err != nil {
		h.log.Errorf("Batch import failed for site %q: %v", site.Slug, err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Batch import failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleImportArchive restores pages from an uploaded zip archive
// (multipart field "archive").
func (h *Handler) HandleImportArchive(w http.ResponseWriter, r *http.Request) {
	site := h.site(w, r)
	if site == nil {
		return
	}
	mode, ok := h.mode(w, r)
	if !ok {
		return
	}

	file, _, err := r.FormFile("archive")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_request", "Missing archive upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_request", "Cannot read archive upload")
		return
	}
	if int64(len(data)) > h.maxBytes {
		jsonError(w, http.StatusRequestEntityTooLarge, "archive_too_large", "Archive upload too large")
		return
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_request", "Not a valid zip archive")
		return
	}

	report, err := h.archiver.ImportArchive(r.Context(), site.ID, zr, mode)
	if err != nil {
		h.importError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- helpers ---

func (h *Handler) site(w http.ResponseWriter, r *http.Request) *page.Site {
	slug := chi.URLParam(r, "site")
	site, err := h.service.GetSiteBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, page.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "site_not_found", "Unknown site: "+slug)
		} else {
			h.log.Errorf("Cannot load site %q: %v", slug, err)
			jsonError(w, http.StatusInternalServerError, "internal_error", "Cannot load site")
		}
		return nil
	}
	return site
}

func (h *Handler) mode(w http.ResponseWriter, r *http.Request) (Mode, bool) {
	mode, err := ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid_mode", err.Error())
		return "", false
	}
	return mode, true
}

// importError maps pipeline errors to HTTP status codes, keyed by the
// same kinds batch reports use.
func (h *Handler) importError(w http.ResponseWriter, err error) {
	kind := errorKind(err)
	switch kind {
	case "MalformedDocument":
		jsonError(w, http.StatusBadRequest, "malformed_document", err.Error())
	case "SlugConflict":
		jsonError(w, http.StatusConflict, "slug_conflict", err.Error())
	case "ParentNotFound":
		jsonError(w, http.StatusUnprocessableEntity, "parent_not_found", err.Error())
	case "HierarchyTooDeep":
		jsonError(w, http.StatusUnprocessableEntity, "hierarchy_too_deep", err.Error())
	default:
		h.log.Errorf("Import failed: %v", err)
		jsonError(w, http.StatusInternalServerError, "internal_error", "Import failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// streamRecorder tracks whether any response bytes went out, so export
// errors can still produce a proper JSON status when nothing has been
// streamed yet.
type streamRecorder struct {
	http.ResponseWriter
	wrote bool
}

func (sr *streamRecorder) Write(p []byte) (int, error) {
	sr.wrote = true
	return sr.ResponseWriter.Write(p)
}
