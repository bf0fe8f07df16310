package transfer

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/versopress/verso/internal/feat/media"
	"github.com/versopress/verso/internal/feat/page"
	"github.com/versopress/verso/pkg/vs/config"
	"github.com/versopress/verso/pkg/vs/logger"
	"github.com/versopress/verso/pkg/vs/middleware"
)

func setupTestServer(t *testing.T) (*httptest.Server, page.Service, *page.Site) {
	t.Helper()

	svc, site := setupTransfer(t)

	store := media.NewStorage(t.TempDir(), logger.NewNoopLogger())
	if err := store.Start(context.Background()); err != nil {
		t.Fatalf("cannot start media storage: %v", err)
	}

	h := NewHandler(svc, store, &config.Config{}, logger.NewNoopLogger())

	r := chi.NewRouter()
	middleware.DefaultStack(r)
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc, site
}

func doRequest(t *testing.T, method, url, contentType string, body io.Reader, role string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("cannot build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if role != "" {
		req.Header.Set(middleware.UserHeader, "tester")
		req.Header.Set(middleware.RoleHeader, role)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestHandleExportPage(t *testing.T) {
	srv, svc, site := setupTestServer(t)

	p := page.NewPage(site.ID, "about", "About")
	if err := svc.CreatePage(context.Background(), p); err != nil {
		t.Fatalf("cannot create page: %v", err)
	}

	resp := doRequest(t, http.MethodGet,
		srv.URL+"/api/v1/sites/acme/pages/"+strconv.FormatInt(p.ID, 10)+"/export", "", nil, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "title: About") {
		t.Errorf("body = %s", body)
	}
}

func TestHandleExportPageNotFound(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/sites/acme/pages/999/export", "", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleImportRequiresRole(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	doc := "---\ntitle: Denied\n---\n"

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/sites/acme/import",
		"text/markdown", strings.NewReader(doc), "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("anonymous status = %d, want 403", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/sites/acme/import",
		"text/markdown", strings.NewReader(doc), "viewer")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("viewer status = %d, want 403", resp.StatusCode)
	}
}

func TestHandleImportStatusMapping(t *testing.T) {
	srv, svc, site := setupTestServer(t)

	if err := svc.CreatePage(context.Background(), page.NewPage(site.ID, "home", "Home")); err != nil {
		t.Fatalf("cannot create page: %v", err)
	}

	tests := []struct {
		name       string
		doc        string
		mode       string
		wantStatus int
	}{
		{"created", "---\ntitle: Fresh\nslug: fresh\n---\n", "", http.StatusCreated},
		{"upsert existing", "---\ntitle: Home v2\nslug: home\n---\n", "upsert", http.StatusOK},
		{"create conflict", "---\ntitle: Home v3\nslug: home\n---\n", "create", http.StatusConflict},
		{"malformed", "no frontmatter", "", http.StatusBadRequest},
		{"parent missing", "---\ntitle: Lost\nparentSlug: ghost\n---\n", "", http.StatusUnprocessableEntity},
		{"bad mode", "---\ntitle: X\n---\n", "merge", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := srv.URL + "/api/v1/sites/acme/import"
			if tt.mode != "" {
				url += "?mode=" + tt.mode
			}
			resp := doRequest(t, http.MethodPost, url, "text/markdown", strings.NewReader(tt.doc), "editor")
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}
}

func TestHandleImportBatch(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	payload, _ := json.Marshal(map[string]any{
		"items": []BatchItem{
			{Content: "---\ntitle: One\nslug: one\n---\n"},
			{Content: "broken"},
		},
	})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/sites/acme/import/batch",
		"application/json", bytes.NewReader(payload), "editor")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var report BatchReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("cannot decode report: %v", err)
	}
	if len(report.Succeeded) != 1 || len(report.Failed) != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.Failed[0].Kind != "MalformedDocument" {
		t.Errorf("failure kind = %q", report.Failed[0].Kind)
	}
}

func TestHandleExportSiteAndArchiveImport(t *testing.T) {
	srv, svc, site := setupTestServer(t)
	ctx := context.Background()

	root := page.NewPage(site.ID, "docs", "Docs")
	if err := svc.CreatePage(ctx, root); err != nil {
		t.Fatalf("cannot create page: %v", err)
	}
	child := page.NewPage(site.ID, "intro", "Intro")
	child.ParentID = &root.ID
	if err := svc.CreatePage(ctx, child); err != nil {
		t.Fatalf("cannot create page: %v", err)
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/sites/acme/export", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}
	archive, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if _, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive))); err != nil {
		t.Fatalf("export is not a valid zip: %v", err)
	}

	// Restore into a second site through the archive upload endpoint.
	target := page.NewSite("Copy", "copy")
	if err := svc.CreateSite(ctx, target); err != nil {
		t.Fatalf("cannot create site: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("archive", "acme.zip")
	if err != nil {
		t.Fatalf("cannot build upload: %v", err)
	}
	part.Write(archive)
	mw.Close()

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/sites/copy/import/archive",
		mw.FormDataContentType(), &body, "admin")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("archive import status = %d (%s)", resp.StatusCode, raw)
	}

	var report BatchReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("cannot decode report: %v", err)
	}
	if len(report.Failed) != 0 || len(report.Succeeded) != 2 {
		t.Errorf("report = %+v", report)
	}

	restored, err := svc.GetPageBySlug(ctx, target.ID, "intro")
	if err != nil {
		t.Fatalf("GetPageBySlug() error: %v", err)
	}
	if restored.Level != 1 {
		t.Errorf("restored level = %d, want 1", restored.Level)
	}
}

func TestHandleImportArchiveConfiguredLimit(t *testing.T) {
	svc, site := setupTransfer(t)

	store := media.NewStorage(t.TempDir(), logger.NewNoopLogger())
	if err := store.Start(context.Background()); err != nil {
		t.Fatalf("cannot start media storage: %v", err)
	}

	cfg := &config.Config{Export: config.ExportConfig{MaxArchiveBytes: 128}}
	h := NewHandler(svc, store, cfg, logger.NewNoopLogger())

	r := chi.NewRouter()
	middleware.DefaultStack(r)
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("archive", "big.zip")
	if err != nil {
		t.Fatalf("cannot build upload: %v", err)
	}
	part.Write(bytes.Repeat([]byte("x"), 512))
	mw.Close()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/sites/"+site.Slug+"/import/archive",
		mw.FormDataContentType(), &body, "editor")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestHandleUnknownSite(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/sites/nope/export", "", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
