package transfer

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/versopress/verso/internal/feat/media"
	"github.com/versopress/verso/internal/feat/page"
	"github.com/versopress/verso/pkg/vs/logger"
)

// MediaStore is the slice of media storage the archiver reads assets from.
type MediaStore interface {
	Read(site, mediaType, filename string) ([]byte, error)
}

// Manifest describes an exported archive. It is written as the archive's
// final entry so readers can verify the export completed.
type Manifest struct {
	ExportID    string    `json:"export_id"`
	Site        string    `json:"site"`
	GeneratedAt time.Time `json:"generated_at"`
	PageCount   int       `json:"page_count"`
	MediaCount  int       `json:"media_count"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// Archiver assembles full-site zip archives and restores pages from them.
type Archiver struct {
	store    Store
	media    MediaStore
	exporter *Exporter
	importer *Importer
	maxBytes int64
	log      logger.Logger
}

func NewArchiver(store Store, mediaStore MediaStore, maxBytes int64, log logger.Logger) *Archiver {
	return &Archiver{
		store:    store,
		media:    mediaStore,
		exporter: NewExporter(store, log),
		importer: NewImporter(store, log),
		maxBytes: maxBytes,
		log:      log,
	}
}

// ExportAll streams a site archive to w: every page as
// pages/{hierarchy path}, every referenced media asset that exists under
// media/{type}/{filename}, and manifest.json last. Given the same
// site state the archive layout and entry order are identical between
// runs; entry timestamps are zeroed. Referenced assets that are missing
// or unreadable are skipped and reported in the manifest warnings.
func (a *Archiver) ExportAll(ctx context.Context, site *page.Site, w io.Writer) (*Manifest, error) {
	cw := &countingWriter{w: w, limit: a.maxBytes}
	zw := zip.NewWriter(cw)

	pages, err := a.store.ListPages(ctx, site.ID)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		ExportID:    uuid.New().String(),
		Site:        site.Slug,
		GeneratedAt: time.Now().UTC(),
	}

	// Deduped by archive path: the archive is scoped to one site, so the
	// site segment of the public URL is dropped from entry names.
	seen := make(map[string]struct{})
	var assets []media.Key

	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Reload individually; the list query skips tags.
		full, err := a.store.GetPage(ctx, site.ID, p.ID)
		if err != nil {
			return nil, err
		}
		unit, err := a.exporter.exportPage(ctx, full)
		if err != nil {
			return nil, err
		}

		if err := writeEntry(zw, path.Join("pages", unit.Path), []byte(unit.Content)); err != nil {
			return nil, err
		}
		manifest.PageCount++

		for _, key := range unit.Media {
			entry := mediaEntryName(key)
			if _, dup := seen[entry]; dup {
				continue
			}
			seen[entry] = struct{}{}
			assets = append(assets, key)
		}
	}

	sort.Slice(assets, func(i, j int) bool {
		return mediaEntryName(assets[i]) < mediaEntryName(assets[j])
	})

	for _, key := range assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := a.media.Read(key.Site, key.Type, key.Filename)
		if err != nil {
			// A broken asset reference never fails the export; the page
			// documents are the payload and the manifest records the gap.
			if errors.Is(err, media.ErrNotFound) {
				manifest.Warnings = append(manifest.Warnings,
					fmt.Sprintf("referenced media asset not found: %s", key.URL()))
			} else {
				manifest.Warnings = append(manifest.Warnings,
					fmt.Sprintf("cannot read media asset %s: %v", key.URL(), err))
			}
			continue
		}

		if err := writeEntry(zw, mediaEntryName(key), data); err != nil {
			return nil, err
		}
		manifest.MediaCount++
	}

	body, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("cannot encode manifest: %w", err)
	}
	if err := writeEntry(zw, "manifest.json", body); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("cannot finalize archive: %w", err)
	}

	a.log.Infof("Exported site %q: %d pages, %d assets, %d bytes",
		site.Slug, manifest.PageCount, manifest.MediaCount, cw.n)
	return manifest, nil
}

// ImportArchive restores pages from an archive produced by ExportAll.
// Only entries under pages/ are ingested; media assets travel for the
// consumer's benefit and are restored through the media upload path.
func (a *Archiver) ImportArchive(ctx context.Context, siteID int64, zr *zip.Reader, mode Mode) (*BatchReport, error) {
	var items []BatchItem
	for _, f := range zr.File {
		rel, ok := strings.CutPrefix(f.Name, "pages/")
		if !ok || !strings.HasSuffix(rel, ".md") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("cannot open archive entry %q: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("cannot read archive entry %q: %w", f.Name, err)
		}

		items = append(items, BatchItem{Path: rel, Content: string(content)})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: archive contains no page documents", ErrMalformedDocument)
	}

	return a.importer.ImportAll(ctx, siteID, items, mode)
}

// mediaEntryName converts a media key to its archive entry path.
func mediaEntryName(key media.Key) string {
	return path.Join("media", key.Type, key.Filename)
}

// writeEntry adds one deterministic archive entry (no timestamps, fixed
// name) with the given content.
func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("cannot create archive entry %q: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("cannot write archive entry %q: %w", name, err)
	}
	return nil
}

// countingWriter enforces the archive size ceiling while streaming.
type countingWriter struct {
	w     io.Writer
	n     int64
	limit int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	if cw.limit > 0 && cw.n+int64(len(p)) > cw.limit {
		return 0, fmt.Errorf("%w (limit %d bytes)", ErrArchiveTooLarge, cw.limit)
	}
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
