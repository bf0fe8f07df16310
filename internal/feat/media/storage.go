package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/versopress/verso/pkg/vs/logger"
)

// Media type categories. Assets live in a site-scoped, type-scoped
// directory tree and are served under /media/{site}/{type}/{filename}.
const (
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeDocument = "document"
)

var ErrNotFound = errors.New("media not found")

// ValidType reports whether t is a known media type category.
func ValidType(t string) bool {
	return t == TypeImage || t == TypeVideo || t == TypeDocument
}

// Key identifies one stored media asset.
type Key struct {
	Site     string `json:"site"`
	Type     string `json:"type"`
	Filename string `json:"filename"`
}

// URL returns the canonical serving path for the asset.
func (k Key) URL() string {
	return "/media/" + k.Site + "/" + k.Type + "/" + k.Filename
}

// Storage is the disk-backed media store.
// Layout: {base}/{siteSlug}/{type}/{filename}.
type Storage struct {
	basePath string
	log      logger.Logger
}

// NewStorage creates a media storage rooted at basePath.
func NewStorage(basePath string, log logger.Logger) *Storage {
	return &Storage{
		basePath: basePath,
		log:      log,
	}
}

// Start ensures the base directory exists.
func (s *Storage) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("cannot create media directory: %w", err)
	}
	s.log.Infof("Media storage at %s", s.basePath)
	return nil
}

// Read returns the bytes of one asset, or ErrNotFound.
func (s *Storage) Read(site, mediaType, filename string) ([]byte, error) {
	path, err := s.path(site, mediaType, filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s/%s: %w", site, mediaType, filename, ErrNotFound)
		}
		return nil, fmt.Errorf("cannot read media file: %w", err)
	}
	return data, nil
}

// Write stores one asset, creating directories as needed.
func (s *Storage) Write(site, mediaType, filename string, data []byte) error {
	path, err := s.path(site, mediaType, filename)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create media directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write media file: %w", err)
	}
	return nil
}

// Exists reports whether the asset is present in storage.
func (s *Storage) Exists(site, mediaType, filename string) bool {
	path, err := s.path(site, mediaType, filename)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(path)
	return statErr == nil
}

// path validates the key parts and maps them onto the disk layout. Parts
// containing separators or dot segments are rejected to keep reads inside
// the storage root.
func (s *Storage) path(site, mediaType, filename string) (string, error) {
	if !ValidType(mediaType) {
		return "", fmt.Errorf("invalid media type %q", mediaType)
	}
	for _, part := range []string{site, filename} {
		if part == "" || part == "." || part == ".." ||
			strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid media path segment %q", part)
		}
	}
	return filepath.Join(s.basePath, site, mediaType, filename), nil
}

// RegisterRoutes serves stored media at the canonical URL convention.
func (s *Storage) RegisterRoutes(r chi.Router) {
	s.log.Info("Registering media routes")

	r.Get("/media/{site}/{type}/{filename}", func(w http.ResponseWriter, r *http.Request) {
		path, err := s.path(chi.URLParam(r, "site"), chi.URLParam(r, "type"), chi.URLParam(r, "filename"))
		if err != nil {
			http.Error(w, "invalid media path", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, path)
	})
}
