package transfer

import (
	"testing"

	"github.com/versopress/verso/internal/feat/media"
	"github.com/versopress/verso/internal/feat/page"
)

func TestExtractMediaKeys(t *testing.T) {
	sections := page.SectionList{
		{
			"type":  "hero",
			"image": "/media/demo/image/hero.png",
		},
		{
			"type": "gallery",
			"items": []any{
				map[string]any{"src": "/media/demo/image/one.jpg"},
				map[string]any{"src": "/media/demo/image/two.jpg"},
				// Duplicate of the hero image.
				map[string]any{"src": "/media/demo/image/hero.png"},
			},
		},
		{
			"type":    "video",
			"poster":  "/media/demo/image/poster.png",
			"source":  "/media/demo/video/intro.mp4",
			"caption": "markdown link ![x](/media/demo/document/brochure.pdf)",
		},
	}

	keys, err := ExtractMediaKeys(sections)
	if err != nil {
		t.Fatalf("ExtractMediaKeys() error: %v", err)
	}

	want := []media.Key{
		{Site: "demo", Type: "document", Filename: "brochure.pdf"},
		{Site: "demo", Type: "image", Filename: "hero.png"},
		{Site: "demo", Type: "image", Filename: "one.jpg"},
		{Site: "demo", Type: "image", Filename: "poster.png"},
		{Site: "demo", Type: "image", Filename: "two.jpg"},
		{Site: "demo", Type: "video", Filename: "intro.mp4"},
	}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys %v, want %d", len(keys), keys, len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %v, want %v", i, keys[i], want[i])
		}
	}
}

func TestExtractMediaKeysSkipsExternalURLs(t *testing.T) {
	sections := page.SectionList{
		{
			"type": "logos",
			"items": []any{
				map[string]any{"src": "https://cdn.example.com/media/demo/image/ext.png"},
				map[string]any{"src": "http://assets.example.org/media/other/video/clip.mp4"},
				map[string]any{"src": "/media/demo/image/local.png"},
			},
		},
	}

	keys, err := ExtractMediaKeys(sections)
	if err != nil {
		t.Fatalf("ExtractMediaKeys() error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %v, want only the local reference", keys)
	}
	if keys[0].Filename != "local.png" {
		t.Errorf("keys[0] = %v", keys[0])
	}
}

func TestExtractMediaKeysIgnoresNonMatching(t *testing.T) {
	tests := []struct {
		name     string
		sections page.SectionList
	}{
		{"empty", nil},
		{"no media", page.SectionList{{"type": "rich-text", "content": "plain"}}},
		{"unknown media type in URL", page.SectionList{{"src": "/media/demo/audio/song.mp3"}}},
		{"data URI", page.SectionList{{"src": "data:image/png;base64,AAAA"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := ExtractMediaKeys(tt.sections)
			if err != nil {
				t.Fatalf("ExtractMediaKeys() error: %v", err)
			}
			if len(keys) != 0 {
				t.Errorf("got %v, want none", keys)
			}
		})
	}
}

func TestExtractMediaKeysDeepNesting(t *testing.T) {
	sections := page.SectionList{
		{
			"type": "pricing",
			"plans": []any{
				map[string]any{
					"features": []any{
						map[string]any{"icon": "/media/demo/image/check.svg"},
					},
				},
			},
		},
	}

	keys, err := ExtractMediaKeys(sections)
	if err != nil {
		t.Fatalf("ExtractMediaKeys() error: %v", err)
	}
	if len(keys) != 1 || keys[0].Filename != "check.svg" {
		t.Errorf("keys = %v", keys)
	}
}
