package transfer

import (
	"errors"
	"strings"
	"testing"

	"github.com/versopress/verso/internal/feat/page"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc := &Document{
		Frontmatter: Frontmatter{
			Title:           "About Us",
			Slug:            "about",
			Description:     "Who we are",
			Status:          "published",
			ParentSlug:      "company",
			Tags:            []string{"featured", "news"},
			MetaTitle:       "About | Acme",
			MetaDescription: "The Acme story",
			OGImage:         "/media/acme/image/og.png",
			CanonicalURL:    "https://acme.example/about",
			Noindex:         true,
			HideFooter:      true,
			Sections: page.SectionList{
				{"type": "hero", "heading": "About", "image": "/media/acme/image/hero.png"},
				{"type": "rich-text", "content": "## History"},
			},
		},
		Body: "Some free-form notes.\n\nSecond paragraph.",
	}

	encoded, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("EncodeDocument() error: %v", err)
	}
	if !strings.HasPrefix(encoded, "---\n") {
		t.Errorf("encoded document does not start with a fence:\n%s", encoded)
	}

	got, err := DecodeDocument(encoded)
	if err != nil {
		t.Fatalf("DecodeDocument() error: %v", err)
	}

	fm := got.Frontmatter
	if fm.Title != doc.Frontmatter.Title || fm.Slug != doc.Frontmatter.Slug {
		t.Errorf("identity fields: got %q/%q", fm.Title, fm.Slug)
	}
	if fm.ParentSlug != "company" || fm.Status != "published" {
		t.Errorf("got parentSlug=%q status=%q", fm.ParentSlug, fm.Status)
	}
	if len(fm.Tags) != 2 || fm.Tags[0] != "featured" {
		t.Errorf("tags = %v", fm.Tags)
	}
	if !fm.Noindex || !fm.HideFooter || fm.HideHeader {
		t.Errorf("flags = noindex:%v hideHeader:%v hideFooter:%v", fm.Noindex, fm.HideHeader, fm.HideFooter)
	}
	if len(fm.Sections) != 2 {
		t.Fatalf("sections = %v", fm.Sections)
	}
	if fm.Sections[0].Type() != "hero" || fm.Sections[1].Type() != "rich-text" {
		t.Errorf("section order lost: %v", fm.Sections)
	}
	if fm.Sections[0]["image"] != "/media/acme/image/hero.png" {
		t.Errorf("section payload lost: %v", fm.Sections[0])
	}
	if got.Body != doc.Body+"\n" && got.Body != doc.Body {
		t.Errorf("body = %q", got.Body)
	}
}

func TestDecodeDocumentPreservesUnknownKeys(t *testing.T) {
	content := `---
title: Landing
slug: landing
reviewedBy: alice
internalNotes:
  - check hero copy
---

Body.
`
	doc, err := DecodeDocument(content)
	if err != nil {
		t.Fatalf("DecodeDocument() error: %v", err)
	}
	if doc.Frontmatter.Extra["reviewedBy"] != "alice" {
		t.Errorf("unknown key not preserved: %v", doc.Frontmatter.Extra)
	}

	encoded, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("EncodeDocument() error: %v", err)
	}
	if !strings.Contains(encoded, "reviewedBy: alice") {
		t.Errorf("unknown key lost on re-encode:\n%s", encoded)
	}
}

func TestDecodeDocumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no frontmatter", "just a body"},
		{"empty input", ""},
		{"unclosed fence", "---\ntitle: X\nbody follows"},
		{"invalid yaml", "---\ntitle: [unbalanced\n---\n"},
		{"missing title", "---\nslug: no-title\n---\n"},
		{"blank title", "---\ntitle: \"  \"\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocument(tt.content)
			if !errors.Is(err, ErrMalformedDocument) {
				t.Errorf("DecodeDocument() error = %v, want ErrMalformedDocument", err)
			}
		})
	}
}

func TestDecodeDocumentCRLF(t *testing.T) {
	content := "---\r\ntitle: Hello\r\nslug: hello\r\nparentSlug: docs\r\n---\r\nBody line.\r\n\r\nSecond paragraph.\r\n"

	doc, err := DecodeDocument(content)
	if err != nil {
		t.Fatalf("DecodeDocument() error: %v", err)
	}
	if doc.Frontmatter.Title != "Hello" || doc.Frontmatter.Slug != "hello" {
		t.Errorf("frontmatter = %+v", doc.Frontmatter)
	}
	if doc.Frontmatter.ParentSlug != "docs" {
		t.Errorf("parentSlug = %q", doc.Frontmatter.ParentSlug)
	}
	if want := "Body line.\r\n\r\nSecond paragraph.\r\n"; doc.Body != want {
		t.Errorf("body = %q, want %q", doc.Body, want)
	}

	empty, err := DecodeDocument("---\r\ntitle: Bare\r\n---\r\n")
	if err != nil {
		t.Fatalf("DecodeDocument() error: %v", err)
	}
	if empty.Body != "" {
		t.Errorf("body = %q, want empty", empty.Body)
	}
}

func TestDecodeDocumentEmptyBody(t *testing.T) {
	doc, err := DecodeDocument("---\ntitle: Bare\n---\n")
	if err != nil {
		t.Fatalf("DecodeDocument() error: %v", err)
	}
	if doc.Body != "" {
		t.Errorf("body = %q, want empty", doc.Body)
	}
	if doc.Frontmatter.Title != "Bare" {
		t.Errorf("title = %q", doc.Frontmatter.Title)
	}
}

func TestEncodeDocumentBodySeparation(t *testing.T) {
	doc := &Document{
		Frontmatter: Frontmatter{Title: "T", Slug: "t"},
		Body:        "content",
	}
	encoded, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("EncodeDocument() error: %v", err)
	}
	if !strings.Contains(encoded, "---\n\ncontent\n") {
		t.Errorf("body not separated by a blank line:\n%s", encoded)
	}
}
