package page

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Previewer converts a page's markdown body to sanitized HTML for the admin
// panel. Sections are rendered by the (external) rendering layer; only the
// free-text body is handled here.
type Previewer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewPreviewer creates a previewer with GFM extensions and a UGC
// sanitization policy.
func NewPreviewer() *Previewer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)

	return &Previewer{
		md:     md,
		policy: bluemonday.UGCPolicy(),
	}
}

// Render converts markdown to sanitized HTML.
func (p *Previewer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}
	return p.policy.Sanitize(buf.String()), nil
}
