package transfer

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/versopress/verso/internal/feat/page"
)

// Frontmatter is the YAML header of an exported page document. Internal
// numeric identifiers are never part of it; pages reference themselves,
// their parent and their tags by slug so that exported files stay
// meaningful to humans and importable into a different database instance.
type Frontmatter struct {
	Title           string           `yaml:"title"`
	Slug            string           `yaml:"slug,omitempty"`
	Description     string           `yaml:"description,omitempty"`
	Status          string           `yaml:"status,omitempty"`
	ParentSlug      string           `yaml:"parentSlug,omitempty"`
	Tags            []string         `yaml:"tags,omitempty"`
	MetaTitle       string           `yaml:"metaTitle,omitempty"`
	MetaDescription string           `yaml:"metaDescription,omitempty"`
	OGImage         string           `yaml:"ogImage,omitempty"`
	CanonicalURL    string           `yaml:"canonicalUrl,omitempty"`
	Noindex         bool             `yaml:"noindex,omitempty"`
	HideHeader      bool             `yaml:"hideHeader,omitempty"`
	HideFooter      bool             `yaml:"hideFooter,omitempty"`
	Sections        page.SectionList `yaml:"sections,omitempty"`

	// Extra preserves unknown header keys opaquely, so hand-edited files
	// with human annotations survive a re-import. Downstream logic
	// ignores them.
	Extra map[string]any `yaml:",inline"`
}

// Document is one page rendered as frontmatter plus markdown body.
type Document struct {
	Frontmatter Frontmatter
	Body        string
}

const fmDelimiter = "---"

// EncodeDocument serializes a document: YAML header between --- fences,
// a blank separator, then the body (if any).
func EncodeDocument(doc *Document) (string, error) {
	header, err := yaml.Marshal(&doc.Frontmatter)
	if err != nil {
		return "", fmt.Errorf("cannot encode frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString(fmDelimiter + "\n")
	b.Write(header)
	b.WriteString(fmDelimiter + "\n")

	if doc.Body != "" {
		b.WriteString("\n")
		b.WriteString(doc.Body)
		if !strings.HasSuffix(doc.Body, "\n") {
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}

// DecodeDocument parses frontmatter and body out of a document. It fails
// with ErrMalformedDocument when the header block is absent or unclosed,
// is not valid YAML, or lacks the mandatory title. An empty body is valid.
// Both LF and CRLF line endings are accepted; offsets are tracked against
// the original text so CRLF documents decode byte for byte.
func DecodeDocument(text string) (*Document, error) {
	if !strings.HasPrefix(text, fmDelimiter+"\n") && !strings.HasPrefix(text, fmDelimiter+"\r\n") {
		return nil, fmt.Errorf("%w: missing frontmatter block (near %q)", ErrMalformedDocument, snippet(text))
	}

	headerStart := strings.IndexByte(text, '\n') + 1
	headerEnd := -1
	bodyStart := len(text)

	for pos := headerStart; pos < len(text); {
		next := len(text)
		line := text[pos:]
		if nl := strings.IndexByte(line, '\n'); nl >= 0 {
			next = pos + nl + 1
			line = line[:nl]
		}
		if strings.TrimSpace(line) == fmDelimiter {
			headerEnd = pos
			bodyStart = next
			break
		}
		pos = next
	}

	if headerEnd < 0 {
		return nil, fmt.Errorf("%w: unclosed frontmatter block", ErrMalformedDocument)
	}

	var fm Frontmatter
	if header := text[headerStart:headerEnd]; strings.TrimSpace(header) != "" {
		if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
			return nil, fmt.Errorf("%w: invalid YAML header: %v", ErrMalformedDocument, err)
		}
	}

	if strings.TrimSpace(fm.Title) == "" {
		return nil, fmt.Errorf("%w: missing required field 'title'", ErrMalformedDocument)
	}

	body := ""
	if bodyStart < len(text) {
		body = strings.TrimLeft(text[bodyStart:], "\n\r")
	}

	return &Document{Frontmatter: fm, Body: body}, nil
}

// snippet returns the head of a document for error diagnostics.
func snippet(text string) string {
	const max = 60
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 && idx < max {
		return text[:idx]
	}
	if len(text) > max {
		return text[:max]
	}
	return text
}
