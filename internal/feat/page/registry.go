package page

import "sort"

// sectionTypes is the static catalog of section types the rendering layer
// knows how to display. The export/import pipeline consults it read-only:
// unknown types are preserved verbatim and surfaced as warnings, never
// rejected, so the catalog can grow without breaking older exports.
var sectionTypes = map[string]struct{}{
	"banner":       {},
	"benefits":     {},
	"comparison":   {},
	"contact-form": {},
	"cta":          {},
	"faq":          {},
	"feature-grid": {},
	"features":     {},
	"footer-links": {},
	"gallery":      {},
	"hero":         {},
	"image-text":   {},
	"logos":        {},
	"map":          {},
	"newsletter":   {},
	"pricing":      {},
	"rich-text":    {},
	"social-proof": {},
	"stats":        {},
	"steps":        {},
	"team":         {},
	"testimonials": {},
	"timeline":     {},
	"video":        {},
}

// KnownSectionType reports whether name is in the section-type catalog.
func KnownSectionType(name string) bool {
	_, ok := sectionTypes[name]
	return ok
}

// SectionTypes returns the catalog's type names in sorted order.
func SectionTypes() []string {
	names := make([]string, 0, len(sectionTypes))
	for name := range sectionTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
