package transfer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/versopress/verso/internal/feat/media"
	"github.com/versopress/verso/internal/feat/page"
)

// mediaURLRegex matches the internal media-serving convention:
// /media/{site}/{type}/{filename}. Anything else (external URLs, data
// URIs) is left untouched and never considered for bundling.
var mediaURLRegex = regexp.MustCompile(`/media/([a-z0-9][a-z0-9-]*)/(image|video|document)/([A-Za-z0-9][A-Za-z0-9._%-]*)`)

// ExtractMediaKeys deep-scans a section tree for internal media references
// and returns the deduplicated set of referenced asset keys in a stable
// order. Sections are scanned structurally-agnostically (serialized and
// pattern-matched), so the extractor stays correct as new section types
// are added to the catalog.
func ExtractMediaKeys(sections page.SectionList) ([]media.Key, error) {
	if len(sections) == 0 {
		return nil, nil
	}

	blob, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("cannot serialize sections: %w", err)
	}

	seen := make(map[media.Key]struct{})
	var keys []media.Key

	for _, m := range mediaURLRegex.FindAllSubmatchIndex(blob, -1) {
		// A preceding host character means the match sits inside an
		// absolute external URL (e.g. https://cdn.example.com/media/...).
		if start := m[0]; start > 0 && isHostByte(blob[start-1]) {
			continue
		}

		key := media.Key{
			Site:     string(blob[m[2]:m[3]]),
			Type:     string(blob[m[4]:m[5]]),
			Filename: string(blob[m[6]:m[7]]),
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Site != keys[j].Site {
			return keys[i].Site < keys[j].Site
		}
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].Filename < keys[j].Filename
	})

	return keys, nil
}

func isHostByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '.' || b == '-':
		return true
	}
	return false
}
