package transfer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/versopress/verso/internal/feat/page"
)

// BatchItem is one document in a batch import, with an optional
// hierarchy-relative path.
type BatchItem struct {
	Path    string `json:"path,omitempty"`
	Content string `json:"content"`
}

// BatchSuccess reports one imported document.
type BatchSuccess struct {
	Index    int      `json:"index"`
	Path     string   `json:"path,omitempty"`
	Slug     string   `json:"slug"`
	PageID   int64    `json:"page_id"`
	Created  bool     `json:"created"`
	Warnings []string `json:"warnings,omitempty"`
}

// BatchFailure reports one rejected document. Failures never abort the
// batch; every item gets exactly one entry in the report.
type BatchFailure struct {
	Index   int    `json:"index"`
	Path    string `json:"path,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// BatchReport is the full outcome of a batch import, both lists ordered
// by the item's position in the request.
type BatchReport struct {
	Succeeded []BatchSuccess `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

type batchEntry struct {
	index int
	item  BatchItem
	doc   *Document
	chain []string
	slug  string
	depth int
	err   error
}

// ImportAll imports a batch of documents into a site. Items are imported
// parents-first (by path depth when paths are present, otherwise by
// chasing parentSlug references within the batch), so a parent and its
// children can arrive in one request in any order. Item failures are
// isolated: each failed item is reported and the rest proceed.
func (im *Importer) ImportAll(ctx context.Context, siteID int64, items []BatchItem, mode Mode) (*BatchReport, error) {
	entries := make([]*batchEntry, len(items))
	bySlug := make(map[string]*batchEntry, len(items))

	for i, item := range items {
		e := &batchEntry{index: i, item: item}
		entries[i] = e

		if item.Path != "" {
			slug, chain, err := ParsePagePath(item.Path)
			if err != nil {
				if !errors.Is(err, page.ErrHierarchyTooDeep) {
					err = fmt.Errorf("%w: %v", ErrMalformedDocument, err)
				}
				e.err = err
				continue
			}
			e.slug, e.chain, e.depth = slug, chain, len(chain)
		}

		doc, err := DecodeDocument(item.Content)
		if err != nil {
			e.err = err
			continue
		}
		e.doc = doc
		if e.slug == "" {
			if e.slug = doc.Frontmatter.Slug; e.slug == "" {
				e.slug = page.Slugify(doc.Frontmatter.Title)
			}
		}
		bySlug[e.slug] = e
	}

	// Pathless items order by in-batch parent hops: a child sorts after
	// any ancestor that travels in the same request.
	for _, e := range entries {
		if e.err != nil || e.item.Path != "" {
			continue
		}
		parentSlug := e.doc.Frontmatter.ParentSlug
		for hops := 0; parentSlug != "" && hops <= page.MaxLevel; hops++ {
			parent, inBatch := bySlug[parentSlug]
			if !inBatch || parent == e {
				break
			}
			e.depth++
			if parent.doc == nil {
				break
			}
			parentSlug = parent.doc.Frontmatter.ParentSlug
		}
	}

	order := make([]*batchEntry, len(entries))
	copy(order, entries)
	sort.SliceStable(order, func(i, j int) bool { return order[i].depth < order[j].depth })

	report := &BatchReport{Succeeded: []BatchSuccess{}, Failed: []BatchFailure{}}
	for _, e := range order {
		if e.err == nil {
			res, err := im.Import(ctx, siteID, e.item.Content, ImportOptions{Mode: mode, PathChain: e.chain})
			if err != nil {
				e.err = err
			} else {
				report.Succeeded = append(report.Succeeded, BatchSuccess{
					Index:    e.index,
					Path:     e.item.Path,
					Slug:     res.Page.Slug,
					PageID:   res.Page.ID,
					Created:  res.Created,
					Warnings: res.Warnings,
				})
				continue
			}
		}
		report.Failed = append(report.Failed, BatchFailure{
			Index:   e.index,
			Path:    e.item.Path,
			Kind:    errorKind(e.err),
			Message: e.err.Error(),
		})
	}

	sort.Slice(report.Succeeded, func(i, j int) bool { return report.Succeeded[i].Index < report.Succeeded[j].Index })
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Index < report.Failed[j].Index })

	im.log.Infof("Batch import for site %d: %d succeeded, %d failed",
		siteID, len(report.Succeeded), len(report.Failed))
	return report, nil
}
