package diff

import (
	"sort"

	"github.com/nao1215/sitewatch/internal/model"
)

// CompareStructures compares two extracted element lists by path and
// reports which elements appeared, disappeared, or changed text in
// place. It returns nil when the structures agree, so callers can
// store the result directly on a change record.
//
// Paths are not unique on real pages (two sibling <p> elements share
// one). Last occurrence wins, the same way the element lists are
// built; the structural view is a locator for reviewers, not a second
// source of truth. The text digest decides whether a page changed.
func CompareStructures(previous, current []model.PageElement) *model.StructuralDiff {
	prev := byPath(previous)
	curr := byPath(current)

	var sd model.StructuralDiff
	for path, el := range curr {
		old, ok := prev[path]
		if !ok {
			sd.Added = append(sd.Added, el)
			continue
		}
		if old.Text != el.Text {
			sd.Modified = append(sd.Modified, model.ElementChange{
				Path:       path,
				Tag:        el.Tag,
				OldText:    old.Text,
				NewText:    el.Text,
				Similarity: Similarity(old.Text, el.Text),
			})
		}
	}
	for path, el := range prev {
		if _, ok := curr[path]; !ok {
			sd.Removed = append(sd.Removed, el)
		}
	}

	if sd.Total() == 0 {
		return nil
	}
	sortStructuralDiff(&sd)
	return &sd
}

func byPath(elements []model.PageElement) map[string]model.PageElement {
	m := make(map[string]model.PageElement, len(elements))
	for _, el := range elements {
		m[el.Path] = el
	}
	return m
}

// sortStructuralDiff orders every slice by path so the diff is stable
// across runs regardless of map iteration order.
func sortStructuralDiff(sd *model.StructuralDiff) {
	sort.Slice(sd.Added, func(i, j int) bool { return sd.Added[i].Path < sd.Added[j].Path })
	sort.Slice(sd.Removed, func(i, j int) bool { return sd.Removed[i].Path < sd.Removed[j].Path })
	sort.Slice(sd.Modified, func(i, j int) bool { return sd.Modified[i].Path < sd.Modified[j].Path })
}
