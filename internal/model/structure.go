package model

// PageElement is one text-bearing element of a page's DOM, addressed by
// a selector-like path. The extracted element list is the structural
// counterpart of the normalized text: hashing answers "did anything
// change", the element list answers "where".
type PageElement struct {
	// Path is a CSS-selector-like location of the element, for example
	// "html > body > div#main > p".
	Path string `json:"path"`

	// Tag is the element's tag name.
	Tag string `json:"tag"`

	// Text is the element's collapsed text content, truncated to keep
	// stored structures bounded.
	Text string `json:"text"`
}

// StructuralDiff describes how the DOM structure of a page moved between
// two snapshots: elements present only in the new snapshot, elements
// that disappeared, and elements whose text changed in place.
type StructuralDiff struct {
	// Added lists elements whose path exists only in the current snapshot.
	Added []PageElement `json:"added,omitempty"`

	// Removed lists elements whose path exists only in the previous snapshot.
	Removed []PageElement `json:"removed,omitempty"`

	// Modified lists elements present in both snapshots whose text differs.
	Modified []ElementChange `json:"modified,omitempty"`
}

// Total returns the number of elements the diff touches across all kinds.
func (d *StructuralDiff) Total() int {
	return len(d.Added) + len(d.Removed) + len(d.Modified)
}

// ElementChange records an in-place text change of one element.
type ElementChange struct {
	// Path locates the element, shared by both snapshots.
	Path string `json:"path"`

	// Tag is the element's tag name.
	Tag string `json:"tag"`

	// OldText is the element's text in the previous snapshot.
	OldText string `json:"old_text"`

	// NewText is the element's text in the current snapshot.
	NewText string `json:"new_text"`

	// Similarity is the character-level similarity ratio in [0,1]
	// between OldText and NewText.
	Similarity float64 `json:"similarity"`
}
