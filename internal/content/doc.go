// Package content turns raw HTML into the comparable text that change
// detection operates on.
//
// The Normalizer strips markup that changes on every fetch without
// meaning anything (scripts, styles, ad containers, visit counters)
// and collapses whitespace, so two fetches of a semantically unchanged
// page produce byte-identical text. The page digest is computed over
// this normalized text; see model.DigestText.
//
// Normalization is idempotent: normalizing already-normalized text is
// a no-op, which the change detector relies on.
//
// The Normalizer also extracts a structural view of the page, a list
// of text-bearing DOM elements addressed by selector-like paths, which
// the change detector uses to locate where a modification happened.
package content
