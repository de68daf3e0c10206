// Package database provides the SQLite persistence layer.
//
// One database file holds everything SiteWatch knows: the watched
// domains, the single live snapshot per URL, the append-only change
// history, run summaries, and the per-run visit log. Change detection
// across runs works by comparing a fresh crawl against the snapshots
// stored here.
package database
