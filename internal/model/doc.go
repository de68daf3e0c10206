// Package model defines the core data structures used throughout SiteWatch.
//
// This package contains the following main types:
//   - CrawlTarget: Immutable description of a single crawl run
//   - VisitRecord: Per-URL traversal outcome within a run
//   - PageSnapshot: The current normalized content of a page
//   - ChangeRecord: A detected difference between two snapshots
//   - CrawlRunResult: Everything a completed run produced
//
// The model package has no dependencies on other internal packages,
// making it safe to import from anywhere in the codebase.
package model
