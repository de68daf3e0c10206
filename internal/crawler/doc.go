// Package crawler implements the polite BFS traversal of a single
// website.
//
// The package has three collaborators: Fetcher retrieves one URL with
// robots.txt enforcement, a randomized politeness delay, and outcome
// classification; Parser extracts and classifies the links on a page;
// Spider drives breadth-first traversal within the crawl scope under
// depth and page budgets, producing a model.CrawlRunResult.
//
// Per-URL failures never abort a crawl. Every fetch problem is
// classified into a model.FetchOutcome, recorded, and the traversal
// moves on.
package crawler
