// Package engine orchestrates complete crawl-and-detect runs.
//
// A run flows through a pipeline of steps: traverse the site, detect
// changes against stored snapshots, reconcile removed pages, and save
// the run record. The Runner serializes runs per domain while letting
// distinct domains run concurrently, and the BatchProcessor fans a set
// of domains out over a bounded worker pool.
package engine
