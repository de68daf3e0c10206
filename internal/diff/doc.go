// Package diff decides whether a page changed between two crawls and
// describes how.
//
// Detection is tiered by cost: a page with no prior snapshot is new, a
// digest match means unchanged and costs nothing further, and only a
// digest mismatch pays for similarity scoring, a unified diff, and a
// structural comparison of the pages' extracted DOM elements. The
// package also reconciles removed pages by comparing the set of URLs a
// finished crawl visited against the URLs previously known to be live.
package diff
