// Package main provides the entry point for the SiteWatch CLI.
//
// SiteWatch crawls websites politely and reports what changed since
// the last crawl: new pages, modified pages, and removed pages.
//
// Usage:
//
//	sitewatch crawl <url>
//	sitewatch watch
//	sitewatch changes <host>
//
// See --help for all available options.
package main

// main is the entry point for SiteWatch.
func main() {
	Execute()
}
