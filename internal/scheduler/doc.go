// Package scheduler drives periodic crawl runs in watch mode.
//
// Each watched domain gets its own goroutine ticking at the domain's
// configured interval. A tick that finds the previous run still in
// progress is skipped, never queued: intervals express "at most this
// fresh", not a work backlog.
package scheduler
