// Package notify turns run results into change digests and delivers
// them.
//
// A Digest aggregates the changes from one or more crawl runs. Writers
// render it as plain text, JSON, or Markdown; the Mailer sends it over
// SMTP. Empty digests are never mailed.
package notify
