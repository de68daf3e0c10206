// Package log provides secure logging with automatic sanitization of
// sensitive information, built on top of the standard slog package.
//
// The SecureHandler masks credentials before they reach log output:
// SMTP passwords from the watch file, HTTP authentication headers and
// cookies observed while crawling, and token-shaped values detected by
// pattern matching. Even in verbose mode, secrets never appear in logs
// that may be shared or stored.
//
//	logger := log.NewSecureLogger(os.Stderr, true)
//	logger.Info("mail sent",
//	    "smtp_password", "hunter2", // masked
//	    "host", "example.com",
//	)
//	slog.SetDefault(logger)
//
// Page digests are SHA-256 hex strings and are deliberately NOT
// treated as secrets; the handler's patterns are chosen so digests and
// run identifiers log cleanly.
package log
