// Package config manages SiteWatch configuration including CLI defaults,
// the YAML watch file with per-domain settings, and XDG directory paths.
package config
