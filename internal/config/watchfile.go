package config

// DomainConfig holds per-domain settings from the watch file.
// Zero values mean "use the global default".
type DomainConfig struct {
	// URL is the root URL to crawl for this domain.
	URL string `yaml:"url"`

	// ScopeHost overrides the crawl scope host for this domain.
	ScopeHost string `yaml:"scopeHost,omitempty"`

	// IncludeSubdomains widens the scope to subdomains of the scope host.
	IncludeSubdomains bool `yaml:"includeSubdomains,omitempty"`

	// Depth overrides the global crawl depth for this domain.
	Depth int `yaml:"depth,omitempty"`

	// MaxPages overrides the global page budget for this domain.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Interval is how often watch mode re-crawls this domain.
	Interval Duration `yaml:"interval,omitempty"`

	// Email receives the change digest for this domain.
	Email string `yaml:"email,omitempty"`

	// Denylist adds volatile-markup rules for this domain on top of
	// the file-level denylist.
	Denylist []DenyRule `yaml:"denylist,omitempty"`
}

// DenyRule identifies volatile page elements the normalizer strips
// before hashing. A rule matches an element when its tag equals Tag
// (empty Tag matches any tag) and the named attribute's value contains
// Pattern. Stripping these prevents false change alerts from content
// that changes on every fetch without semantic meaning.
type DenyRule struct {
	// Tag is the element name to match, e.g. "div". Empty matches any.
	Tag string `yaml:"tag,omitempty"`

	// Attr is the attribute to inspect, e.g. "class" or "id".
	Attr string `yaml:"attr"`

	// Pattern is the substring the attribute value must contain.
	Pattern string `yaml:"pattern"`
}

// SMTPConfig holds outgoing mail settings for change digests.
type SMTPConfig struct {
	// Host and Port locate the SMTP server.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// From is the sender address.
	From string `yaml:"from"`

	// Username and Password authenticate against the server.
	// Empty username means unauthenticated delivery.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// To is the default recipient when a domain has no Email set.
	To string `yaml:"to,omitempty"`
}

// File represents the structure of the .sitewatch watch file.
type File struct {
	// Domains maps a name to its domain configuration.
	Domains map[string]DomainConfig `yaml:"domains,omitempty"`

	// Defaults is applied to every domain unless overridden.
	Defaults DomainConfig `yaml:"defaults,omitempty"`

	// Denylist holds volatile-markup rules applied to every domain.
	Denylist []DenyRule `yaml:"denylist,omitempty"`

	// SMTP configures digest email delivery. Nil disables email.
	SMTP *SMTPConfig `yaml:"smtp,omitempty"`
}

// GetDomainConfig returns the configuration for a named domain, merged
// with the file defaults. File-level denylist rules come first so that
// domain rules can only add, never hide, global rules.
func (f *File) GetDomainConfig(name string) DomainConfig {
	result := f.Defaults

	dc, ok := f.Domains[name]
	if ok {
		if dc.URL != "" {
			result.URL = dc.URL
		}
		if dc.ScopeHost != "" {
			result.ScopeHost = dc.ScopeHost
		}
		if dc.IncludeSubdomains {
			result.IncludeSubdomains = true
		}
		if dc.Depth != 0 {
			result.Depth = dc.Depth
		}
		if dc.MaxPages != 0 {
			result.MaxPages = dc.MaxPages
		}
		if !dc.Interval.IsZero() {
			result.Interval = dc.Interval
		}
		if dc.Email != "" {
			result.Email = dc.Email
		}
	}

	rules := make([]DenyRule, 0, len(f.Denylist)+len(result.Denylist)+len(dc.Denylist))
	rules = append(rules, f.Denylist...)
	rules = append(rules, result.Denylist...)
	if ok {
		rules = append(rules, dc.Denylist...)
	}
	result.Denylist = rules

	return result
}
