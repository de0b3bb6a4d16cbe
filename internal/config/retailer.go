package config

// RetailerConfig holds configuration for a single retailer.
// This allows customizing crawl behavior per site.
type RetailerConfig struct {
	// Seeds are the top-level category URLs where discovery starts.
	// They become depth-0 nodes.
	Seeds []string `yaml:"seeds,omitempty"`

	// MaxDepth overrides the global depth cap for this retailer.
	// If zero, the global MaxDepth is used.
	MaxDepth int `yaml:"maxDepth,omitempty"`

	// Limit overrides the per-retailer in-flight ceiling.
	// If zero, the global RetailerLimit is used.
	Limit int `yaml:"limit,omitempty"`

	// Cookie is an HTTP cookie to use when crawling this retailer.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this retailer.
	Headers map[string]string `yaml:"headers,omitempty"`

	// CategoryPatterns are URL path patterns identifying category
	// pages, matched with glob syntax (e.g. "/c/*", "/browse/*").
	// If empty, every same-site link is treated as a candidate.
	CategoryPatterns []string `yaml:"categoryPatterns,omitempty"`
}

// File represents the structure of the .shelfmap configuration file.
type File struct {
	// Retailers maps retailer IDs to their configurations.
	// Keys are stable identifiers like "acme" or "megamart-us".
	Retailers map[string]RetailerConfig `yaml:"retailers,omitempty"`

	// Defaults contains default retailer configuration applied to all
	// retailers unless overridden in the retailer-specific entry.
	Defaults RetailerConfig `yaml:"defaults,omitempty"`
}

// GetRetailerConfig returns the configuration for a specific retailer.
// It merges the retailer-specific configuration with defaults.
// Seeds are never inherited from defaults; a seed URL only makes sense
// for one retailer.
func (cf *File) GetRetailerConfig(retailerID string) RetailerConfig {
	result := cf.Defaults
	result.Seeds = nil

	rc, ok := cf.Retailers[retailerID]
	if !ok {
		return result
	}

	result.Seeds = rc.Seeds
	if rc.MaxDepth != 0 {
		result.MaxDepth = rc.MaxDepth
	}
	if rc.Limit != 0 {
		result.Limit = rc.Limit
	}
	if rc.Cookie != "" {
		result.Cookie = rc.Cookie
	}
	if len(rc.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range rc.Headers {
			result.Headers[k] = v
		}
	}
	if len(rc.CategoryPatterns) > 0 {
		result.CategoryPatterns = rc.CategoryPatterns
	}

	return result
}
