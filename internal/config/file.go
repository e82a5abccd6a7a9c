package config

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/nao1215/varnisher/internal/urls"
)

// SiteConfig holds crawl settings that may differ per host.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignore-patterns,omitempty"`

	// FollowPatterns are URL patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"follow-patterns,omitempty"`
}

// File represents the structure of the .varnishrc configuration file.
// Keys mirror the command-line flag names. Pointer fields distinguish an
// absent key from a zero value.
type File struct {
	Hostname           *string  `yaml:"hostname,omitempty"`
	Port               *int     `yaml:"port,omitempty"`
	NumPages           *int     `yaml:"num-pages,omitempty"`
	Threads            *int     `yaml:"threads,omitempty"`
	IgnoreHashes       *bool    `yaml:"ignore-hashes,omitempty"`
	IgnoreQueryStrings *bool    `yaml:"ignore-query-strings,omitempty"`
	Verbose            *bool    `yaml:"verbose,omitempty"`
	Quiet              *bool    `yaml:"quiet,omitempty"`
	OutputFile         *string  `yaml:"output-file,omitempty"`
	Timeout            *string  `yaml:"timeout,omitempty"`
	Rate               *float64 `yaml:"rate,omitempty"`
	Scope              *string  `yaml:"scope,omitempty"`
	UserAgent          *string  `yaml:"user-agent,omitempty"`
	CrawlProxy         *string  `yaml:"crawl-proxy,omitempty"`

	// SiteConfig holds the crawl settings applied to every site.
	SiteConfig `yaml:",inline"`

	// Sites maps hostnames to settings that override the top-level ones.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// Site returns the crawl settings for host, merging the site-specific
// entry over the top-level settings.
func (f *File) Site(host string) SiteConfig {
	result := f.SiteConfig
	result.Headers = maps.Clone(f.Headers)

	site, ok := f.Sites[strings.ToLower(host)]
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}

	return result
}

// Apply copies the file's values into cfg. A value is skipped when isSet
// reports that the matching command-line flag was given, so flags take
// precedence over the file. isSet may be nil.
//
// Site settings are looked up by the host of cfg.Target, so Target must be
// set before Apply is called. Headers from the file and from cfg are merged,
// with cfg winning on conflicts.
func (f *File) Apply(cfg *Config, isSet func(flag string) bool) error {
	if isSet == nil {
		isSet = func(string) bool { return false }
	}
	unset := func(flag string) bool { return !isSet(flag) }

	if f.Hostname != nil && unset("hostname") {
		cfg.ProxyHost = *f.Hostname
	}
	if f.Port != nil && unset("port") {
		cfg.ProxyPort = *f.Port
	}
	if f.NumPages != nil && unset("num-pages") {
		cfg.MaxPages = *f.NumPages
	}
	if f.Threads != nil && unset("threads") {
		cfg.Concurrency = *f.Threads
	}
	if f.IgnoreHashes != nil && unset("ignore-hashes") {
		cfg.IgnoreHashes = *f.IgnoreHashes
	}
	if f.IgnoreQueryStrings != nil && unset("ignore-query-strings") {
		cfg.IgnoreQueryStrings = *f.IgnoreQueryStrings
	}
	if f.Verbose != nil && unset("verbose") {
		cfg.Verbose = *f.Verbose
	}
	if f.Quiet != nil && unset("quiet") {
		cfg.Quiet = *f.Quiet
	}
	if f.OutputFile != nil && unset("output-file") {
		cfg.OutputFile = *f.OutputFile
	}
	if f.Timeout != nil && unset("timeout") {
		d, err := time.ParseDuration(*f.Timeout)
		if err != nil {
			return fmt.Errorf("%w: timeout %q: %w", ErrInvalidConfigFile, *f.Timeout, err)
		}
		cfg.Timeout = d
	}
	if f.Rate != nil && unset("rate") {
		cfg.Rate = *f.Rate
	}
	if f.Scope != nil && unset("scope") {
		cfg.Scope = *f.Scope
	}
	if f.UserAgent != nil && unset("user-agent") {
		cfg.UserAgent = *f.UserAgent
	}
	if f.CrawlProxy != nil && unset("crawl-proxy") {
		cfg.CrawlProxy = *f.CrawlProxy
	}

	site := f.Site(targetHost(cfg.Target))
	if site.Cookie != "" && unset("cookie") {
		cfg.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		merged := site.Headers
		maps.Copy(merged, cfg.Headers)
		cfg.Headers = merged
	}
	if len(site.IgnorePatterns) > 0 && unset("ignore-pattern") {
		cfg.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 && unset("follow-pattern") {
		cfg.FollowPatterns = site.FollowPatterns
	}

	return nil
}

// targetHost returns the hostname of a URL or bare hostname target.
func targetHost(target string) string {
	u, err := urls.SeedURL(target)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
