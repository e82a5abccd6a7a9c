package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/varnisher/internal/extract"
	"github.com/nao1215/varnisher/internal/fetcher"
	"github.com/nao1215/varnisher/internal/urls"
)

// Default configuration values.
const (
	// DefaultProxyPort is the port of the cache proxy. Varnish usually
	// listens on port 80 in front of the backend.
	DefaultProxyPort = 80

	// DefaultConcurrency is the number of concurrent fetches and purges.
	DefaultConcurrency = 16

	// DefaultMaxPages is the crawl page limit. -1 means no limit.
	DefaultMaxPages = -1

	// DefaultTimeout bounds each fetch and each purge request.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRedirects is the redirect budget of one fetch.
	DefaultMaxRedirects = fetcher.DefaultMaxRedirects

	// DefaultMaxBodySize limits the response body size read per page.
	DefaultMaxBodySize = fetcher.DefaultMaxBodySize

	// DefaultUserAgent identifies varnisher in crawl requests.
	DefaultUserAgent = fetcher.DefaultUserAgent

	// AppName is the application name used for XDG directory paths.
	AppName = "varnisher"
)

// Config holds all configuration options for varnisher.
// It is populated from the .varnishrc file and CLI flags and passed to
// the constructors that need it; there is no global configuration.
type Config struct {
	// Target is the URL or hostname to purge or crawl.
	Target string

	// ProxyHost is the hostname of the cache proxy.
	// When empty, the host of the target is used, which is the usual setup
	// when Varnish answers for the site itself.
	ProxyHost string

	// ProxyPort is the port of the cache proxy.
	ProxyPort int

	// Concurrency is the number of concurrent fetches and purges.
	Concurrency int

	// MaxPages stops a crawl once more pages than this were hit.
	// -1 means no limit.
	MaxPages int

	// IgnoreHashes treats URLs differing only by fragment as the same page.
	IgnoreHashes bool

	// IgnoreQueryStrings treats URLs differing only by query as the same page.
	IgnoreQueryStrings bool

	// Scope is a CSS selector. When set, the crawler only follows links
	// inside the matching parts of each page.
	Scope string

	// Verbose enables debug logging.
	Verbose bool

	// Quiet limits logging to errors.
	// Mutually exclusive with Verbose.
	Quiet bool

	// OutputFile is a log file path. When set, logs go to this file,
	// rotated by size, instead of stderr.
	OutputFile string

	// Timeout bounds each fetch and each purge request.
	Timeout time.Duration

	// MaxRedirects is the number of redirects one fetch may follow.
	MaxRedirects int

	// UserAgent is the User-Agent header sent with crawl requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated to prevent memory exhaustion.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// Rate caps crawl requests per second. 0 means no limit.
	Rate float64

	// Headers are extra HTTP headers sent with crawl requests.
	Headers map[string]string

	// Cookie is sent with every crawl request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string

	// CrawlProxy is the address of a SOCKS5 proxy used for crawl requests,
	// in "host:port" form. Purge requests always go to the cache proxy.
	CrawlProxy string

	// IgnorePatterns are URL path patterns the crawler skips.
	IgnorePatterns []string

	// FollowPatterns, when set, are the only URL path patterns the crawler
	// follows.
	FollowPatterns []string

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// JSONReport enables JSON report output instead of the simple text format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of the simple
	// text format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// SummaryOnly writes only the run counts instead of the full report.
	SummaryOnly bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// SaveToDB records the run in the history database.
	SaveToDB bool

	// DBDir is the directory of the history database.
	// Defaults to the XDG data directory (~/.local/share/varnisher on Linux).
	DBDir string

	// MetricsAddr is the listen address of the Prometheus endpoint.
	// Empty disables it.
	MetricsAddr string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ProxyPort:    DefaultProxyPort,
		Concurrency:  DefaultConcurrency,
		MaxPages:     DefaultMaxPages,
		IgnoreHashes: true,
		Timeout:      DefaultTimeout,
		MaxRedirects: DefaultMaxRedirects,
		UserAgent:    DefaultUserAgent,
		MaxBodySize:  DefaultMaxBodySize,
		SaveToDB:     true,
		DBDir:        XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for varnisher.
// On Linux: ~/.local/share/varnisher
// On macOS: ~/Library/Application Support/varnisher
// On Windows: %LOCALAPPDATA%\varnisher
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for varnisher.
// On Linux: ~/.config/varnisher
// On macOS: ~/Library/Application Support/varnisher
// On Windows: %APPDATA%\varnisher
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Policy returns the URL normalization policy of the configuration.
func (c *Config) Policy() urls.Policy {
	return urls.Policy{
		IgnoreHashes:       c.IgnoreHashes,
		IgnoreQueryStrings: c.IgnoreQueryStrings,
	}
}

// ProxyAddr returns the cache proxy address in host:port form.
// targetHost is used when ProxyHost is empty; a port in it is dropped.
func (c *Config) ProxyAddr(targetHost string) string {
	host := c.ProxyHost
	if host == "" {
		host = targetHost
		if h, _, err := net.SplitHostPort(targetHost); err == nil {
			host = h
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(c.ProxyPort))
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.Target == "" {
		return ErrNoTarget
	}

	if c.ProxyPort < 1 || c.ProxyPort > 65535 {
		return ErrInvalidPort
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxPages < -1 {
		return ErrInvalidMaxPages
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}

	if c.Rate < 0 {
		return ErrInvalidRate
	}

	if c.Verbose && c.Quiet {
		return ErrConflictingVerbosity
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if err := extract.ValidateScope(c.Scope); err != nil {
		return fmt.Errorf("invalid scope: %w", err)
	}

	return nil
}
