package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/varnisher/internal/config"
	"github.com/spf13/cobra"
)

// errInvalidHeader is returned for a --header value without a colon.
var errInvalidHeader = errors.New("invalid header (expected \"Name: value\")")

// addProxyFlags adds the cache proxy, logging and report flags shared by
// every command that sends purges.
func addProxyFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	// Cache proxy
	f.StringP("hostname", "H", "",
		"Hostname/IP address of the cache proxy (default: the target's host)")
	f.IntP("port", "p", config.DefaultProxyPort,
		"Port the cache proxy is listening on")
	f.IntP("threads", "t", config.DefaultConcurrency,
		"Number of concurrent fetches and purges")
	f.DurationP("timeout", "T", config.DefaultTimeout,
		"Timeout for each fetch and each purge request")

	// URL normalization
	f.Bool("ignore-hashes", true,
		"Treat URLs differing only by #fragment as the same page")
	f.Bool("ignore-query-strings", false,
		"Treat URLs differing only by ?query as the same page")

	// Crawl requests
	f.String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with crawl requests")
	f.String("cookie", "",
		"Cookie sent with crawl requests (e.g. \"session=abc\")")
	f.StringArray("header", nil,
		"Extra header sent with crawl requests, as \"Name: value\" (repeatable)")
	f.String("crawl-proxy", "",
		"SOCKS5 proxy for crawl requests (e.g. 127.0.0.1:1080)")
	f.Int("max-redirects", config.DefaultMaxRedirects,
		"Number of redirects one fetch may follow")

	// Logging
	f.BoolP("verbose", "v", false, "Output more information")
	f.BoolP("quiet", "q", false, "Only output errors")
	f.StringP("output-file", "o", "", "Write logs to this file instead of stderr")

	// Configuration file
	f.StringP("config", "c", "",
		"Configuration file path (default: .varnishrc in current or home directory)")

	// Report and history
	f.BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	f.BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	f.StringP("report", "r", "",
		"Write report to specified file path (creates directories if needed)")
	f.Bool("summary", false, "Output only the run summary instead of the full report")
	f.Bool("no-history", false, "Do not record the run in the history database")
	f.String("db-dir", config.XDGDataDir(), "Directory of the history database")
	f.String("metrics-addr", "",
		"Serve Prometheus metrics on this address while running (e.g. :9090)")
}

// addCrawlFlags adds the flags that only matter when crawling.
func addCrawlFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.IntP("num-pages", "n", config.DefaultMaxPages,
		"Stop crawling after this many pages (-1 for no limit)")
	f.StringP("scope", "s", "",
		"Only follow links inside elements matching this CSS selector")
	f.Float64("rate", 0, "Crawl requests per second (0 for no limit)")
	f.StringArray("ignore-pattern", nil,
		"URL path pattern to skip while crawling (repeatable, e.g. \"/admin/*\")")
	f.StringArray("follow-pattern", nil,
		"URL path pattern to follow while crawling; others are skipped (repeatable)")
}

// buildConfig creates a Config for target from the command flags and the
// configuration file. Explicitly set flags override the file.
func buildConfig(cmd *cobra.Command, target string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Target = target
	f := cmd.Flags()

	var err error
	if cfg.ProxyHost, err = f.GetString("hostname"); err != nil {
		return nil, err
	}
	if cfg.ProxyPort, err = f.GetInt("port"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = f.GetInt("threads"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = f.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.IgnoreHashes, err = f.GetBool("ignore-hashes"); err != nil {
		return nil, err
	}
	if cfg.IgnoreQueryStrings, err = f.GetBool("ignore-query-strings"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = f.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Cookie, err = f.GetString("cookie"); err != nil {
		return nil, err
	}
	if cfg.CrawlProxy, err = f.GetString("crawl-proxy"); err != nil {
		return nil, err
	}
	if cfg.MaxRedirects, err = f.GetInt("max-redirects"); err != nil {
		return nil, err
	}
	if cfg.Verbose, err = f.GetBool("verbose"); err != nil {
		return nil, err
	}
	if cfg.Quiet, err = f.GetBool("quiet"); err != nil {
		return nil, err
	}
	if cfg.OutputFile, err = f.GetString("output-file"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = f.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = f.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = f.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.SummaryOnly, err = f.GetBool("summary"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = f.GetString("report"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = f.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.MetricsAddr, err = f.GetString("metrics-addr"); err != nil {
		return nil, err
	}

	noHistory, err := f.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	headers, err := f.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	if cfg.Headers, err = parseHeaders(headers); err != nil {
		return nil, err
	}

	// Crawl flags exist on the spider command only.
	if f.Lookup("num-pages") != nil {
		if cfg.MaxPages, err = f.GetInt("num-pages"); err != nil {
			return nil, err
		}
		if cfg.Scope, err = f.GetString("scope"); err != nil {
			return nil, err
		}
		if cfg.Rate, err = f.GetFloat64("rate"); err != nil {
			return nil, err
		}
		if cfg.IgnorePatterns, err = f.GetStringArray("ignore-pattern"); err != nil {
			return nil, err
		}
		if cfg.FollowPatterns, err = f.GetStringArray("follow-pattern"); err != nil {
			return nil, err
		}
	}

	if err := applyConfigFile(cmd, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyConfigFile loads the configuration file and applies it to cfg.
// A missing file is an error only when its path was given explicitly.
func applyConfigFile(cmd *cobra.Command, cfg *config.Config) error {
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	return file.Apply(cfg, cmd.Flags().Changed)
}

// parseHeaders turns "Name: value" strings into a header map.
func parseHeaders(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidHeader, v)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
