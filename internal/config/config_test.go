package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/varnisher/internal/extract"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default ProxyPort is 80", func(t *testing.T) {
		t.Parallel()
		if cfg.ProxyPort != 80 {
			t.Errorf("expected ProxyPort to be 80, got %d", cfg.ProxyPort)
		}
	})

	t.Run("default ProxyHost is empty", func(t *testing.T) {
		t.Parallel()
		if cfg.ProxyHost != "" {
			t.Errorf("expected ProxyHost to be empty, got %q", cfg.ProxyHost)
		}
	})

	t.Run("default Concurrency is 16", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 16 {
			t.Errorf("expected Concurrency to be 16, got %d", cfg.Concurrency)
		}
	})

	t.Run("default MaxPages is unlimited", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != -1 {
			t.Errorf("expected MaxPages to be -1, got %d", cfg.MaxPages)
		}
	})

	t.Run("hashes ignored and query strings kept by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.IgnoreHashes || cfg.IgnoreQueryStrings {
			t.Errorf("unexpected policy defaults: %+v", cfg.Policy())
		}
	})

	t.Run("default Timeout is 10 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 10*time.Second {
			t.Errorf("expected Timeout to be 10s, got %v", cfg.Timeout)
		}
	})

	t.Run("default MaxRedirects is 10", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxRedirects != 10 {
			t.Errorf("expected MaxRedirects to be 10, got %d", cfg.MaxRedirects)
		}
	})

	t.Run("default DBDir is the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() || !cfg.SaveToDB {
			t.Errorf("unexpected DB defaults: %q %v", cfg.DBDir, cfg.SaveToDB)
		}
	})

	t.Run("default UserAgent names varnisher", func(t *testing.T) {
		t.Parallel()
		if !strings.Contains(cfg.UserAgent, "varnisher") {
			t.Errorf("unexpected UserAgent %q", cfg.UserAgent)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Target = "http://www.example.com/"
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "no target", modify: func(c *Config) { c.Target = "" }, wantErr: ErrNoTarget},
		{name: "port zero", modify: func(c *Config) { c.ProxyPort = 0 }, wantErr: ErrInvalidPort},
		{name: "port too large", modify: func(c *Config) { c.ProxyPort = 70000 }, wantErr: ErrInvalidPort},
		{name: "zero threads", modify: func(c *Config) { c.Concurrency = 0 }, wantErr: ErrInvalidConcurrency},
		{name: "pages below -1", modify: func(c *Config) { c.MaxPages = -2 }, wantErr: ErrInvalidMaxPages},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative redirects", modify: func(c *Config) { c.MaxRedirects = -1 }, wantErr: ErrInvalidMaxRedirects},
		{name: "negative rate", modify: func(c *Config) { c.Rate = -1 }, wantErr: ErrInvalidRate},
		{name: "verbose and quiet", modify: func(c *Config) { c.Verbose, c.Quiet = true, true }, wantErr: ErrConflictingVerbosity},
		{name: "json and markdown", modify: func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, wantErr: ErrConflictingReportFormats},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, wantErr: ErrInvalidMaxBodySize},
		{name: "bad scope", modify: func(c *Config) { c.Scope = "div[" }, wantErr: extract.ErrInvalidScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("zero pages and zero rate are valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MaxPages = 0
		cfg.Rate = 0
		cfg.Scope = "#content a"
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})
}

// TestConfigProxyAddr tests the cache proxy address fallback.
func TestConfigProxyAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		proxyHost  string
		proxyPort  int
		targetHost string
		want       string
	}{
		{name: "target host when unset", proxyPort: 80, targetHost: "www.example.com", want: "www.example.com:80"},
		{name: "target port dropped", proxyPort: 6081, targetHost: "www.example.com:8080", want: "www.example.com:6081"},
		{name: "configured host", proxyHost: "cache.internal", proxyPort: 6081, targetHost: "www.example.com", want: "cache.internal:6081"},
		{name: "ipv6 host", proxyHost: "::1", proxyPort: 80, want: "[::1]:80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			cfg.ProxyHost = tt.proxyHost
			cfg.ProxyPort = tt.proxyPort
			if got := cfg.ProxyAddr(tt.targetHost); got != tt.want {
				t.Errorf("ProxyAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestFileSite tests the per-site merge.
func TestFileSite(t *testing.T) {
	t.Parallel()

	file := &File{
		SiteConfig: SiteConfig{
			Cookie:         "default=abc",
			Headers:        map[string]string{"X-Default": "1"},
			IgnorePatterns: []string{"/admin/*"},
		},
		Sites: map[string]SiteConfig{
			"www.example.com": {
				Cookie:         "session=xyz",
				Headers:        map[string]string{"X-Site": "2"},
				FollowPatterns: []string{"/blog/*"},
			},
		},
	}

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()
		site := file.Site("other.example.com")
		if site.Cookie != "default=abc" || len(site.Headers) != 1 {
			t.Errorf("unexpected site config %+v", site)
		}
	})

	t.Run("site entry overrides defaults", func(t *testing.T) {
		t.Parallel()
		site := file.Site("WWW.example.com")
		if site.Cookie != "session=xyz" {
			t.Errorf("expected site cookie, got %q", site.Cookie)
		}
		if site.Headers["X-Default"] != "1" || site.Headers["X-Site"] != "2" {
			t.Errorf("expected merged headers, got %v", site.Headers)
		}
		if len(site.IgnorePatterns) != 1 || len(site.FollowPatterns) != 1 {
			t.Errorf("unexpected patterns %+v", site)
		}
	})

	t.Run("does not modify defaults", func(t *testing.T) {
		t.Parallel()
		_ = file.Site("www.example.com")
		if _, ok := file.Headers["X-Site"]; ok {
			t.Error("default headers were modified")
		}
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.varnishrc")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `hostname: cache.internal
port: 6081
num-pages: 50
threads: 4
ignore-hashes: false
ignore-query-strings: true
timeout: 30s
rate: 2.5
scope: "#content"
cookie: "default=abc"
headers:
  Authorization: "Bearer token"
sites:
  www.example.com:
    ignore-patterns:
      - "/admin/*"
`)

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if f.Hostname == nil || *f.Hostname != "cache.internal" {
			t.Errorf("unexpected hostname %v", f.Hostname)
		}
		if f.Port == nil || *f.Port != 6081 {
			t.Errorf("unexpected port %v", f.Port)
		}
		if f.IgnoreHashes == nil || *f.IgnoreHashes {
			t.Errorf("expected ignore-hashes false, got %v", f.IgnoreHashes)
		}
		if f.Cookie != "default=abc" || f.Headers["Authorization"] != "Bearer token" {
			t.Errorf("unexpected inline site config %+v", f.SiteConfig)
		}
		if len(f.Sites["www.example.com"].IgnorePatterns) != 1 {
			t.Errorf("unexpected sites %+v", f.Sites)
		}
		if f.Verbose != nil {
			t.Error("expected absent key to stay nil")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `invalid: yaml: content: [}`)
		if _, err := LoadConfigFile(path); !errors.Is(err, ErrInvalidConfigFile) {
			t.Errorf("expected ErrInvalidConfigFile, got %v", err)
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "port: 80\n")
		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFileApply tests precedence of file values and flags.
func TestFileApply(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `hostname: cache.internal
port: 6081
num-pages: 50
threads: 4
ignore-query-strings: true
verbose: true
timeout: 30s
user-agent: custom/1.0
headers:
  X-File: file
  X-Both: file
sites:
  www.example.com:
    cookie: session=xyz
    follow-patterns: ["/blog/*"]
`)
	f, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("file values fill defaults", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Target = "http://www.example.com/"
		if err := f.Apply(cfg, nil); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}

		if cfg.ProxyHost != "cache.internal" || cfg.ProxyPort != 6081 {
			t.Errorf("unexpected proxy %s:%d", cfg.ProxyHost, cfg.ProxyPort)
		}
		if cfg.MaxPages != 50 || cfg.Concurrency != 4 {
			t.Errorf("unexpected limits %d %d", cfg.MaxPages, cfg.Concurrency)
		}
		if !cfg.IgnoreQueryStrings || !cfg.IgnoreHashes || !cfg.Verbose {
			t.Errorf("unexpected flags %+v", cfg)
		}
		if cfg.Timeout != 30*time.Second || cfg.UserAgent != "custom/1.0" {
			t.Errorf("unexpected timeout/user agent %v %q", cfg.Timeout, cfg.UserAgent)
		}
		if cfg.Cookie != "session=xyz" || len(cfg.FollowPatterns) != 1 {
			t.Errorf("expected site settings, got %q %v", cfg.Cookie, cfg.FollowPatterns)
		}
	})

	t.Run("explicit flags win", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Target = "www.example.com"
		cfg.ProxyPort = 8080
		cfg.Verbose = false
		cfg.Headers = map[string]string{"X-Both": "flag"}
		set := map[string]bool{"port": true, "verbose": true, "cookie": true}

		if err := f.Apply(cfg, func(name string) bool { return set[name] }); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}

		if cfg.ProxyPort != 8080 || cfg.Verbose {
			t.Errorf("flags were overridden: port=%d verbose=%v", cfg.ProxyPort, cfg.Verbose)
		}
		if cfg.Cookie != "" {
			t.Errorf("expected cookie from flag to win, got %q", cfg.Cookie)
		}
		if cfg.Headers["X-File"] != "file" || cfg.Headers["X-Both"] != "flag" {
			t.Errorf("unexpected merged headers %v", cfg.Headers)
		}
	})

	t.Run("other host gets no site settings", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Target = "http://other.example.com/"
		if err := f.Apply(cfg, nil); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if cfg.Cookie != "" || len(cfg.FollowPatterns) != 0 {
			t.Errorf("unexpected site settings %q %v", cfg.Cookie, cfg.FollowPatterns)
		}
	})

	t.Run("bad timeout", func(t *testing.T) {
		t.Parallel()

		bad := "soon"
		cfg := NewConfig()
		if err := (&File{Timeout: &bad}).Apply(cfg, nil); !errors.Is(err, ErrInvalidConfigFile) {
			t.Errorf("expected ErrInvalidConfigFile, got %v", err)
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "port: 80\n")
		if result := FindConfigFile(path); result != path {
			t.Errorf("expected %q, got %q", path, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if !strings.HasSuffix(XDGDataDir(), AppName) {
		t.Errorf("unexpected XDG data dir %q", XDGDataDir())
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("unexpected XDG config dir %q", XDGConfigDir())
	}
}
