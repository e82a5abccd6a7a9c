package crawler

import (
	"path"
	"strings"
)

// shouldCrawl checks a URL path against the ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func shouldCrawl(urlPath string, ignore, follow []string) bool {
	if urlPath == "" {
		urlPath = "/"
	}

	for _, pattern := range ignore {
		if matchPattern(pattern, urlPath) {
			return false
		}
	}

	if len(follow) == 0 {
		return true
	}
	for _, pattern := range follow {
		if matchPattern(pattern, urlPath) {
			return true
		}
	}
	return false
}

// matchPattern checks if a URL path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match a whole subtree
//   - a leading *. to match an extension anywhere
//
// Examples:
//   - "/admin/*" matches "/admin", "/admin/users/edit"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, urlPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(urlPath, prefix+"/") || urlPath == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(urlPath, ext) {
			return true
		}
	}

	matched, err := path.Match(pattern, urlPath)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash are matched against the last segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := path.Match(pattern, path.Base(urlPath))
		if err == nil && matched {
			return true
		}
	}

	return false
}
