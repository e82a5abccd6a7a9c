package extract

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

const resourcePage = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="/css/site.css">
  <link rel="alternate stylesheet" href="/css/print.css">
  <link rel="icon" href="/favicon.ico">
  <script src="/js/app.js"></script>
  <script>var inline = true;</script>
</head>
<body>
  <img src="logo.png">
  <img alt="no source">
  <img src="  ">
  <a href="/about">About</a>
</body>
</html>`

const crawlPage = `<html>
<body>
  <div id="nav">
    <a href="/home">Home</a>
    <a name="anchor-without-href">x</a>
  </div>
  <div id="content">
    <a href="bar">Bar</a>
    <!-- moved to http://www.example.com/old and https://www.example.com/new -->
    <a href="mailto:someone@example.com">Mail</a>
  </div>
  <!-- see http://www.example.com/footer -->
</body>
</html>`

// TestResources tests page mode extraction.
func TestResources(t *testing.T) {
	t.Parallel()

	got := Resources(Parse(strings.NewReader(resourcePage)))
	want := []Resource{
		{Kind: Stylesheet, URL: "/css/site.css"},
		{Kind: Stylesheet, URL: "/css/print.css"},
		{Kind: Script, URL: "/js/app.js"},
		{Kind: Image, URL: "logo.png"},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resources() = %+v, want %+v", got, want)
	}
}

// TestLinks tests crawl mode extraction.
func TestLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		scope string
		want  []string
	}{
		{
			name: "whole document",
			want: []string{
				"/home",
				"bar",
				"mailto:someone@example.com",
				"http://www.example.com/old",
				"https://www.example.com/new",
				"http://www.example.com/footer",
			},
		},
		{
			name:  "scoped to content",
			scope: "#content",
			want: []string{
				"bar",
				"mailto:someone@example.com",
				"http://www.example.com/old",
				"https://www.example.com/new",
			},
		},
		{
			name:  "scope matching the anchors themselves",
			scope: "#nav a",
			want:  []string{"/home"},
		},
		{
			name:  "overlapping scopes yield each link once",
			scope: "body, #content",
			want: []string{
				"/home",
				"bar",
				"mailto:someone@example.com",
				"http://www.example.com/old",
				"https://www.example.com/new",
				"http://www.example.com/footer",
			},
		},
		{
			name:  "scope matching nothing",
			scope: "#missing",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Links(Parse(strings.NewReader(crawlPage)), tt.scope)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Links(%q) = %q, want %q", tt.scope, got, tt.want)
			}
		})
	}
}

// TestExtract tests the unified entry point.
func TestExtract(t *testing.T) {
	t.Parallel()

	doc := Parse(strings.NewReader(resourcePage))

	page := Extract(doc, PageMode, "#ignored")
	if !reflect.DeepEqual(page, []string{"/css/site.css", "/css/print.css", "/js/app.js", "logo.png"}) {
		t.Errorf("unexpected page mode result: %q", page)
	}

	crawl := Extract(doc, CrawlMode, "")
	if !reflect.DeepEqual(crawl, []string{"/about"}) {
		t.Errorf("unexpected crawl mode result: %q", crawl)
	}
}

// TestParse_Degenerate tests inputs that yield no references.
func TestParse_Degenerate(t *testing.T) {
	t.Parallel()

	t.Run("read error yields empty document", func(t *testing.T) {
		t.Parallel()

		doc := Parse(iotest.ErrReader(errors.New("boom")))
		if doc == nil {
			t.Fatal("expected a document")
		}
		if n := len(Extract(doc, CrawlMode, "")); n != 0 {
			t.Errorf("expected no links, got %d", n)
		}
	})

	t.Run("non-HTML input", func(t *testing.T) {
		t.Parallel()

		doc := Parse(strings.NewReader("\x00\x01 just some bytes <<<"))
		if n := len(Resources(doc)); n != 0 {
			t.Errorf("expected no resources, got %d", n)
		}
	})

	t.Run("nil document", func(t *testing.T) {
		t.Parallel()

		if Resources(nil) != nil || Links(nil, "") != nil {
			t.Error("expected nil results for nil document")
		}
	})
}

// TestValidateScope tests selector validation.
func TestValidateScope(t *testing.T) {
	t.Parallel()

	for _, scope := range []string{"", "#content", "div.main > article", "body, #nav"} {
		if err := ValidateScope(scope); err != nil {
			t.Errorf("ValidateScope(%q) returned %v", scope, err)
		}
	}

	for _, scope := range []string{"div[", "##", "a:bogus-pseudo"} {
		if err := ValidateScope(scope); !errors.Is(err, ErrInvalidScope) {
			t.Errorf("ValidateScope(%q) = %v, want ErrInvalidScope", scope, err)
		}
	}
}

// TestMode_String tests the mode names.
func TestMode_String(t *testing.T) {
	t.Parallel()

	if PageMode.String() != "page" || CrawlMode.String() != "crawl" {
		t.Error("unexpected mode names")
	}
}
