package extract

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Kind identifies the type of a page resource.
type Kind string

const (
	// Stylesheet is a <link rel="stylesheet"> target.
	Stylesheet Kind = "stylesheet"

	// Script is a <script src> target.
	Script Kind = "script"

	// Image is an <img src> target.
	Image Kind = "image"
)

// Definition describes where one kind of resource lives in the markup.
type Definition struct {
	Kind      Kind
	Selector  string
	Attribute string
}

// Definitions is the resource table used in page mode, in output order.
var Definitions = []Definition{
	{Kind: Stylesheet, Selector: "link[rel~=stylesheet]", Attribute: "href"},
	{Kind: Script, Selector: "script[src]", Attribute: "src"},
	{Kind: Image, Selector: "img[src]", Attribute: "src"},
}

// Resource is one resource reference found on a page.
type Resource struct {
	Kind Kind
	URL  string
}

// Mode selects what Extract returns.
type Mode int

const (
	// PageMode returns page resources.
	PageMode Mode = iota

	// CrawlMode returns links to other pages.
	CrawlMode
)

// String returns the mode name.
func (m Mode) String() string {
	if m == CrawlMode {
		return "crawl"
	}
	return "page"
}

// anchorSelector matches the links followed in crawl mode.
const anchorSelector = "a[href]"

// commentURLPattern finds URLs mentioned in HTML comments.
var commentURLPattern = regexp.MustCompile(`https?://[^\s"]*`)

// Parse reads an HTML document. It never fails: markup that cannot be
// parsed at all yields an empty document.
func Parse(r io.Reader) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})
	}
	return doc
}

// ValidateScope reports whether scope is a usable CSS selector. An empty
// scope is valid and means the whole document.
func ValidateScope(scope string) error {
	if strings.TrimSpace(scope) == "" {
		return nil
	}
	if _, err := cascadia.Compile(scope); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidScope, scope, err)
	}
	return nil
}

// Extract returns the references of doc for the given mode. The scope
// selector only applies in crawl mode.
func Extract(doc *goquery.Document, mode Mode, scope string) []string {
	if mode == CrawlMode {
		return Links(doc, scope)
	}

	resources := Resources(doc)
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.URL)
	}
	return out
}

// Resources returns the stylesheet, script and image references of doc,
// grouped in the order of Definitions and in document order within a group.
func Resources(doc *goquery.Document) []Resource {
	if doc == nil {
		return nil
	}

	var out []Resource
	for _, def := range Definitions {
		doc.Find(def.Selector).Each(func(_ int, s *goquery.Selection) {
			if v, ok := attrValue(s, def.Attribute); ok {
				out = append(out, Resource{Kind: def.Kind, URL: v})
			}
		})
	}
	return out
}

// Links returns the anchor targets of doc followed by the URLs found in its
// comments. When scope is non-empty only the subtrees matching it are
// searched; a scope that matches nothing yields no links.
func Links(doc *goquery.Document, scope string) []string {
	if doc == nil {
		return nil
	}

	roots := doc.Selection
	if strings.TrimSpace(scope) != "" {
		roots = doc.Find(scope)
	}

	var out []string
	roots.Find(anchorSelector).AddSelection(roots.Filter(anchorSelector)).Each(func(_ int, s *goquery.Selection) {
		if v, ok := attrValue(s, "href"); ok {
			out = append(out, v)
		}
	})

	for _, c := range comments(roots) {
		out = append(out, commentURLPattern.FindAllString(c, -1)...)
	}

	return out
}

// comments returns the text of every comment node below the selection, each
// node once even when roots are nested.
func comments(roots *goquery.Selection) []string {
	seen := make(map[*html.Node]struct{})
	var out []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.CommentNode {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				out = append(out, n.Data)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range roots.Nodes {
		walk(n)
	}
	return out
}

func attrValue(s *goquery.Selection, name string) (string, bool) {
	v, ok := s.Attr(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
