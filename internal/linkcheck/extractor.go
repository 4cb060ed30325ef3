package linkcheck

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Link represents an extracted link from generated HTML content.
type Link struct {
	URL        string // the URL or path
	Text       string // link text/title
	Tag        string // HTML tag (a, img, script, link)
	Attribute  string // attribute containing the link (href, src)
	IsInternal bool   // true if the link stays within the built site
}

// ExtractHTMLLinks extracts all links from an HTML file.
func ExtractHTMLLinks(htmlPath string) ([]Link, error) {
	file, err := os.Open(filepath.Clean(htmlPath))
	if err != nil {
		return nil, fmt.Errorf("open HTML file %s: %w", htmlPath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	return ExtractHTMLLinksFromReader(file)
}

// ExtractHTMLLinksFromReader extracts all links from an HTML reader.
func ExtractHTMLLinksFromReader(r io.Reader) ([]Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var links []Link
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			extractElementLinks(n, &links)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(doc)
	return links, nil
}

func extractElementLinks(n *html.Node, links *[]Link) {
	switch n.Data {
	case "a":
		if href := getAttr(n, "href"); href != "" {
			*links = append(*links, Link{
				URL:        href,
				Text:       extractText(n),
				Tag:        "a",
				Attribute:  "href",
				IsInternal: isInternal(href),
			})
		}
	case "img":
		if src := getAttr(n, "src"); src != "" {
			*links = append(*links, Link{
				URL:        src,
				Tag:        "img",
				Attribute:  "src",
				IsInternal: isInternal(src),
			})
		}
	case "link":
		if href := getAttr(n, "href"); href != "" {
			*links = append(*links, Link{
				URL:        href,
				Tag:        "link",
				Attribute:  "href",
				IsInternal: isInternal(href),
			})
		}
	case "script":
		if src := getAttr(n, "src"); src != "" {
			*links = append(*links, Link{
				URL:        src,
				Tag:        "script",
				Attribute:  "src",
				IsInternal: isInternal(src),
			})
		}
	}
}

func getAttr(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// isInternal reports whether a link target stays within the built site.
// Scheme-qualified URLs, protocol-relative URLs and mailto links are external.
func isInternal(raw string) bool {
	if strings.HasPrefix(raw, "//") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		// Unparseable links are treated as internal so they get flagged
		// against the filesystem rather than silently skipped.
		return true
	}
	return u.Scheme == "" && u.Host == ""
}
