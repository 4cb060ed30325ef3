package linkcheck

import (
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractMarkdownLinks parses a Markdown/MyST source body and extracts link
// destinations. Sphinx projects using the MyST parser keep .md sources in the
// doc tree; their links are verified before sphinx-build runs so authors get
// file-level diagnostics.
func ExtractMarkdownLinks(body []byte) []Link {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	links := make([]Link, 0)
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.AutoLink:
			dest := string(node.URL(body))
			links = append(links, Link{URL: dest, Tag: "autolink", IsInternal: isInternal(dest)})
		case *gmast.Image:
			dest := string(node.Destination)
			links = append(links, Link{URL: dest, Tag: "image", IsInternal: isInternal(dest)})
		case *gmast.Link:
			dest := string(node.Destination)
			links = append(links, Link{URL: dest, Tag: "link", Text: string(node.Title), IsInternal: isInternal(dest)})
		}
		return gmast.WalkContinue, nil
	})
	return links
}
