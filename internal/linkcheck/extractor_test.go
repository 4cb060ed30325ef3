package linkcheck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureHTML = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="_static/pygments.css"/>
  <script src="_static/doctools.js"></script>
</head>
<body>
  <a href="genindex.html">Index</a>
  <a href="https://www.sphinx-doc.org/">Sphinx</a>
  <a href="mailto:docs@example.com">Mail</a>
  <a href="//cdn.example.com/lib.js">CDN</a>
  <a href="#section">Anchor</a>
  <img src="_images/diagram.png"/>
</body>
</html>`

func TestExtractHTMLLinks(t *testing.T) {
	links, err := ExtractHTMLLinksFromReader(strings.NewReader(fixtureHTML))
	require.NoError(t, err)
	require.Len(t, links, 8)

	byURL := make(map[string]Link)
	for _, l := range links {
		byURL[l.URL] = l
	}

	assert.True(t, byURL["genindex.html"].IsInternal)
	assert.Equal(t, "Index", byURL["genindex.html"].Text)
	assert.Equal(t, "a", byURL["genindex.html"].Tag)

	assert.False(t, byURL["https://www.sphinx-doc.org/"].IsInternal)
	assert.False(t, byURL["mailto:docs@example.com"].IsInternal)
	assert.False(t, byURL["//cdn.example.com/lib.js"].IsInternal, "protocol-relative links are external")

	assert.True(t, byURL["#section"].IsInternal)
	assert.True(t, byURL["_images/diagram.png"].IsInternal)
	assert.Equal(t, "img", byURL["_images/diagram.png"].Tag)

	assert.True(t, byURL["_static/pygments.css"].IsInternal)
	assert.Equal(t, "link", byURL["_static/pygments.css"].Tag)
	assert.Equal(t, "script", byURL["_static/doctools.js"].Tag)
}

func TestExtractHTMLLinksEmptyDocument(t *testing.T) {
	links, err := ExtractHTMLLinksFromReader(strings.NewReader("<html><body></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, links)
}
