package linkcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestVerifySite(t *testing.T) {
	site := t.TempDir()

	writeFile(t, filepath.Join(site, "index.html"), `<html><body>
		<a href="usage.html">Usage</a>
		<a href="missing.html">Missing</a>
		<a href="api/">API</a>
		<a href="https://www.sphinx-doc.org/">External</a>
		<a href="#top">Anchor</a>
	</body></html>`)
	writeFile(t, filepath.Join(site, "usage.html"), `<html><body>
		<img src="_images/gone.png"/>
	</body></html>`)
	writeFile(t, filepath.Join(site, "api", "index.html"), `<html><body></body></html>`)

	report, err := VerifySite(site)
	require.NoError(t, err)

	assert.Equal(t, 3, report.FilesScanned)
	require.Len(t, report.Broken, 2)

	broken := make(map[string]BrokenLink)
	for _, b := range report.Broken {
		broken[b.URL] = b
	}
	assert.Contains(t, broken, "missing.html")
	assert.Equal(t, "index.html", broken["missing.html"].SourceFile)
	assert.Contains(t, broken, "_images/gone.png")
	assert.Equal(t, "usage.html", broken["_images/gone.png"].SourceFile)
}

func TestVerifySiteDirectoryLinkWithoutIndex(t *testing.T) {
	site := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(site, "empty"), 0o750))
	writeFile(t, filepath.Join(site, "index.html"), `<html><body><a href="empty/">Empty</a></body></html>`)

	report, err := VerifySite(site)
	require.NoError(t, err)
	require.Len(t, report.Broken, 1)
	assert.Equal(t, "empty/", report.Broken[0].URL)
}

func TestVerifySiteAbsolutePaths(t *testing.T) {
	site := t.TempDir()
	writeFile(t, filepath.Join(site, "sub", "page.html"), `<html><body><a href="/index.html">Home</a></body></html>`)
	writeFile(t, filepath.Join(site, "index.html"), `<html><body></body></html>`)

	report, err := VerifySite(site)
	require.NoError(t, err)
	assert.Empty(t, report.Broken, "absolute paths resolve against the site root")
}
