// Package linkcheck verifies that internal links in generated HTML resolve to
// files that actually exist in the build output. It never fetches external
// URLs; Sphinx's own linkcheck builder covers those.
package linkcheck

import (
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// BrokenLink is one internal link whose target does not exist on disk.
type BrokenLink struct {
	SourceFile string // HTML file containing the link, relative to the site root
	URL        string // the link as written
	Target     string // resolved filesystem path that was checked
}

// Report summarizes a verification pass over a built site.
type Report struct {
	FilesScanned int
	LinksChecked int
	Broken       []BrokenLink
}

// VerifySite walks siteDir (typically <build_dir>/html), extracts internal
// links from every HTML file and checks each resolves to an existing file.
func VerifySite(siteDir string) (*Report, error) {
	report := &Report{}

	err := filepath.WalkDir(siteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		rel, relErr := filepath.Rel(siteDir, path)
		if relErr != nil {
			rel = path
		}

		links, err := ExtractHTMLLinks(path)
		if err != nil {
			slog.Warn("Skipping unparseable HTML file", "file", rel, "error", err)
			return nil
		}

		report.FilesScanned++
		for _, link := range links {
			if !link.IsInternal {
				continue
			}
			report.LinksChecked++
			target, ok := resolveTarget(siteDir, filepath.Dir(path), link.URL)
			if !ok {
				continue // fragment-only or query-only link
			}
			if !targetExists(target) {
				report.Broken = append(report.Broken, BrokenLink{
					SourceFile: rel,
					URL:        link.URL,
					Target:     target,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// resolveTarget maps a link to the filesystem path it should hit. Returns
// ok=false for links with no path component (pure fragments).
func resolveTarget(siteDir, fromDir, raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", false
	}

	p := u.Path
	if strings.HasPrefix(p, "/") {
		return filepath.Join(siteDir, filepath.FromSlash(p)), true
	}
	return filepath.Join(fromDir, filepath.FromSlash(p)), true
}

// targetExists accepts both files and directories; Sphinx emits
// directory-style links (foo/) when html_file_suffix is cleared.
func targetExists(target string) bool {
	info, err := os.Stat(target)
	if err == nil {
		if info.IsDir() {
			// Directory links resolve through their index page.
			_, idxErr := os.Stat(filepath.Join(target, "index.html"))
			return idxErr == nil
		}
		return true
	}
	return false
}
