package doseparser

import (
	"context"
	"regexp"
	"strings"

	"github.com/tripsit/erowid-doses/registry"
	"golang.org/x/net/html"
)

// reportLinkPattern is how Erowid report-detail links look on category
// index pages.
var reportLinkPattern = regexp.MustCompile(`exp\.php\?ID=\d+`)

const (
	siteBaseURL   = "https://www.erowid.org"
	reportBaseURL = "https://www.erowid.org/experiences/"
)

// CollectReportURLs fetches one category index page and returns the report
// URLs it links to, each unique URL exactly once in first-seen order. A
// fetch failure is returned to the caller, who logs and moves on: one bad
// category never stops the others.
func CollectReportURLs(ctx context.Context, fetcher *Fetcher, link registry.CategoryLink) ([]string, error) {
	page := fetcher.FetchPage(ctx, link.URL)
	if page.Err != nil {
		return nil, page.Err
	}
	return extractReportURLs(page.Text), nil
}

// extractReportURLs walks the page's anchors for report links, resolving
// relative hrefs against the experiences base path.
func extractReportURLs(pageHTML string) []string {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}

	var urls []string
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" || !reportLinkPattern.MatchString(attr.Val) {
					continue
				}
				resolved := resolveReportURL(attr.Val)
				if !seen[resolved] {
					seen[resolved] = true
					urls = append(urls, resolved)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return urls
}

func resolveReportURL(href string) string {
	switch {
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "/"):
		return siteBaseURL + href
	default:
		return reportBaseURL + href
	}
}
