package doseparser

import (
	"strings"

	"golang.org/x/net/html"
)

// ReportText isolates the narrative text of a report page. Erowid wraps the
// story in a report-text div; when that is missing the whole document text
// is used so older page layouts still yield observations.
func ReportText(pageHTML string) string {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return pageHTML
	}
	if node := findReportNode(doc); node != nil {
		return textContent(node)
	}
	return textContent(doc)
}

func findReportNode(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "div" {
		for _, attr := range n.Attr {
			if attr.Key == "class" && strings.Contains(attr.Val, "report-text") {
				return n
			}
			if attr.Key == "id" && attr.Val == "report" {
				return n
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findReportNode(child); found != nil {
			return found
		}
	}
	return nil
}

// textContent flattens the node's text, keeping rough block boundaries as
// newlines so the extractor's sentence windows do not bleed across
// paragraphs.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "tr", "table":
				sb.WriteByte('\n')
			}
		}
	}
	walk(n)
	return sb.String()
}
