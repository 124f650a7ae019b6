package pipeline

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var spaceRuns = regexp.MustCompile(`[ \t\r]+`)

// blockElements end a line of text. Case-name heuristics rely on line breaks
// (tables of authorities), so they are kept.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "header": true, "footer": true,
	"table": true, "ul": true, "ol": true, "dt": true, "dd": true, "pre": true, "hr": true,
}

// VisibleText extracts text nodes from HTML, skipping scripts and styles.
// Block boundaries become single newlines. Unparseable input is returned as is.
func VisibleText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			// Skip script, style, noscript tags
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n")
		}
	}

	walk(doc)

	text := strings.ReplaceAll(buf.String(), "\u00a0", " ")
	text = spaceRuns.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
