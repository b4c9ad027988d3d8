package corpus

import (
	"strings"

	"golang.org/x/net/html"
)

// parseTableRows extracts cell text from HTML table markup, one slice per <tr>.
func parseTableRows(markup string) [][]string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var row []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					if t := nodeText(c); t != "" {
						row = append(row, t)
					}
				}
			}
			if len(row) > 0 {
				rows = append(rows, row)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows
}

func nodeText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

// looksLikeHTMLTable reports whether table markup is HTML rather than markdown.
func looksLikeHTMLTable(markup string) bool {
	s := strings.ToLower(markup)
	return strings.Contains(s, "<table") || strings.Contains(s, "<tr")
}

const maxTableCells = 15

// ExtractTableText flattens table markup (HTML or markdown) into a single
// line of cell text for page-range rendering.
func ExtractTableText(markup string) string {
	var cells []string
	if looksLikeHTMLTable(markup) {
		for _, row := range parseTableRows(markup) {
			cells = append(cells, row...)
		}
	} else {
		cells = markdownTableCells(markup)
	}
	if len(cells) > maxTableCells {
		cells = cells[:maxTableCells]
	}
	if len(cells) == 0 {
		return strings.TrimSpace(markup)
	}
	return strings.Join(cells, " | ")
}

// TableSummary renders the header row plus a few example rows, the compact
// form handed to the structure-analysis prompt.
func TableSummary(markup string) string {
	var rows [][]string
	if looksLikeHTMLTable(markup) {
		rows = parseTableRows(markup)
	} else {
		rows = markdownTableRows(markup)
	}
	if len(rows) == 0 {
		return strings.TrimSpace(markup)
	}

	var sb strings.Builder
	sb.WriteString("header: ")
	sb.WriteString(strings.Join(rows[0], " | "))
	if len(rows) > 1 {
		sb.WriteString("\nrows: ")
		var samples []string
		for _, row := range rows[1:] {
			samples = append(samples, strings.Join(row, " | "))
			if len(samples) == 3 {
				break
			}
		}
		sb.WriteString(strings.Join(samples, "; "))
	}
	return sb.String()
}
