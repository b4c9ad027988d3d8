package corpus

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/net/html"
)

// LoadHTML turns an HTML file into a corpus. Headings h1 and h2 start a new
// synthetic page (mirroring the markdown loader); h3 and below stay on the
// current page as heading records. Tables keep their HTML markup as table
// records. Script, style, and chrome elements are skipped.
func LoadHTML(r io.Reader, docName string) (*Corpus, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	c := &Corpus{DocName: docName}
	page := 1
	sawContent := false

	add := func(rec PageRecord) {
		rec.Page = page
		c.Records = append(c.Records, rec)
		sawContent = true
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := htmlHeadingLevel(n.Data); level > 0 {
				title := nodeText(n)
				if title == "" {
					return
				}
				if level <= 2 && sawContent {
					page++
				}
				add(PageRecord{Kind: KindText, Content: title, Level: level})
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "table":
				var buf bytes.Buffer
				if err := html.Render(&buf, n); err == nil {
					add(PageRecord{Kind: KindTable, Content: buf.String()})
				}
				return
			case "p", "li", "blockquote", "pre":
				if t := nodeText(n); t != "" {
					add(PageRecord{Kind: KindText, Content: t})
				}
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	return c, nil
}

func htmlHeadingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
