package corpus

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var mdParser = goldmark.New(goldmark.WithExtensions(extension.Table))

// markdownTableRows parses a markdown pipe table into rows of cell text.
func markdownTableRows(src string) [][]string {
	source := []byte(src)
	doc := mdParser.Parser().Parse(text.NewReader(source))

	var rows [][]string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *east.TableHeader, *east.TableRow:
			var row []string
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if cell, ok := c.(*east.TableCell); ok {
					if t := inlineText(cell, source); t != "" {
						row = append(row, t)
					}
				}
			}
			if len(row) > 0 {
				rows = append(rows, row)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return rows
}

func markdownTableCells(src string) []string {
	var cells []string
	for _, row := range markdownTableRows(src) {
		cells = append(cells, row...)
	}
	return cells
}

// inlineText collects the text content of a node's inline children.
func inlineText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(source))
		} else {
			buf.WriteString(inlineText(c, source))
		}
	}
	return strings.TrimSpace(buf.String())
}

// LoadMarkdown builds a corpus from a markdown document. Top-level heading
// sections become synthetic pages, so page-addressed indexing works on
// documents that never had physical pages. Pipe tables become TABLE records.
func LoadMarkdown(data []byte, docName string) (*Corpus, error) {
	doc := mdParser.Parser().Parse(text.NewReader(data))

	c := &Corpus{DocName: docName}
	page := 1
	started := false

	appendText := func(content string, level int) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		c.Records = append(c.Records, PageRecord{Page: page, Kind: KindText, Content: content, Level: level})
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level <= 2 && started {
				page++
			}
			started = true
			appendText(inlineText(node, data), node.Level)
		case *east.Table:
			started = true
			c.Records = append(c.Records, PageRecord{
				Page:    page,
				Kind:    KindTable,
				Content: tableMarkup(node, data),
			})
		default:
			started = true
			appendText(blockText(n, data), 0)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// tableMarkup rebuilds pipe-table markup from a parsed table so the record
// content stays parseable by ExtractTableText.
func tableMarkup(t *east.Table, source []byte) string {
	var lines []string
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		var cells []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, inlineText(c, source))
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if _, ok := r.(*east.TableHeader); ok {
			sep := make([]string, len(cells))
			for i := range sep {
				sep[i] = "---"
			}
			lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
		}
	}
	return strings.Join(lines, "\n")
}

// blockText returns the raw source lines of a block node.
func blockText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
	}
	if buf.Len() == 0 {
		return inlineText(n, source)
	}
	return strings.TrimSpace(buf.String())
}
