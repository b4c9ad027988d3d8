package corpus

import (
	"strings"
	"testing"
)

func TestLoadMarkdown_HeadingsMakePages(t *testing.T) {
	src := []byte(`# Overview

Some introduction text.

## Details

More text here.

# Second Chapter

Final text.
`)
	c, err := LoadMarkdown(src, "doc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TotalPages() != 3 {
		t.Fatalf("expected 3 synthetic pages, got %d", c.TotalPages())
	}
	// First record is the level-1 heading on page 1.
	if c.Records[0].Level != 1 || c.Records[0].Page != 1 {
		t.Errorf("expected level-1 heading on page 1, got level %d page %d", c.Records[0].Level, c.Records[0].Page)
	}
	// "Second Chapter" starts the last page.
	last := c.Records[len(c.Records)-2]
	if last.Content != "Second Chapter" || last.Page != 3 {
		t.Errorf("expected Second Chapter on page 3, got %q on page %d", last.Content, last.Page)
	}
}

func TestLoadMarkdown_TableRecord(t *testing.T) {
	src := []byte(`# Data

| Metric | Value |
| --- | --- |
| Capacity | 5000 |
`)
	c, err := LoadMarkdown(src, "doc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var table *PageRecord
	for i := range c.Records {
		if c.Records[i].Kind == KindTable {
			table = &c.Records[i]
		}
	}
	if table == nil {
		t.Fatal("expected a table record")
	}
	// The rebuilt markup must stay parseable.
	if got := ExtractTableText(table.Content); got != "Metric | Value | Capacity | 5000" {
		t.Errorf("table markup not round-trippable, got %q", got)
	}
}

func TestLoadText_Pagination(t *testing.T) {
	long := strings.Repeat("word ", 300) // ~1500 chars per paragraph
	src := []byte(long + "\n\n" + long + "\n\n" + long)
	c, err := LoadText(src, "doc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Records) != 3 {
		t.Fatalf("expected 3 paragraph records, got %d", len(c.Records))
	}
	if c.TotalPages() < 2 {
		t.Errorf("expected text to spill onto multiple pages, got %d", c.TotalPages())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("corpus invalid: %v", err)
	}
}

func TestLoadText_FormFeedBreaks(t *testing.T) {
	c, err := LoadText([]byte("page one\fpage two"), "doc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TotalPages() != 2 {
		t.Errorf("expected form feed to split pages, got %d pages", c.TotalPages())
	}
}

func TestLoadCSV_BatchesAsTables(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("name,value\n")
	for i := 0; i < 45; i++ {
		sb.WriteString("row,1\n")
	}
	c, err := LoadCSV(strings.NewReader(sb.String()), "data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 45 rows at 20 per batch is 3 table records on 3 pages.
	if len(c.Records) != 3 || c.TotalPages() != 3 {
		t.Fatalf("expected 3 table records on 3 pages, got %d records, %d pages", len(c.Records), c.TotalPages())
	}
	for _, r := range c.Records {
		if r.Kind != KindTable {
			t.Fatalf("expected table records, got %q", r.Kind)
		}
	}
	if got := TableSummary(c.Records[0].Content); !strings.HasPrefix(got, "header: name | value") {
		t.Errorf("expected parseable pipe table, got %q", got)
	}
}

func TestLoadHTML_PagesAndTables(t *testing.T) {
	src := `<html><head><title>t</title></head><body>
		<h1>Chapter One</h1>
		<p>Intro paragraph.</p>
		<table><tr><th>A</th></tr><tr><td>1</td></tr></table>
		<h1>Chapter Two</h1>
		<p>More text.</p>
		<script>ignore()</script>
	</body></html>`
	c, err := LoadHTML(strings.NewReader(src), "doc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TotalPages() != 2 {
		t.Fatalf("expected 2 pages, got %d", c.TotalPages())
	}
	if c.TableCount() != 1 {
		t.Errorf("expected 1 table, got %d", c.TableCount())
	}
	for _, r := range c.Records {
		if strings.Contains(r.Content, "ignore()") {
			t.Error("expected script content to be skipped")
		}
	}
	if err := c.Validate(); err != nil {
		t.Errorf("corpus invalid: %v", err)
	}
}

func TestFromFile_UnsupportedExtension(t *testing.T) {
	if _, err := FromFile("doc.xyz", []byte("x"), false); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if IsSupportedExtension("doc.xyz") {
		t.Error("expected .xyz to be unsupported")
	}
	if !IsSupportedExtension("scan.JSON") {
		t.Error("expected case-insensitive extension match")
	}
}
