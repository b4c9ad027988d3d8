package corpus

import (
	"fmt"
	"strings"
)

// Kind distinguishes the two OCR record types.
type Kind string

const (
	KindText  Kind = "text"
	KindTable Kind = "table"
)

// PageRecord is one OCR item: a block of text or a table on a page.
// Pages are 1-based; multiple records may share a page.
type PageRecord struct {
	Page    int    // 1-based page number
	Kind    Kind   // text or table
	Content string // raw text, or table markup for tables
	Level   int    // heading level for text records (0 = body text)
}

// Corpus is the normalized in-memory form of one OCR'd document.
// Records are ordered with non-decreasing page numbers.
type Corpus struct {
	DocName string
	Records []PageRecord
}

// InputError reports a malformed OCR record with its page context.
type InputError struct {
	Page   int
	Record int
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid ocr record %d (page %d): %s", e.Record, e.Page, e.Reason)
}

// Validate checks corpus invariants: pages 1-based, non-decreasing,
// known kinds, non-empty content.
func (c *Corpus) Validate() error {
	prev := 0
	for i, r := range c.Records {
		if r.Page < 1 {
			return &InputError{Page: r.Page, Record: i, Reason: "page number must be >= 1"}
		}
		if r.Page < prev {
			return &InputError{Page: r.Page, Record: i, Reason: fmt.Sprintf("page number decreases (previous %d)", prev)}
		}
		if r.Kind != KindText && r.Kind != KindTable {
			return &InputError{Page: r.Page, Record: i, Reason: fmt.Sprintf("unknown kind %q", r.Kind)}
		}
		if strings.TrimSpace(r.Content) == "" {
			return &InputError{Page: r.Page, Record: i, Reason: "empty content"}
		}
		prev = r.Page
	}
	return nil
}

// TotalPages returns the highest page number in the corpus.
func (c *Corpus) TotalPages() int {
	if len(c.Records) == 0 {
		return 0
	}
	return c.Records[len(c.Records)-1].Page
}

// TableCount returns the number of table records.
func (c *Corpus) TableCount() int {
	n := 0
	for _, r := range c.Records {
		if r.Kind == KindTable {
			n++
		}
	}
	return n
}

// PageText renders the original content of pages [start, end] for prompting
// and answer synthesis. Tables are flattened to cell text with a [TABLE] tag.
func (c *Corpus) PageText(start, end int) string {
	var sb strings.Builder
	for _, r := range c.Records {
		if r.Page < start {
			continue
		}
		if r.Page > end {
			break
		}
		switch r.Kind {
		case KindTable:
			sb.WriteString("[TABLE] ")
			sb.WriteString(ExtractTableText(r.Content))
		default:
			sb.WriteString(r.Content)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Slice returns the records whose page falls within [start, end].
func (c *Corpus) Slice(start, end int) []PageRecord {
	var out []PageRecord
	for _, r := range c.Records {
		if r.Page < start {
			continue
		}
		if r.Page > end {
			break
		}
		out = append(out, r)
	}
	return out
}
