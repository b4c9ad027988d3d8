package corpus

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ocrItem mirrors the OCR extractor's JSON output. Unknown fields are
// ignored; only the ones below are meaningful to indexing.
type ocrItem struct {
	Type      string   `json:"type"`
	Text      string   `json:"text"`
	TextLevel int      `json:"text_level"`
	PageIdx   int      `json:"page_idx"`
	TableBody string   `json:"table_body"`
	Caption   []string `json:"table_caption"`
	Footnote  []string `json:"table_footnote"`
}

// ParseOCRJSON decodes an OCR result file (an ordered array of page items)
// into a Corpus. OCR page indexes are 0-based on the wire and become 1-based
// here. Items with types other than text/table are skipped.
func ParseOCRJSON(data []byte, docName string) (*Corpus, error) {
	var items []ocrItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode ocr json: %w", err)
	}

	c := &Corpus{DocName: docName}
	for i, item := range items {
		page := item.PageIdx + 1
		switch item.Type {
		case "text":
			if strings.TrimSpace(item.Text) == "" {
				continue
			}
			c.Records = append(c.Records, PageRecord{
				Page:    page,
				Kind:    KindText,
				Content: item.Text,
				Level:   item.TextLevel,
			})
		case "table":
			if strings.TrimSpace(item.TableBody) == "" {
				return nil, &InputError{Page: page, Record: i, Reason: "table item without table_body"}
			}
			content := item.TableBody
			if len(item.Caption) > 0 {
				content = strings.Join(item.Caption, " ") + "\n" + content
			}
			c.Records = append(c.Records, PageRecord{
				Page:    page,
				Kind:    KindTable,
				Content: content,
			})
		default:
			// Images and other item types carry nothing indexable.
		}
	}

	// OCR output is page-ordered in practice, but tolerate shuffled input.
	sort.SliceStable(c.Records, func(i, j int) bool {
		return c.Records[i].Page < c.Records[j].Page
	})

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
