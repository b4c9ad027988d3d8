package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// csvRowsPerRecord bounds how many data rows land in one table record.
const csvRowsPerRecord = 20

// LoadCSV turns a CSV file into a corpus of table records. The first row is
// the header; data rows are batched, each batch re-rendered as a markdown
// pipe table so downstream table handling treats it like any other table.
// Each batch gets its own synthetic page.
func LoadCSV(r io.Reader, docName string) (*Corpus, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	c := &Corpus{DocName: docName}
	if len(records) == 0 {
		return c, nil
	}
	header := records[0]
	dataRows := records[1:]

	if len(dataRows) == 0 {
		c.Records = append(c.Records, PageRecord{
			Page: 1, Kind: KindTable, Content: pipeTable(header, nil),
		})
		return c, nil
	}

	page := 0
	for i := 0; i < len(dataRows); i += csvRowsPerRecord {
		end := min(i+csvRowsPerRecord, len(dataRows))
		page++
		c.Records = append(c.Records, PageRecord{
			Page: page, Kind: KindTable, Content: pipeTable(header, dataRows[i:end]),
		})
	}
	return c, nil
}

// pipeTable renders header and rows as markdown table markup.
func pipeTable(header []string, rows [][]string) string {
	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for _, cell := range cells {
			sb.WriteString(" ")
			sb.WriteString(strings.ReplaceAll(cell, "|", "\\|"))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}
	writeRow(header)
	sb.WriteString("|")
	for range header {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	return strings.TrimSpace(sb.String())
}
