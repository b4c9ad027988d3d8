package corpus

import (
	"bufio"
	"bytes"
	"strings"
)

// textPageChars is the target amount of plain text per synthetic page.
// Plain text has no page boundaries, so paragraphs are packed until a page
// fills up.
const textPageChars = 2500

// LoadText turns a plain text file into a corpus. Form feeds are honored
// as hard page breaks; otherwise paragraphs accumulate into pages of
// roughly textPageChars characters.
func LoadText(data []byte, docName string) (*Corpus, error) {
	c := &Corpus{DocName: docName}
	page := 1

	for i, chunk := range bytes.Split(data, []byte{'\f'}) {
		if i > 0 {
			page++
		}
		paras, err := splitParagraphs(chunk)
		if err != nil {
			return nil, err
		}
		size := 0
		for _, para := range paras {
			if size > 0 && size+len(para) > textPageChars {
				page++
				size = 0
			}
			c.Records = append(c.Records, PageRecord{Page: page, Kind: KindText, Content: para})
			size += len(para)
		}
	}
	return c, nil
}

func splitParagraphs(data []byte) ([]string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return paragraphs, scanner.Err()
}
