package corpus

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists upload types the service can turn into a corpus.
var SupportedExtensions = map[string]bool{
	".json":     true, // OCR extractor output
	".md":       true,
	".markdown": true,
	".pdf":      true,
	".docx":     true,
	".html":     true,
	".htm":      true,
	".txt":      true,
	".csv":      true,
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// FromFile dispatches on extension: OCR JSON is the primary input; pdf, docx
// and markdown go through the direct ingest adapters.
func FromFile(filename string, data []byte, fallbackPdftotext bool) (*Corpus, error) {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return ParseOCRJSON(data, name)
	case ".md", ".markdown":
		return LoadMarkdown(data, name)
	case ".pdf":
		return LoadPDF(bytes.NewReader(data), name, fallbackPdftotext)
	case ".docx":
		return LoadDOCX(bytes.NewReader(data), name)
	case ".html", ".htm":
		return LoadHTML(bytes.NewReader(data), name)
	case ".txt":
		return LoadText(data, name)
	case ".csv":
		return LoadCSV(bytes.NewReader(data), name)
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(filename))
	}
}
