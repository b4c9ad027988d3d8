package corpus

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// LoadPDF extracts a page-per-record corpus directly from a PDF, for
// documents that never went through the OCR pipeline. It tries the Go
// library first, then falls back to pdftotext if enabled.
func LoadPDF(r io.Reader, docName string, fallbackPdftotext bool) (*Corpus, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "pagetree-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	text, err := extractPDFText(tmpPath)
	if err != nil && fallbackPdftotext {
		text, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	c := pagesFromPlainText(text, docName)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// pagesFromPlainText splits form-feed separated extractor output into page
// records. Pages that yielded no text keep their slot, so later page numbers
// stay aligned with the source document.
func pagesFromPlainText(text, docName string) *Corpus {
	c := &Corpus{DocName: docName}
	for i, page := range strings.Split(text, "\f") {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		c.Records = append(c.Records, PageRecord{
			Page:    i + 1,
			Kind:    KindText,
			Content: page,
		})
	}
	return c
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		// Separator per page boundary, even for pages that yield no text,
		// so page numbers downstream stay aligned.
		if i > 1 {
			buf.WriteString("\f")
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
