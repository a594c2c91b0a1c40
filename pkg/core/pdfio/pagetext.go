package pdfio

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ExtractPageText returns the plain text of each page, keyed by 1-based page
// number. Pages that fail text extraction are skipped with a warning; a form
// with no extractable text still classifies, just without page context.
func ExtractPageText(path string) (map[int]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for text extraction: %w", err)
	}
	defer f.Close()

	text := make(map[int]string, r.NumPage())
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		p := r.Page(pageNum)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			fmt.Printf("Warning: failed to extract text from page %d: %v. Skipping.\n", pageNum, err)
			continue
		}
		text[pageNum] = content
	}
	return text, nil
}
