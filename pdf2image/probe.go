package pdf2image

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// DocumentInfo is lightweight metadata read without a render engine
type DocumentInfo struct {
	Path        string `json:"path"`
	PageCount   int    `json:"pageCount"`
	TextPreview string `json:"textPreview,omitempty"`
}

// previewLimit caps the first-page text preview
const previewLimit = 500

// Probe reads page count and a first-page text preview from a local PDF
// using a pure text parser, without engaging a render engine. Probing a
// missing file returns ErrDocumentNotFound.
func Probe(path string) (*DocumentInfo, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentNotFound, path, err)
	}
	defer f.Close()

	info := &DocumentInfo{
		Path:      path,
		PageCount: reader.NumPage(),
	}

	if info.PageCount > 0 {
		page := reader.Page(1)
		if !page.V.IsNull() {
			// Preview is best effort, a page with no extractable text is fine
			text, err := page.GetPlainText(nil)
			if err == nil {
				if len(text) > previewLimit {
					text = text[:previewLimit]
				}
				info.TextPreview = text
			}
		}
	}

	return info, nil
}
