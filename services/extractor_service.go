package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	log "github.com/sirupsen/logrus"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// Page is the raw text of one page of a document. Files without pages are
// returned as a single page numbered 1.
type Page struct {
	Number int
	Text   string
}

// Extractor reads the text of supported documents page by page. PDFs go
// through UniPDF when a licence key is configured and through the pure-Go
// ledongthuc/pdf reader otherwise.
type Extractor struct {
	useUnipdf bool
}

// NewExtractor registers the UniPDF licence key if one is given.
func NewExtractor(unidocLicenseKey string) *Extractor {
	if unidocLicenseKey == "" {
		return &Extractor{}
	}
	if err := license.SetMeteredKey(unidocLicenseKey); err != nil {
		log.Warnf("EXTRACTOR: Failed to set Unidoc license key: %v. Falling back to the built-in PDF reader.", err)
		return &Extractor{}
	}
	return &Extractor{useUnipdf: true}
}

// ExtractPages reads a file and returns its text content per page.
func (e *Extractor) ExtractPages(path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt", ".md":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []Page{{Number: 1, Text: string(content)}}, nil
	case ".pdf":
		if e.useUnipdf {
			return extractPagesUnipdf(path)
		}
		return extractPagesPlain(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

func extractPagesUnipdf(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, fmt.Errorf("could not open pdf %s: %w", path, err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("could not read page %d of %s: %w", i, path, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return nil, err
		}
		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("could not extract page %d of %s: %w", i, path, err)
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

func extractPagesPlain(path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open pdf %s: %w", path, err)
	}
	defer f.Close()

	pages := make([]Page, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			log.Warnf("EXTRACTOR: could not extract page %d of %s: %v", i, path, err)
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

func isSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".pdf":
		return true
	default:
		return false
	}
}
