package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxDocumentPages is how many leading pages are read from an uploaded document.
const MaxDocumentPages = 5

// PageSource exposes the ordered pages of an opened document.
type PageSource interface {
	NumPage() int
	// PageText returns the plain text of page n, counted from 1.
	PageText(n int) (string, error)
}

type PDFService struct {
	open func(path string) (PageSource, io.Closer, error)
}

func NewPDFService() *PDFService {
	return &PDFService{open: openPDF}
}

// ExtractText reads up to MaxDocumentPages pages and concatenates their text.
// Pages without extractable text contribute nothing; the result may be blank.
func (s *PDFService) ExtractText(path string) (string, error) {
	src, closer, err := s.open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	return extractLeadingText(src, MaxDocumentPages), nil
}

func extractLeadingText(src PageSource, maxPages int) string {
	pages := src.NumPage()
	if pages > maxPages {
		pages = maxPages
	}

	var builder strings.Builder
	for n := 1; n <= pages; n++ {
		text, err := src.PageText(n)
		if err != nil {
			continue
		}
		builder.WriteString(text)
	}
	return builder.String()
}

func openPDF(path string) (PageSource, io.Closer, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return ledongthucPages{reader: r}, f, nil
}

type ledongthucPages struct {
	reader *pdf.Reader
}

func (p ledongthucPages) NumPage() int {
	return p.reader.NumPage()
}

func (p ledongthucPages) PageText(n int) (text string, err error) {
	// The content stream parser panics on some malformed pages.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", n, r)
		}
	}()

	page := p.reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d text: %w", n, err)
	}
	return text, nil
}
