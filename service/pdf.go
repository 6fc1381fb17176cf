package service

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrNotPDF       = errors.New("document is not a readable PDF")
	ErrTooManyPages = errors.New("document exceeds the page limit")
)

var disableConfigDir sync.Once

// PDFInspector checks uploads locally before they are sent for extraction
type PDFInspector struct {
	MaxPages int
}

func NewPDFInspector(maxPages int) *PDFInspector {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFInspector{MaxPages: maxPages}
}

// Inspect returns the page count of data, or ErrNotPDF / ErrTooManyPages
func (i *PDFInspector) Inspect(data []byte) (int, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\t\r\n "), []byte("%PDF-")) {
		return 0, ErrNotPDF
	}

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if i.MaxPages > 0 && pages > i.MaxPages {
		return pages, fmt.Errorf("%w: %d pages, limit %d", ErrTooManyPages, pages, i.MaxPages)
	}
	return pages, nil
}
