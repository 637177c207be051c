package services

import (
	"context"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFPageCounter counts pages with pdfcpu in relaxed validation mode, the same mode used to
// accept slightly malformed scanner output.
type PDFPageCounter struct{}

func (PDFPageCounter) CountPages(_ context.Context, r io.ReadSeeker) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(r, conf)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	return n, nil
}
