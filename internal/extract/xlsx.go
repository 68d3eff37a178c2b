package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/eargollo/piifinder/internal/media"
)

// XLSX extracts cell values from spreadsheet workbooks. Only the active
// worksheet is read.
type XLSX struct{}

// NewXLSX returns an XLSX extractor.
func NewXLSX() *XLSX { return &XLSX{} }

func (*XLSX) Name() string                 { return "xlsx" }
func (*XLSX) SupportedMIMETypes() []string { return []string{media.MIMEXlsx} }
func (*XLSX) Priority() int                { return 50 }

// Extract returns every non-empty raw cell value of the active worksheet,
// space-joined in row-major order.
func (*XLSX) Extract(_ context.Context, path string) (*Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		return &Document{}, nil
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrMalformed, sheet, err)
	}

	var values []string
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				values = append(values, cell)
			}
		}
	}
	return &Document{Text: strings.Join(values, " ")}, nil
}
