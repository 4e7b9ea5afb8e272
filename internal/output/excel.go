package output

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/akulagin/spbebonds/internal/utils"
	"github.com/akulagin/spbebonds/pkg/types"
)

const excelSheet = "Reference Data"

// WriteExcel writes records to an XLSX workbook with a bold, frozen header
// row in the canonical column order.
func WriteExcel(path string, records []types.BondRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to create output directory")
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(excelSheet)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to create sheet")
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to remove default sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to create header style")
	}

	header := make([]interface{}, len(types.CanonicalFields))
	for i, field := range types.CanonicalFields {
		header[i] = field
	}
	if err := f.SetSheetRow(excelSheet, "A1", &header); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to write header row")
	}

	lastCol, err := excelize.ColumnNumberToName(len(types.CanonicalFields))
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to address header row")
	}
	if err := f.SetCellStyle(excelSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to style header row")
	}
	if err := f.SetPanes(excelSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to freeze header row")
	}

	row := make([]interface{}, len(types.CanonicalFields))
	for i, rec := range records {
		for j, field := range types.CanonicalFields {
			row[j] = rec[field]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to address row")
		}
		if err := f.SetSheetRow(excelSheet, cell, &row); err != nil {
			return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to write row")
		}
	}

	if err := f.SaveAs(path); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to save workbook")
	}
	return nil
}
