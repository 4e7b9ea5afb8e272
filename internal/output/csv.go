// Package output writes normalized bond records to the configured formats.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akulagin/spbebonds/internal/utils"
	"github.com/akulagin/spbebonds/pkg/types"
)

// utf8BOM precedes the CSV body so spreadsheet applications detect the
// encoding and render Cyrillic values correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DatedFileName builds "<prefix>_<YYYY-MM-DD>.<ext>" for the given day.
func DatedFileName(prefix, ext string, day time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, day.Format("2006-01-02"), ext)
}

// WriteCSV writes records as UTF-8 CSV with a BOM and the canonical header.
// Every row carries every canonical column in the fixed schema order.
func WriteCSV(path string, records []types.BondRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to create output directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to create CSV file")
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to write BOM")
	}

	w := csv.NewWriter(f)
	if err := w.Write(types.CanonicalFields); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to write CSV header")
	}

	row := make([]string, len(types.CanonicalFields))
	for _, rec := range records {
		for i, field := range types.CanonicalFields {
			row[i] = rec[field]
		}
		if err := w.Write(row); err != nil {
			return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to write CSV row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to flush CSV")
	}
	return nil
}
