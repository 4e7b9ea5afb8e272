package output

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/akulagin/spbebonds/internal/config"
	"github.com/akulagin/spbebonds/internal/utils"
	"github.com/akulagin/spbebonds/pkg/types"
)

// Manager writes the reference data set to every configured format.
type Manager struct {
	cfg    config.OutputConfig
	logger utils.Logger
}

// NewManager creates an output manager.
func NewManager(cfg config.OutputConfig, logger utils.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// WriteAll writes records in each configured format, named by prefix and the
// given day. It returns the paths written.
func (m *Manager) WriteAll(records []types.BondRecord, day time.Time) ([]string, error) {
	var paths []string

	for _, format := range m.cfg.Formats {
		var (
			path string
			err  error
		)
		switch format {
		case "csv":
			path = filepath.Join(m.cfg.Directory, DatedFileName(m.cfg.FilePrefix, "csv", day))
			err = WriteCSV(path, records)
		case "excel", "xlsx":
			path = filepath.Join(m.cfg.Directory, DatedFileName(m.cfg.FilePrefix, "xlsx", day))
			err = WriteExcel(path, records)
		case "json":
			path = filepath.Join(m.cfg.Directory, DatedFileName(m.cfg.FilePrefix, "json", day))
			err = WriteJSON(path, records)
		default:
			err = utils.NewError(utils.ErrCodeInvalidConfig, fmt.Sprintf("unsupported output format %q", format))
		}
		if err != nil {
			return paths, err
		}

		m.logger.Infof("wrote %d records to %s", len(records), path)
		paths = append(paths, path)
	}
	return paths, nil
}
