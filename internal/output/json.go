package output

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/akulagin/spbebonds/internal/utils"
	"github.com/akulagin/spbebonds/pkg/types"
)

// WriteJSON writes records as an indented JSON array.
func WriteJSON(path string, records []types.BondRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to create output directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to create JSON file")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return utils.WrapError(err, utils.ErrCodeFilesystem, "failed to encode JSON")
	}
	return nil
}
