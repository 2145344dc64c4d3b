package parsers

import (
	"path/filepath"
	"strings"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
)

// DetectFileKind classifies a statement by its file name. Unknown
// extensions are treated as text.
func DetectFileKind(fileName string) models.FileKind {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(fileName))) {
	case ".xls", ".xlsx":
		return models.FileKindSpreadsheet
	default:
		return models.FileKindText
	}
}
