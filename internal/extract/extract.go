package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Text extracts plain text from a stored upload, dispatching on the file
// extension. Unknown extensions are read as plain text.
func Text(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDFText(path)
	case ".html", ".htm":
		return HTMLTextFromFile(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), nil
	}
}
