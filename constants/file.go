package constants

import "strings"

// Input formats a document source can read.
const (
	FormatPDF  = "pdf"
	FormatHTML = "html"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// AllowedExtensions maps file extensions to input formats.
var AllowedExtensions = map[string]string{
	"pdf":  FormatPDF,
	"html": FormatHTML,
	"htm":  FormatHTML,
	"json": FormatJSON,
	"csv":  FormatCSV,
	"xlsx": FormatXLSX,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
