package walker

import (
	"path/filepath"
	"strings"
)

// extensionToSourceType maps file extensions to document formats. JSON
// and YAML files come through as-is; the extractor refines them to
// "openapi" when their content declares an OpenAPI or Swagger version.
var extensionToSourceType = map[string]string{
	".md":       "markdown",
	".markdown": "markdown",
	".mdx":      "markdown",
	".html":     "html",
	".htm":      "html",
	".txt":      "text",
	".text":     "text",
	".rst":      "text",
	".adoc":     "text",
	".json":     "json",
	".yaml":     "yaml",
	".yml":      "yaml",
}

// filenameToSourceType maps extensionless filenames that teams commonly
// keep in their docs trees.
var filenameToSourceType = map[string]string{
	"README":    "markdown",
	"CHANGELOG": "markdown",
	"NOTES":     "text",
	"TODO":      "text",
}

// DetectSourceType returns the document format for a given filename and
// whether the file is ingestible at all.
func DetectSourceType(filename string) (string, bool) {
	base := filepath.Base(filename)

	if st, ok := filenameToSourceType[base]; ok {
		return st, true
	}

	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		return "", false
	}

	st, ok := extensionToSourceType[ext]
	return st, ok
}
