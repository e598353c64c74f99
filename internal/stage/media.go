package stage

import (
	"path/filepath"
	"strings"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".webm": true,
	".m4v": true, ".flv": true, ".3gp": true, ".ts": true, ".vob": true,
	".wmv": true, ".mpeg": true, ".mpg": true, ".m2ts": true, ".ogv": true,
}

// IsVideoFile checks if the file has a supported video container extension
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// stem returns the file name without directory and extension
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
