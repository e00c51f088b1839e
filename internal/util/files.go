package util

import (
	"os"
	"path/filepath"
	"strings"
)

// videoExtensions is the set of container extensions FindVideoFiles treats
// as candidate input. Extending this list costs nothing — a file that
// isn't actually a supported container surfaces as an OpenFormat failure
// from the codec adapter, not a silent skip here.
var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".mov": true, ".avi": true,
	".webm": true, ".m4v": true, ".ts": true, ".wmv": true,
	".flv": true, ".mpg": true, ".mpeg": true,
}

// IsVideoFile reports whether path's extension matches a known video
// container.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GetFilename returns the base filename of path.
func GetFilename(path string) string {
	return filepath.Base(path)
}

// ResolveOutputPath computes the output path for inputPath under
// outputDir. override, if non-empty, replaces the derived filename
// entirely.
func ResolveOutputPath(inputPath, outputDir, override string) string {
	if override != "" {
		return filepath.Join(outputDir, override)
	}
	base := GetFilename(inputPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(outputDir, name+".mp4")
}
