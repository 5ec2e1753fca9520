// Package media prepares uploaded media for analysis: classification,
// keyframe and audio extraction, mixing and stem separation.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedMedia is returned for files that are neither image nor video.
var ErrUnsupportedMedia = errors.New("unsupported media type")

var videoExts = map[string]bool{".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true}

var imageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
}

// IsVideo reports whether path has a known video extension.
func IsVideo(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// IsImage reports whether path has a known image extension.
func IsImage(path string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Supported reports whether path can be analyzed.
func Supported(path string) bool {
	return IsVideo(path) || IsImage(path)
}

// MimeType returns the image MIME type for path, defaulting to JPEG.
func MimeType(path string) string {
	if mt, ok := imageExts[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "image/jpeg"
}

// EncodeBase64 reads a file and returns its standard base64 encoding.
func EncodeBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
