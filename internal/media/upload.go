package media

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// UploadDirPrefix names the per-upload temporary directories.
const UploadDirPrefix = "post_scan_"

// Upload is a saved media file.
type Upload struct {
	Path string
	Dir  string
	Hash string
	Size int64
}

// SaveUpload streams r into a fresh directory under root, naming the file
// with a random id and the original extension. The BLAKE3 hash of the
// content is computed on the way.
func SaveUpload(root, originalName string, r io.Reader) (Upload, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Upload{}, fmt.Errorf("create upload root: %w", err)
	}
	dir, err := os.MkdirTemp(root, UploadDirPrefix)
	if err != nil {
		return Upload{}, fmt.Errorf("create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	path := filepath.Join(dir, uuid.NewString()+ext)
	f, err := os.Create(path)
	if err != nil {
		os.RemoveAll(dir)
		return Upload{}, fmt.Errorf("create upload file: %w", err)
	}

	h := blake3.New(32, nil)
	size, err := io.Copy(io.MultiWriter(f, h), r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.RemoveAll(dir)
		return Upload{}, fmt.Errorf("write upload: %w", err)
	}

	return Upload{Path: path, Dir: dir, Hash: hex.EncodeToString(h.Sum(nil)), Size: size}, nil
}

// HashFile returns the hex BLAKE3 digest of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Cleanup removes the upload directory that holds path. Paths outside an
// upload directory are removed individually.
func Cleanup(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if strings.HasPrefix(filepath.Base(dir), UploadDirPrefix) {
		return os.RemoveAll(dir)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
