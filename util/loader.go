// Package util - Loading photos from disk for batch analysis.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-cavity/images"
)

// ImageFile represents an encoded photo read from disk.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Format is the format implied by the file extension.
	Format images.ImageFormat
}

// FormatForExt returns the image format for a file extension such as ".JPG".
func FormatForExt(ext string) (images.ImageFormat, bool) {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return images.FormatJPEG, true
	case ".png":
		return images.FormatPNG, true
	case ".webp":
		return images.FormatWebP, true
	}
	return "", false
}

// ID returns the file name without its extension, used as the request id.
func (f ImageFile) ID() string {
	base := filepath.Base(f.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Image wraps the file contents for the detector.
func (f ImageFile) Image() *images.Image {
	return &images.Image{Format: f.Format, Data: f.Data}
}

// LoadImageFile reads one image file.
//
// Arguments:
// - path: Path to a .jpg, .jpeg, .png or .webp file.
//
// Returns:
// - ImageFile: The file contents.
// - error: Error if the extension is unsupported or reading fails.
func LoadImageFile(path string) (ImageFile, error) {
	format, ok := FormatForExt(filepath.Ext(path))
	if !ok {
		return ImageFile{}, errors.Errorf("unsupported image extension: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "reading %s", path)
	}
	return ImageFile{Path: path, Data: data, Format: format}, nil
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Subdirectories and files with other extensions are skipped.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: The image files, sorted by file name.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := FormatForExt(filepath.Ext(entry.Name())); !ok {
			continue
		}

		file, err := LoadImageFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}
