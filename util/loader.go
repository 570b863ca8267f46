// Package util - Loading pod photographs from disk.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvr-ai/cacao-scan/models/model/preprocess"
	"github.com/pkg/errors"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Format is guessed from the extension.
	Format preprocess.ImageFormat
}

// Image returns the file as preprocessor input.
func (f ImageFile) Image() *preprocess.Image {
	return &preprocess.Image{Format: f.Format, Data: f.Data}
}

// FormatOf returns the image format for a file name, or false when the extension is not a
// supported image type.
func FormatOf(name string) (preprocess.ImageFormat, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return preprocess.ImageFormatJPEG, true
	case ".png":
		return preprocess.ImageFormatPNG, true
	}
	return "", false
}

// LoadImageFile reads one image file.
func LoadImageFile(path string) (ImageFile, error) {
	format, ok := FormatOf(path)
	if !ok {
		return ImageFile{}, errors.Errorf("unsupported image type %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "failed to read %s", path)
	}
	return ImageFile{Path: path, Data: data, Format: format}, nil
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Arguments:
// - dir: Directory path containing image files. Subdirectories and other files are skipped.
//
// Returns:
// - []ImageFile: The images sorted by file name.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}

	images := []ImageFile{}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if _, ok := FormatOf(file.Name()); !ok {
			continue
		}
		img, err := LoadImageFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Path < images[j].Path
	})

	return images, nil
}

// LoadImages loads path as a single image, or every image in it when it is a directory.
func LoadImages(path string) ([]ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	if info.IsDir() {
		return LoadDirectoryImageFiles(path)
	}
	img, err := LoadImageFile(path)
	if err != nil {
		return nil, err
	}
	return []ImageFile{img}, nil
}
