package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/cacao-scan/models/model/preprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
}

func TestLoadDirectoryImageFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "pod-b.JPG", "pod-a.png", "notes.txt", "pod-c.jpeg")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o700))

	images, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, images, 3)

	assert.Equal(t, filepath.Join(dir, "pod-a.png"), images[0].Path)
	assert.Equal(t, preprocess.ImageFormatPNG, images[0].Format)
	assert.Equal(t, []byte("pod-a.png"), images[0].Data)
	assert.Equal(t, filepath.Join(dir, "pod-b.JPG"), images[1].Path)
	assert.Equal(t, preprocess.ImageFormatJPEG, images[1].Format)
	assert.Equal(t, preprocess.ImageFormatJPEG, images[2].Image().Format)
}

func TestLoadDirectoryImageFilesEmpty(t *testing.T) {
	images, err := LoadDirectoryImageFiles(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, images)

	_, err = LoadDirectoryImageFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadImages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "pod.jpg", "pod.gif")

	images, err := LoadImages(filepath.Join(dir, "pod.jpg"))
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, []byte("pod.jpg"), images[0].Data)

	images, err = LoadImages(dir)
	require.NoError(t, err)
	assert.Len(t, images, 1)

	_, err = LoadImages(filepath.Join(dir, "pod.gif"))
	assert.Error(t, err)
}
