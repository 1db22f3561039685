package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	blobs, err := NewLocalBlobs(dir)
	require.NoError(t, err)

	srcFile := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(srcFile, []byte("%PDF-1.4 fake"), 0o644))

	url, err := blobs.Upload(srcFile, "documents/abc/original.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Contains(t, url, "original.pdf")

	destFile := filepath.Join(t.TempDir(), "downloaded.pdf")
	require.NoError(t, blobs.Download("documents/abc/original.pdf", destFile))

	got, err := os.ReadFile(destFile)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(got))
}

func TestSignedURLMissingKeyFails(t *testing.T) {
	blobs, err := NewLocalBlobs(t.TempDir())
	require.NoError(t, err)

	_, err = blobs.SignedURL("nope.pdf", 0)
	assert.Error(t, err)
}
