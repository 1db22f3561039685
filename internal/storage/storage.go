// Package storage defines the blob-storage boundary the worker downloads
// PDFs through (spec §6) and a local-filesystem implementation suitable for
// development and the CLI, mirroring the teacher's pattern of a small
// interface with one concrete adapter behind it.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docfields/hybriddetect/internal/pdferr"
)

// Blobs is the object-store boundary: upload the original/filled PDF,
// download it back out for processing, and mint a signed URL for clients.
type Blobs interface {
	Upload(localPath, key, contentType string) (url string, err error)
	Download(key, localPath string) error
	SignedURL(key string, expiresIn time.Duration) (string, error)
}

// LocalBlobs stores blobs as plain files under a root directory. It is the
// development/single-node stand-in for a real object store; SignedURL
// returns a file:// URL rather than a time-limited signature.
type LocalBlobs struct {
	root string
}

// NewLocalBlobs constructs a LocalBlobs rooted at dir, creating it if
// necessary.
func NewLocalBlobs(dir string) (*LocalBlobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pdferr.Wrap(pdferr.KindStorageFailure, "create storage directory", err)
	}
	return &LocalBlobs{root: dir}, nil
}

func (b *LocalBlobs) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

func (b *LocalBlobs) Upload(localPath, key, _ string) (string, error) {
	dest := b.path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", pdferr.Wrap(pdferr.KindStorageFailure, "create destination directory", err)
	}
	if err := copyFile(localPath, dest); err != nil {
		return "", pdferr.Wrap(pdferr.KindStorageFailure, "upload blob", err)
	}
	return "file://" + dest, nil
}

func (b *LocalBlobs) Download(key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return pdferr.Wrap(pdferr.KindStorageFailure, "create download directory", err)
	}
	if err := copyFile(b.path(key), localPath); err != nil {
		return pdferr.Wrap(pdferr.KindStorageFailure, "download blob", err)
	}
	return nil
}

func (b *LocalBlobs) SignedURL(key string, _ time.Duration) (string, error) {
	path := b.path(key)
	if _, err := os.Stat(path); err != nil {
		return "", pdferr.Wrap(pdferr.KindNotFound, "signed url for blob", err)
	}
	return "file://" + path, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy contents: %w", err)
	}
	return nil
}
