package fileio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// BlobWriter persists received files under a root directory
type BlobWriter struct {
	root     string
	compress bool
}

// NewBlobWriter validates the root path and returns a writer. When compress
// is set, files are stored LZ4-compressed with an ".lz4" suffix.
func NewBlobWriter(root string, compress bool) (*BlobWriter, error) {
	cleaned := filepath.Clean(root)
	info, err := os.Stat(cleaned)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cleaned)
	}
	return &BlobWriter{root: cleaned, compress: compress}, nil
}

// Write stores a decrypted file blob. The filename is reduced to its base
// name so clients cannot steer writes outside the root.
func (b *BlobWriter) Write(filename string, data []byte) (string, error) {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == string(os.PathSeparator) {
		return "", fmt.Errorf("unusable filename %q", filename)
	}
	path := filepath.Join(b.root, base)
	if b.compress {
		path += ".lz4"
	}

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	buffered := bufio.NewWriterSize(file, 64*KiB)
	if b.compress {
		zw := lz4.NewWriter(buffered)
		if _, err := zw.Write(data); err != nil {
			return "", err
		}
		if err := zw.Close(); err != nil {
			return "", err
		}
	} else {
		if _, err := buffered.Write(data); err != nil {
			return "", err
		}
	}
	if err := buffered.Flush(); err != nil {
		return "", err
	}
	return path, nil
}

// ReadStored reads a stored blob back, transparently decompressing ".lz4"
// files. Used by tooling and tests to verify what was persisted.
func ReadStored(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if strings.HasSuffix(path, ".lz4") {
		return io.ReadAll(lz4.NewReader(file))
	}
	return io.ReadAll(file)
}
