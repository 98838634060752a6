package fileio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/checksum"
)

func TestBlobWriterPlain(t *testing.T) {
	root := t.TempDir()
	writer, err := NewBlobWriter(root, false)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("backup"), 10000)
	path, err := writer.Write("archive.bin", data)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "archive.bin"), path)

	stored, err := ReadStored(path)
	require.NoError(t, err)
	require.Equal(t, data, stored)
}

func TestBlobWriterCompressed(t *testing.T) {
	root := t.TempDir()
	writer, err := NewBlobWriter(root, true)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("compressible "), 5000)
	path, err := writer.Write("archive.bin", data)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "archive.bin.lz4"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Less(t, info.Size(), int64(len(data)))

	stored, err := ReadStored(path)
	require.NoError(t, err)
	require.Equal(t, data, stored)
}

// Client-supplied filenames cannot escape the root directory.
func TestBlobWriterStripsPathComponents(t *testing.T) {
	root := t.TempDir()
	writer, err := NewBlobWriter(root, false)
	require.NoError(t, err)

	path, err := writer.Write("../../etc/passwd", []byte("nope"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "passwd"), path)

	path, err = writer.Write("..\\..\\windows\\boot.ini", []byte("nope"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "boot.ini"), path)
}

func TestNewBlobWriterRejectsMissingRoot(t *testing.T) {
	_, err := NewBlobWriter(filepath.Join(t.TempDir(), "missing"), false)
	require.Error(t, err)
}

// ReadWholeFile yields the exact bytes plus their checksum, computed over
// the stream rather than a second pass.
func TestReadWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.bin")
	data := make([]byte, 200000)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, data, 0644))

	read, crc, err := ReadWholeFile(path)
	require.NoError(t, err)
	require.Equal(t, data, read)
	require.Equal(t, checksum.Sum(data), crc)
}
