package fileio

import (
	"bufio"
	"io"
	"os"

	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/checksum"
)

// ReadWholeFile reads the complete file contents into memory and returns the
// transfer checksum, folded in as the bytes stream past. Transfers encrypt
// the file as one blob, so the full plaintext is needed up front; the
// targeted file sizes (up to a few GiB) make this acceptable.
func ReadWholeFile(filename string) ([]byte, uint32, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, err
	}

	reader := bufio.NewReaderSize(file, 64*KiB)
	data := make([]byte, 0, info.Size())
	buf := make([]byte, 64*KiB)
	digest := new(checksum.Digest)
	for {
		read, err := reader.Read(buf)
		if read > 0 {
			digest.Write(buf[:read])
			data = append(data, buf[:read]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}
	return data, digest.Sum32(), nil
}
