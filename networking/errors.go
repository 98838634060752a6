package networking

import "errors"

// Protocol error kinds. Each maps to a stable numeric code carried in
// ERROR responses so peers can tell failure classes apart.
var (
	ErrFraming            = errors.New("malformed header or payload length")
	ErrKeyFormat          = errors.New("malformed or unsupported key encoding")
	ErrDecrypt            = errors.New("decryption or padding validation failed")
	ErrPacketSizeMismatch = errors.New("packet chunk size disagrees with attached bytes")
	ErrCrcMismatch        = errors.New("checksum mismatch after transfer")
	ErrConnection         = errors.New("connection failed")
	ErrProtocol           = errors.New("unexpected or malformed peer response")
	ErrResourceLimit      = errors.New("resource limit exceeded")
)

// Stable machine-readable codes for the error taxonomy.
const (
	CodeFraming            uint16 = 1
	CodeKeyFormat          uint16 = 2
	CodeDecrypt            uint16 = 3
	CodePacketSizeMismatch uint16 = 4
	CodeCrcMismatch        uint16 = 5
	CodeConnection         uint16 = 6
	CodeProtocol           uint16 = 7
	CodeResourceLimit      uint16 = 8
)

var errCodes = []struct {
	err  error
	code uint16
}{
	{ErrFraming, CodeFraming},
	{ErrKeyFormat, CodeKeyFormat},
	{ErrDecrypt, CodeDecrypt},
	{ErrPacketSizeMismatch, CodePacketSizeMismatch},
	{ErrCrcMismatch, CodeCrcMismatch},
	{ErrConnection, CodeConnection},
	{ErrProtocol, CodeProtocol},
	{ErrResourceLimit, CodeResourceLimit},
}

// ErrorCode resolves an error chain to its wire code. Unrecognized errors
// report as protocol errors rather than inventing a new class.
func ErrorCode(err error) uint16 {
	for _, ec := range errCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeProtocol
}

// ErrorForCode is the inverse mapping, used when surfacing a server-sent
// error code to the caller.
func ErrorForCode(code uint16) error {
	for _, ec := range errCodes {
		if ec.code == code {
			return ec.err
		}
	}
	return ErrProtocol
}
