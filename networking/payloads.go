package networking

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Fixed field widths inside payloads.
const (
	NameFieldSize     = 255 // Display name / filename, null-padded
	PublicKeyDERSize  = 162 // PKIX DER encoding of a 1024-bit RSA public key
	FilePacketHdrSize = 267 // chunk_size[4] | total_size[4] | index[2] | count[2] | filename[255]
)

// RegisterPayload is the payload of a REGISTER request
type RegisterPayload struct {
	Name [NameFieldSize]byte // Display name, null-padded
}

// PublicKeyPayload is the payload of a SENDPUBLICKEY request
type PublicKeyPayload struct {
	Name      [NameFieldSize]byte
	PublicKey [PublicKeyDERSize]byte // DER encoded RSA-1024 public key
}

// FilePacketHeader describes one chunk of an encrypted file in the stream.
// EncryptedChunkSize is the byte count of THIS packet's chunk, never the
// whole-file encrypted size. Conflating the two is exactly the historical
// single-vs-multi packet corruption bug, so the receiver enforces it.
type FilePacketHeader struct {
	EncryptedChunkSize uint32
	OriginalTotalSize  uint32 // Plaintext size of the whole file
	PacketIndex        uint16 // Starts from 0
	TotalPackets       uint16
	Filename           [NameFieldSize]byte
}

// FilePacket is a decoded SENDFILE payload
type FilePacket struct {
	FilePacketHeader
	Chunk []byte
}

// TransferOutcomePayload is the payload of a FILECRCRESULT response
type TransferOutcomePayload struct {
	ClientID           [ClientIDSize]byte
	EncryptedTotalSize uint32
	Filename           [NameFieldSize]byte
	Checksum           uint32 // POSIX cksum CRC-32 of the decrypted bytes
}

// ErrorPayload is the fixed part of an ERROR response, followed by a short
// human readable message
type ErrorPayload struct {
	Code uint16
}

// PayloadToBytes encodes a fixed-layout structure as payload bytes
func PayloadToBytes(payload interface{}) []byte {
	buffer := bytes.NewBuffer(make([]byte, 0, binary.Size(payload)))
	binary.Write(buffer, binary.LittleEndian, payload)
	return buffer.Bytes()
}

// DecodePayload decodes payload bytes into the given fixed-layout structure
func DecodePayload(payload []byte, dst interface{}) error {
	if binary.Size(dst) != len(payload) {
		return fmt.Errorf("%w: payload is %d bytes, expected %d",
			ErrFraming, len(payload), binary.Size(dst))
	}
	buffer := bytes.NewBuffer(payload)
	if err := binary.Read(buffer, binary.LittleEndian, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrFraming, err)
	}
	return nil
}

// EncodeFilePacket encodes a file packet, setting EncryptedChunkSize from
// the attached chunk
func EncodeFilePacket(packet *FilePacket) []byte {
	packet.EncryptedChunkSize = uint32(len(packet.Chunk))
	return append(PayloadToBytes(&packet.FilePacketHeader), packet.Chunk...)
}

// DecodeFilePacket decodes a SENDFILE payload. The declared chunk size must
// match the bytes actually attached; mismatch is rejected, never truncated
// or padded over.
func DecodeFilePacket(payload []byte) (*FilePacket, error) {
	if len(payload) < FilePacketHdrSize {
		return nil, fmt.Errorf("%w: file packet payload of %d bytes is shorter than its header",
			ErrFraming, len(payload))
	}
	packet := new(FilePacket)
	if err := DecodePayload(payload[:FilePacketHdrSize], &packet.FilePacketHeader); err != nil {
		return nil, err
	}
	packet.Chunk = payload[FilePacketHdrSize:]
	if int(packet.EncryptedChunkSize) != len(packet.Chunk) {
		return nil, fmt.Errorf("%w: declared %d bytes, packet carries %d",
			ErrPacketSizeMismatch, packet.EncryptedChunkSize, len(packet.Chunk))
	}
	return packet, nil
}

// PadName null-pads a string into a fixed name field. Names longer than the
// field are refused rather than silently cut.
func PadName(name string) ([NameFieldSize]byte, error) {
	var field [NameFieldSize]byte
	if len(name) > NameFieldSize {
		return field, fmt.Errorf("%w: name of %d bytes exceeds %d byte field",
			ErrResourceLimit, len(name), NameFieldSize)
	}
	copy(field[:], name)
	return field, nil
}

// NameString strips null padding from a fixed name field
func NameString(field [NameFieldSize]byte) string {
	if i := bytes.IndexByte(field[:], 0); i >= 0 {
		return string(field[:i])
	}
	return string(field[:])
}
