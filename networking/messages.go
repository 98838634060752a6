package networking

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/constants"
)

// Wire layout sizes. All multi-byte integers are little-endian, fixed
// width, no implicit padding.
const (
	RequestHeaderSize  = 23 // client_id[16] | version[1] | code[2] | payload_size[4]
	ResponseHeaderSize = 7  // version[1] | code[2] | payload_size[4]
	ClientIDSize       = 16
)

// RequestHeader contains the static part of a client message
type RequestHeader struct {
	ClientID    [ClientIDSize]byte
	Version     uint8
	Code        uint16
	PayloadSize uint32
	// Followed by PayloadSize * bytes payload.
}

// ResponseHeader contains the static part of a server message
type ResponseHeader struct {
	Version     uint8
	Code        uint16
	PayloadSize uint32
	// Followed by PayloadSize * bytes payload.
}

// Request is a full client message
type Request struct {
	RequestHeader
	Payload []byte
}

// Response is a full server message
type Response struct {
	ResponseHeader
	Payload []byte
}

// DecodeRequestHeader decodes exactly RequestHeaderSize bytes to a header.
// Payload bytes are never interpreted here; the caller reads them.
func DecodeRequestHeader(message []byte) (*RequestHeader, error) {
	if len(message) != RequestHeaderSize {
		return nil, fmt.Errorf("%w: request header must be %d bytes, got %d",
			ErrFraming, RequestHeaderSize, len(message))
	}
	header := new(RequestHeader)
	buffer := bytes.NewBuffer(message)
	if err := binary.Read(buffer, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFraming, err)
	}
	return header, nil
}

// DecodeResponseHeader decodes exactly ResponseHeaderSize bytes to a header
func DecodeResponseHeader(message []byte) (*ResponseHeader, error) {
	if len(message) != ResponseHeaderSize {
		return nil, fmt.Errorf("%w: response header must be %d bytes, got %d",
			ErrFraming, ResponseHeaderSize, len(message))
	}
	header := new(ResponseHeader)
	buffer := bytes.NewBuffer(message)
	if err := binary.Read(buffer, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFraming, err)
	}
	return header, nil
}

// EncodeRequest encodes a request to a slice of bytes, setting PayloadSize
// from the attached payload
func EncodeRequest(req *Request) ([]byte, error) {
	if len(req.Payload) > constants.MAX_PAYLOAD_SIZE {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds maximum",
			ErrResourceLimit, len(req.Payload))
	}
	req.PayloadSize = uint32(len(req.Payload))

	buffer := bytes.NewBuffer(make([]byte, 0, RequestHeaderSize+len(req.Payload)))
	if err := binary.Write(buffer, binary.LittleEndian, req.RequestHeader); err != nil {
		return nil, err
	}
	return append(buffer.Bytes(), req.Payload...), nil
}

// EncodeResponse encodes a response to a slice of bytes
func EncodeResponse(resp *Response) ([]byte, error) {
	if len(resp.Payload) > constants.MAX_PAYLOAD_SIZE {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds maximum",
			ErrResourceLimit, len(resp.Payload))
	}
	resp.PayloadSize = uint32(len(resp.Payload))

	buffer := bytes.NewBuffer(make([]byte, 0, ResponseHeaderSize+len(resp.Payload)))
	if err := binary.Write(buffer, binary.LittleEndian, resp.ResponseHeader); err != nil {
		return nil, err
	}
	return append(buffer.Bytes(), resp.Payload...), nil
}

// ReadRequest reads one full request from the stream. The declared payload
// size must be satisfied exactly; stream end before that is a framing error.
func ReadRequest(r io.Reader) (*Request, error) {
	msg := make([]byte, RequestHeaderSize)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	header, err := DecodeRequestHeader(msg)
	if err != nil {
		return nil, err
	}
	payload, err := readExact(r, header.PayloadSize)
	if err != nil {
		return nil, err
	}
	return &Request{RequestHeader: *header, Payload: payload}, nil
}

// ReadResponse reads one full response from the stream
func ReadResponse(r io.Reader) (*Response, error) {
	msg := make([]byte, ResponseHeaderSize)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	header, err := DecodeResponseHeader(msg)
	if err != nil {
		return nil, err
	}
	payload, err := readExact(r, header.PayloadSize)
	if err != nil {
		return nil, err
	}
	return &Response{ResponseHeader: *header, Payload: payload}, nil
}

// readExact reads the declared number of payload bytes and nothing else
func readExact(r io.Reader, size uint32) ([]byte, error) {
	if size > constants.MAX_PAYLOAD_SIZE {
		return nil, fmt.Errorf("%w: declared payload of %d bytes exceeds maximum",
			ErrResourceLimit, size)
	}
	payload := make([]byte, size)
	if size > 0 {
		read, err := io.ReadFull(r, payload)
		if err != nil {
			// Keep the cause in the chain so a timeout stays recognizable
			// as one.
			return nil, fmt.Errorf("%w: got %d of %d declared payload bytes: %w",
				ErrFraming, read, size, err)
		}
	}
	return payload, nil
}
