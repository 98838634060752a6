package server

import (
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/checksum"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/constants"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/networking"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/networking/reqcode"
)

// Session is one client connection's state. The session key lives here for
// the lifetime of the connection and is never persisted.
type Session struct {
	conn     net.Conn
	server   *Server
	tag      uint64
	clientID [networking.ClientIDSize]byte
	crypto   *networking.Crypto
}

// dispatch routes a request by its code
func (c *Session) dispatch(request *networking.Request) {
	switch request.Code {
	case reqcode.REGISTER:
		c.handleRegister(request)
	case reqcode.SENDPUBLICKEY:
		c.handleKeyExchange(request)
	case reqcode.SENDFILE:
		c.handleFilePacket(request)
	default:
		fmt.Println("Don't know what to do with request code", request.Code)
		c.sendError(fmt.Errorf("%w: unknown request code %d", networking.ErrProtocol, request.Code))
	}
}

// handleRegister assigns a fresh 16 byte client identifier and records the
// display name
func (c *Session) handleRegister(request *networking.Request) {
	var payload networking.RegisterPayload
	if err := networking.DecodePayload(request.Payload, &payload); err != nil {
		c.sendError(err)
		return
	}
	name := networking.NameString(payload.Name)
	if name == "" {
		c.sendError(fmt.Errorf("%w: empty display name", networking.ErrProtocol))
		return
	}

	c.clientID = [networking.ClientIDSize]byte(uuid.New())
	if err := c.server.records.RecordClient(c.clientID, name); err != nil {
		fmt.Println("Record store rejected client:", err.Error())
		c.sendError(fmt.Errorf("%w: could not record registration", networking.ErrResourceLimit))
		return
	}

	fmt.Println("Registered client", name, "as", uuid.UUID(c.clientID).String())
	c.sendResponse(reqcode.REGISTEROK, c.clientID[:])
}

// handleKeyExchange validates the client's RSA public key, generates a fresh
// session key and returns it OAEP-wrapped. A new exchange supersedes any
// previous session key on this connection.
func (c *Session) handleKeyExchange(request *networking.Request) {
	var payload networking.PublicKeyPayload
	if err := networking.DecodePayload(request.Payload, &payload); err != nil {
		c.sendError(err)
		return
	}

	sessionKey, err := networking.NewSessionKey()
	if err != nil {
		c.sendError(fmt.Errorf("%w: could not generate session key", networking.ErrProtocol))
		return
	}
	wrapped, err := networking.EncryptSessionKey(payload.PublicKey[:], sessionKey)
	if err != nil {
		// Bad key material fails this operation, not the connection.
		fmt.Println("Key exchange failed:", err.Error())
		c.sendError(err)
		return
	}
	crypto, err := new(networking.Crypto).WithKey(sessionKey)
	if err != nil {
		c.sendError(err)
		return
	}
	c.crypto = crypto

	c.sendResponse(reqcode.PUBLICKEYACK, append(request.ClientID[:], wrapped...))
}

// handleFilePacket feeds one packet into the shared reassembly table and,
// on the packet that completes a transfer, decrypts, verifies and persists
// the file. No per-packet acknowledgement is sent; the only response for a
// transfer is the final checksum result.
func (c *Session) handleFilePacket(request *networking.Request) {
	if c.crypto == nil {
		c.sendError(fmt.Errorf("%w: file packet before key exchange", networking.ErrProtocol))
		return
	}

	packet, err := networking.DecodeFilePacket(request.Payload)
	if err != nil {
		c.sendError(err)
		return
	}
	filename := networking.NameString(packet.Filename)

	blob, done, err := c.server.table.Add(request.ClientID, c.tag, packet)
	if err != nil {
		// Fatal to this transfer only; other keys are unaffected.
		fmt.Println("Transfer", filename, "failed:", err.Error())
		c.sendError(err)
		return
	}
	if !done {
		return
	}

	// Decrypt and checksum outside the table lock.
	plaintext, err := c.crypto.Decrypt(blob)
	if err == nil && len(plaintext) != int(packet.OriginalTotalSize) {
		err = fmt.Errorf("%w: decrypted %d bytes, transfer declared %d",
			networking.ErrDecrypt, len(plaintext), packet.OriginalTotalSize)
	}
	if err != nil {
		fmt.Println("Transfer", filename, "failed:", err.Error())
		if recErr := c.server.records.RecordFile(request.ClientID, filename, int64(packet.OriginalTotalSize), 0, false); recErr != nil {
			fmt.Println("Record store rejected file record for", filename+":", recErr.Error())
		}
		c.sendError(err)
		return
	}

	crc := checksum.Sum(plaintext)

	if c.server.blobs != nil {
		if _, err := c.server.blobs.Write(filename, plaintext); err != nil {
			fmt.Println("Could not persist", filename+":", err.Error())
			c.sendError(fmt.Errorf("%w: could not persist file", networking.ErrResourceLimit))
			return
		}
	}
	// The file is already persisted and verified at this point, so a
	// bookkeeping failure is logged rather than failing the transfer.
	if recErr := c.server.records.RecordFile(request.ClientID, filename, int64(len(plaintext)), crc, true); recErr != nil {
		fmt.Println("Record store rejected file record for", filename+":", recErr.Error())
	}

	fmt.Println("Completed transfer", filename, "of", len(plaintext), "bytes")

	outcome := networking.TransferOutcomePayload{
		ClientID:           request.ClientID,
		EncryptedTotalSize: uint32(len(blob)),
		Filename:           packet.Filename,
		Checksum:           crc,
	}
	c.sendResponse(reqcode.FILECRCRESULT, networking.PayloadToBytes(&outcome))
}

// sendResponse writes one response to the session's socket
func (c *Session) sendResponse(code uint16, payload []byte) {
	out, err := networking.EncodeResponse(&networking.Response{
		ResponseHeader: networking.ResponseHeader{
			Version: constants.PROTOCOL_VERSION,
			Code:    code,
		},
		Payload: payload,
	})
	if err != nil {
		fmt.Println("Could not encode response:", err.Error())
		return
	}
	if _, err := c.conn.Write(out); err != nil {
		fmt.Println("Could not write response:", err.Error())
	}
}

// sendError answers with the stable code for the error kind plus a short
// human readable string. Errors are never swallowed into a fake success.
func (c *Session) sendError(cause error) {
	payload := networking.PayloadToBytes(&networking.ErrorPayload{
		Code: networking.ErrorCode(cause),
	})
	message := cause.Error()
	if errors.Is(cause, networking.ErrDecrypt) {
		// Do not leak padding detail to the peer.
		message = networking.ErrDecrypt.Error()
	}
	c.sendResponse(reqcode.ERROR, append(payload, []byte(message)...))
}
