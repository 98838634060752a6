package comms

import (
	"bytes"
	"crypto/aes"
	"crypto/rsa"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/constants"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/fileio"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/networking"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/networking/reqcode"
)

// Client drives the sending side of the protocol: connect, register,
// exchange keys, then send files packet by packet and verify the server's
// checksum against a locally computed one.
type Client struct {
	socket    net.Conn
	clientID  [networking.ClientIDSize]byte
	private   *rsa.PrivateKey
	publicDER []byte
	crypto    *networking.Crypto

	// OnStatus, when set, observes transfer progress. Bridging layers hook
	// in here; they never see wire bytes.
	OnStatus StatusFunc
}

// Status is one progress notification for an in-flight transfer
type Status struct {
	Filename     string
	Attempt      int
	PacketsSent  int
	TotalPackets int
}

// StatusFunc receives transfer progress notifications
type StatusFunc func(Status)

// Connect opens a TCP connection to the target host address
func (c *Client) Connect(address string, dscp int) error {
	if _, err := net.ResolveTCPAddr("tcp", address); err != nil {
		return fmt.Errorf("%w: %v", networking.ErrConnection, err)
	}
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return fmt.Errorf("%w: %v", networking.ErrConnection, err)
	}
	c.socket = conn
	// Set TCP_NODELAY to always immediately send.
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	// Set DSCP. NOTE: On Windows by default it will not apply the value.
	ipv4.NewConn(conn).SetTOS(dscp)

	return nil
}

// LoadOrCreateKeys loads the persistent RSA keypair from keyPath, creating
// and saving a fresh one on first use. An empty path keeps the keypair
// ephemeral.
func (c *Client) LoadOrCreateKeys(keyPath string) error {
	if keyPath != "" {
		if _, err := os.Stat(keyPath); err == nil {
			private, der, err := networking.LoadPrivateKey(keyPath)
			if err != nil {
				return err
			}
			c.private, c.publicDER = private, der
			return nil
		}
	}
	private, der, err := networking.GenerateKeyPair()
	if err != nil {
		return err
	}
	c.private, c.publicDER = private, der
	if keyPath != "" {
		return networking.SavePrivateKey(keyPath, private)
	}
	return nil
}

// Register sends the display name and records the server-assigned client id
func (c *Client) Register(name string) error {
	field, err := networking.PadName(name)
	if err != nil {
		return err
	}
	if err := c.sendRequest(reqcode.REGISTER,
		networking.PayloadToBytes(&networking.RegisterPayload{Name: field})); err != nil {
		return err
	}
	response, err := c.readResponse(reqcode.REGISTEROK)
	if err != nil {
		return err
	}
	if len(response.Payload) != networking.ClientIDSize {
		return fmt.Errorf("%w: registration ack carried %d bytes, expected %d",
			networking.ErrProtocol, len(response.Payload), networking.ClientIDSize)
	}
	copy(c.clientID[:], response.Payload)
	return nil
}

// ExchangeKeys sends the public key and unwraps the session key the server
// returns for this connection
func (c *Client) ExchangeKeys(name string) error {
	if c.private == nil {
		if err := c.LoadOrCreateKeys(""); err != nil {
			return err
		}
	}
	field, err := networking.PadName(name)
	if err != nil {
		return err
	}
	payload := networking.PublicKeyPayload{Name: field}
	copy(payload.PublicKey[:], c.publicDER)

	if err := c.sendRequest(reqcode.SENDPUBLICKEY, networking.PayloadToBytes(&payload)); err != nil {
		return err
	}
	response, err := c.readResponse(reqcode.PUBLICKEYACK)
	if err != nil {
		return err
	}
	if len(response.Payload) <= networking.ClientIDSize {
		return fmt.Errorf("%w: key ack carried no wrapped session key", networking.ErrProtocol)
	}
	if !bytes.Equal(response.Payload[:networking.ClientIDSize], c.clientID[:]) {
		return fmt.Errorf("%w: key ack names a different client", networking.ErrProtocol)
	}
	sessionKey, err := networking.DecryptSessionKey(c.private, response.Payload[networking.ClientIDSize:])
	if err != nil {
		return err
	}
	crypto, err := new(networking.Crypto).WithKey(sessionKey)
	if err != nil {
		return err
	}
	c.crypto = crypto
	return nil
}

// SendFile transfers one file and returns the verified checksum. On a
// checksum mismatch the whole file is retried, bounded by MAX_SEND_ATTEMPTS;
// any other failure is surfaced immediately.
func (c *Client) SendFile(path string) (uint32, error) {
	if c.crypto == nil {
		return 0, fmt.Errorf("%w: no session key, exchange keys first", networking.ErrProtocol)
	}
	data, localCrc, err := fileio.ReadWholeFile(path)
	if err != nil {
		return 0, err
	}
	filename, err := networking.PadName(filepath.Base(path))
	if err != nil {
		return 0, err
	}
	// One tier for the transfer's whole lifetime, chosen from the
	// plaintext size.
	bufferSize := fileio.BufferSizeFor(int64(len(data)))
	if err := validateTransferSize(int64(len(data)), bufferSize); err != nil {
		return 0, err
	}

	var lastErr error
	for attempt := 1; attempt <= constants.MAX_SEND_ATTEMPTS; attempt++ {
		serverCrc, err := c.sendOnce(filename, data, bufferSize, attempt)
		if err == nil && serverCrc == localCrc {
			return localCrc, nil
		}
		if err != nil {
			lastErr = err
			break
		}
		fmt.Printf("Checksum mismatch on attempt %d: server reported %08x, expected %08x\n",
			attempt, serverCrc, localCrc)
		lastErr = fmt.Errorf("%w: server reported %08x, expected %08x",
			networking.ErrCrcMismatch, serverCrc, localCrc)
	}
	return 0, lastErr
}

// sendOnce encrypts the whole file once, splits the blob into packets of
// the chosen buffer size and awaits the single final checksum response
func (c *Client) sendOnce(filename [networking.NameFieldSize]byte, data []byte, bufferSize, attempt int) (uint32, error) {
	encrypted := c.crypto.Encrypt(data)
	packets := packetize(filename, uint32(len(data)), encrypted, bufferSize)

	for sent, packet := range packets {
		if err := c.sendRequest(reqcode.SENDFILE, networking.EncodeFilePacket(packet)); err != nil {
			return 0, err
		}
		if c.OnStatus != nil {
			c.OnStatus(Status{
				Filename:     networking.NameString(filename),
				Attempt:      attempt,
				PacketsSent:  sent + 1,
				TotalPackets: len(packets),
			})
		}
	}

	// No per-packet acks exist; the final response is the only signal, so
	// a lost packet surfaces as this read timing out.
	c.socket.SetReadDeadline(time.Now().Add(constants.RESPONSE_TIMEOUT * time.Second))
	defer c.socket.SetReadDeadline(time.Time{})

	response, err := c.readResponse(reqcode.FILECRCRESULT)
	if err != nil {
		return 0, err
	}
	var outcome networking.TransferOutcomePayload
	if err := networking.DecodePayload(response.Payload, &outcome); err != nil {
		return 0, fmt.Errorf("%w: malformed transfer outcome", networking.ErrProtocol)
	}
	if outcome.Filename != filename {
		return 0, fmt.Errorf("%w: outcome names %q, sent %q", networking.ErrProtocol,
			networking.NameString(outcome.Filename), networking.NameString(filename))
	}
	if int(outcome.EncryptedTotalSize) != len(encrypted) {
		return 0, fmt.Errorf("%w: outcome counts %d encrypted bytes, sent %d",
			networking.ErrProtocol, outcome.EncryptedTotalSize, len(encrypted))
	}
	return outcome.Checksum, nil
}

// validateTransferSize refuses files the wire format cannot represent: the
// declared file size is a uint32 and the packet counter a uint16, and a file
// past either would wrap the field and truncate silently on the far side.
func validateTransferSize(fileSize int64, bufferSize int) error {
	if fileSize > math.MaxUint32 {
		return fmt.Errorf("%w: file of %d bytes exceeds the %d byte transfer maximum",
			networking.ErrResourceLimit, fileSize, uint32(math.MaxUint32))
	}
	// CBC with PKCS#7 always pads, so the blob grows past the next block
	// boundary before splitting.
	encryptedSize := fileSize + aes.BlockSize - fileSize%aes.BlockSize
	if total := (encryptedSize + int64(bufferSize) - 1) / int64(bufferSize); total > constants.MAX_TOTAL_PACKETS {
		return fmt.Errorf("%w: file needs %d packets, the transfer maximum is %d",
			networking.ErrResourceLimit, total, constants.MAX_TOTAL_PACKETS)
	}
	return nil
}

// packetize splits one encrypted blob into file packets of at most
// bufferSize bytes. Every packet's EncryptedChunkSize is that packet's own
// chunk length; the last packet may be shorter.
func packetize(filename [networking.NameFieldSize]byte, originalSize uint32, blob []byte, bufferSize int) []*networking.FilePacket {
	total := (len(blob) + bufferSize - 1) / bufferSize
	packets := make([]*networking.FilePacket, 0, total)
	for index := 0; index < total; index++ {
		start := index * bufferSize
		end := start + bufferSize
		if end > len(blob) {
			end = len(blob)
		}
		packets = append(packets, &networking.FilePacket{
			FilePacketHeader: networking.FilePacketHeader{
				OriginalTotalSize: originalSize,
				PacketIndex:       uint16(index),
				TotalPackets:      uint16(total),
				Filename:          filename,
			},
			Chunk: blob[start:end],
		})
	}
	return packets
}

// ClientID returns the server-assigned identifier
func (c *Client) ClientID() [networking.ClientIDSize]byte {
	return c.clientID
}

// Close closes the socket
func (c *Client) Close() {
	if c.socket != nil {
		c.socket.Close()
	}
}

// sendRequest writes one request to the socket
func (c *Client) sendRequest(code uint16, payload []byte) error {
	out, err := networking.EncodeRequest(&networking.Request{
		RequestHeader: networking.RequestHeader{
			ClientID: c.clientID,
			Version:  constants.PROTOCOL_VERSION,
			Code:     code,
		},
		Payload: payload,
	})
	if err != nil {
		return err
	}
	if _, err := c.socket.Write(out); err != nil {
		return fmt.Errorf("%w: %v", networking.ErrConnection, err)
	}
	return nil
}

// readResponse reads one full response and matches it to the expected code.
// A server-sent ERROR response is unwrapped to its taxonomy error.
func (c *Client) readResponse(expected uint16) (*networking.Response, error) {
	response, err := networking.ReadResponse(c.socket)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: timed out waiting for response", networking.ErrConnection)
		}
		return nil, err
	}
	if response.Code == reqcode.ERROR {
		return nil, serverError(response.Payload)
	}
	if response.Code != expected {
		return nil, fmt.Errorf("%w: got response code %d, expected %d",
			networking.ErrProtocol, response.Code, expected)
	}
	return response, nil
}

// serverError decodes an ERROR payload into the matching error kind
func serverError(payload []byte) error {
	if len(payload) < 2 {
		return networking.ErrProtocol
	}
	var header networking.ErrorPayload
	if err := networking.DecodePayload(payload[:2], &header); err != nil {
		return networking.ErrProtocol
	}
	kind := networking.ErrorForCode(header.Code)
	if message := string(payload[2:]); message != "" {
		return fmt.Errorf("%w: server said: %s", kind, message)
	}
	return kind
}
