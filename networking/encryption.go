package networking

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// SessionKeySize is the AES-256 key length in bytes.
const SessionKeySize = 32

// Crypto handles AES-256-CBC encryption and decryption with PKCS#7 padding.
//
// SECURITY WARNING: the IV is fixed to all-zero bytes. With a CBC mode this
// makes encryption deterministic and leaks plaintext equality (IND-CPA
// broken). The scheme is kept for wire compatibility with the original
// protocol; the accepted mitigation is that every session negotiates a fresh
// random key, so no two files are ever encrypted under the same (key, IV)
// pair twice across sessions. Do NOT change the IV without a coordinated
// protocol migration.
type Crypto struct {
	aes cipher.Block
}

// WithKey initializes AES-256 with the given 32 byte session key
func (c *Crypto) WithKey(key []byte) (*Crypto, error) {
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("%w: session key must be %d bytes, got %d",
			ErrKeyFormat, SessionKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	c.aes = block
	return c, nil
}

// NewSessionKey generates a fresh random 256-bit session key
func NewSessionKey() ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt pads and encrypts plaintext. Output length is always a whole
// number of AES blocks, at least one block longer than a block-aligned input.
func (c *Crypto) Encrypt(plaintext []byte) []byte {
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	// Zero IV, see the type comment.
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(c.aes, iv).CryptBlocks(out, padded)
	return out
}

// Decrypt decrypts and unpads ciphertext. A padding failure is reported as
// ErrDecrypt and treated as a potential integrity problem by callers.
func (c *Crypto) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext of %d bytes is not block aligned",
			ErrDecrypt, len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCDecrypter(c.aes, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

// pkcs7Pad appends 1..blockSize bytes, each holding the pad length
func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}

// pkcs7Unpad validates and strips the padding
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, fmt.Errorf("%w: invalid padding length %d", ErrDecrypt, pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("%w: inconsistent padding bytes", ErrDecrypt)
		}
	}
	return data[:len(data)-pad], nil
}
