package networking

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// RSAKeyBits is the modulus size used for session key exchange. 1024 bits is
// inherited from the original protocol and kept for interoperability; it
// yields the fixed 162 byte PKIX DER public encoding the wire format relies on.
const RSAKeyBits = 1024

// GenerateKeyPair generates a fresh RSA-1024 keypair and returns the private
// key together with the 162 byte DER encoding of its public half
func GenerateKeyPair() (*rsa.PrivateKey, []byte, error) {
	private, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return nil, nil, err
	}
	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	if len(der) != PublicKeyDERSize {
		// A 1024-bit modulus with a small public exponent always encodes
		// to 162 bytes; anything else breaks the fixed-width wire field.
		return nil, nil, fmt.Errorf("%w: public key encoded to %d bytes, expected %d",
			ErrKeyFormat, len(der), PublicKeyDERSize)
	}
	return private, der, nil
}

// ParsePublicKey validates DER input and returns a well-formed 1024-bit RSA
// public key. Malformed or truncated encodings have been a real-world
// failure point, so the exact length is enforced before parsing.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	if len(der) != PublicKeyDERSize {
		return nil, fmt.Errorf("%w: public key must be %d DER bytes, got %d",
			ErrKeyFormat, PublicKeyDERSize, len(der))
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	public, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", ErrKeyFormat)
	}
	if public.N.BitLen() != RSAKeyBits {
		return nil, fmt.Errorf("%w: modulus is %d bits, expected %d",
			ErrKeyFormat, public.N.BitLen(), RSAKeyBits)
	}
	return public, nil
}

// EncryptSessionKey wraps a 32 byte session key with RSA-OAEP (SHA-256)
// under the peer's public key
func EncryptSessionKey(der []byte, sessionKey []byte) ([]byte, error) {
	if len(sessionKey) != SessionKeySize {
		return nil, fmt.Errorf("%w: session key must be %d bytes, got %d",
			ErrKeyFormat, SessionKeySize, len(sessionKey))
	}
	public, err := ParsePublicKey(der)
	if err != nil {
		return nil, err
	}
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, public, sessionKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	return wrapped, nil
}

// DecryptSessionKey unwraps a session key with the local private key
func DecryptSessionKey(private *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	sessionKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, private, wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(sessionKey) != SessionKeySize {
		return nil, fmt.Errorf("%w: unwrapped key is %d bytes, expected %d",
			ErrKeyFormat, len(sessionKey), SessionKeySize)
	}
	return sessionKey, nil
}

// SavePrivateKey persists a private key as PKCS#1 PEM for reuse across runs
func SavePrivateKey(path string, private *rsa.PrivateKey) error {
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(private),
	}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0600)
}

// LoadPrivateKey reads a previously saved private key. The public DER is
// re-derived so callers get the exact bytes sent on the wire.
func LoadPrivateKey(path string) (*rsa.PrivateKey, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, nil, fmt.Errorf("%w: no RSA private key PEM block in %s", ErrKeyFormat, path)
	}
	private, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	if private.N.BitLen() != RSAKeyBits {
		return nil, nil, fmt.Errorf("%w: stored key is %d bits, expected %d",
			ErrKeyFormat, private.N.BitLen(), RSAKeyBits)
	}
	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	return private, der, nil
}
