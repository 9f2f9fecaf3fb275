// Package crypto implements the symmetric encryption applied to chat
// payloads: AES-256-CBC with PKCS#7 padding over a PBKDF2-derived key,
// framed on the wire as base64(iv || ciphertext).
//
// The key is derived from a fixed password and salt, so every connection
// and every process instance uses the same key. This matches the
// derivation in the deployed web client and must stay identical for wire
// compatibility. It also means the scheme is obfuscation rather than
// confidentiality: anyone holding this source can decrypt all traffic.
// Operators should not treat it as a security control.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// sharedSecret and keySalt must match the web client's key derivation.
	sharedSecret = "rustchatserver2024_aes_secure"
	keySalt      = "rustchatserver2024_aes_secure"

	keyIterations = 100000
	keyLength     = 32
)

// Decryption failure kinds. Each one is non-fatal to the connection that
// produced it.
var (
	ErrInvalidEncoding = errors.New("payload is not valid base64")
	ErrTruncated       = errors.New("payload shorter than IV")
	ErrBadPadding      = errors.New("invalid padding or ciphertext")
	ErrInvalidUTF8     = errors.New("plaintext is not valid UTF-8")
)

// DeriveKey derives a 32-byte AES key from password using
// PBKDF2-HMAC-SHA256 with the fixed salt.
func DeriveKey(password string) []byte {
	return pbkdf2.Key([]byte(password), []byte(keySalt), keyIterations, keyLength, sha256.New)
}

// Codec encrypts and decrypts chat payloads with a fixed symmetric key.
type Codec struct {
	key []byte
}

// NewCodec returns a Codec using the key shared with the web client.
func NewCodec() *Codec {
	return &Codec{key: DeriveKey(sharedSecret)}
}

// NewCodecWithKey returns a Codec using the provided 32-byte key.
func NewCodecWithKey(key []byte) *Codec {
	return &Codec{key: key}
}

// Encrypt encrypts plaintext with a fresh random IV and returns the
// base64-encoded wire payload.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	padded := pad([]byte(plaintext))
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt decodes and decrypts a wire payload. Failures map onto the
// sentinel errors above and leave no state behind; the caller logs and
// keeps the connection open.
func (c *Codec) Decrypt(payload string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(data) < aes.BlockSize {
		return "", ErrTruncated
	}

	iv, ciphertext := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrBadPadding
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	buf := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(buf, ciphertext)

	plain, err := unpad(buf)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", ErrInvalidUTF8
	}
	return string(plain), nil
}

// pad appends PKCS#7 padding up to the next block boundary.
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// unpad validates and strips PKCS#7 padding.
func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-n], nil
}
