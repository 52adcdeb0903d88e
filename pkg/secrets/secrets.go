package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the required secret length: 256 bits for AES-256.
	KeySize = 32

	// saltInfo provides domain separation for HKDF key derivation so the
	// same secret cannot be reused for other purposes with the same output.
	saltInfo = "multitenant-conn-target-v1"
)

// Cipher encrypts and decrypts tenant connection targets with AES-256-CBC.
// The wire format is hex(IV || ciphertext) with a 16-byte IV, matching what
// the platform directory stores.
type Cipher struct {
	key []byte
}

// NewCipher creates a cipher from a hex-encoded 32-byte secret. The actual
// AES key is derived via HKDF so the raw secret never keys the cipher directly.
func NewCipher(hexKey string) (*Cipher, error) {
	secret, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Join(ErrInvalidKey, err)
	}
	if len(secret) != KeySize {
		return nil, ErrInvalidKey
	}

	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}

	return &Cipher{key: key}, nil
}

// Encrypt encrypts a connection target and returns hex(IV || ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Bad hex, a truncated payload, a ciphertext that
// is not block-aligned, or a wrong key all fail; callers treat any failure
// as fatal for the request and never retry it.
func (c *Cipher) Decrypt(payload string) (string, error) {
	raw, err := hex.DecodeString(payload)
	if err != nil {
		return "", errors.Join(ErrInvalidCiphertext, err)
	}
	if len(raw) < aes.BlockSize+aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.Join(ErrDecryptionFailed, err)
	}

	iv, ciphertext := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", errors.Join(ErrDecryptionFailed, err)
	}

	return string(unpadded), nil
}

// deriveKey expands the secret into the AES key using HKDF with SHA-256.
func deriveKey(secret []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, []byte(saltInfo))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	return key, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidCiphertext
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrInvalidCiphertext
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidCiphertext
		}
	}
	return data[:len(data)-n], nil
}

// GenerateKey creates a new random hex-encoded secret suitable for NewCipher.
func GenerateKey() (string, error) {
	secret := make([]byte, KeySize)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return hex.EncodeToString(secret), nil
}
