package secrets

import "errors"

var (
	// ErrInvalidKey is returned for secrets that are not hex-encoded 32 bytes.
	ErrInvalidKey = errors.New("invalid encryption key: must be hex-encoded 32 bytes")

	// ErrEncryptionFailed wraps failures while producing ciphertext.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed wraps failures while recovering plaintext,
	// including padding errors from a wrong key.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidCiphertext is returned for payloads that are not
	// hex(IV || ciphertext) with block-aligned ciphertext.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrKeyDerivationFailed wraps HKDF failures.
	ErrKeyDerivationFailed = errors.New("key derivation failed")
)
