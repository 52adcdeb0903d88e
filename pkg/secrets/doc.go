// Package secrets encrypts tenant connection targets at rest in the platform
// directory.
//
// The wire format is hex(IV || ciphertext) with a 16-byte IV and AES-256-CBC
// with PKCS#7 padding, so records written by other platform services remain
// readable. The AES key is derived from the configured secret with HKDF for
// domain separation.
//
//	cipher, err := secrets.NewCipher(os.Getenv("TENANT_ENCRYPTION_KEY"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	target, err := cipher.Decrypt(record.EncryptedConnectionTarget)
//
// Decryption failures are internal errors: they indicate key rotation gone
// wrong or corrupted directory data, and must never be retried.
package secrets
