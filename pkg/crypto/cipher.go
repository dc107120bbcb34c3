package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// IVLength is the length of CBC initialization vectors in bytes.
const IVLength = aes.BlockSize

// Sentinel errors returned by the cipher functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidIVLength indicates the IV is not 16 bytes.
	ErrInvalidIVLength = errors.New("crypto: invalid iv length, must be 16 bytes")

	// ErrDecryptionFailed indicates decryption failed: wrong key, malformed
	// ciphertext, or invalid padding. Callers quarantine records on exactly
	// this error, so every decryption failure mode must map to it.
	ErrDecryptionFailed = errors.New("crypto: decryption failed")
)

// Encrypt encrypts plaintext using AES-256-CBC with PKCS#7 padding.
//
// A fresh random 16-byte IV is generated on every call; reusing an IV under
// the same key is forbidden, so the IV is never a parameter.
//
// Returns the ciphertext and the IV, both of which must be stored together
// for decryption.
func Encrypt(key, plaintext []byte) (ciphertext []byte, iv []byte, err error) {
	if len(key) != KeyLength {
		return nil, nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	// Generate cryptographically secure random IV
	iv = make([]byte, IVLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext, iv, nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
//
// Any failure mode — wrong key, truncated or misaligned ciphertext, invalid
// padding — is reported as ErrDecryptionFailed so that the caller's
// per-record quarantine policy can match a single sentinel.
func Decrypt(key, ciphertext, iv []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(iv) != IVLength {
		return nil, ErrInvalidIVLength
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecryptionFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return unpadded, nil
}

// pkcs7Pad appends PKCS#7 padding up to the next block boundary.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// pkcs7Unpad validates and strips PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("crypto: invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("crypto: invalid padding byte")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("crypto: inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
