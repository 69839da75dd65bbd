// Package cryptofacade is the thin contract surface over scrypt, AES-256
// with integrity, random, and SHA-256 that spec.md §1/§4.1 calls for. It
// defines the contract only — every other package derives, encrypts, and
// compares key material exclusively through these functions so the
// primitive choice stays swappable without touching call sites.
package cryptofacade

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// KeyLen is the fixed size of every derived key in the hierarchy (spec.md §3.1).
const KeyLen = 32

// minScryptN is the floor spec.md §9 sets for client-class SNRP cost
// parameters: never below N=2^10.
const minScryptN = 1 << 10

// Scrypt derives a KeyLen-byte key from passphrase and salt under the given
// cost parameters. It rejects N below the spec's floor before ever calling
// into the KDF.
func Scrypt(passphrase, salt []byte, n, r, p int) ([]byte, error) {
	if n < minScryptN {
		return nil, fmt.Errorf("scrypt N=%d below floor %d", n, minScryptN)
	}
	if r < 1 || p < 1 {
		return nil, fmt.Errorf("scrypt r=%d p=%d must be >= 1", r, p)
	}
	key, err := scrypt.Key(passphrase, salt, n, r, p, KeyLen)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	return key, nil
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("random: %w", err)
	}
	return buf, nil
}

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// hmacKeyInfo is mixed into the HMAC key derivation so the MAC key is never
// literally the encryption key.
var hmacKeyInfo = []byte("walletcore-aes256-integrity-v1")

// deriveMACKey derives a MAC key from the encryption key via a single SHA-256
// pass, keeping the encrypt-then-MAC construction to one caller-supplied key
// per spec.md's "symmetric envelope encryption of one key under another".
func deriveMACKey(key []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(hmacKeyInfo)
	return h.Sum(nil)
}

// EncryptAES256 implements AES-256-CBC with a random IV and an
// encrypt-then-MAC (HMAC-SHA256) integrity tag, per spec.md §3.1/§4.1's
// "AES256(x, key)" envelope. Layout: iv(16) || ciphertext || tag(32).
func EncryptAES256(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("aes256: key must be %d bytes, got %d", KeyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes256: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	iv, err := RandomBytes(aes.BlockSize)
	if err != nil {
		return nil, err
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out := make([]byte, 0, len(iv)+len(ciphertext)+sha256.Size)
	out = append(out, iv...)
	out = append(out, ciphertext...)

	mac := hmac.New(sha256.New, deriveMACKey(key))
	mac.Write(out)
	out = mac.Sum(out)

	return out, nil
}

// DecryptAES256 reverses EncryptAES256, rejecting any tampering or wrong
// key with plain errors; the caller picks the walleterr kind (for example
// KindBadPassword when a wrong password is the likely cause).
func DecryptAES256(envelope, key []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("aes256: key must be %d bytes, got %d", KeyLen, len(key))
	}
	if len(envelope) < aes.BlockSize+sha256.Size {
		return nil, fmt.Errorf("aes256: envelope too short")
	}

	tagStart := len(envelope) - sha256.Size
	body, tag := envelope[:tagStart], envelope[tagStart:]

	mac := hmac.New(sha256.New, deriveMACKey(key))
	mac.Write(body)
	expected := mac.Sum(nil)
	if subtle.ConstantTimeCompare(expected, tag) != 1 {
		return nil, fmt.Errorf("aes256: integrity check failed")
	}

	iv, ciphertext := body[:aes.BlockSize], body[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("aes256: ciphertext not block-aligned")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes256: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("aes256: empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("aes256: invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("aes256: invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}

// Zero overwrites buf with zeroes in place. Every package holding key
// material (L, P, LP2, LRA2, RA, PIN, private keys, per spec.md §5) must
// call this before releasing the buffer.
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
