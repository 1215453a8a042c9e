package cache

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// version identifies the on-disk blob format. Each arm of the decrypt
// dispatch is a pure (payload, key) -> plaintext function; only the newest
// format is ever written.
type version int

const (
	versionLegacy version = iota
	versionV0
	versionV1
	versionV2
)

const (
	tagV2 = "v2:"
	tagV1 = "v1:"
	tagV0 = "v0:"
)

func (v version) String() string {
	switch v {
	case versionV2:
		return "v2"
	case versionV1:
		return "v1"
	case versionV0:
		return "v0"
	default:
		return "legacy"
	}
}

var (
	errTruncatedPayload = errors.New("payload too short for format")
	errIntegrityFailed  = errors.New("integrity verification failed")
)

// splitVersionTag inspects the short ASCII prefix and returns the format
// plus the encoded payload. Untagged content is the pre-v0 legacy format.
func splitVersionTag(data []byte) (version, []byte) {
	switch {
	case bytes.HasPrefix(data, []byte(tagV2)):
		return versionV2, data[len(tagV2):]
	case bytes.HasPrefix(data, []byte(tagV1)):
		return versionV1, data[len(tagV1):]
	case bytes.HasPrefix(data, []byte(tagV0)):
		return versionV0, data[len(tagV0):]
	default:
		return versionLegacy, data
	}
}

// decrypt selects the decryption routine matching the blob format.
func decrypt(v version, payload, key []byte) ([]byte, error) {
	switch v {
	case versionV2:
		return decryptV2(payload, key)
	case versionV1:
		return decryptV1(payload, key)
	case versionV0:
		return decryptV0(payload, key)
	default:
		return decryptLegacy(payload, key)
	}
}

// subKey derives a purpose-specific key so encryption and authentication
// never share key material.
func subKey(key []byte, label string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(label))

	return mac.Sum(nil)
}

// --- v2: AES-256-CTR + HMAC-SHA256, encrypt-then-MAC (write target) ---

const (
	v2IVLen  = aes.BlockSize
	v2TagLen = sha256.Size
)

func encryptV2(plaintext, key []byte) ([]byte, error) {
	encKey := subKey(key, "enc")
	macKey := subKey(key, "mac")

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, v2IVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, plaintext)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(iv)
	mac.Write(ciphertext)

	out := make([]byte, 0, v2IVLen+len(ciphertext)+v2TagLen)
	out = append(out, iv...)
	out = append(out, ciphertext...)
	out = append(out, mac.Sum(nil)...)

	return out, nil
}

func decryptV2(payload, key []byte) ([]byte, error) {
	if len(payload) < v2IVLen+v2TagLen {
		return nil, errTruncatedPayload
	}

	iv := payload[:v2IVLen]
	ciphertext := payload[v2IVLen : len(payload)-v2TagLen]
	tag := payload[len(payload)-v2TagLen:]

	macKey := subKey(key, "mac")

	mac := hmac.New(sha256.New, macKey)
	mac.Write(iv)
	mac.Write(ciphertext)

	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, errIntegrityFailed
	}

	block, err := aes.NewCipher(subKey(key, "enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)

	return plaintext, nil
}

// --- v1: AES-256-GCM with an explicit random nonce prefix (read-only) ---

func encryptV1(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptV1(payload, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(payload) < gcm.NonceSize() {
		return nil, errTruncatedPayload
	}

	nonce := payload[:gcm.NonceSize()]
	ciphertext := payload[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errIntegrityFailed
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(subKey(key, "enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}

// --- v0: XOR keystream + separate HMAC-SHA256 tag (read-only, weaker) ---

func encryptV0(plaintext, key []byte) ([]byte, error) {
	ciphertext := xorKeystream(plaintext, key)

	mac := hmac.New(sha256.New, subKey(key, "mac"))
	mac.Write(ciphertext)

	return append(ciphertext, mac.Sum(nil)...), nil
}

func decryptV0(payload, key []byte) ([]byte, error) {
	if len(payload) < sha256.Size {
		return nil, errTruncatedPayload
	}

	ciphertext := payload[:len(payload)-sha256.Size]
	tag := payload[len(payload)-sha256.Size:]

	mac := hmac.New(sha256.New, subKey(key, "mac"))
	mac.Write(ciphertext)

	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, errIntegrityFailed
	}

	return xorKeystream(ciphertext, key), nil
}

// --- legacy: bare XOR keystream, no version tag, no integrity ---
//
// Deprecated: exists purely to migrate pre-v0 caches. Successful reads are
// upgraded in place; this format is never written.

func encryptLegacy(plaintext, key []byte) []byte {
	return xorKeystream(plaintext, key)
}

func decryptLegacy(payload, key []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errTruncatedPayload
	}

	return xorKeystream(payload, key), nil
}

// xorKeystream applies a SHA-256 counter keystream. Symmetric, so it both
// encrypts and decrypts.
func xorKeystream(data, key []byte) []byte {
	out := make([]byte, len(data))

	var counter [8]byte

	for offset := 0; offset < len(data); offset += sha256.Size {
		binary.BigEndian.PutUint64(counter[:], uint64(offset/sha256.Size))

		h := sha256.New()
		h.Write(key)
		h.Write(counter[:])
		stream := h.Sum(nil)

		for i := 0; i < sha256.Size && offset+i < len(data); i++ {
			out[offset+i] = data[offset+i] ^ stream[i]
		}
	}

	return out
}
