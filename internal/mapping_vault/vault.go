// Package mappingvault seals the caller/callee pair stored against an assigned
// proxy number. The key is injected once at startup and never rotated in place.
package mappingvault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"
)

const KeySize = chacha20poly1305.KeySize

// BlobVersion prefixes every sealed mapping and is authenticated as associated data.
const BlobVersion byte = 0x01

const blobOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

var (
	ErrKeyMisconfigured  = errors.New("mapping vault key misconfigured")
	ErrDecryptionFailure = errors.New("mapping decryption failed")
)

// Mapping is the pair of real numbers hidden behind a proxy number.
type Mapping struct {
	CallerReal string `cbor:"1,keyasint"`
	CalleeReal string `cbor:"2,keyasint"`
}

// LogValue keeps real numbers out of logs.
func (m Mapping) LogValue() slog.Value {
	return slog.StringValue("[redacted]")
}

// Vault encrypts and decrypts mappings with XChaCha20-Poly1305.
// It holds no mutable state and is safe for concurrent use.
type Vault struct {
	key    []byte
	encode cbor.EncMode
	decode cbor.DecMode
}

// New builds a Vault from a base64 (standard or URL alphabet, padded or not)
// key that must decode to exactly KeySize bytes.
func New(key string) (*Vault, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return nil, err
	}

	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("creating cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("creating cbor decoder: %w", err)
	}

	return &Vault{key: raw, encode: enc, decode: dec}, nil
}

// GenerateKey returns a fresh random key in the format New accepts.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func decodeKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrKeyMisconfigured)
	}
	encodings := []*base64.Encoding{
		base64.StdEncoding, base64.URLEncoding,
		base64.RawStdEncoding, base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		raw, err := enc.DecodeString(key)
		if err != nil {
			continue
		}
		if len(raw) != KeySize {
			return nil, fmt.Errorf("%w: key decodes to %d bytes, want %d", ErrKeyMisconfigured, len(raw), KeySize)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("%w: key is not valid base64", ErrKeyMisconfigured)
}

// Encrypt seals m. Every call uses a fresh random nonce, so two encryptions of
// the same mapping never produce the same blob.
func (v *Vault) Encrypt(m Mapping) (string, error) {
	plaintext, err := v.encode.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding mapping: %w", err)
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating random nonce: %w", err)
	}

	// version + nonce + ciphertext + tag
	out := make([]byte, 1+len(nonce), blobOverhead+len(plaintext))
	out[0] = BlobVersion
	copy(out[1:], nonce[:])
	out = aead.Seal(out, nonce[:], plaintext, out[:1])

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt. Any failure, including a blob
// that authenticates but carries an incomplete mapping, is ErrDecryptionFailure.
func (v *Vault) Decrypt(blob string) (Mapping, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: blob is not base64url", ErrDecryptionFailure)
	}
	if len(raw) < blobOverhead {
		return Mapping{}, fmt.Errorf("%w: blob is %d bytes, minimum is %d", ErrDecryptionFailure, len(raw), blobOverhead)
	}
	if raw[0] != BlobVersion {
		return Mapping{}, fmt.Errorf("%w: unsupported blob version %d", ErrDecryptionFailure, raw[0])
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: creating cipher: %v", ErrDecryptionFailure, err)
	}
	nonce := raw[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := raw[1+chacha20poly1305.NonceSizeX:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, raw[:1])
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: authentication failed", ErrDecryptionFailure)
	}

	var m Mapping
	if err := v.decode.Unmarshal(plaintext, &m); err != nil {
		return Mapping{}, fmt.Errorf("%w: decoding mapping", ErrDecryptionFailure)
	}
	if m.CallerReal == "" || m.CalleeReal == "" {
		return Mapping{}, fmt.Errorf("%w: incomplete mapping", ErrDecryptionFailure)
	}
	return m, nil
}
