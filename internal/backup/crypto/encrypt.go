// Package crypto provides backup archive encryption using AES-256-GCM.
// Passwords are never stored with the archive; the same password must be
// supplied again to restore or verify.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrInvalidPassword is returned when the provided password is incorrect.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidArchive is returned when the encrypted header is malformed.
	ErrInvalidArchive = errors.New("invalid encrypted archive")
)

const (
	// PasswordMinLength is the minimum required password length.
	PasswordMinLength = 8
	// SaltLength is the length of the random salt for key derivation.
	SaltLength = 32
	// Iterations is the PBKDF2-SHA256 work factor.
	Iterations = 100000

	// Algorithm names the cipher recorded in the header.
	Algorithm = "AES-256-GCM"

	keyLength     = 32
	headerVersion = 1
)

// headerMagic prefixes every encrypted archive.
const headerMagic = "WABKENC"

// Header describes an encrypted archive. It carries no key material.
type Header struct {
	Version   uint8
	Algorithm string
	Nonce     []byte
	Salt      []byte
}

// IsEncrypted reports whether data starts with the encrypted archive magic.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(headerMagic))
}

// Encrypt seals data with a key derived from password.
// The result is header || ciphertext, with a fresh salt and nonce per call.
func Encrypt(data []byte, password string) ([]byte, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "failed to generate salt")
	}

	gcm, err := newGCM(DeriveKey(password, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "failed to generate nonce")
	}

	headerData, err := serializeHeader(Header{
		Version:   headerVersion,
		Algorithm: Algorithm,
		Nonce:     nonce,
		Salt:      salt,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize header")
	}

	// The header is authenticated as additional data
	return gcm.Seal(headerData, nonce, data, headerData), nil
}

// Decrypt opens data produced by Encrypt.
// A wrong password or tampered payload yields ErrInvalidPassword.
func Decrypt(data []byte, password string) ([]byte, error) {
	header, headerSize, err := parseHeader(data)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse header"), ErrInvalidArchive)
	}
	if header.Version != headerVersion {
		return nil, errors.Mark(errors.Newf("unsupported archive version: %d", header.Version), ErrInvalidArchive)
	}
	if header.Algorithm != Algorithm {
		return nil, errors.Mark(errors.Newf("unsupported algorithm: %s", header.Algorithm), ErrInvalidArchive)
	}

	gcm, err := newGCM(DeriveKey(password, header.Salt))
	if err != nil {
		return nil, err
	}
	if len(header.Nonce) != gcm.NonceSize() {
		return nil, errors.Mark(errors.Newf("bad nonce length %d", len(header.Nonce)), ErrInvalidArchive)
	}

	plaintext, err := gcm.Open(nil, header.Nonce, data[headerSize:], data[:headerSize])
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "authentication failed"), ErrInvalidPassword)
	}
	return plaintext, nil
}

// DeriveKey derives a 32-byte key from password and salt using PBKDF2-SHA256.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, keyLength, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GCM")
	}
	return gcm, nil
}

// =====================================================
// Header Serialization
// =====================================================

// serializeHeader writes magic, version, then length-prefixed algorithm, nonce and salt.
func serializeHeader(h Header) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(headerMagic)
	buf.WriteByte(h.Version)

	for _, field := range [][]byte{[]byte(h.Algorithm), h.Nonce, h.Salt} {
		if len(field) > 255 {
			return nil, errors.Newf("header field too long: %d bytes", len(field))
		}
		buf.WriteByte(byte(len(field)))
		buf.Write(field)
	}
	return buf.Bytes(), nil
}

// parseHeader reads the header and returns it with its encoded size.
func parseHeader(data []byte) (Header, int, error) {
	var header Header
	reader := bytes.NewReader(data)

	magic := make([]byte, len(headerMagic))
	if _, err := io.ReadFull(reader, magic); err != nil {
		return header, 0, errors.Wrap(err, "failed to read magic")
	}
	if string(magic) != headerMagic {
		return header, 0, errors.New("invalid magic number")
	}

	version, err := reader.ReadByte()
	if err != nil {
		return header, 0, errors.Wrap(err, "failed to read version")
	}
	header.Version = version

	readField := func(name string) ([]byte, error) {
		n, err := reader.ReadByte()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s length", name)
		}
		field := make([]byte, n)
		if _, err := io.ReadFull(reader, field); err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", name)
		}
		return field, nil
	}

	alg, err := readField("algorithm")
	if err != nil {
		return header, 0, err
	}
	header.Algorithm = string(alg)
	if header.Nonce, err = readField("nonce"); err != nil {
		return header, 0, err
	}
	if header.Salt, err = readField("salt"); err != nil {
		return header, 0, err
	}

	return header, len(data) - reader.Len(), nil
}

// ValidatePassword checks if a password meets minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < PasswordMinLength {
		return errors.Newf("password must be at least %d characters", PasswordMinLength)
	}
	return nil
}

// GeneratePassword generates a random password for backup archives.
// Generated passwords are shown once and never stored.
func GeneratePassword(length int) (string, error) {
	if length < PasswordMinLength {
		length = PasswordMinLength
	}

	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", errors.Wrap(err, "failed to generate random bytes")
	}

	password := base64.RawURLEncoding.EncodeToString(randomBytes)
	return password[:length], nil
}
