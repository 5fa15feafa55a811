// Package backup exports the document to a portable file and imports such
// files back by merging them into the live document.
package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation and cipher parameters. These fix the file format, so
// changing any of them breaks old backups.
const (
	pbkdf2Iterations = 100000
	keyLength        = 32
	saltLength       = 16
	ivLength         = 12
)

// ErrWrongPassword is returned when a backup cannot be decrypted.
var ErrWrongPassword = errors.New("backup: wrong password or corrupt file")

// Envelope is the on-disk shape of an encrypted backup. Binary fields are
// base64 strings so the file stays plain JSON.
type Envelope struct {
	IsEncrypted   bool   `json:"isEncrypted"`
	Salt          string `json:"salt"`
	IV            string `json:"iv"`
	EncryptedData string `json:"encryptedData"`
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyLength, sha256.New)
}

// Encrypt seals plaintext under a password-derived AES-256-GCM key.
func Encrypt(plaintext []byte, password string) (Envelope, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return Envelope{}, fmt.Errorf("backup: salt: %w", err)
	}
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return Envelope{}, fmt.Errorf("backup: iv: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return Envelope{}, fmt.Errorf("backup: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Envelope{}, fmt.Errorf("backup: gcm: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	return Envelope{
		IsEncrypted:   true,
		Salt:          base64.StdEncoding.EncodeToString(salt),
		IV:            base64.StdEncoding.EncodeToString(iv),
		EncryptedData: base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// Decrypt opens an envelope with the given password.
func Decrypt(env Envelope, password string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, ErrWrongPassword
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, ErrWrongPassword
	}
	sealed, err := base64.StdEncoding.DecodeString(env.EncryptedData)
	if err != nil {
		return nil, ErrWrongPassword
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("backup: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("backup: gcm: %w", err)
	}
	if len(iv) != gcm.NonceSize() {
		return nil, ErrWrongPassword
	}

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}
