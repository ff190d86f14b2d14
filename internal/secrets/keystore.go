// Package secrets seals third-party API keys at rest so the LLM credential
// does not have to live in plaintext config or environment.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	sealedVersion    = 1
)

// ErrNoSource is returned by Resolve when neither a plaintext key nor a sealed
// file is configured.
var ErrNoSource = errors.New("secrets: no api key source configured")

// sealedFile is the on-disk format produced by Seal.
type sealedFile struct {
	Version    int    `json:"version"`
	Label      string `json:"label,omitempty"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Source describes where an API key can be found.
type Source struct {
	// Plain is used as-is when non-empty.
	Plain string
	// Path points to a file written by Seal.
	Path     string
	Password string
}

// Seal encrypts secret with password (PBKDF2-HMAC-SHA256 then AES-256-GCM)
// and returns the JSON document to write to disk. label is stored in the clear
// and is used as additional authenticated data.
func Seal(secret, password, label string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("secrets: secret must not be empty")
	}
	if password == "" {
		return nil, errors.New("secrets: password must not be empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("secrets: generating salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("secrets: generating nonce: %w", err)
	}

	out := sealedFile{
		Version:    sealedVersion,
		Label:      label,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, []byte(secret), []byte(label))),
	}
	return json.MarshalIndent(out, "", "  ")
}

// Open decrypts a document produced by Seal.
func Open(data []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("secrets: password must not be empty")
	}

	var sf sealedFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return "", fmt.Errorf("secrets: parsing sealed file: %w", err)
	}
	if sf.Version != sealedVersion {
		return "", fmt.Errorf("secrets: unsupported version %d", sf.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(sf.Salt)
	if err != nil {
		return "", fmt.Errorf("secrets: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(sf.Nonce)
	if err != nil {
		return "", fmt.Errorf("secrets: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sf.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("secrets: decoding ciphertext: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("secrets: nonce has %d bytes, want %d", len(nonce), gcm.NonceSize())
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, []byte(sf.Label))
	if err != nil {
		return "", fmt.Errorf("secrets: decryption failed (wrong password?): %w", err)
	}
	return string(plain), nil
}

// Resolve returns the API key described by src. A plaintext key wins over a
// sealed file.
func Resolve(src Source) (string, error) {
	if k := strings.TrimSpace(src.Plain); k != "" {
		return k, nil
	}
	if src.Path != "" {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return "", fmt.Errorf("secrets: reading sealed file: %w", err)
		}
		return Open(data, src.Password)
	}
	return "", ErrNoSource
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: creating GCM: %w", err)
	}
	return gcm, nil
}
