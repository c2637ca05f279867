package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

const (
	saltLen  = 16
	ivLen    = 16
	tagLen   = 16
	keyLen   = 32
	scryptN  = 1 << 14
	scryptR  = 8
	scryptP  = 1

	// plainPrefix marks unencrypted envelopes written when no master secret is
	// configured. Accepted on decrypt in any environment so dev data survives
	// a later secret rollout.
	plainPrefix = "plain:"

	// masterSalt stretches non-hex master secrets to 32 bytes. Application
	// level constant: changing it invalidates every stored envelope.
	masterSalt = "fleetdesk-vault-v1"
)

// ErrInvalidEnvelope signals a malformed or tampered credential envelope.
var ErrInvalidEnvelope = fmt.Errorf("invalid credential envelope")

// Vault performs authenticated encryption of third-party API keys for at-rest
// storage. Envelope format: b64url(salt):b64url(iv):b64url(tag):b64url(ct).
type Vault struct {
	masterKey []byte
	prod      bool
}

// NewVault derives the master key from the configured secret. A 64-char hex
// secret is used as a raw 32-byte key; anything else is stretched via scrypt.
// An empty secret leaves the vault in plaintext-marker mode, which is a fatal
// configuration error at encrypt/decrypt time in production.
func NewVault(cfg config.VaultConfig, prod bool) (*Vault, error) {
	secret := strings.TrimSpace(cfg.MasterSecret)
	if secret == "" {
		return &Vault{prod: prod}, nil
	}

	if len(secret) == 64 {
		if raw, err := hex.DecodeString(secret); err == nil {
			return &Vault{masterKey: raw, prod: prod}, nil
		}
	}

	key, err := scrypt.Key([]byte(secret), []byte(masterSalt), scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}
	return &Vault{masterKey: key, prod: prod}, nil
}

// Encrypt seals the plaintext into an envelope. Without a master secret the
// value is stored with a literal plain: marker, acceptable only outside
// production.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if len(v.masterKey) == 0 {
		if v.prod {
			return "", pkgerrors.New(pkgerrors.CodeConfig, "vault master secret is not configured")
		}
		return plainPrefix + plaintext, nil
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	gcm, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagLen], sealed[len(sealed)-tagLen:]

	enc := base64.RawURLEncoding
	return strings.Join([]string{
		enc.EncodeToString(salt),
		enc.EncodeToString(iv),
		enc.EncodeToString(tag),
		enc.EncodeToString(ct),
	}, ":"), nil
}

// Decrypt opens an envelope produced by Encrypt. Plain-marker values are
// returned verbatim without touching the cipher.
func (v *Vault) Decrypt(envelope string) (string, error) {
	if strings.HasPrefix(envelope, plainPrefix) {
		return strings.TrimPrefix(envelope, plainPrefix), nil
	}

	if len(v.masterKey) == 0 {
		if v.prod {
			return "", pkgerrors.New(pkgerrors.CodeConfig, "vault master secret is not configured")
		}
		return "", ErrInvalidEnvelope
	}

	parts := strings.Split(envelope, ":")
	if len(parts) != 4 {
		return "", ErrInvalidEnvelope
	}

	enc := base64.RawURLEncoding
	decoded := make([][]byte, 4)
	for i, part := range parts {
		raw, err := enc.DecodeString(part)
		if err != nil {
			return "", ErrInvalidEnvelope
		}
		decoded[i] = raw
	}
	salt, iv, tag, ct := decoded[0], decoded[1], decoded[2], decoded[3]
	if len(salt) != saltLen || len(iv) != ivLen || len(tag) != tagLen {
		return "", ErrInvalidEnvelope
	}

	gcm, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, iv, append(append([]byte{}, ct...), tag...), nil)
	if err != nil {
		return "", ErrInvalidEnvelope
	}
	return string(plaintext), nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(v.masterKey, salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving message key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, ivLen)
}
