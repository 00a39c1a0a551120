package credential

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/store"
)

// keyLength is the AES-128 key size taken from the SHA-256 digest.
const keyLength = 16

// ErrCorruptCiphertext is wrapped by CryptoError when a stored value cannot
// be decoded or authenticated.
var ErrCorruptCiphertext = errors.New("corrupt ciphertext")

// CryptoError reports a failure of the encryption engine. It is never
// recovered locally: the call that hit it is aborted.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("credential %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// IsCryptoError reports whether err (or any error in its chain) is a CryptoError.
func IsCryptoError(err error) bool {
	var cryptoErr *CryptoError
	return errors.As(err, &cryptoErr)
}

// SettingsReader loads the stored settings of a user. It returns
// store.ErrNotFound when the user has never saved any.
type SettingsReader interface {
	GetSettings(ctx context.Context, userID int64) (*model.UserSettings, error)
}

// Defaults are the platform-wide credentials used when a user has none.
// Any field may be empty.
type Defaults struct {
	AIKey     string
	Messaging model.MessagingCredentials
}

// Vault encrypts values for storage and resolves the effective credentials
// for a call. It is immutable after construction and safe for concurrent use.
type Vault struct {
	aead     cipher.AEAD
	settings SettingsReader
	defaults Defaults
}

// NewVault derives the symmetric key from secret and returns a ready Vault.
// The same secret must be used for the lifetime of the stored data.
func NewVault(secret string, settings SettingsReader, defaults Defaults) (*Vault, error) {
	if secret == "" {
		return nil, &CryptoError{Op: "init", Err: errors.New("key derivation secret is empty")}
	}

	sum := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(sum[:keyLength])
	if err != nil {
		return nil, &CryptoError{Op: "init", Err: err}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &CryptoError{Op: "init", Err: err}
	}

	defaults.Messaging.Destination = ""
	return &Vault{aead: aead, settings: settings, defaults: defaults}, nil
}

// Encrypt seals plaintext and returns it base64 encoded. An empty plaintext
// yields an empty ciphertext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &CryptoError{Op: "encrypt", Err: err}
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. An empty ciphertext yields an empty plaintext.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: fmt.Errorf("%w: %v", ErrCorruptCiphertext, err)}
	}

	nonceSize := v.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", &CryptoError{Op: "decrypt", Err: ErrCorruptCiphertext}
	}

	plain, err := v.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: fmt.Errorf("%w: %v", ErrCorruptCiphertext, err)}
	}
	return string(plain), nil
}

// ResolveAICredential returns the user's own key when set, otherwise the
// platform default. An empty result means no provider is configured.
func (v *Vault) ResolveAICredential(ctx context.Context, userID int64) (string, error) {
	settings, err := v.loadSettings(ctx, userID)
	if err != nil {
		return "", err
	}

	if settings != nil {
		key, err := v.Decrypt(settings.EncryptedAIKey)
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}

	return v.defaults.AIKey, nil
}

// ResolveMessagingCredential returns the user's bundle when it carries both
// account key and secret. Otherwise the platform default bundle is returned
// whole. Destination is always the user's own number.
func (v *Vault) ResolveMessagingCredential(ctx context.Context, userID int64) (model.MessagingCredentials, error) {
	settings, err := v.loadSettings(ctx, userID)
	if err != nil {
		return model.MessagingCredentials{}, err
	}
	if settings == nil {
		return v.defaults.Messaging, nil
	}

	sid, err := v.Decrypt(settings.EncryptedMessagingSID)
	if err != nil {
		return model.MessagingCredentials{}, err
	}
	token, err := v.Decrypt(settings.EncryptedMessagingToken)
	if err != nil {
		return model.MessagingCredentials{}, err
	}

	user := model.MessagingCredentials{
		AccountKey:    sid,
		AuthSecret:    token,
		SenderAddress: settings.SenderNumber,
		Destination:   settings.DestinationNumber,
	}
	if user.Ready() {
		return user, nil
	}

	fallback := v.defaults.Messaging
	fallback.Destination = settings.DestinationNumber
	return fallback, nil
}

func (v *Vault) loadSettings(ctx context.Context, userID int64) (*model.UserSettings, error) {
	settings, err := v.settings.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings for user %d: %w", userID, err)
	}
	return settings, nil
}
