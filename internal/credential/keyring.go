package credential

import (
	"errors"
	"fmt"
	"log"

	"github.com/99designs/keyring"

	"github.com/nhle/smarttask/internal/model"
)

const serviceName = "smarttask"

// Keyring entries consulted for platform defaults missing from config.
const (
	KeyOpenAI      = "openai-api-key"
	KeyTwilioSID   = "twilio-account-sid"
	KeyTwilioToken = "twilio-auth-token"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/smarttask/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("smarttask-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// LookupFunc fetches one keyring entry. Get is the production implementation.
type LookupFunc func(key string) (string, error)

// DefaultsFromConfig builds the platform defaults from configuration,
// filling empty secrets from the keyring. A missing keyring entry leaves
// the field empty.
func DefaultsFromConfig(cfg *model.AppConfig, lookup LookupFunc) Defaults {
	fill := func(current, key string) string {
		if current != "" || lookup == nil {
			return current
		}
		value, err := lookup(key)
		if err != nil {
			if !errors.Is(err, keyring.ErrKeyNotFound) {
				log.Printf("keyring lookup %s: %v", key, err)
			}
			return ""
		}
		return value
	}

	return Defaults{
		AIKey: fill(cfg.OpenAI.APIKey, KeyOpenAI),
		Messaging: model.MessagingCredentials{
			AccountKey:    fill(cfg.Twilio.AccountSID, KeyTwilioSID),
			AuthSecret:    fill(cfg.Twilio.AuthToken, KeyTwilioToken),
			SenderAddress: cfg.Twilio.WhatsAppNumber,
		},
	}
}
