// Package settings stores each user's own provider credentials. Secrets are
// encrypted before they reach the store and never leave this package in
// clear text.
package settings

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/store"
)

// Request updates a user's settings. A nil field is left unchanged. For the
// secret fields an empty (or blank) string removes the stored value.
type Request struct {
	AIKey             *string `json:"ai_api_key,omitempty"`
	MessagingSID      *string `json:"messaging_account_sid,omitempty"`
	MessagingToken    *string `json:"messaging_auth_token,omitempty"`
	SenderNumber      *string `json:"sender_number,omitempty"`
	DestinationNumber *string `json:"destination_number,omitempty"`
}

// View is what callers may see of the stored settings: which providers are
// configured and the masked numbers.
type View struct {
	AIConfigured        bool   `json:"ai_configured"`
	MessagingConfigured bool   `json:"messaging_configured"`
	SenderNumber        string `json:"sender_number,omitempty"`
	DestinationNumber   string `json:"destination_number,omitempty"`
	Message             string `json:"message"`
}

// Encrypter seals secrets for storage.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Store is the storage Service needs.
type Store interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetSettings(ctx context.Context, userID int64) (*model.UserSettings, error)
	SaveSettings(ctx context.Context, settings *model.UserSettings) error
}

// Service reads and updates user settings.
type Service struct {
	store Store
	enc   Encrypter
}

// NewService creates a Service.
func NewService(s Store, enc Encrypter) *Service {
	return &Service{store: s, enc: enc}
}

// Get returns the masked settings of userID.
func (s *Service) Get(ctx context.Context, userID int64) (View, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return View{}, err
	}

	settings, err := s.store.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return View{Message: "No settings found. Configure your API keys."}, nil
	}
	if err != nil {
		return View{}, err
	}

	return View{
		AIConfigured:        settings.EncryptedAIKey != "",
		MessagingConfigured: settings.EncryptedMessagingSID != "" && settings.EncryptedMessagingToken != "",
		SenderNumber:        model.MaskPhoneNumber(settings.SenderNumber),
		DestinationNumber:   model.MaskPhoneNumber(settings.DestinationNumber),
		Message:             "Settings loaded",
	}, nil
}

// Update applies req to the settings of userID and returns the new view.
func (s *Service) Update(ctx context.Context, userID int64, req Request) (View, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return View{}, err
	}

	settings, err := s.store.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		settings = &model.UserSettings{UserID: userID}
	} else if err != nil {
		return View{}, err
	}

	secrets := []struct {
		name  string
		value *string
		field *string
	}{
		{"AI key", req.AIKey, &settings.EncryptedAIKey},
		{"messaging account SID", req.MessagingSID, &settings.EncryptedMessagingSID},
		{"messaging auth token", req.MessagingToken, &settings.EncryptedMessagingToken},
	}
	for _, sec := range secrets {
		if sec.value == nil {
			continue
		}
		plain := strings.TrimSpace(*sec.value)
		if plain == "" {
			*sec.field = ""
			log.Printf("settings: %s removed for user %d", sec.name, userID)
			continue
		}
		sealed, err := s.enc.Encrypt(plain)
		if err != nil {
			return View{}, err
		}
		*sec.field = sealed
		log.Printf("settings: %s updated for user %d", sec.name, userID)
	}

	if req.SenderNumber != nil {
		settings.SenderNumber = strings.TrimSpace(*req.SenderNumber)
	}
	if req.DestinationNumber != nil {
		settings.DestinationNumber = strings.TrimSpace(*req.DestinationNumber)
	}

	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return View{}, err
	}
	return s.Get(ctx, userID)
}
