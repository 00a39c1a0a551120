package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/smarttask/internal/model"
)

// GetSettings retrieves the stored credentials of a user.
func (s *SQLiteStore) GetSettings(ctx context.Context, userID int64) (*model.UserSettings, error) {
	var settings model.UserSettings
	err := sqlx.GetContext(ctx, s.q, &settings,
		"SELECT * FROM user_settings WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settings of user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting settings of user %d: %w", userID, err)
	}
	return &settings, nil
}

// SaveSettings inserts or updates the settings of settings.UserID.
func (s *SQLiteStore) SaveSettings(ctx context.Context, settings *model.UserSettings) error {
	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO user_settings (
			user_id, encrypted_ai_key, encrypted_messaging_sid,
			encrypted_messaging_token, sender_number, destination_number,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			encrypted_ai_key = excluded.encrypted_ai_key,
			encrypted_messaging_sid = excluded.encrypted_messaging_sid,
			encrypted_messaging_token = excluded.encrypted_messaging_token,
			sender_number = excluded.sender_number,
			destination_number = excluded.destination_number,
			updated_at = excluded.updated_at`,
		settings.UserID, settings.EncryptedAIKey, settings.EncryptedMessagingSID,
		settings.EncryptedMessagingToken, settings.SenderNumber, settings.DestinationNumber,
		settings.CreatedAt, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving settings of user %d: %w", settings.UserID, err)
	}
	return nil
}
