package model

import "time"

// User is an account that owns tasks, settings and notification preferences.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserSettings holds the per-user provider credentials. Secret fields are
// stored encrypted; phone numbers are stored as entered (trimmed).
type UserSettings struct {
	UserID int64 `db:"user_id"`

	// EncryptedAIKey is the user's own language-model API key.
	EncryptedAIKey string `db:"encrypted_ai_key"`

	// EncryptedMessagingSID is the messaging provider account key.
	EncryptedMessagingSID string `db:"encrypted_messaging_sid"`

	// EncryptedMessagingToken is the messaging provider auth secret.
	EncryptedMessagingToken string `db:"encrypted_messaging_token"`

	// SenderNumber is the provider number messages are sent from.
	SenderNumber string `db:"sender_number"`

	// DestinationNumber is where the user receives notifications.
	DestinationNumber string `db:"destination_number"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
