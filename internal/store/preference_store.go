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

// GetPreference retrieves the notification preference of a user.
func (s *SQLiteStore) GetPreference(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	var pref model.NotificationPreference
	err := sqlx.GetContext(ctx, s.q, &pref,
		"SELECT * FROM notification_preferences WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preference of user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting preference of user %d: %w", userID, err)
	}
	return &pref, nil
}

// EnabledPreferences returns all enabled preferences ordered by user.
func (s *SQLiteStore) EnabledPreferences(ctx context.Context) ([]model.NotificationPreference, error) {
	var prefs []model.NotificationPreference
	err := sqlx.SelectContext(ctx, s.q, &prefs,
		"SELECT * FROM notification_preferences WHERE enabled = 1 ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("querying enabled preferences: %w", err)
	}
	return prefs, nil
}

// PreferencesByReminderTime returns enabled preferences whose daily reminder
// is set to t.
func (s *SQLiteStore) PreferencesByReminderTime(
	ctx context.Context,
	t model.TimeOfDay,
) ([]model.NotificationPreference, error) {
	var prefs []model.NotificationPreference
	err := sqlx.SelectContext(ctx, s.q, &prefs, `
		SELECT * FROM notification_preferences
		WHERE enabled = 1 AND daily_reminder_time = ?
		ORDER BY user_id`, t)
	if err != nil {
		return nil, fmt.Errorf("querying preferences at %s: %w", t, err)
	}
	return prefs, nil
}

// SavePreference inserts or updates the preference of pref.UserID.
func (s *SQLiteStore) SavePreference(ctx context.Context, pref *model.NotificationPreference) error {
	now := time.Now().UTC()
	if pref.CreatedAt.IsZero() {
		pref.CreatedAt = now
	}
	pref.UpdatedAt = now
	if pref.Timezone == "" {
		pref.Timezone = model.DefaultTimezone
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO notification_preferences (
			user_id, destination, enabled, daily_reminder_time, timezone,
			send_overdue_alerts, send_completion_summary, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			destination = excluded.destination,
			enabled = excluded.enabled,
			daily_reminder_time = excluded.daily_reminder_time,
			timezone = excluded.timezone,
			send_overdue_alerts = excluded.send_overdue_alerts,
			send_completion_summary = excluded.send_completion_summary,
			updated_at = excluded.updated_at`,
		pref.UserID, pref.Destination, boolToInt(pref.Enabled), pref.DailyReminderTime, pref.Timezone,
		boolToInt(pref.SendOverdueAlerts), boolToInt(pref.SendCompletionSummary),
		pref.CreatedAt, pref.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving preference of user %d: %w", pref.UserID, err)
	}
	return nil
}
