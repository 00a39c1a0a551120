package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is applied to preferences saved without a timezone.
const DefaultTimezone = "America/Sao_Paulo"

// WhatsAppPrefix is the channel prefix the messaging provider expects.
const WhatsAppPrefix = "whatsapp:"

// ErrInvalidTimeOfDay is wrapped by ParseTimeOfDay on malformed input.
var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// TimeOfDay is a wall-clock minute stored as "HH:MM".
type TimeOfDay string

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS" and normalizes to "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(t.Format("15:04")), nil
		}
	}
	return "", fmt.Errorf("%w %q (want HH:MM)", ErrInvalidTimeOfDay, s)
}

// TimeOfDayOf returns the minute of t, discarding seconds.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Format("15:04"))
}

// NotificationPreference controls which WhatsApp notifications a user gets.
type NotificationPreference struct {
	// UserID owns the preference; there is at most one per user.
	UserID int64 `json:"user_id" db:"user_id"`

	// Destination is the phone number the user registered for alerts.
	Destination *string `json:"destination,omitempty" db:"destination"`

	// Enabled turns all scheduled notifications on or off.
	Enabled bool `json:"enabled" db:"enabled"`

	// DailyReminderTime is the minute at which the daily reminder fires.
	DailyReminderTime *TimeOfDay `json:"daily_reminder_time,omitempty" db:"daily_reminder_time"`

	// Timezone is stored for display; matching uses the server clock.
	Timezone string `json:"timezone" db:"timezone"`

	SendOverdueAlerts     bool `json:"send_overdue_alerts" db:"send_overdue_alerts"`
	SendCompletionSummary bool `json:"send_completion_summary" db:"send_completion_summary"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewNotificationPreference returns the defaults for a first save.
func NewNotificationPreference(userID int64) NotificationPreference {
	return NotificationPreference{
		UserID:                userID,
		Timezone:              DefaultTimezone,
		SendOverdueAlerts:     true,
		SendCompletionSummary: true,
	}
}

// JobKind identifies which periodic job fired.
type JobKind string

const (
	JobDailyReminder JobKind = "DAILY_REMINDER"
	JobOverdueAlert  JobKind = "OVERDUE_ALERT"
)

// ScheduledJob describes one firing of a periodic job. It is never persisted.
type ScheduledJob struct {
	Kind    JobKind
	FiredAt time.Time
	RunID   string
}

// DeliveryChannel records how a message actually left the gateway.
type DeliveryChannel string

const (
	ChannelReal                  DeliveryChannel = "REAL"
	ChannelSimulated             DeliveryChannel = "SIMULATED"
	ChannelSimulatedAfterFailure DeliveryChannel = "SIMULATED_AFTER_FAILURE"

	// ChannelSimulatedNoSender means credentials were ready but no sender
	// number was configured, so delivery fell back to simulation.
	ChannelSimulatedNoSender DeliveryChannel = "SIMULATED_NO_SENDER"

	// ChannelSkipped means nothing was sent because the user has no
	// destination number. It is not reported to metrics.
	ChannelSkipped DeliveryChannel = "SKIPPED"
)

// DeliveryOutcome is reported to metrics after every send attempt.
type DeliveryOutcome struct {
	UserID      int64
	Channel     DeliveryChannel
	MessageType string
}

// MaskPhoneNumber hides all but the last four characters of a number.
// The channel prefix is dropped. Empty input yields an empty string.
func MaskPhoneNumber(number string) string {
	if number == "" {
		return ""
	}
	number = strings.ReplaceAll(number, WhatsAppPrefix, "")
	if len(number) <= 4 {
		return "****"
	}
	return "****" + number[len(number)-4:]
}
