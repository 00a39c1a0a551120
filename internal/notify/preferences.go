package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/store"
)

// ErrDestinationRequired is returned when notifications are enabled without
// a WhatsApp number.
var ErrDestinationRequired = errors.New("configure a valid WhatsApp number before enabling notifications")

// ErrInvalidNumber is returned for a number not in international format.
var ErrInvalidNumber = errors.New("invalid WhatsApp number (use international format: +5511999999999)")

var numberPattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// PreferenceRequest is a partial update. Nil fields keep their stored value,
// except Enabled, which is false unless set, and Destination, which is
// replaced on every save.
type PreferenceRequest struct {
	Destination           string  `json:"destination"`
	Enabled               *bool   `json:"enabled,omitempty"`
	DailyReminderTime     string  `json:"daily_reminder_time,omitempty"`
	Timezone              *string `json:"timezone,omitempty"`
	SendOverdueAlerts     *bool   `json:"send_overdue_alerts,omitempty"`
	SendCompletionSummary *bool   `json:"send_completion_summary,omitempty"`
}

// PreferenceStore is the storage PreferenceService needs.
type PreferenceStore interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetPreference(ctx context.Context, userID int64) (*model.NotificationPreference, error)
	SavePreference(ctx context.Context, pref *model.NotificationPreference) error
}

// TestSender sends the on-demand test message.
type TestSender interface {
	SendTestMessage(ctx context.Context, userID int64, userName string) (model.DeliveryOutcome, error)
}

// PreferenceService manages the notification preference of each user.
type PreferenceService struct {
	store  PreferenceStore
	sender TestSender
}

// NewPreferenceService creates a PreferenceService.
func NewPreferenceService(s PreferenceStore, sender TestSender) *PreferenceService {
	return &PreferenceService{store: s, sender: sender}
}

// Save creates or updates the preference of userID.
func (p *PreferenceService) Save(ctx context.Context, userID int64, req PreferenceRequest) (*model.NotificationPreference, error) {
	user, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	pref, err := p.store.GetPreference(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		fresh := model.NewNotificationPreference(user.ID)
		pref = &fresh
	}

	number := strings.TrimSpace(req.Destination)
	enabled := req.Enabled != nil && *req.Enabled
	if enabled && number == "" {
		return nil, ErrDestinationRequired
	}
	if number != "" && !numberPattern.MatchString(number) {
		return nil, ErrInvalidNumber
	}

	if number == "" {
		pref.Destination = nil
	} else {
		pref.Destination = &number
	}
	pref.Enabled = enabled

	if strings.TrimSpace(req.DailyReminderTime) != "" {
		at, err := model.ParseTimeOfDay(req.DailyReminderTime)
		if err != nil {
			return nil, err
		}
		pref.DailyReminderTime = &at
	}
	if req.Timezone != nil {
		pref.Timezone = *req.Timezone
	}
	if req.SendOverdueAlerts != nil {
		pref.SendOverdueAlerts = *req.SendOverdueAlerts
	}
	if req.SendCompletionSummary != nil {
		pref.SendCompletionSummary = *req.SendCompletionSummary
	}

	if err := p.store.SavePreference(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}

// Get returns the preference of userID, or an error wrapping
// store.ErrNotFound when none was saved.
func (p *PreferenceService) Get(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	return p.store.GetPreference(ctx, userID)
}

// SendTest sends a test message. The user must have saved a preference.
func (p *PreferenceService) SendTest(ctx context.Context, userID int64) (model.DeliveryOutcome, error) {
	if _, err := p.store.GetPreference(ctx, userID); err != nil {
		return model.DeliveryOutcome{}, err
	}
	user, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return model.DeliveryOutcome{}, err
	}

	outcome, err := p.sender.SendTestMessage(ctx, user.ID, user.Username)
	if err != nil {
		return outcome, fmt.Errorf("sending test message to user %d: %w", userID, err)
	}
	return outcome, nil
}
