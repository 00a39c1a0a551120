package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/smarttask/internal/model"
)

func hours(h int) *int { return &h }

func TestFormatDailyReminder(t *testing.T) {
	due := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	tasks := []model.Task{
		{Title: "Ship release", Priority: model.PriorityUrgent, DueDate: &due, EstimatedHours: hours(3)},
		{Title: "Reply to email"},
	}

	want := "Good morning, Ana!\n\n" +
		"Summary of today's tasks:\n\n" +
		"1. [URGENT] Ship release\n" +
		"   Due: 05/03 14:30\n" +
		"   Estimate: 3h\n\n" +
		"2. [NO PRIORITY] Reply to email\n\n" +
		"You can get it all done today. We're with you!"
	assert.Equal(t, want, formatDailyReminder("Ana", tasks, time.UTC))
}

func TestFormatDailyReminder_Empty(t *testing.T) {
	want := "Good morning, Ana!\n\nSummary of today's tasks:\n\nNo pending tasks. Enjoy your day!"
	assert.Equal(t, want, formatDailyReminder("Ana", nil, time.UTC))
}

func TestFormatOverdueAlert(t *testing.T) {
	due := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	tasks := []model.Task{{Title: "Pay invoice", DueDate: &due}, {Title: "Renew domain"}}

	want := "Attention, Ana!\n\n" +
		"You have 2 overdue task(s):\n\n" +
		"1. Pay invoice\n" +
		"   Due on: 05/03/2024 09:00\n\n" +
		"2. Renew domain\n\n" +
		"Set aside time today to clear pending tasks."
	assert.Equal(t, want, formatOverdueAlert("Ana", tasks, time.UTC))
}

func TestFormatCompletionSummary(t *testing.T) {
	assert.Equal(t,
		"Congratulations, Ana!\n\nYou completed 4 task(s) today.\nTotal hours worked: 6h\n\nKeep up the good pace. Great work!",
		formatCompletionSummary("Ana", 4, 6))
	assert.Equal(t,
		"Congratulations, Ana!\n\nYou completed 1 task(s) today.\n\nKeep up the good pace. Great work!",
		formatCompletionSummary("Ana", 1, 0))
}

func TestPriorityMarker(t *testing.T) {
	assert.Equal(t, "[HIGH]", priorityMarker(model.PriorityHigh))
	assert.Equal(t, "[MEDIUM]", priorityMarker(model.PriorityMedium))
	assert.Equal(t, "[LOW]", priorityMarker(model.PriorityLow))
	assert.Equal(t, "[NO PRIORITY]", priorityMarker(""))
}

func TestNormalizeNumber(t *testing.T) {
	assert.Equal(t, "whatsapp:+1555", normalizeNumber("+1555"))
	assert.Equal(t, "whatsapp:+1555", normalizeNumber(" whatsapp:+1555 "))
	assert.Equal(t, "", normalizeNumber("  "))
}
