package messaging

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/smarttask/internal/model"
)

const (
	dailyDueFormat   = "02/01 15:04"
	overdueDueFormat = "02/01/2006 15:04"
)

func priorityMarker(p model.Priority) string {
	switch p {
	case model.PriorityUrgent:
		return "[URGENT]"
	case model.PriorityHigh:
		return "[HIGH]"
	case model.PriorityMedium:
		return "[MEDIUM]"
	case model.PriorityLow:
		return "[LOW]"
	default:
		return "[NO PRIORITY]"
	}
}

func formatDailyReminder(userName string, tasks []model.Task, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Good morning, %s!\n\n", userName)
	b.WriteString("Summary of today's tasks:\n\n")

	if len(tasks) == 0 {
		b.WriteString("No pending tasks. Enjoy your day!")
		return b.String()
	}

	for i, t := range tasks {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, priorityMarker(t.Priority), t.Title)
		if t.DueDate != nil {
			fmt.Fprintf(&b, "   Due: %s\n", t.DueDate.In(loc).Format(dailyDueFormat))
		}
		if t.EstimatedHours != nil {
			fmt.Fprintf(&b, "   Estimate: %dh\n", *t.EstimatedHours)
		}
		b.WriteString("\n")
	}

	b.WriteString("You can get it all done today. We're with you!")
	return b.String()
}

func formatOverdueAlert(userName string, tasks []model.Task, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attention, %s!\n\n", userName)
	fmt.Fprintf(&b, "You have %d overdue task(s):\n\n", len(tasks))

	for i, t := range tasks {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t.Title)
		if t.DueDate != nil {
			fmt.Fprintf(&b, "   Due on: %s\n", t.DueDate.In(loc).Format(overdueDueFormat))
		}
		b.WriteString("\n")
	}

	b.WriteString("Set aside time today to clear pending tasks.")
	return b.String()
}

func formatCompletionSummary(userName string, completed, totalHours int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Congratulations, %s!\n\n", userName)
	fmt.Fprintf(&b, "You completed %d task(s) today.\n", completed)
	if totalHours > 0 {
		fmt.Fprintf(&b, "Total hours worked: %dh\n", totalHours)
	}
	b.WriteString("\nKeep up the good pace. Great work!")
	return b.String()
}

func formatTestMessage(userName string) string {
	return fmt.Sprintf("Hello, %s!\n\n"+
		"Test message: WhatsApp channel active.\n\n"+
		"You will receive daily reminders for your configured tasks.", userName)
}

// normalizeNumber trims number and makes sure it carries the WhatsApp
// channel prefix exactly once.
func normalizeNumber(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, model.WhatsAppPrefix) {
		return number
	}
	return model.WhatsAppPrefix + number
}
