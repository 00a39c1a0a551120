// Package messaging renders task notifications and delivers them over
// WhatsApp. When no provider credentials apply, messages are logged instead
// of sent so that the rest of the system behaves the same either way.
package messaging

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/nhle/smarttask/internal/metrics"
	"github.com/nhle/smarttask/internal/model"
)

// Message types reported to metrics.
const (
	TypeDailyReminder     = "daily_reminder"
	TypeOverdueAlert      = "overdue_alert"
	TypeCompletionSummary = "completion_summary"
	TypeTestMessage       = "test_message"

	failedSuffix = "_failed"
)

const (
	simulationMarker = "[SIMULATED]"
	fallbackMarker   = "[FALLBACK]"
)

// CredentialResolver returns the messaging bundle that applies to a user.
type CredentialResolver interface {
	ResolveMessagingCredential(ctx context.Context, userID int64) (model.MessagingCredentials, error)
}

// Gateway formats and delivers notifications. It holds no per-user state;
// credentials are resolved on every call.
type Gateway struct {
	creds     CredentialResolver
	sink      metrics.Sink
	newSender SenderFactory
	loc       *time.Location
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithSenderFactory replaces the Twilio HTTP client.
func WithSenderFactory(f SenderFactory) Option {
	return func(g *Gateway) { g.newSender = f }
}

// WithLocation sets the zone used to print due dates. Defaults to the
// server's local zone.
func WithLocation(loc *time.Location) Option {
	return func(g *Gateway) { g.loc = loc }
}

// NewGateway creates a Gateway that talks to the Twilio API at baseURL.
func NewGateway(creds CredentialResolver, sink metrics.Sink, baseURL string, opts ...Option) *Gateway {
	if sink == nil {
		sink = metrics.Nop{}
	}
	g := &Gateway{
		creds: creds,
		sink:  sink,
		loc:   time.Local,
		newSender: func(c model.MessagingCredentials) Sender {
			return NewTwilioClient(c.AccountKey, c.AuthSecret, baseURL)
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SendDailyReminder sends the list of open tasks for the day. tasks are
// printed in the order given.
func (g *Gateway) SendDailyReminder(ctx context.Context, userID int64, userName string, tasks []model.Task) (model.DeliveryOutcome, error) {
	return g.traced(ctx, "messaging.SendDailyReminder", userID, TypeDailyReminder, func() string {
		return formatDailyReminder(userName, tasks, g.loc)
	})
}

// SendOverdueAlert warns about overdue tasks. It does nothing when the list
// is empty.
func (g *Gateway) SendOverdueAlert(ctx context.Context, userID int64, userName string, overdue []model.Task) (model.DeliveryOutcome, error) {
	if len(overdue) == 0 {
		return model.DeliveryOutcome{UserID: userID, Channel: model.ChannelSkipped, MessageType: TypeOverdueAlert}, nil
	}
	return g.traced(ctx, "messaging.SendOverdueAlert", userID, TypeOverdueAlert, func() string {
		return formatOverdueAlert(userName, overdue, g.loc)
	})
}

// SendCompletionSummary congratulates the user on the day's completed work.
// The hours line is left out when totalHours is not positive.
func (g *Gateway) SendCompletionSummary(ctx context.Context, userID int64, userName string, completed, totalHours int) (model.DeliveryOutcome, error) {
	return g.traced(ctx, "messaging.SendCompletionSummary", userID, TypeCompletionSummary, func() string {
		return formatCompletionSummary(userName, completed, totalHours)
	})
}

// SendTestMessage checks that the user's channel works end to end.
func (g *Gateway) SendTestMessage(ctx context.Context, userID int64, userName string) (model.DeliveryOutcome, error) {
	return g.traced(ctx, "messaging.SendTestMessage", userID, TypeTestMessage, func() string {
		return formatTestMessage(userName)
	})
}

func (g *Gateway) traced(
	ctx context.Context,
	span string,
	userID int64,
	messageType string,
	render func() string,
) (model.DeliveryOutcome, error) {
	var outcome model.DeliveryOutcome
	err := metrics.Trace(ctx, g.sink, span, func(ctx context.Context) error {
		var err error
		outcome, err = g.deliver(ctx, userID, messageType, render)
		return err
	})
	return outcome, err
}

// deliver resolves credentials and sends, simulates, or skips. Only
// credential resolution errors are returned; provider failures end in a
// simulated delivery.
func (g *Gateway) deliver(ctx context.Context, userID int64, messageType string, render func() string) (model.DeliveryOutcome, error) {
	outcome := model.DeliveryOutcome{UserID: userID, MessageType: messageType}

	creds, err := g.creds.ResolveMessagingCredential(ctx, userID)
	if err != nil {
		return outcome, err
	}

	to := normalizeNumber(creds.Destination)
	if to == "" {
		log.Printf("messaging: user %d has no WhatsApp number, %s skipped", userID, messageType)
		outcome.Channel = model.ChannelSkipped
		return outcome, nil
	}

	body := render()

	if !creds.Ready() {
		g.simulate(simulationMarker, to, body, messageType)
		outcome.Channel = model.ChannelSimulated
		return outcome, nil
	}

	if strings.TrimSpace(creds.SenderAddress) == "" {
		log.Printf("messaging: WARNING no sender number configured, simulating delivery to %s",
			model.MaskPhoneNumber(to))
		g.simulate(fallbackMarker, to, body, messageType)
		outcome.Channel = model.ChannelSimulatedNoSender
		return outcome, nil
	}

	sid, err := g.newSender(creds).Send(ctx, Message{
		From: normalizeNumber(creds.SenderAddress),
		To:   to,
		Body: body,
	})
	if err != nil {
		log.Printf("messaging: sending %s to %s failed: %v", messageType, model.MaskPhoneNumber(to), err)
		g.simulate(fallbackMarker, to, body, messageType+failedSuffix)
		outcome.Channel = model.ChannelSimulatedAfterFailure
		outcome.MessageType = messageType + failedSuffix
		return outcome, nil
	}

	log.Printf("messaging: %s sent to %s (sid %s)", messageType, model.MaskPhoneNumber(to), sid)
	g.sink.RecordMessage(messageType)
	outcome.Channel = model.ChannelReal
	return outcome, nil
}

func (g *Gateway) simulate(marker, to, body, metricType string) {
	log.Printf("%s WhatsApp message to %s:\n%s", marker, model.MaskPhoneNumber(to), body)
	g.sink.RecordMessage(metricType)
}
