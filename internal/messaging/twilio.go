package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nhle/smarttask/internal/model"
)

const (
	// DefaultBaseURL is the public Twilio REST endpoint.
	DefaultBaseURL = "https://api.twilio.com"

	sendTimeout = 30 * time.Second
)

// ProviderError reports a failed call to the messaging provider.
// StatusCode is 0 when the request never got a response.
type ProviderError struct {
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("twilio: %s", e.Message)
	}
	return fmt.Sprintf("twilio API error (%d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err (or any error in its chain) is a ProviderError.
func IsProviderError(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr)
}

// Message is one outbound WhatsApp message. From and To already carry the
// channel prefix.
type Message struct {
	From string
	To   string
	Body string
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// SenderFactory builds a Sender for one resolved credential bundle.
type SenderFactory func(creds model.MessagingCredentials) Sender

// TwilioClient sends WhatsApp messages through the Twilio Messages API.
type TwilioClient struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// NewTwilioClient creates a client for one account. An empty baseURL selects
// the public Twilio endpoint.
func NewTwilioClient(accountSID, authToken, baseURL string) *TwilioClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &TwilioClient{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: sendTimeout},
	}
}

// Send implements Sender.
func (c *TwilioClient) Send(ctx context.Context, msg Message) (string, error) {
	form := url.Values{}
	form.Set("From", msg.From)
	form.Set("To", msg.To)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		c.baseURL, url.PathEscape(c.accountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Message: "calling messages API", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: "reading response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return "", &ProviderError{StatusCode: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Message}
		}
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var created apiMessage
	if err := json.Unmarshal(body, &created); err != nil {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: "decoding response", Err: err}
	}
	return created.SID, nil
}

// --- Twilio API types ---

type apiMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

type apiErrorResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}
