package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultPushURL = "https://exp.host/--/api/v2/push/send"

// Ticket is the provider's acknowledgement of a single message.
type Ticket struct {
	ID      string         `json:"id,omitempty"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (t Ticket) OK() bool { return t.Status == "ok" }

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sendResponse struct {
	Data   []Ticket   `json:"data"`
	Errors []apiError `json:"errors"`
}

// Client sends messages to the Expo push API.
type Client struct {
	Endpoint    string
	AccessToken string
	Client      *http.Client
}

func NewClient(endpoint, accessToken string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultPushURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		Endpoint:    endpoint,
		AccessToken: accessToken,
		Client:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "expo" }

// Send delivers msg and returns its ticket. Transport failures, non-2xx
// statuses and request-level errors are returned as errors; a ticket with an
// error status is not.
func (c *Client) Send(ctx context.Context, msg Message) (Ticket, error) {
	body, err := json.Marshal([]Message{msg})
	if err != nil {
		return Ticket{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Ticket{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Ticket{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Ticket{}, fmt.Errorf("expo read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Ticket{}, fmt.Errorf("expo error: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var decoded sendResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Ticket{}, fmt.Errorf("expo decode response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		e := decoded.Errors[0]
		return Ticket{}, fmt.Errorf("expo request rejected: %s: %s", e.Code, e.Message)
	}
	if len(decoded.Data) == 0 {
		return Ticket{}, fmt.Errorf("expo returned no tickets")
	}
	return decoded.Data[0], nil
}
