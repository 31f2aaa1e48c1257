// Package webhook delivers one reminder payload to the external notification
// channel. Delivery is best effort: the caller decides what to do with a
// failure, the client only reports it.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	dateLayout = "02 January 2006"
	timeLayout = "03:04 PM"
)

// Payload is the wire shape the notification channel expects.
type Payload struct {
	Phone       string `json:"phone"`
	WebinarDate string `json:"webinar_date"`
	WebinarTime string `json:"webinar_time"`
	Name        string `json:"name"`
	DaysLeft    int    `json:"days_left"`
}

// NewPayload formats the outbound fields from the stored event instant.
// Both the date and the time derive from the same instant; there is no
// separate date/time state to drift apart.
func NewPayload(phone, name string, eventAt time.Time, daysLeft int) Payload {
	at := eventAt.UTC()
	return Payload{
		Phone:       phone,
		WebinarDate: at.Format(dateLayout),
		WebinarTime: at.Format(timeLayout),
		Name:        name,
		DaysLeft:    daysLeft,
	}
}

// Client posts reminder payloads to a single webhook URL.
type Client struct {
	url        string
	httpClient *http.Client
}

// New creates a webhook client with a bounded per-call timeout.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts one payload and treats any non-2xx status as failure.
func (c *Client) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal reminder payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post reminder webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reminder webhook rejected with status %d", resp.StatusCode)
	}
	return nil
}
