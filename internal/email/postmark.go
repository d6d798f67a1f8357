// Package email sends new-reservation notices to the admin through the
// Postmark API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/reservations/internal/model"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured: missing server token or recipient")

type Client struct {
	serverToken string
	fromEmail   string
	toEmail     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL overrides the Postmark endpoint.
func WithAPIURL(u string) Option {
	return func(cl *Client) {
		if u != "" {
			cl.apiURL = u
		}
	}
}

func NewClient(serverToken, fromEmail, toEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		toEmail:     toEmail,
		apiURL:      defaultAPIURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token and recipient are set.
func (c *Client) Configured() bool {
	return c.serverToken != "" && c.toEmail != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// NotifyReservation tells the admin about a newly created reservation.
func (c *Client) NotifyReservation(ctx context.Context, r model.Reservation) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var text, rows strings.Builder
	fmt.Fprintf(&text, "New reservation %s received at %s\n\n", r.ID, r.CreatedAt.Format(time.RFC1123))
	for _, k := range keys {
		v := fmt.Sprint(r.Fields[k])
		fmt.Fprintf(&text, "%s: %s\n", k, v)
		fmt.Fprintf(&rows, "<tr><th align=\"left\">%s</th><td>%s</td></tr>", html.EscapeString(k), html.EscapeString(v))
	}
	htmlBody := fmt.Sprintf(
		`<p>New reservation <code>%s</code> received at %s</p><table>%s</table>`,
		html.EscapeString(r.ID), r.CreatedAt.Format(time.RFC1123), rows.String(),
	)

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       c.toEmail,
		Subject:  "New reservation " + r.ID,
		HtmlBody: htmlBody,
		TextBody: text.String(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
