package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gatehousehq/gatehouse/internal/model"
)

// Client sends transactional guest email through Postmark.
type Client struct {
	serverToken string
	fromEmail   string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendInvitation delivers the signed check-in credential for an activated
// invitation.
func (c *Client) SendInvitation(guest model.Guest, host model.Host, visitDate time.Time, credential string) error {
	subject := fmt.Sprintf("Your visit to %s on %s", host.Name, visitDate.Format("Jan 2"))
	textBody := fmt.Sprintf(
		"Hi %s,\n\nYou're expected at %s on %s. Present the code below at the lobby kiosk:\n\n%s\n",
		guest.Name, host.Name, visitDate.Format("Monday, Jan 2"), credential)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>You're expected at %s on %s. Present the code below at the lobby kiosk:</p><pre>%s</pre>`,
		guest.Name, host.Name, visitDate.Format("Monday, Jan 2"), credential)
	return c.send(guest.Email, subject, textBody, htmlBody)
}

// SendTermsRenewal tells a guest their visitor terms acceptance was renewed
// at check-in.
func (c *Client) SendTermsRenewal(guest model.Guest) error {
	subject := "Your visitor terms were renewed"
	textBody := fmt.Sprintf(
		"Hi %s,\n\nYour visitor terms acceptance had lapsed and was renewed to the current version during check-in. No action is needed.\n",
		guest.Name)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your visitor terms acceptance had lapsed and was renewed to the current version during check-in. No action is needed.</p>`,
		guest.Name)
	return c.send(guest.Email, subject, textBody, htmlBody)
}

// SendReward congratulates a guest on reaching a visit milestone.
func (c *Client) SendReward(guest model.Guest, milestone int) error {
	subject := "Thanks for visiting!"
	textBody := fmt.Sprintf(
		"Hi %s,\n\nThat was your visit number %d. Stop by the front desk on your way out to pick up a small thank-you.\n",
		guest.Name, milestone)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>That was your visit number %d. Stop by the front desk on your way out to pick up a small thank-you.</p>`,
		guest.Name, milestone)
	return c.send(guest.Email, subject, textBody, htmlBody)
}

func (c *Client) send(toEmail, subject, textBody, htmlBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.postmarkapp.com/email", bytes.NewReader(body))
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
