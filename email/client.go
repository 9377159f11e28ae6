// Package email sends newsletter deliveries through an HTTP email API.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsletter-backend/apperror"
	"newsletter-backend/config"

	"github.com/gofiber/fiber/v2"
)

const tokenHeader = "X-Postmark-Server-Token"

// Sender delivers one message. Implementations report failures as
// *apperror.TransportError.
type Sender interface {
	Send(ctx context.Context, to Address, subject, htmlBody, textBody string) error
}

// Client posts messages to {BaseURL}/email.
type Client struct {
	baseURL string
	sender  Address
	token   string
	timeout time.Duration
}

type sendRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

func NewClient(baseURL string, sender Address, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		sender:  sender,
		token:   token,
		timeout: timeout,
	}
}

// NewClientFromSettings validates the sender address before building a Client.
func NewClientFromSettings(s config.EmailSettings) (*Client, error) {
	if s.BaseURL == "" {
		return nil, errors.New("email.base_url is required")
	}
	sender, err := ParseAddress(s.Sender)
	if err != nil {
		return nil, fmt.Errorf("email.sender: %w", err)
	}
	return NewClient(s.BaseURL, sender, s.AuthorizationToken, s.Timeout), nil
}

func (c *Client) Send(ctx context.Context, to Address, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return apperror.Transport(to.String(), 0, err)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return apperror.Transport(to.String(), 0, context.DeadlineExceeded)
		}
		if timeout <= 0 || left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(c.baseURL+"/email").
		Set(tokenHeader, c.token).
		JSON(sendRequest{
			From:     c.sender.String(),
			To:       to.String(),
			Subject:  subject,
			HtmlBody: htmlBody,
			TextBody: textBody,
		})
	if timeout > 0 {
		agent = agent.Timeout(timeout)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return apperror.Transport(to.String(), 0, errors.Join(errs...))
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return apperror.Transport(to.String(), status, fmt.Errorf("email api rejected message: %s", truncate(body, 256)))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
