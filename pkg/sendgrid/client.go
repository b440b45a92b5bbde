package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sudsyhq/sudsy-backend/pkg/config"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

const mailSendPath = "/v3/mail/send"

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errFromRequired   = errors.New("sendgrid default from address is required")
)

// Client sends transactional email through the SendGrid v3 mail API. It is
// the fallback delivery channel when the chat provider is unreachable.
type Client struct {
	httpClient *http.Client
	apiKey     string
	from       string
	baseURL    string
	logger     *logger.Logger
}

type mailAddress struct {
	Email string `json:"email"`
}

type personalization struct {
	To []mailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             mailAddress       `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type apiErrorBody struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

// NewClient validates credentials and builds the mail client.
func NewClient(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errFromRequired
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		from:       from,
		baseURL:    baseURL,
		logger:     logg,
	}, nil
}

// SendEmail delivers a plain-text email to a single recipient.
func (c *Client) SendEmail(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient email is required")
	}
	if strings.TrimSpace(subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email subject is required")
	}
	if strings.TrimSpace(body) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email body is required")
	}

	payload, err := json.Marshal(mailRequest{
		Personalizations: []personalization{{To: []mailAddress{{Email: to}}}},
		From:             mailAddress{Email: c.from},
		Subject:          subject,
		Content:          []mailContent{{Type: "text/plain", Value: body}},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode mail request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+mailSendPath, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build mail request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeChannelFailure, err, "sendgrid request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		var detail apiErrorBody
		_ = json.Unmarshal(raw, &detail)
		msg := fmt.Sprintf("sendgrid responded %d", resp.StatusCode)
		if len(detail.Errors) > 0 && detail.Errors[0].Message != "" {
			msg = detail.Errors[0].Message
		}
		return pkgerrors.New(pkgerrors.CodeChannelFailure, msg)
	}

	if c.logger != nil {
		logCtx := c.logger.WithField(ctx, "subject", subject)
		c.logger.Info(logCtx, "sendgrid mail accepted")
	}
	return nil
}
