package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sudsyhq/sudsy-backend/pkg/config"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

const (
	messagesPathFormat = "/2010-04-01/Accounts/%s/Messages.json"

	maxSendAttempts = 3
	retryBaseDelay  = 250 * time.Millisecond
)

var (
	errAccountSIDRequired = errors.New("twilio account sid is required")
	errAuthTokenRequired  = errors.New("twilio auth token is required")
	errFromNumberRequired = errors.New("twilio from number is required")
)

// Client sends chat messages through the Twilio Messages API. Transient
// provider errors (5xx, transport) are retried a bounded number of times so a
// single blip does not force the dispatcher onto the email fallback.
type Client struct {
	httpClient *http.Client
	accountSID string
	authToken  string
	from       string
	baseURL    string
	logger     *logger.Logger
}

// Message is one accepted outbound message.
type Message struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// NewClient validates the credentials and builds the provider client.
func NewClient(cfg config.TwilioConfig, logg *logger.Logger) (*Client, error) {
	accountSID := strings.TrimSpace(cfg.AccountSID)
	if accountSID == "" {
		return nil, errAccountSIDRequired
	}
	authToken := strings.TrimSpace(cfg.AuthToken)
	if authToken == "" {
		return nil, errAuthTokenRequired
	}
	from := strings.TrimSpace(cfg.FromNumber)
	if from == "" {
		return nil, errFromNumberRequired
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    baseURL,
		logger:     logg,
	}, nil
}

// SendMessage delivers body to the phone-number-like identity.
func (c *Client) SendMessage(ctx context.Context, to, body string) (*Message, error) {
	if strings.TrimSpace(to) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient number is required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := c.baseURL + fmt.Sprintf(messagesPathFormat, c.accountSID)

	var message *Message
	backoff := retry.WithMaxRetries(maxSendAttempts-1, retry.NewExponential(retryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		msg, err := c.postMessage(ctx, endpoint, form)
		if err != nil {
			return err
		}
		message = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (c *Client) postMessage(ctx context.Context, endpoint string, form url.Values) (*Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build twilio request")
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failure may be a blip; let the backoff try again.
		return nil, retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeChannelFailure, err, "twilio request failed"))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeChannelFailure, err, "read twilio response"))
	}

	if resp.StatusCode >= 500 {
		return nil, retry.RetryableError(pkgerrors.New(pkgerrors.CodeChannelFailure,
			fmt.Sprintf("twilio responded %d", resp.StatusCode)))
	}
	if resp.StatusCode >= 400 {
		var detail apiError
		_ = json.Unmarshal(payload, &detail)
		msg := detail.Message
		if msg == "" {
			msg = fmt.Sprintf("twilio responded %d", resp.StatusCode)
		}
		return nil, pkgerrors.New(pkgerrors.CodeChannelFailure, msg)
	}

	var message Message
	if err := json.Unmarshal(payload, &message); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeChannelFailure, err, "decode twilio response")
	}

	if c.logger != nil {
		logCtx := c.logger.WithFields(ctx, map[string]any{
			"message_sid": message.SID,
			"status":      message.Status,
		})
		c.logger.Info(logCtx, "twilio message accepted")
	}
	return &message, nil
}

// sortedFormConcat reproduces Twilio's canonical parameter concatenation.
func sortedFormConcat(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}
	return b.String()
}
