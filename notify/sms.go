package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultSMSURL     = "https://rest.nexmo.com/sms/json"
	defaultSMSTimeout = 10 * time.Second
	defaultAppName    = "TestApp"
)

// SMSConfig holds the SMS gateway credentials
type SMSConfig struct {
	APIKey    string
	APISecret string
	From      string
	AppName   string

	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// SMSClient sends text messages through the Nexmo (Vonage) REST API
type SMSClient struct {
	config     SMSConfig
	httpClient *http.Client
}

// NewSMSClient creates a new gateway client. Requests are bounded by
// cfg.Timeout and never retried.
func NewSMSClient(cfg SMSConfig) *SMSClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSMSURL
	}
	if cfg.AppName == "" {
		cfg.AppName = defaultAppName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMSTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &SMSClient{
		config:     cfg,
		httpClient: client,
	}
}

// VerificationText is the message body carrying a verification code
func VerificationText(appName, code string) string {
	return fmt.Sprintf("Hello! Welcome to %s. Your Verification code is : %s", appName, code)
}

// SendVerificationCode texts the verification code to the phone number
func (c *SMSClient) SendVerificationCode(ctx context.Context, to, code string) (*accounts.SMSResult, error) {
	return c.Send(ctx, to, VerificationText(c.config.AppName, code))
}

// Send delivers text to the given number. Every message status must be "0"
// for the send to succeed; the first non zero status is reported as a
// gateway error carrying the provider error text.
func (c *SMSClient) Send(ctx context.Context, to, text string) (*accounts.SMSResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	query := url.Values{}
	query.Set("api_key", c.config.APIKey)
	query.Set("api_secret", c.config.APISecret)
	query.Set("to", strings.TrimPrefix(to, "+"))
	query.Set("from", c.config.From)
	query.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, transportError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, accounts.NewGatewayError(fmt.Sprintf("%d", resp.StatusCode), http.StatusText(resp.StatusCode))
	}

	return ParseSMSResponse(body, to)
}

type smsResponse struct {
	MessageCount string       `json:"message-count"`
	Messages     []smsMessage `json:"messages"`
}

type smsMessage struct {
	To        string    `json:"to"`
	Status    smsStatus `json:"status"`
	ErrorText string    `json:"error-text"`
}

// smsStatus accepts the status as a JSON string or number
type smsStatus string

func (s *smsStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = smsStatus(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = smsStatus(num.String())
	return nil
}

// ParseSMSResponse interprets a gateway response body. Empty or malformed
// bodies are gateway errors.
func ParseSMSResponse(body []byte, to string) (*accounts.SMSResult, error) {
	var decoded smsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, accounts.NewGatewayError("malformed", "malformed response")
	}

	if len(decoded.Messages) == 0 {
		return nil, accounts.NewGatewayError("malformed", "malformed response")
	}

	for _, msg := range decoded.Messages {
		if strings.TrimSpace(string(msg.Status)) != "0" {
			return nil, accounts.NewGatewayError(string(msg.Status), msg.ErrorText)
		}
	}

	return &accounts.SMSResult{
		Success: true,
		Message: fmt.Sprintf("Verification code sent to %s.", to),
	}, nil
}

func transportError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "sms gateway request failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(accounts.TextCodeSMSGateway)
}
