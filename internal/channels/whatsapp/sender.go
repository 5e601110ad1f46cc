package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mitai-health/relay/pkg/logging"
)

var senderTracer = otel.Tracer("mitai.internal.channels.whatsapp.sender")

// TwilioSender posts WhatsApp messages through Twilio's Messages API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTwilioSender builds a sender with sane defaults. from is the
// configured WhatsApp sender address, with or without the whatsapp:
// prefix.
func NewTwilioSender(accountSID, authToken, from string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       whatsAppAddress(from),
		baseURL:    "https://api.twilio.com",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Send dispatches one WhatsApp message, retrying transient failures.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("whatsapp: twilio credentials missing")
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("whatsapp: to required")
	}
	if s.from == "" {
		return errors.New("whatsapp: from required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("whatsapp: body required")
	}

	ctx, span := senderTracer.Start(ctx, "channels.whatsapp.send")
	defer span.End()
	span.SetAttributes(attribute.String("mitai.whatsapp.to", to))

	payload := url.Values{}
	payload.Set("To", whatsAppAddress(to))
	payload.Set("From", s.from)
	payload.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				s.logger.Info("whatsapp message sent", "to", to)
				return nil
			}
			lastErr = fmt.Errorf("whatsapp: twilio send failed: %s", formatTwilioError(resp.StatusCode, respBody))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
				break
			}
		}

		if attempt < 3 {
			time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
	}
	return lastErr
}

// whatsAppAddress ensures the whatsapp: channel prefix Twilio expects.
func whatsAppAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.HasPrefix(addr, "whatsapp:") {
		return addr
	}
	return "whatsapp:" + addr
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
