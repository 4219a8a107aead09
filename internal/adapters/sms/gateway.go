package sms

// Package sms implements the CodeSender port against an external messaging
// gateway over HTTP. Gateways differ in how they report delivery acceptance,
// so success can additionally be checked with a configurable JMESPath
// expression over the gateway's JSON response.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
)

const defaultTimeout = 10 * time.Second

// ErrDeliveryFailed is returned when the gateway does not accept the message.
var ErrDeliveryFailed = errors.New("sms delivery failed")

// Config holds configuration for the messaging gateway client.
type Config struct {
	// SendURL is the gateway endpoint that accepts {to, body} messages.
	SendURL string
	// MessageTemplate wraps the code for delivery; %s is replaced with the
	// code. Defaults to a plain passcode message.
	MessageTemplate string
	// SuccessExpr is an optional JMESPath expression evaluated against the
	// gateway's JSON response; when set, a falsy result fails the send even
	// on a 2xx status (e.g. "status == 'sent'").
	SuccessExpr string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Gateway delivers one-time passcodes through the external messaging service.
// The code never appears in logs or return values.
type Gateway struct {
	sendURL     string
	template    string
	successExpr string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewGateway constructs a Gateway from Config, validating the success
// expression up front.
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.SendURL == "" {
		return nil, errors.New("gateway send URL is required")
	}
	if cfg.SuccessExpr != "" {
		if _, err := jmespath.Compile(cfg.SuccessExpr); err != nil {
			return nil, fmt.Errorf("compile success expression: %w", err)
		}
	}
	template := cfg.MessageTemplate
	if template == "" {
		template = "Your verification code is %s"
	}
	if !strings.Contains(template, "%s") {
		return nil, errors.New("message template must contain %s")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		sendURL:     cfg.SendURL,
		template:    template,
		successExpr: cfg.SuccessExpr,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// sendRequest is the gateway message payload.
type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send delivers the code to the phone via the gateway.
func (g *Gateway) Send(ctx context.Context, phone, code string) error {
	if phone == "" {
		return errors.New("phone is required")
	}
	if code == "" {
		return errors.New("code is required")
	}

	payload, err := json.Marshal(sendRequest{
		To:   phone,
		Body: fmt.Sprintf(g.template, code),
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.sendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.WarnContext(ctx, "close sms response body failed", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: gateway returned status %d", ErrDeliveryFailed, resp.StatusCode)
	}

	if g.successExpr == "" {
		return nil
	}
	return g.checkResponse(resp.Body)
}

// checkResponse evaluates the configured JMESPath expression against the
// gateway response and fails the send on a falsy result.
func (g *Gateway) checkResponse(body io.Reader) error {
	var doc any
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return fmt.Errorf("%w: decode gateway response: %v", ErrDeliveryFailed, err)
	}

	result, err := jmespath.Search(g.successExpr, doc)
	if err != nil {
		return fmt.Errorf("%w: evaluate success expression: %v", ErrDeliveryFailed, err)
	}
	if !truthy(result) {
		return fmt.Errorf("%w: gateway rejected message", ErrDeliveryFailed)
	}
	return nil
}

// truthy mirrors JMESPath truthiness: false, nil, empty strings and empty
// collections are falsy.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
