package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type smsPayload struct {
	To         string       `json:"to"`
	TemplateID string       `json:"template_id"`
	Vars       TemplateVars `json:"vars"`
	Message    string       `json:"message"`
}

// SMSGateway posts notifications to an HTTP SMS gateway.
type SMSGateway struct {
	url      string
	apiKey   string
	client   *http.Client
	template *Template
}

// GatewayOption configures the SMS gateway.
type GatewayOption func(*SMSGateway)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *SMSGateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithAPIKey sets the gateway API key header.
func WithAPIKey(key string) GatewayOption {
	return func(g *SMSGateway) {
		g.apiKey = key
	}
}

// NewSMSGateway constructs an SMS gateway notifier.
func NewSMSGateway(url string, template *Template, opts ...GatewayOption) (*SMSGateway, error) {
	if url == "" {
		return nil, errors.New("sms gateway: empty url")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	gateway := &SMSGateway{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		template: template,
	}
	for _, opt := range opts {
		opt(gateway)
	}
	return gateway, nil
}

// SendSMS implements Notifier.
func (g *SMSGateway) SendSMS(ctx context.Context, phone, templateID string, vars TemplateVars) error {
	if g == nil || g.url == "" {
		return errors.New("sms gateway: empty url")
	}
	if phone == "" {
		return errors.New("sms gateway: empty phone")
	}
	message, err := g.template.Render(vars)
	if err != nil {
		return err
	}
	payload := smsPayload{
		To:         phone,
		TemplateID: templateID,
		Vars:       vars,
		Message:    message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
