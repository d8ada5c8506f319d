package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"
)

const (
	defaultEndpoint   = "https://graph.facebook.com"
	defaultAPIVersion = "v18.0"
	messagingProduct  = "whatsapp"

	defaultTimeout = 30 * time.Second
)

// Config holds configuration for the gateway client. The endpoint, API
// version, sender identifier, and credential are configuration, never
// hard-coded at call sites.
type Config struct {
	// Endpoint overrides the default API URL (useful for testing).
	Endpoint string
	// APIVersion selects the gateway API version, e.g. "v18.0".
	APIVersion string
	// PhoneNumberID identifies the sending phone number registered with
	// the gateway.
	PhoneNumberID string
	// AccessToken is the bearer credential for every call.
	AccessToken string
	// Timeout is the maximum duration for API calls.
	Timeout time.Duration
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.PhoneNumberID == "" {
		return errors.New("gateway: phone_number_id is required")
	}
	if c.AccessToken == "" {
		return errors.New("gateway: access_token is required")
	}
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}

// CloudClient implements Client against a WhatsApp-style Cloud API.
type CloudClient struct {
	cfg    Config
	client HTTPClient
}

// NewCloudClient creates a CloudClient from the given configuration.
// The config must have been validated.
func NewCloudClient(cfg Config, client HTTPClient) *CloudClient {
	return &CloudClient{cfg: cfg, client: client}
}

// messagesURL is the send endpoint for the configured sender.
func (c *CloudClient) messagesURL() string {
	return fmt.Sprintf("%s/%s/%s/messages", c.cfg.Endpoint, c.cfg.APIVersion, c.cfg.PhoneNumberID)
}

// mediaURL is the media upload endpoint for the configured sender.
func (c *CloudClient) mediaURL() string {
	return fmt.Sprintf("%s/%s/%s/media", c.cfg.Endpoint, c.cfg.APIVersion, c.cfg.PhoneNumberID)
}

// sendResponse matches the gateway's send response schema.
type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send delivers one payload via the gateway message send API.
func (c *CloudClient) Send(ctx context.Context, payload *Payload) (*SendResult, error) {
	body, err := json.Marshal(payload.toWire())
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal payload: %w", err)
	}

	resp, err := c.client.Do(&HTTPRequest{
		Method: "POST",
		URL:    c.messagesURL(),
		Headers: map[string]string{
			"Authorization": "Bearer " + c.cfg.AccessToken,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTPError("send", resp.StatusCode, string(resp.Body))
	}

	var sr sendResponse
	if err := json.Unmarshal(resp.Body, &sr); err != nil {
		return nil, fmt.Errorf("gateway: decode send response: %w body=%q", err, string(resp.Body))
	}
	if len(sr.Messages) == 0 || sr.Messages[0].ID == "" {
		return nil, fmt.Errorf("gateway: missing message id in response body=%q", string(resp.Body))
	}

	return &SendResult{
		GatewayMessageID: sr.Messages[0].ID,
		Timestamp:        time.Now(),
	}, nil
}

// uploadResponse matches the gateway's media upload response schema.
type uploadResponse struct {
	ID string `json:"id"`
}

// UploadMedia submits an attachment as multipart form data with the
// messaging product field, returning the gateway-issued media handle.
func (c *CloudClient) UploadMedia(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("gateway: create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("gateway: read attachment: %w", err)
	}
	if err := mw.WriteField("messaging_product", messagingProduct); err != nil {
		return "", fmt.Errorf("gateway: write form field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("gateway: finalize form: %w", err)
	}

	resp, err := c.client.Do(&HTTPRequest{
		Method: "POST",
		URL:    c.mediaURL(),
		Headers: map[string]string{
			"Authorization": "Bearer " + c.cfg.AccessToken,
			"Content-Type":  mw.FormDataContentType(),
		},
		Body: buf.Bytes(),
	})
	if err != nil {
		return "", fmt.Errorf("gateway: upload request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyHTTPError("upload", resp.StatusCode, string(resp.Body))
	}

	var ur uploadResponse
	if err := json.Unmarshal(resp.Body, &ur); err != nil {
		return "", fmt.Errorf("gateway: decode upload response: %w body=%q", err, string(resp.Body))
	}
	if ur.ID == "" {
		return "", fmt.Errorf("gateway: missing media id in response body=%q", string(resp.Body))
	}

	return ur.ID, nil
}
