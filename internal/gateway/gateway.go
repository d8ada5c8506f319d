// Package gateway implements the outbound protocol surface of the dispatch
// engine: the authenticated HTTP client for the messaging gateway's media
// upload and message send endpoints, and the per-recipient payload builder.
package gateway

import (
	"context"
	"io"
	"time"
)

// Client is the messaging gateway as seen by the dispatch engine.
type Client interface {
	// Send delivers one payload to one destination and returns the
	// gateway-issued message id.
	Send(ctx context.Context, payload *Payload) (*SendResult, error)
	// UploadMedia streams an attachment to the gateway's media endpoint
	// and returns the opaque media handle referenced by later sends.
	UploadMedia(ctx context.Context, filename string, r io.Reader) (string, error)
}

// SendResult contains the outcome of a successful send.
type SendResult struct {
	GatewayMessageID string
	Timestamp        time.Time
}

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(req *HTTPRequest) (*HTTPResponse, error)
}

// HTTPRequest represents an outgoing HTTP request.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// HTTPResponse represents an HTTP response from the gateway API.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}
