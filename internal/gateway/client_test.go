package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"strings"
	"testing"
)

// fakeHTTPClient records the last request and returns a canned response.
type fakeHTTPClient struct {
	lastReq *HTTPRequest
	resp    *HTTPResponse
	err     error
}

func (f *fakeHTTPClient) Do(req *HTTPRequest) (*HTTPResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testConfig() Config {
	cfg := Config{
		PhoneNumberID: "1234567890",
		AccessToken:   "secret-token",
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{PhoneNumberID: "123", AccessToken: "tok"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Endpoint != "https://graph.facebook.com" {
		t.Errorf("expected default endpoint, got %s", cfg.Endpoint)
	}
	if cfg.APIVersion != "v18.0" {
		t.Errorf("expected default api version, got %s", cfg.APIVersion)
	}

	missing := Config{AccessToken: "tok"}
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing phone_number_id")
	}
	missing = Config{PhoneNumberID: "123"}
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing access_token")
	}
}

func TestCloudClient_Send_Success(t *testing.T) {
	fake := &fakeHTTPClient{
		resp: &HTTPResponse{
			StatusCode: 200,
			Body:       []byte(`{"messages":[{"id":"wamid.XYZ"}]}`),
		},
	}
	c := NewCloudClient(testConfig(), fake)

	result, err := c.Send(context.Background(), BuildPayload("hi", "", "", "5511999990001"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.GatewayMessageID != "wamid.XYZ" {
		t.Errorf("expected message id wamid.XYZ, got %s", result.GatewayMessageID)
	}

	if fake.lastReq.Method != "POST" {
		t.Errorf("expected POST, got %s", fake.lastReq.Method)
	}
	wantURL := "https://graph.facebook.com/v18.0/1234567890/messages"
	if fake.lastReq.URL != wantURL {
		t.Errorf("expected URL %s, got %s", wantURL, fake.lastReq.URL)
	}
	if fake.lastReq.Headers["Authorization"] != "Bearer secret-token" {
		t.Errorf("unexpected auth header %q", fake.lastReq.Headers["Authorization"])
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(fake.lastReq.Body, &wire); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	if wire["messaging_product"] != "whatsapp" {
		t.Errorf("expected messaging_product whatsapp, got %v", wire["messaging_product"])
	}
	if wire["to"] != "5511999990001" {
		t.Errorf("expected to 5511999990001, got %v", wire["to"])
	}
}

func TestCloudClient_Send_GatewayError(t *testing.T) {
	fake := &fakeHTTPClient{
		resp: &HTTPResponse{
			StatusCode: 401,
			Body:       []byte(`{"error":{"message":"invalid token"}}`),
		},
	}
	c := NewCloudClient(testConfig(), fake)

	_, err := c.Send(context.Background(), BuildPayload("hi", "", "", "5511999990001"))
	if err == nil {
		t.Fatal("expected error")
	}

	var ge *Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected *gateway.Error, got %T", err)
	}
	if ge.StatusCode != 401 {
		t.Errorf("expected status 401, got %d", ge.StatusCode)
	}
	if ge.Op != "send" {
		t.Errorf("expected op send, got %s", ge.Op)
	}
	if !IsPermanent(err) {
		t.Error("401 should classify as permanent")
	}
}

func TestCloudClient_Send_MissingMessageID(t *testing.T) {
	fake := &fakeHTTPClient{
		resp: &HTTPResponse{StatusCode: 200, Body: []byte(`{"messages":[]}`)},
	}
	c := NewCloudClient(testConfig(), fake)

	if _, err := c.Send(context.Background(), BuildPayload("hi", "", "", "x")); err == nil {
		t.Error("expected error for empty messages array")
	}
}

func TestCloudClient_UploadMedia_Success(t *testing.T) {
	fake := &fakeHTTPClient{
		resp: &HTTPResponse{StatusCode: 200, Body: []byte(`{"id":"media-777"}`)},
	}
	c := NewCloudClient(testConfig(), fake)

	handle, err := c.UploadMedia(context.Background(), "photo.png", strings.NewReader("fake-png-bytes"))
	if err != nil {
		t.Fatalf("UploadMedia: %v", err)
	}
	if handle != "media-777" {
		t.Errorf("expected handle media-777, got %s", handle)
	}

	wantURL := "https://graph.facebook.com/v18.0/1234567890/media"
	if fake.lastReq.URL != wantURL {
		t.Errorf("expected URL %s, got %s", wantURL, fake.lastReq.URL)
	}

	// Parse the multipart body and verify both parts.
	_, params, err := mime.ParseMediaType(fake.lastReq.Headers["Content-Type"])
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	mr := multipart.NewReader(bytes.NewReader(fake.lastReq.Body), params["boundary"])
	form, err := mr.ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}

	if got := form.Value["messaging_product"]; len(got) != 1 || got[0] != "whatsapp" {
		t.Errorf("expected messaging_product whatsapp, got %v", got)
	}
	files := form.File["file"]
	if len(files) != 1 {
		t.Fatalf("expected 1 file part, got %d", len(files))
	}
	if files[0].Filename != "photo.png" {
		t.Errorf("expected filename photo.png, got %s", files[0].Filename)
	}
}

func TestCloudClient_UploadMedia_Error(t *testing.T) {
	fake := &fakeHTTPClient{
		resp: &HTTPResponse{StatusCode: 500, Body: []byte(`upstream exploded`)},
	}
	c := NewCloudClient(testConfig(), fake)

	_, err := c.UploadMedia(context.Background(), "photo.png", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsUploadError(err) {
		t.Errorf("expected upload error, got %v", err)
	}
	if IsPermanent(err) {
		t.Error("5xx upload failure should classify as transient")
	}
}
