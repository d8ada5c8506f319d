// Package main provides a standalone CLI tool for submitting messages to
// a running dispatch API server. It posts the same multipart form the web
// client uses, so it exercises the full submit path including attachment
// intake and scheduling.
//
// Usage:
//
//	send-cli --to 5511999990001 --message "Hello"
//	send-cli --to 5511999990001 --to 5511999990002 --message "Hi" --attachment photo.png
//	send-cli --to 5511999990001 --message "Later" --schedule 2026-09-01T10:00:00Z
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type config struct {
	server     string
	message    string
	to         stringSlice
	attachment string
	schedule   string
	timeout    time.Duration
}

// stringSlice implements flag.Value for repeatable --to flags.
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.server, "server", "http://localhost:8080", "dispatch API base URL")
	flag.StringVar(&cfg.message, "message", "", "message text")
	flag.Var(&cfg.to, "to", "recipient phone number (repeatable)")
	flag.StringVar(&cfg.attachment, "attachment", "", "path of a file to attach")
	flag.StringVar(&cfg.schedule, "schedule", "", "RFC 3339 time to defer the send to")
	flag.DurationVar(&cfg.timeout, "timeout", 60*time.Second, "request timeout")
	flag.Parse()
	return cfg
}

type recipient struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

type deliveryResult struct {
	Recipient        recipient `json:"recipient"`
	Success          bool      `json:"success"`
	GatewayMessageID string    `json:"gatewayMessageId"`
	Error            string    `json:"error"`
}

type submitResponse struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	ScheduledAt *time.Time       `json:"scheduledAt"`
	Results     []deliveryResult `json:"results"`
}

func main() {
	cfg := parseFlags()

	if len(cfg.to) == 0 {
		fmt.Fprintln(os.Stderr, "error: at least one --to is required")
		flag.Usage()
		os.Exit(2)
	}
	if cfg.message == "" && cfg.attachment == "" {
		fmt.Fprintln(os.Stderr, "error: --message or --attachment is required")
		flag.Usage()
		os.Exit(2)
	}
	if cfg.schedule != "" {
		if _, err := time.Parse(time.RFC3339, cfg.schedule); err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid --schedule: %v\n", err)
			os.Exit(2)
		}
	}

	fmt.Printf("Dispatch Send Client\n")
	fmt.Printf("  Server:     %s\n", cfg.server)
	fmt.Printf("  Recipients: %s\n", strings.Join(cfg.to, ", "))
	if cfg.attachment != "" {
		fmt.Printf("  Attachment: %s\n", cfg.attachment)
	}
	if cfg.schedule != "" {
		fmt.Printf("  Schedule:   %s\n", cfg.schedule)
	}
	fmt.Println()

	body, contentType, err := buildForm(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: cfg.timeout}
	resp, err := client.Post(cfg.server+"/api/v1/messages", contentType, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: read response: %v\n", err)
		os.Exit(1)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		fmt.Fprintf(os.Stderr, "error: server returned %s: %s\n", resp.Status, strings.TrimSpace(string(raw)))
		os.Exit(1)
	}

	var result submitResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		fmt.Fprintf(os.Stderr, "error: decode response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Message %s: %s\n", result.ID, result.Status)
	if result.ScheduledAt != nil {
		fmt.Printf("  fires at %s\n", result.ScheduledAt.Format(time.RFC3339))
		return
	}

	ok, failed := 0, 0
	for _, r := range result.Results {
		if r.Success {
			ok++
			fmt.Printf("  %-16s OK   %s\n", r.Recipient.Number, r.GatewayMessageID)
		} else {
			failed++
			fmt.Printf("  %-16s FAIL %s\n", r.Recipient.Number, r.Error)
		}
	}
	fmt.Printf("\n%d delivered, %d failed\n", ok, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// buildForm assembles the multipart submit request.
func buildForm(cfg config) (*bytes.Buffer, string, error) {
	recipients := make([]recipient, len(cfg.to))
	for i, n := range cfg.to {
		recipients[i] = recipient{ID: fmt.Sprintf("cli-%d", i+1), Number: n}
	}
	recipientsJSON, err := json.Marshal(recipients)
	if err != nil {
		return nil, "", fmt.Errorf("encode recipients: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("message", cfg.message); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("recipients", string(recipientsJSON)); err != nil {
		return nil, "", err
	}
	if cfg.schedule != "" {
		if err := mw.WriteField("scheduleTime", cfg.schedule); err != nil {
			return nil, "", err
		}
	}

	if cfg.attachment != "" {
		f, err := os.Open(cfg.attachment)
		if err != nil {
			return nil, "", fmt.Errorf("open attachment: %w", err)
		}
		defer f.Close()

		fw, err := mw.CreateFormFile("attachment", filepath.Base(cfg.attachment))
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(fw, f); err != nil {
			return nil, "", fmt.Errorf("read attachment: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
