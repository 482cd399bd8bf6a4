// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

/*
Package mailer delivers transactional email through the Mailjet Send API (v3.1).

It currently serves a single purpose: delivering the email verification code
that gates account activation.

Core Responsibilities:

  - Delivery: POST /v3.1/send with Basic authentication.
  - Resilience: Bounded request timeout so a slow provider never blocks signup.
  - Silence: Delivery failures are logged and reported as a boolean; the
    provider's error details never leak to API clients.
*/
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// # Client Configuration

const (
	// sendEndpoint is the Mailjet v3.1 transactional send endpoint.
	sendEndpoint = "https://api.mailjet.com/v3.1/send"

	// requestTimeout bounds a single delivery attempt.
	requestTimeout = 10 * time.Second
)

// Client is a Mailjet-backed transactional email sender.
type Client struct {
	apiKey      string
	apiSecret   string
	senderEmail string
	senderName  string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient builds a Mailjet client with the given credentials and sender identity.
func NewClient(apiKey, apiSecret, senderEmail, senderName string, logger *slog.Logger) *Client {
	return &Client{
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		senderEmail: senderEmail,
		senderName:  senderName,
		httpClient:  &http.Client{Timeout: requestTimeout},
		logger:      logger,
	}
}

// # Wire Types

// Mailjet v3.1 payload structure. Only the fields this service uses.

type mailjetParty struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

type mailjetMessage struct {
	From     mailjetParty   `json:"From"`
	To       []mailjetParty `json:"To"`
	Subject  string         `json:"Subject"`
	TextPart string         `json:"TextPart"`
	HTMLPart string         `json:"HTMLPart,omitempty"`
}

type mailjetRequest struct {
	Messages []mailjetMessage `json:"Messages"`
}

// # Delivery

/*
SendVerification delivers a verification code to the given address.

The message states the code's validity window (10 minutes), matching the
window the service enforces when the code is consumed.

Parameters:
  - ctx: Request context; delivery is aborted if it is cancelled.
  - email: Recipient address.
  - displayName: Recipient's display name for the greeting.
  - code: The verification code to include.

Returns:
  - bool: true if Mailjet accepted the message, false on any failure.

Failures are logged but never returned as errors: the caller decides how to
react to a failed delivery (the registration flow rolls back the account).
*/
func (client *Client) SendVerification(ctx context.Context, email, displayName, code string) bool {

	// Compose the message body
	textBody := fmt.Sprintf(
		"Hello %s,\n\nYour TOC Simulator verification code is: %s\n\nThis code expires in 10 minutes. If you did not create an account, you can ignore this email.\n",
		displayName, code,
	)
	htmlBody := fmt.Sprintf(
		"<p>Hello %s,</p><p>Your TOC Simulator verification code is:</p><h2>%s</h2><p>This code expires in 10 minutes. If you did not create an account, you can ignore this email.</p>",
		displayName, code,
	)

	payload := mailjetRequest{
		Messages: []mailjetMessage{{
			From:     mailjetParty{Email: client.senderEmail, Name: client.senderName},
			To:       []mailjetParty{{Email: email, Name: displayName}},
			Subject:  "Verify your TOC Simulator account",
			TextPart: textBody,
			HTMLPart: htmlBody,
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		client.logger.ErrorContext(ctx, "mailer_payload_encode_failed", slog.Any("error", err))
		return false
	}

	// Build the authenticated request
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, sendEndpoint, bytes.NewReader(body))
	if err != nil {
		client.logger.ErrorContext(ctx, "mailer_request_build_failed", slog.Any("error", err))
		return false
	}
	request.Header.Set("Content-Type", "application/json")
	request.SetBasicAuth(client.apiKey, client.apiSecret)

	// Execute the delivery
	response, err := client.httpClient.Do(request)
	if err != nil {
		client.logger.ErrorContext(ctx, "mailer_delivery_failed", slog.Any("error", err))
		return false
	}
	defer func() { _ = response.Body.Close() }()

	// Mailjet returns 200 OK when the batch is accepted
	if response.StatusCode != http.StatusOK {
		client.logger.ErrorContext(ctx, "mailer_delivery_rejected",
			slog.Int("status", response.StatusCode),
		)
		return false
	}

	client.logger.InfoContext(ctx, "mailer_verification_sent")
	return true
}
