// Package telephony places outbound calls.
package telephony

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var (
	// ErrNoPhoneNumber is returned when neither the request nor the
	// configuration names a number to call.
	ErrNoPhoneNumber = errors.New("no phone number available")

	// ErrNotConfigured is returned when provider credentials are missing.
	ErrNotConfigured = errors.New("telephony provider not configured")
)

// Dialer originates a call to a number and points it at webhookURL.
// It returns the provider's call identifier.
type Dialer interface {
	Originate(ctx context.Context, to, webhookURL string) (string, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, to, webhookURL string) (string, error)

// Originate implements Dialer.
func (f DialerFunc) Originate(ctx context.Context, to, webhookURL string) (string, error) {
	return f(ctx, to, webhookURL)
}

// TwilioConfig holds the Twilio account settings.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioDialer places calls through the Twilio REST API.
type TwilioDialer struct {
	client *twilio.RestClient
	from   string
}

var _ Dialer = (*TwilioDialer)(nil)

// NewTwilioDialer creates a dialer for the account.
func NewTwilioDialer(cfg TwilioConfig) (*TwilioDialer, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, ErrNotConfigured
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioDialer{client: client, from: cfg.FromNumber}, nil
}

// Originate implements Dialer.
func (d *TwilioDialer) Originate(ctx context.Context, to, webhookURL string) (string, error) {
	if to == "" {
		return "", ErrNoPhoneNumber
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(d.from)
	params.SetUrl(webhookURL)
	params.SetMethod("POST")

	resp, err := d.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("create call: %w", err)
	}
	if resp.Sid == nil {
		return "", errors.New("create call: response has no call sid")
	}

	log.Info().Str("callSid", *resp.Sid).Str("to", to).Msg("Call originated")
	return *resp.Sid, nil
}
