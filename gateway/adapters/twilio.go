// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"botfleet/platform/gateway/credit"
	"botfleet/platform/gateway/margin"
)

const (
	// TwilioID is the adapter identifier used for margin rules and rate
	// overrides.
	TwilioID = "twilio"

	// DefaultTwilioBaseURL is the default Twilio API endpoint.
	DefaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"
)

// ErrNoNumbersAvailable is returned when a number search yields nothing.
var ErrNoNumbersAvailable = fmt.Errorf("no phone numbers available")

// Twilio handles telephony and SMS. Billing is asymmetric: outbound calls
// return no billing at initiation because true duration is unknown until
// the status callback reports it, while inbound calls and messages are
// priced immediately from information already in hand.
type Twilio struct {
	accountSID string
	authToken  string
	baseURL    string
	client     HTTPClient
	margins    *margin.Config
	rates      TwilioRates
}

// TwilioRates are the wholesale unit rates for telephony billing.
type TwilioRates struct {
	PerMinute    credit.Credit // Call rate per billed minute
	PerSMS       credit.Credit // Flat rate per plain message
	PerMMS       credit.Credit // Flat rate per message carrying media
	ProvisionFee credit.Credit // One-time fee for provisioning a number
}

// TwilioConfig configures the Twilio adapter.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	BaseURL    string // Optional: defaults to DefaultTwilioBaseURL
	Rates      TwilioRates
}

// NewTwilio creates the adapter.
func NewTwilio(cfg TwilioConfig, client HTTPClient, margins *margin.Config) (*Twilio, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio account SID and auth token are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Twilio{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		baseURL:    cfg.BaseURL,
		client:     client,
		margins:    margins,
		rates:      cfg.Rates,
	}, nil
}

// AuthToken exposes the webhook signing secret for signature verification.
func (a *Twilio) AuthToken() string {
	return a.authToken
}

// CallRequest initiates an outbound call.
type CallRequest struct {
	To             string `json:"to"`
	From           string `json:"from"`
	TwimlURL       string `json:"twiml_url,omitempty"`
	StatusCallback string `json:"status_callback,omitempty"`
}

// Call is the upstream call resource.
type Call struct {
	SID    string `json:"sid"`
	To     string `json:"to"`
	From   string `json:"from"`
	Status string `json:"status"`
}

// SMSRequest sends an SMS or MMS message.
type SMSRequest struct {
	To        string   `json:"to"`
	From      string   `json:"from"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// Message is the upstream message resource.
type Message struct {
	SID    string `json:"sid"`
	To     string `json:"to"`
	From   string `json:"from"`
	Status string `json:"status"`
}

// AvailableNumber is a provisionable phone number.
type AvailableNumber struct {
	PhoneNumber  string `json:"phone_number"`
	FriendlyName string `json:"friendly_name"`
	Region       string `json:"region,omitempty"`
}

// IncomingNumber is a number provisioned to the account.
type IncomingNumber struct {
	SID         string `json:"sid"`
	PhoneNumber string `json:"phone_number"`
}

// StartCall initiates an outbound call. It returns a bare Call, not a
// Result: billing is deferred to the signed status callback because duration
// is unknown at initiation.
func (a *Twilio) StartCall(ctx context.Context, req CallRequest) (*Call, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	if req.TwimlURL != "" {
		form.Set("Url", req.TwimlURL)
	}
	if req.StatusCallback != "" {
		form.Set("StatusCallback", req.StatusCallback)
	}

	var call Call
	if err := a.post(ctx, "/Calls.json", form, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

// BilledMinutes converts call duration to billed minutes: the ceiling of
// seconds over sixty, with any positive duration billed at least one minute.
func BilledMinutes(durationSeconds int) int {
	if durationSeconds <= 0 {
		return 0
	}
	return (durationSeconds + 59) / 60
}

// PriceCall prices a call of known duration: billed minutes at the
// per-minute rate, margin applied through the shared helper. Used both for
// inbound calls (duration known at request time) and for the deferred
// outbound billing path.
func (a *Twilio) PriceCall(durationSeconds int) (cost, charge credit.Credit, minutes int) {
	minutes = BilledMinutes(durationSeconds)
	cost = a.rates.PerMinute.MulRatio(credit.Ratio{Num: int64(minutes), Den: 1})
	charge = margin.WithConfig(cost, a.margins, TwilioID, "voice")
	return cost, charge, minutes
}

// MinimumCallEstimate is the conservative pre-flight estimate for a call:
// one billed minute at the per-minute rate.
func (a *Twilio) MinimumCallEstimate() credit.Credit {
	return a.rates.PerMinute
}

// ProvisionEstimate is the pre-flight estimate for provisioning a number.
func (a *Twilio) ProvisionEstimate() credit.Credit {
	return a.rates.ProvisionFee
}

// PriceMessage prices a message at the flat per-message rate. Media presence
// moves the message to the MMS rate tier.
func (a *Twilio) PriceMessage(hasMedia bool) (cost, charge credit.Credit) {
	cost = a.rates.PerSMS
	if hasMedia {
		cost = a.rates.PerMMS
	}
	charge = margin.WithConfig(cost, a.margins, TwilioID, "messaging")
	return cost, charge
}

// SendSMS sends a message and bills the flat per-message rate.
func (a *Twilio) SendSMS(ctx context.Context, req SMSRequest) (*Result[Message], error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Body", req.Body)
	for _, mediaURL := range req.MediaURLs {
		form.Add("MediaUrl", mediaURL)
	}

	var msg Message
	if err := a.post(ctx, "/Messages.json", form, &msg); err != nil {
		return nil, err
	}

	cost, charge := a.PriceMessage(len(req.MediaURLs) > 0)
	return &Result[Message]{Value: msg, Cost: cost, Charge: charge}, nil
}

// SearchAvailableNumbers lists provisionable numbers, optionally filtered by
// area code.
func (a *Twilio) SearchAvailableNumbers(ctx context.Context, areaCode string) ([]AvailableNumber, error) {
	path := "/AvailablePhoneNumbers/US/Local.json"
	if areaCode != "" {
		path += "?AreaCode=" + url.QueryEscape(areaCode)
	}

	var out struct {
		AvailablePhoneNumbers []AvailableNumber `json:"available_phone_numbers"`
	}
	if err := a.get(ctx, path, &out); err != nil {
		return nil, err
	}
	if len(out.AvailablePhoneNumbers) == 0 {
		return nil, ErrNoNumbersAvailable
	}
	return out.AvailablePhoneNumbers, nil
}

// ProvisionNumber buys a number and bills the one-time provisioning fee.
func (a *Twilio) ProvisionNumber(ctx context.Context, phoneNumber string) (*Result[IncomingNumber], error) {
	form := url.Values{}
	form.Set("PhoneNumber", phoneNumber)

	var num IncomingNumber
	if err := a.post(ctx, "/IncomingPhoneNumbers.json", form, &num); err != nil {
		return nil, err
	}

	cost := a.rates.ProvisionFee
	charge := margin.WithConfig(cost, a.margins, TwilioID, "numbers")
	return &Result[IncomingNumber]{Value: num, Cost: cost, Charge: charge}, nil
}

// ListNumbers lists provisioned numbers. No charge on list.
func (a *Twilio) ListNumbers(ctx context.Context) ([]IncomingNumber, error) {
	var out struct {
		IncomingPhoneNumbers []IncomingNumber `json:"incoming_phone_numbers"`
	}
	if err := a.get(ctx, "/IncomingPhoneNumbers.json", &out); err != nil {
		return nil, err
	}
	return out.IncomingPhoneNumbers, nil
}

// ReleaseNumber releases a provisioned number. No charge.
func (a *Twilio) ReleaseNumber(ctx context.Context, sid string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		a.accountURL("/IncomingPhoneNumbers/"+sid+".json"), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(a.accountSID, a.authToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return transportError(TwilioID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstreamError(TwilioID, resp)
	}
	return nil
}

func (a *Twilio) accountURL(path string) string {
	return a.baseURL + "/Accounts/" + a.accountSID + path
}

func (a *Twilio) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.accountURL(path), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, out)
}

func (a *Twilio) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.accountURL(path), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return a.do(req, out)
}

func (a *Twilio) do(req *http.Request, out interface{}) error {
	req.SetBasicAuth(a.accountSID, a.authToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return transportError(TwilioID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstreamError(TwilioID, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
