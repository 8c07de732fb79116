// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfleet/platform/gateway/credit"
)

func testTwilio(t *testing.T, handler http.HandlerFunc) *Twilio {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := NewTwilio(TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		BaseURL:    srv.URL,
		Rates: TwilioRates{
			PerMinute:    credit.FromCents(2),
			PerSMS:       credit.FromCents(1),
			PerMMS:       credit.FromCents(3),
			ProvisionFee: credit.FromDollars(1.15),
		},
	}, srv.Client(), testMargins())
	require.NoError(t, err)
	return a
}

func TestBilledMinutes(t *testing.T) {
	cases := []struct {
		seconds int
		minutes int
	}{
		{0, 0},
		{1, 1},
		{59, 1},
		{60, 1},
		{61, 2},
		{125, 3},
		{3600, 60},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.minutes, BilledMinutes(tc.seconds), "seconds=%d", tc.seconds)
	}
}

func TestPriceCallRoundsUpToMinutes(t *testing.T) {
	a := testTwilio(t, nil)

	cost, charge, minutes := a.PriceCall(125)
	assert.Equal(t, 3, minutes)
	assert.Equal(t, credit.FromCents(6), cost)
	assert.Equal(t, credit.FromCents(6).MulRatio(credit.MustParseRatio("1.25")), charge)
}

func TestPriceMessageTiers(t *testing.T) {
	a := testTwilio(t, nil)

	smsCost, _ := a.PriceMessage(false)
	mmsCost, _ := a.PriceMessage(true)
	assert.Equal(t, credit.FromCents(1), smsCost)
	assert.Equal(t, credit.FromCents(3), mmsCost)
}

func TestStartCallReturnsNoBilling(t *testing.T) {
	a := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC123/Calls.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15551234567", r.FormValue("To"))

		_ = json.NewEncoder(w).Encode(Call{SID: "CA1", Status: "queued"})
	})

	call, err := a.StartCall(context.Background(), CallRequest{
		To:   "+15551234567",
		From: "+15557654321",
	})
	require.NoError(t, err)
	assert.Equal(t, "CA1", call.SID)
}

func TestSendSMSBillsFlatRate(t *testing.T) {
	a := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Message{SID: "SM1", Status: "queued"})
	})

	res, err := a.SendSMS(context.Background(), SMSRequest{
		To:   "+15551234567",
		From: "+15557654321",
		Body: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, credit.FromCents(1), res.Cost)
}

func TestSendMMSUsesMediaTier(t *testing.T) {
	a := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://example.com/cat.png", r.FormValue("MediaUrl"))
		_ = json.NewEncoder(w).Encode(Message{SID: "SM2"})
	})

	res, err := a.SendSMS(context.Background(), SMSRequest{
		To:        "+15551234567",
		From:      "+15557654321",
		Body:      "look",
		MediaURLs: []string{"https://example.com/cat.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, credit.FromCents(3), res.Cost)
}

func TestSearchAvailableNumbersEmpty(t *testing.T) {
	a := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"available_phone_numbers":[]}`))
	})

	_, err := a.SearchAvailableNumbers(context.Background(), "415")
	assert.True(t, errors.Is(err, ErrNoNumbersAvailable))
}

func TestProvisionNumberBillsFee(t *testing.T) {
	a := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15551234567", r.FormValue("PhoneNumber"))
		_ = json.NewEncoder(w).Encode(IncomingNumber{SID: "PN1", PhoneNumber: "+15551234567"})
	})

	res, err := a.ProvisionNumber(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, credit.FromDollars(1.15), res.Cost)
}

func TestReleaseNumber(t *testing.T) {
	a := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/Accounts/AC123/IncomingPhoneNumbers/PN1.json", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, a.ReleaseNumber(context.Background(), "PN1"))
}
