package push

import (
	"context"
	"errors"
	"testing"

	"edziennik-backend/internal/components/telemetry"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

func TestEmailAddress(t *testing.T) {
	address, err := EmailAddress(`{"email":"Jan Kowalski <jan@example.com>"}`)
	require.NoError(t, err)
	require.Equal(t, "jan@example.com", address)

	for _, sub := range []string{`{"token":"abc"}`, `{"email":"not an address"}`, `nope`} {
		_, err := EmailAddress(sub)
		require.ErrorIs(t, err, ErrUnsupportedEndpoint, sub)
	}
}

func TestEmailTransport(t *testing.T) {
	transport := NewEmailTransport(EmailOptions{
		Server:  "smtp.example.com",
		Address: "powiadomienia@example.com",
	}, telemetry.NewRecorderAPI())

	var sent []*email.Email
	transport.send = func(m *email.Email) error {
		if m.To[0] == "down@example.com" {
			return errors.New("mailbox unavailable")
		}
		sent = append(sent, m)
		return nil
	}

	payload := Payload{Notification: Notification{Title: "Matematyka - nowa ocena", Body: "5 - Sprawdzian"}}
	reports, err := transport.Send(context.Background(), []Destination{
		{SubscriptionID: 1, Subscription: `{"email":"jan@example.com"}`, Payload: payload},
		{SubscriptionID: 2, Subscription: `{"email":"down@example.com"}`, Payload: payload},
		{SubscriptionID: 3, Subscription: `{"token":"abc"}`, Payload: payload},
	})
	require.NoError(t, err)
	require.True(t, reports[0].Success)
	require.Error(t, reports[1].Err)
	require.ErrorIs(t, reports[2].Err, ErrUnsupportedEndpoint)

	require.Len(t, sent, 1)
	require.Equal(t, "eDziennik <powiadomienia@example.com>", sent[0].From)
	require.Equal(t, "Matematyka - nowa ocena", sent[0].Subject)
	require.Equal(t, "5 - Sprawdzian\n", string(sent[0].Text))
}

func TestRouter(t *testing.T) {
	emails := &fakeTransport{reports: func(batch []Destination) []Report {
		return []Report{{Success: true}}
	}}
	others := &fakeTransport{reports: func(batch []Destination) []Report {
		return []Report{{Err: errors.New("gone"), Unregistered: true}, {Success: true}}
	}}
	router := Router{Email: emails, Fallback: others}

	reports, err := router.Send(context.Background(), []Destination{
		{SubscriptionID: 1, Subscription: `{"token":"a"}`},
		{SubscriptionID: 2, Subscription: `{"email":"jan@example.com"}`},
		{SubscriptionID: 3, Subscription: `{"token":"b"}`},
	})
	require.NoError(t, err)
	require.Equal(t, []Report{
		{Err: errors.New("gone"), Unregistered: true},
		{Success: true},
		{Success: true},
	}, reports)
	require.Equal(t, int64(2), emails.batches[0][0].SubscriptionID)
	require.Len(t, others.batches[0], 2)
}
