package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"

	"edziennik-backend/internal/components/telemetry"

	"github.com/jordan-wright/email"
)

type EmailOptions struct {
	Server   string
	Port     int
	Address  string
	Password string
	// SenderName is shown in the From header.
	SenderName string
}

// EmailTransport delivers notifications to {"email": "..."} subscriptions
// over smtp.
type EmailTransport struct {
	opts EmailOptions
	send func(m *email.Email) error
	tel  telemetry.API
}

func NewEmailTransport(opts EmailOptions, tel telemetry.API) EmailTransport {
	if opts.Port == 0 {
		opts.Port = 587
	}
	if opts.SenderName == "" {
		opts.SenderName = "eDziennik"
	}
	t := EmailTransport{opts: opts, tel: telemetry.NewScopedAPI("email", tel)}
	t.send = t.sendSmtp
	return t
}

func (t EmailTransport) sendSmtp(m *email.Email) error {
	addr := fmt.Sprintf("%s:%d", t.opts.Server, t.opts.Port)
	err := m.Send(addr, smtp.PlainAuth("", t.opts.Address, t.opts.Password, t.opts.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		return m.Send(addr, nil)
	}
	return err
}

type emailDescriptor struct {
	Email string `json:"email"`
}

// EmailAddress returns the address of an email subscription.
func EmailAddress(subscription string) (string, error) {
	var desc emailDescriptor
	err := json.Unmarshal([]byte(subscription), &desc)
	if err != nil || desc.Email == "" {
		return "", ErrUnsupportedEndpoint
	}
	address, err := mail.ParseAddress(desc.Email)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedEndpoint, err)
	}
	return address.Address, nil
}

func (t EmailTransport) message(to string, n Notification) *email.Email {
	m := email.NewEmail()
	m.From = fmt.Sprintf("%s <%s>", t.opts.SenderName, t.opts.Address)
	m.To = []string{to}
	m.Subject = n.Title
	m.Text = []byte(n.Body + "\n")
	return m
}

func (t EmailTransport) Send(ctx context.Context, batch []Destination) ([]Report, error) {
	reports := make([]Report, len(batch))
	for i, dest := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		to, err := EmailAddress(dest.Subscription)
		if err != nil {
			reports[i] = Report{Err: err}
			continue
		}
		err = t.send(t.message(to, dest.Payload.Notification))
		if err != nil {
			t.tel.ReportWarning(report_dispatcher_send, err, dest.SubscriptionID)
			reports[i] = Report{Err: err}
			continue
		}
		reports[i] = Report{Success: true}
	}
	return reports, nil
}

// Router sends email subscriptions through the email transport and every
// other subscription through the fallback.
type Router struct {
	Email    Transport
	Fallback Transport
}

func isEmailSubscription(subscription string) bool {
	_, err := EmailAddress(subscription)
	return err == nil
}

func (r Router) Send(ctx context.Context, batch []Destination) ([]Report, error) {
	var emails, others []Destination
	var emailIdx, otherIdx []int
	for i, dest := range batch {
		if isEmailSubscription(dest.Subscription) {
			emails = append(emails, dest)
			emailIdx = append(emailIdx, i)
			continue
		}
		others = append(others, dest)
		otherIdx = append(otherIdx, i)
	}

	reports := make([]Report, len(batch))
	parts := []struct {
		transport Transport
		batch     []Destination
		indices   []int
	}{
		{r.Email, emails, emailIdx},
		{r.Fallback, others, otherIdx},
	}
	for _, part := range parts {
		if len(part.batch) == 0 {
			continue
		}
		res, err := part.transport.Send(ctx, part.batch)
		if err != nil {
			return nil, err
		}
		for j, report := range res {
			reports[part.indices[j]] = report
		}
	}
	return reports, nil
}
