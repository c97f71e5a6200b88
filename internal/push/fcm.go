package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"edziennik-backend/internal/components/telemetry"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// ErrUnsupportedEndpoint is reported for subscriptions that cannot be
// addressed through FCM.
var ErrUnsupportedEndpoint = errors.New("push: unsupported endpoint")

const (
	fcmHost      = "fcm.googleapis.com"
	fcmBatchSize = 500
)

type FCMTransport struct {
	client *messaging.Client
	tel    telemetry.API
}

func NewFCMTransport(ctx context.Context, credentialsFile string, tel telemetry.API) (FCMTransport, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return FCMTransport{}, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return FCMTransport{}, fmt.Errorf("get messaging client: %w", err)
	}
	return FCMTransport{
		client: client,
		tel:    telemetry.NewScopedAPI("fcm", tel),
	}, nil
}

type subscriptionDescriptor struct {
	Token    string `json:"token"`
	Endpoint string `json:"endpoint"`
}

// RegistrationToken returns the FCM token of a stored subscription, which
// is either {"token": ...} or a browser PushSubscription whose endpoint
// lives on fcm.googleapis.com.
func RegistrationToken(subscription string) (string, error) {
	var desc subscriptionDescriptor
	err := json.Unmarshal([]byte(subscription), &desc)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedEndpoint, err)
	}
	if desc.Token != "" {
		return desc.Token, nil
	}

	endpoint, err := url.Parse(desc.Endpoint)
	if err != nil || endpoint.Hostname() != fcmHost {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEndpoint, desc.Endpoint)
	}
	path := strings.TrimRight(endpoint.Path, "/")
	token := path[strings.LastIndex(path, "/")+1:]
	if token == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEndpoint, desc.Endpoint)
	}
	return token, nil
}

func webpushMessage(token string, payload Payload) *messaging.Message {
	n := payload.Notification
	actions := make([]*messaging.WebpushNotificationAction, len(n.Actions))
	for i, a := range n.Actions {
		actions[i] = &messaging.WebpushNotificationAction{
			Action: a.Action,
			Title:  a.Title,
		}
	}
	return &messaging.Message{
		Token: token,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title:   n.Title,
				Body:    n.Body,
				Icon:    n.Icon,
				Vibrate: n.Vibrate,
				Actions: actions,
				Data:    n.Data,
			},
		},
	}
}

func (t FCMTransport) Send(ctx context.Context, batch []Destination) ([]Report, error) {
	reports := make([]Report, len(batch))

	var messages []*messaging.Message
	var indices []int
	for i, dest := range batch {
		token, err := RegistrationToken(dest.Subscription)
		if err != nil {
			reports[i] = Report{Err: err}
			continue
		}
		messages = append(messages, webpushMessage(token, dest.Payload))
		indices = append(indices, i)
	}

	for start := 0; start < len(messages); start += fcmBatchSize {
		end := min(start+fcmBatchSize, len(messages))
		res, err := t.client.SendEach(ctx, messages[start:end])
		if err != nil {
			return nil, fmt.Errorf("send each: %w", err)
		}
		t.tel.ReportDebug("batch sent", res.SuccessCount, res.FailureCount)

		for j, r := range res.Responses {
			i := indices[start+j]
			if r.Success {
				reports[i] = Report{Success: true}
				continue
			}
			reports[i] = Report{
				Err:          r.Error,
				Unregistered: messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error),
			}
		}
	}

	return reports, nil
}
