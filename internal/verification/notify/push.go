package notify

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/messaging"
)

// MessageSender is the subset of *messaging.Client used for push delivery.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushSender delivers FCM notifications to shop admin devices.
type PushSender struct {
	client MessageSender
}

// NewPushSender wraps an FCM client.
func NewPushSender(client MessageSender) *PushSender {
	return &PushSender{client: client}
}

// Notify sends title/body with data to every token. It returns the joined
// errors of failed deliveries; a partial failure still delivers the rest.
func (p *PushSender) Notify(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	var errs []error
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if _, err := p.client.Send(ctx, buildMessage(token, title, body, data)); err != nil {
			errs = append(errs, fmt.Errorf("push to %s: %w", truncateToken(token), err))
		}
	}
	return errors.Join(errs...)
}

func buildMessage(token, title, body string, data map[string]string) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "billing_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Sound: "default",
				},
			},
		},
	}
}

func truncateToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
