package push

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

// Sender delivers one best-effort push message to one device descriptor.
type Sender interface {
	Send(ctx context.Context, token, title, body string) error
}

// FCMSender implements Sender over Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender creates a new FCMSender.
func NewFCMSender(client *messaging.Client) *FCMSender {
	return &FCMSender{client: client}
}

// Send delivers a notification to a single registration token. Delivery is
// at-most-once; FCM gives no useful confirmation beyond the error.
func (s *FCMSender) Send(ctx context.Context, token, title, body string) error {
	_, err := s.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	return err
}
