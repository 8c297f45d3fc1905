// Package push delivers web push notifications to subscribed browsers.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/choreboard/choreboard/internal/model"
)

// ErrExpired means the push service no longer knows the subscription and it
// should be deleted.
var ErrExpired = errors.New("push subscription expired")

// defaultTTL is how long the push service holds an undelivered message.
const defaultTTL = 24 * 60 * 60

// topicPattern matches what push services accept as a Topic header. Messages
// sharing a topic replace each other while the device is offline.
var topicPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// Payload is the JSON the service worker receives.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Service signs and sends messages with the family server's VAPID key pair.
type Service struct {
	publicKey  string
	privateKey string
	subscriber string
	client     webpush.HTTPClient
}

// NewService returns nil when no key pair is configured, which disables push.
func NewService(publicKey, privateKey, subscriber string) *Service {
	if publicKey == "" || privateKey == "" {
		return nil
	}
	if subscriber == "" {
		subscriber = "mailto:noreply@choreboard.local"
	}
	return &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
	}
}

func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send delivers payload to one subscription. ErrExpired is returned for
// 404 and 410 answers.
func (s *Service) Send(ctx context.Context, sub model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	opts := &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             defaultTTL,
		Urgency:         webpush.UrgencyNormal,
	}
	if topicPattern.MatchString(payload.Tag) {
		opts.Topic = payload.Tag
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
	}
	resp, err := webpush.SendNotificationWithContext(ctx, data, target, opts)
	if err != nil {
		return fmt.Errorf("send push to subscription %d: %w", sub.ID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push service answered %d: %s", resp.StatusCode, body)
	}
	return nil
}

// GenerateVAPIDKeys returns a fresh P-256 key pair, both halves base64url
// encoded without padding.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate vapid keys: %w", err)
	}
	return publicKey, privateKey, nil
}
