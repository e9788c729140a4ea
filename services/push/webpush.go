// Package pushsvc delivers notification payloads with the Web Push protocol.
package pushsvc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/notification"
)

const ttl = 12 * time.Hour

type WebPusher struct {
	subscriber string
	publicKey  string
	privateKey string
	http       webpush.HTTPClient
}

var _ notification.Pusher = (*WebPusher)(nil)

func NewWebPusher(conf *core.Config) *WebPusher {
	return &WebPusher{
		subscriber: conf.WebPush.Subscriber,
		publicKey:  conf.WebPush.VAPIDPublicKey,
		privateKey: conf.WebPush.VAPIDPrivateKey,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Push returns notification.ErrSubscriptionExpired when the push service answers 404 or 410.
func (p *WebPusher) Push(ctx context.Context, sub notification.Subscription, payload []byte) error {
	if p.privateKey == "" {
		return errors.New("webpush: missing VAPID keys")
	}
	res, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		HTTPClient:      p.http,
		Subscriber:      p.subscriber,
		VAPIDPublicKey:  p.publicKey,
		VAPIDPrivateKey: p.privateKey,
		TTL:             int(ttl.Seconds()),
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return errors.Wrap(err, "sending web push")
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusGone:
		return notification.ErrSubscriptionExpired
	case res.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("webpush: status %d: %s", res.StatusCode, body)
	}
	return nil
}
