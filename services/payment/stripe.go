// Package paymentsvc implements donation.PaymentProvider on top of Stripe PaymentIntents.
package paymentsvc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/donation"
)

var errNotConfigured = errors.New("stripe is not configured")

// currencies without minor units
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true, "mga": true,
	"pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true, "xpf": true,
}

type (
	// IntentCreator is the part of the Stripe PaymentIntents client the provider needs.
	IntentCreator interface {
		New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	}

	StripeProvider struct {
		intents       IntentCreator
		webhookSecret string
	}
)

var _ donation.PaymentProvider = (*StripeProvider)(nil)

func NewStripeProvider(conf *core.Config) *StripeProvider {
	var intents IntentCreator
	if conf.Stripe.SecretKey != "" {
		sc := new(client.API)
		sc.Init(conf.Stripe.SecretKey, nil)
		intents = sc.PaymentIntents
	}
	return NewStripeProviderWithClient(intents, conf.Stripe.WebhookSecret)
}

func NewStripeProviderWithClient(intents IntentCreator, webhookSecret string) *StripeProvider {
	return &StripeProvider{intents: intents, webhookSecret: webhookSecret}
}

// MinorUnits converts an amount to the smallest currency unit, e.g. 12.34 usd -> 1234.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimal[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

func (p *StripeProvider) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (donation.Intent, error) {
	if p.intents == nil {
		return donation.Intent{}, errNotConfigured
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(amount, currency)),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.intents.New(params)
	if err != nil {
		return donation.Intent{}, errors.Wrap(err, "creating stripe payment intent")
	}
	return donation.Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// ParseWebhook verifies the Stripe-Signature header and maps the event to a donation.Event.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (donation.Event, error) {
	if p.webhookSecret == "" {
		return donation.Event{}, errNotConfigured
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return donation.Event{}, errors.Wrap(err, "verifying stripe signature")
	}
	return eventFromStripe(evt)
}

func eventFromStripe(evt stripe.Event) (donation.Event, error) {
	switch evt.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return donation.Event{}, errors.Wrap(err, "decoding payment intent")
		}
		typ := donation.EventSucceeded
		if evt.Type == "payment_intent.payment_failed" {
			typ = donation.EventFailed
		}
		return donation.Event{Type: typ, IntentID: pi.ID}, nil

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return donation.Event{}, errors.Wrap(err, "decoding charge")
		}
		if ch.PaymentIntent == nil {
			return donation.Event{Type: donation.EventIgnored}, nil
		}
		return donation.Event{Type: donation.EventRefunded, IntentID: ch.PaymentIntent.ID}, nil
	}
	return donation.Event{Type: donation.EventIgnored}, nil
}
