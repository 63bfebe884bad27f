package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// EventPaymentIntentSucceeded is the webhook event that confirms a payment
const EventPaymentIntentSucceeded = "payment_intent.succeeded"

// PaymentIntent is the provider's handle on a pending charge
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// WebhookEvent is a verified provider notification
type WebhookEvent struct {
	ID           string
	Type         string
	IntentID     string
	ClientSecret string
}

// StripeGateway creates payment intents and verifies webhook signatures.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	currency      string
}

// NewStripeGateway creates a Stripe gateway
func NewStripeGateway(secretKey, webhookSecret, currency string) *StripeGateway {
	return &StripeGateway{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		currency:      currency,
	}
}

// CreatePaymentIntent opens an intent for amount minor currency units, tagged with the order id
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amount int64, orderID string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", orderID)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// VerifyWebhook checks the Stripe-Signature header against the raw payload
// and decodes the event. Payment intent fields are filled for payment_intent events.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return verifyStripeWebhook(payload, signature, g.webhookSecret)
}

func verifyStripeWebhook(payload []byte, signature, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, err
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil && len(event.Data.Raw) > 0 {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err == nil {
			out.IntentID = pi.ID
			out.ClientSecret = pi.ClientSecret
		}
	}
	return out, nil
}
