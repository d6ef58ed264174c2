// Package webhook applies inbound payment provider events to user
// subscriptions and credit balances.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/authorstack/authorstack/internal/config"
	"github.com/authorstack/authorstack/internal/observability/logger"
	userdomain "github.com/authorstack/authorstack/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const SignatureHeader = "Stripe-Signature"

const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
)

// Metadata keys set on checkout sessions and subscriptions when they are
// created.
const (
	MetaUserID  = "user_id"
	MetaTier    = "tier"
	MetaCredits = "credits"
)

var (
	ErrMissingSignature = errors.New("missing_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
)

// Subscription states after which the author falls back to the free tier.
var lapsedStatuses = map[string]struct{}{
	"canceled":           {},
	"unpaid":             {},
	"incomplete_expired": {},
}

// Event is the subset of a Stripe event envelope the receiver reads.
type Event struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Livemode bool   `json:"livemode"`
	Data     struct {
		Object EventObject `json:"object"`
	} `json:"data"`
}

// EventObject covers the checkout session and subscription fields used here.
type EventObject struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func (o EventObject) userID() string {
	if id := strings.TrimSpace(o.Metadata[MetaUserID]); id != "" {
		return id
	}
	return strings.TrimSpace(o.ClientReferenceID)
}

type Ack struct {
	Received bool   `json:"received"`
	EventID  string `json:"event_id,omitempty"`
	Type     string `json:"type,omitempty"`
	Handled  bool   `json:"handled"`
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Features *config.FeaturesHolder `optional:"true"`
	Users    userdomain.Service     `optional:"true"`
}

type Receiver struct {
	log      *zap.Logger
	features *config.FeaturesHolder
	users    userdomain.Service
}

func NewReceiver(p Params) *Receiver {
	return &Receiver{
		log:      p.Log.Named("webhook.stripe"),
		features: p.Features,
		users:    p.Users,
	}
}

var Module = fx.Module("webhook",
	fx.Provide(NewReceiver),
)

// Receive checks the signature header before reading the payload. Events
// that change nothing are still acknowledged so the provider stops retrying
// them; Handled reports whether a user record was written. A store failure
// is returned so the provider redelivers.
func (r *Receiver) Receive(ctx context.Context, signature string, payload []byte) (*Ack, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, ErrMissingSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		return nil, ErrInvalidPayload
	}

	log := logger.WithContext(ctx, r.log).With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.Bool("livemode", event.Livemode),
	)

	handled := false
	if r.paymentsEnabled() {
		var err error
		handled, err = r.apply(ctx, log, event)
		if err != nil {
			log.Error("webhook event failed", zap.Error(err))
			return nil, err
		}
	}

	log.Info("webhook received", zap.Bool("handled", handled))
	return &Ack{
		Received: true,
		EventID:  event.ID,
		Type:     event.Type,
		Handled:  handled,
	}, nil
}

func (r *Receiver) paymentsEnabled() bool {
	if r.users == nil {
		return false
	}
	return r.features == nil || r.features.Get().Payments.Enabled
}

func (r *Receiver) apply(ctx context.Context, log *zap.Logger, event Event) (bool, error) {
	obj := event.Data.Object
	userID := obj.userID()

	switch event.Type {
	case EventCheckoutCompleted:
		if userID == "" {
			log.Warn("checkout session has no user reference")
			return false, nil
		}
		return r.applyCheckout(ctx, log, userID, obj)
	case EventSubscriptionUpdated:
		if userID == "" {
			log.Warn("subscription has no user reference", zap.String("subscription_id", obj.ID))
			return false, nil
		}
		tier := userdomain.Tier(strings.TrimSpace(obj.Metadata[MetaTier]))
		if _, lapsed := lapsedStatuses[obj.Status]; lapsed {
			tier = userdomain.TierFree
		}
		return r.setTier(ctx, log, userID, tier)
	case EventSubscriptionDeleted:
		if userID == "" {
			log.Warn("subscription has no user reference", zap.String("subscription_id", obj.ID))
			return false, nil
		}
		return r.setTier(ctx, log, userID, userdomain.TierFree)
	default:
		// Invoice events are informational; the subscription events that
		// follow them carry the state change.
		return false, nil
	}
}

func (r *Receiver) applyCheckout(ctx context.Context, log *zap.Logger, userID string, obj EventObject) (bool, error) {
	handled := false
	if tier := strings.TrimSpace(obj.Metadata[MetaTier]); tier != "" {
		ok, err := r.setTier(ctx, log, userID, userdomain.Tier(tier))
		if err != nil {
			return false, err
		}
		handled = ok
	}

	raw := strings.TrimSpace(obj.Metadata[MetaCredits])
	if raw == "" {
		return handled, nil
	}
	credits, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || credits <= 0 {
		log.Warn("ignoring invalid credit amount", zap.String("credits", raw))
		return handled, nil
	}
	balance, err := r.users.AddCredits(ctx, userID, credits)
	if errors.Is(err, userdomain.ErrNotFound) {
		log.Warn("credit purchase for unknown user", zap.String("user_id", userID))
		return handled, nil
	}
	if err != nil {
		return false, err
	}
	log.Info("credits purchased", zap.String("user_id", userID), zap.Int64("balance", balance))
	return true, nil
}

func (r *Receiver) setTier(ctx context.Context, log *zap.Logger, userID string, tier userdomain.Tier) (bool, error) {
	if !tier.Valid() {
		log.Warn("ignoring unknown subscription tier", zap.String("tier", string(tier)))
		return false, nil
	}
	if err := r.users.UpdateSubscription(ctx, userID, tier); err != nil {
		return false, err
	}
	return true, nil
}
