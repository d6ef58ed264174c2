package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/authorstack/authorstack/internal/config"
	userdomain "github.com/authorstack/authorstack/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSignature = "t=1,v1=abc"

type recordingUsers struct {
	userdomain.Service

	tiers   map[string]userdomain.Tier
	credits map[string]int64
	err     error
}

func newRecordingUsers(known ...string) *recordingUsers {
	u := &recordingUsers{tiers: map[string]userdomain.Tier{}, credits: map[string]int64{}}
	for _, id := range known {
		u.credits[id] = 0
	}
	return u
}

func (u *recordingUsers) UpdateSubscription(_ context.Context, userID string, tier userdomain.Tier) error {
	if u.err != nil {
		return u.err
	}
	u.tiers[userID] = tier
	return nil
}

func (u *recordingUsers) AddCredits(_ context.Context, userID string, amount int64) (int64, error) {
	if u.err != nil {
		return 0, u.err
	}
	balance, ok := u.credits[userID]
	if !ok {
		return 0, userdomain.ErrNotFound
	}
	u.credits[userID] = balance + amount
	return u.credits[userID], nil
}

func paymentsOn() *config.FeaturesHolder {
	f := config.DefaultFeatures()
	f.Payments.Enabled = true
	return config.NewStaticFeatures(f)
}

func newReceiver(users userdomain.Service) *Receiver {
	return NewReceiver(Params{Log: zap.NewNop(), Features: paymentsOn(), Users: users})
}

func payload(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":   id,
		"type": eventType,
		"data": map[string]any{"object": object},
	})
	require.NoError(t, err)
	return raw
}

func TestReceiveRejectsMissingSignature(t *testing.T) {
	r := NewReceiver(Params{Log: zap.NewNop()})

	_, err := r.Receive(context.Background(), "  ", []byte(`{"id":"evt_1","type":"checkout.session.completed"}`))
	assert.ErrorIs(t, err, ErrMissingSignature)
}

func TestReceiveRejectsMalformedPayload(t *testing.T) {
	r := NewReceiver(Params{Log: zap.NewNop()})

	_, err := r.Receive(context.Background(), testSignature, []byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = r.Receive(context.Background(), testSignature, []byte(`{"type":"invoice.payment_failed"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestReceiveWithoutPaymentsChangesNothing(t *testing.T) {
	users := newRecordingUsers()
	body := payload(t, "evt_1", EventSubscriptionDeleted, map[string]any{"metadata": map[string]string{MetaUserID: "u1"}})

	for name, r := range map[string]*Receiver{
		"no user service":   NewReceiver(Params{Log: zap.NewNop(), Features: paymentsOn()}),
		"payments disabled": NewReceiver(Params{Log: zap.NewNop(), Features: config.NewStaticFeatures(config.DefaultFeatures()), Users: users}),
	} {
		t.Run(name, func(t *testing.T) {
			ack, err := r.Receive(context.Background(), testSignature, body)
			require.NoError(t, err)
			assert.True(t, ack.Received)
			assert.False(t, ack.Handled)
		})
	}
	assert.Empty(t, users.tiers)
}

func TestSubscriptionUpdatedSetsTier(t *testing.T) {
	users := newRecordingUsers()
	r := newReceiver(users)

	ack, err := r.Receive(context.Background(), testSignature, payload(t, "evt_1", EventSubscriptionUpdated, map[string]any{
		"id":       "sub_1",
		"status":   "active",
		"metadata": map[string]string{MetaUserID: "u1", MetaTier: "professional"},
	}))
	require.NoError(t, err)
	assert.True(t, ack.Handled)
	assert.Equal(t, "evt_1", ack.EventID)
	assert.Equal(t, userdomain.TierProfessional, users.tiers["u1"])
}

func TestLapsedOrDeletedSubscriptionFallsBackToFree(t *testing.T) {
	users := newRecordingUsers()
	r := newReceiver(users)
	ctx := context.Background()

	ack, err := r.Receive(ctx, testSignature, payload(t, "evt_1", EventSubscriptionUpdated, map[string]any{
		"status":   "unpaid",
		"metadata": map[string]string{MetaUserID: "u1", MetaTier: "starter"},
	}))
	require.NoError(t, err)
	assert.True(t, ack.Handled)
	assert.Equal(t, userdomain.TierFree, users.tiers["u1"])

	ack, err = r.Receive(ctx, testSignature, payload(t, "evt_2", EventSubscriptionDeleted, map[string]any{
		"metadata": map[string]string{MetaUserID: "u2"},
	}))
	require.NoError(t, err)
	assert.True(t, ack.Handled)
	assert.Equal(t, userdomain.TierFree, users.tiers["u2"])
}

func TestCheckoutAppliesTierAndCredits(t *testing.T) {
	users := newRecordingUsers("u1")
	r := newReceiver(users)

	ack, err := r.Receive(context.Background(), testSignature, payload(t, "evt_1", EventCheckoutCompleted, map[string]any{
		"client_reference_id": "u1",
		"metadata":            map[string]string{MetaTier: "starter", MetaCredits: "50"},
	}))
	require.NoError(t, err)
	assert.True(t, ack.Handled)
	assert.Equal(t, userdomain.TierStarter, users.tiers["u1"])
	assert.Equal(t, int64(50), users.credits["u1"])
}

func TestUnactionableEventsAreAcknowledgedUnhandled(t *testing.T) {
	users := newRecordingUsers()
	r := newReceiver(users)
	ctx := context.Background()

	cases := map[string][]byte{
		"invoice":            payload(t, "evt_1", EventInvoicePaymentSucceeded, map[string]any{"metadata": map[string]string{MetaUserID: "u1"}}),
		"unknown type":       payload(t, "evt_2", "charge.refunded", nil),
		"no user reference":  payload(t, "evt_3", EventSubscriptionDeleted, map[string]any{"id": "sub_1"}),
		"unknown tier":       payload(t, "evt_4", EventSubscriptionUpdated, map[string]any{"metadata": map[string]string{MetaUserID: "u1", MetaTier: "platinum"}}),
		"credits for ghost":  payload(t, "evt_5", EventCheckoutCompleted, map[string]any{"metadata": map[string]string{MetaUserID: "ghost", MetaCredits: "5"}}),
		"bad credits amount": payload(t, "evt_6", EventCheckoutCompleted, map[string]any{"metadata": map[string]string{MetaUserID: "u1", MetaCredits: "-3"}}),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			ack, err := r.Receive(ctx, testSignature, body)
			require.NoError(t, err)
			assert.True(t, ack.Received)
			assert.False(t, ack.Handled)
		})
	}
	assert.Empty(t, users.tiers)
}

func TestStoreFailureIsReturnedForRedelivery(t *testing.T) {
	boom := errors.New("server selection timeout")
	users := newRecordingUsers()
	users.err = boom
	r := newReceiver(users)

	_, err := r.Receive(context.Background(), testSignature, payload(t, "evt_1", EventSubscriptionDeleted, map[string]any{
		"metadata": map[string]string{MetaUserID: "u1"},
	}))
	assert.ErrorIs(t, err, boom)
}
