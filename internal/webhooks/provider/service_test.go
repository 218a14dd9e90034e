package providerwebhook

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/payouts"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/refunds"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/settlement"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/provider"
)

type fakeSettlement struct {
	confirmed []settlement.ConfirmPaymentInput
	failed    []string
	err       error
}

func (f *fakeSettlement) ConfirmPayment(ctx context.Context, input settlement.ConfirmPaymentInput) (*models.VendorOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.confirmed = append(f.confirmed, input)
	return &models.VendorOrder{}, nil
}

func (f *fakeSettlement) FailPayment(ctx context.Context, paymentReference, reason string) (*models.VendorOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.failed = append(f.failed, paymentReference)
	return &models.VendorOrder{}, nil
}

type fakePayouts struct {
	refs []string
	err  error
}

func (f *fakePayouts) HandleProviderResult(ctx context.Context, providerReference string, status provider.Status, failureReason string) (*models.Payout, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.refs = append(f.refs, providerReference)
	return &models.Payout{}, nil
}

type fakeRefunds struct {
	refs []string
	err  error
}

func (f *fakeRefunds) HandleProviderResult(ctx context.Context, refundReference string, status provider.Status, failureReason string) (*models.ReturnRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.refs = append(f.refs, refundReference)
	return &models.ReturnRequest{}, nil
}

func newWebhookService(t *testing.T, stl *fakeSettlement, po *fakePayouts, rf *fakeRefunds) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Settlement: stl,
		Payouts:    po,
		Refunds:    rf,
		Logger:     logger.New(logger.Options{ServiceName: "webhook-test"}),
	})
	require.NoError(t, err)
	return svc
}

func paymentEvent(name, reference string, status provider.Status) *ProviderWebhookEvent {
	return &ProviderWebhookEvent{
		EventID: "evt_1",
		Name:    name,
		Entity: ProviderWebhookEntity{
			Reference: reference,
			Status:    status,
			Amount:    1500,
			Currency:  enums.CurrencyXOF,
			Metadata:  map[string]string{"kind": "payment"},
		},
	}
}

func TestHandleEventConfirmsPayment(t *testing.T) {
	stl := &fakeSettlement{}
	svc := newWebhookService(t, stl, &fakePayouts{}, &fakeRefunds{})

	err := svc.HandleEvent(context.Background(), paymentEvent("transaction.approved", "pay_1", provider.StatusApproved))
	require.NoError(t, err)
	require.Len(t, stl.confirmed, 1)
	assert.Equal(t, "pay_1", stl.confirmed[0].PaymentReference)
	// 1500 XOF francs arrive as 150000 internal cents.
	assert.Equal(t, int64(150000), stl.confirmed[0].AmountCents)
}

func TestHandleEventRejectsNegativeAmount(t *testing.T) {
	stl := &fakeSettlement{}
	svc := newWebhookService(t, stl, &fakePayouts{}, &fakeRefunds{})

	evt := paymentEvent("transaction.approved", "pay_neg", provider.StatusApproved)
	evt.Entity.Amount = -1
	assert.Error(t, svc.HandleEvent(context.Background(), evt))
	assert.Empty(t, stl.confirmed)
}

func TestHandleEventFailsPayment(t *testing.T) {
	stl := &fakeSettlement{}
	svc := newWebhookService(t, stl, &fakePayouts{}, &fakeRefunds{})

	err := svc.HandleEvent(context.Background(), paymentEvent("transaction.declined", "pay_2", provider.StatusDeclined))
	require.NoError(t, err)
	assert.Equal(t, []string{"pay_2"}, stl.failed)
	assert.Empty(t, stl.confirmed)
}

func TestHandleEventRoutesByMetadataKind(t *testing.T) {
	po := &fakePayouts{}
	rf := &fakeRefunds{}
	svc := newWebhookService(t, &fakeSettlement{}, po, rf)

	payoutEvt := paymentEvent("transaction.transferred", "po_1", provider.StatusTransferred)
	payoutEvt.Entity.Metadata["kind"] = "payout"
	require.NoError(t, svc.HandleEvent(context.Background(), payoutEvt))
	assert.Equal(t, []string{"po_1"}, po.refs)

	refundEvt := paymentEvent("transaction.transferred", "rf_1", provider.StatusTransferred)
	refundEvt.Entity.Metadata["kind"] = "refund"
	require.NoError(t, svc.HandleEvent(context.Background(), refundEvt))
	assert.Equal(t, []string{"rf_1"}, rf.refs)
}

func TestHandleEventUnknownPaymentReferenceIsAcknowledged(t *testing.T) {
	stl := &fakeSettlement{err: settlement.ErrOrderNotFound}
	svc := newWebhookService(t, stl, &fakePayouts{}, &fakeRefunds{})

	evt := paymentEvent("transaction.approved", "pay_gone", provider.StatusApproved)
	assert.NoError(t, svc.HandleEvent(context.Background(), evt), "unknown payment references must not trigger provider retries")
}

func TestHandleEventFallsThroughEngines(t *testing.T) {
	stl := &fakeSettlement{err: settlement.ErrOrderNotFound}
	po := &fakePayouts{err: payouts.ErrPayoutNotFound}
	rf := &fakeRefunds{}
	svc := newWebhookService(t, stl, po, rf)

	evt := paymentEvent("transaction.approved", "unknown_kind", provider.StatusApproved)
	evt.Entity.Metadata = nil
	require.NoError(t, svc.HandleEvent(context.Background(), evt))
	assert.Equal(t, []string{"unknown_kind"}, rf.refs)
}

func TestHandleEventUnknownReferenceIsAcknowledged(t *testing.T) {
	stl := &fakeSettlement{err: settlement.ErrOrderNotFound}
	po := &fakePayouts{err: payouts.ErrPayoutNotFound}
	rf := &fakeRefunds{err: refunds.ErrReturnNotFound}
	svc := newWebhookService(t, stl, po, rf)

	evt := paymentEvent("transaction.approved", "nobody_home", provider.StatusApproved)
	evt.Entity.Metadata = nil
	assert.NoError(t, svc.HandleEvent(context.Background(), evt), "unmatched references must not trigger provider retries")
}

func TestHandleEventIgnoresPendingAndForeignEvents(t *testing.T) {
	stl := &fakeSettlement{}
	svc := newWebhookService(t, stl, &fakePayouts{}, &fakeRefunds{})

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent("transaction.pending", "pay_3", provider.StatusPending)))
	require.NoError(t, svc.HandleEvent(context.Background(), &ProviderWebhookEvent{Name: "customer.created"}))
	assert.Empty(t, stl.confirmed)
	assert.Empty(t, stl.failed)
}

func TestHandleEventValidation(t *testing.T) {
	svc := newWebhookService(t, &fakeSettlement{}, &fakePayouts{}, &fakeRefunds{})

	assert.Error(t, svc.HandleEvent(context.Background(), nil))
	assert.Error(t, svc.HandleEvent(context.Background(), &ProviderWebhookEvent{Name: "transaction.approved"}))
}
