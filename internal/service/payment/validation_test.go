package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/booking-payments/internal/config"
	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/processor"
	"github.com/josh-kwaku/booking-payments/internal/service/reconcile"
)

type mockPaymentRepo struct {
	created    []*domain.Payment
	createErrs []error
	found      *domain.Payment
	findErr    error
}

func (m *mockPaymentRepo) Create(_ context.Context, p *domain.Payment) error {
	m.created = append(m.created, p)
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		return err
	}
	return nil
}

func (m *mockPaymentRepo) Find(_ context.Context, _ domain.PaymentLookup) (*domain.Payment, error) {
	return m.found, m.findErr
}

type mockProcessor struct {
	initReq   *processor.InitializeRequest
	initResp  *processor.Response
	initErr   error
	verifyFor domain.PaymentLookup
	verResp   *processor.Response
	verErr    error
}

func (m *mockProcessor) Initialize(_ context.Context, req processor.InitializeRequest) (*processor.Response, error) {
	m.initReq = &req
	return m.initResp, m.initErr
}

func (m *mockProcessor) Verify(_ context.Context, lookup domain.PaymentLookup) (*processor.Response, error) {
	m.verifyFor = lookup
	return m.verResp, m.verErr
}

type mockEngine struct {
	reconciled []reconcile.Observation
	recorded   []reconcile.Observation
	markedRaw  json.RawMessage
	lookups    []domain.PaymentLookup
	err        error
}

func (m *mockEngine) outcome() *reconcile.Outcome {
	return &reconcile.Outcome{
		Payment: &domain.Payment{ID: uuid.New(), State: domain.PaymentStatePending},
		From:    domain.PaymentStatePending,
		To:      domain.PaymentStatePending,
	}
}

func (m *mockEngine) Reconcile(_ context.Context, lookup domain.PaymentLookup, obs reconcile.Observation) (*reconcile.Outcome, error) {
	m.lookups = append(m.lookups, lookup)
	m.reconciled = append(m.reconciled, obs)
	if m.err != nil {
		return nil, m.err
	}
	return m.outcome(), nil
}

func (m *mockEngine) Record(_ context.Context, lookup domain.PaymentLookup, obs reconcile.Observation) (*reconcile.Outcome, error) {
	m.lookups = append(m.lookups, lookup)
	m.recorded = append(m.recorded, obs)
	return m.outcome(), m.err
}

func (m *mockEngine) MarkFailed(_ context.Context, lookup domain.PaymentLookup, raw json.RawMessage) (*reconcile.Outcome, error) {
	m.lookups = append(m.lookups, lookup)
	m.markedRaw = raw
	return m.outcome(), nil
}

func newTestService(repo *mockPaymentRepo, proc *mockProcessor, engine *mockEngine) *Service {
	return NewService(repo, nil, proc, engine, &config.Config{
		DefaultCurrency:    "ETB",
		PaymentCallbackURL: "https://api.example/callback",
		PaymentReturnURL:   "https://app.example/return",
	})
}

func TestInitiateRequestValidate(t *testing.T) {
	tests := []struct {
		name       string
		req        InitiateRequest
		wantFields []string
	}{
		{
			name: "valid",
			req:  InitiateRequest{BookingReference: "BK1", Amount: decimal.NewFromInt(100), Email: "a@b.com"},
		},
		{
			name:       "everything missing",
			req:        InitiateRequest{},
			wantFields: []string{"booking_reference", "amount", "email"},
		},
		{
			name:       "negative amount",
			req:        InitiateRequest{BookingReference: "BK1", Amount: decimal.NewFromInt(-5), Email: "a@b.com"},
			wantFields: []string{"amount"},
		},
		{
			name:       "blank booking reference",
			req:        InitiateRequest{BookingReference: "   ", Amount: decimal.NewFromInt(1), Email: "a@b.com"},
			wantFields: []string{"booking_reference"},
		},
		{
			name:       "malformed email",
			req:        InitiateRequest{BookingReference: "BK1", Amount: decimal.NewFromInt(1), Email: "not-an-email"},
			wantFields: []string{"email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantFields == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, domain.ErrValidation)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			var got []string
			for _, v := range ve.Violations {
				got = append(got, v.Field)
			}
			assert.Equal(t, tt.wantFields, got)
		})
	}
}

func TestNewMerchantReference(t *testing.T) {
	ref := NewMerchantReference("BK-42")
	require.True(t, strings.HasPrefix(ref, "BK-42-"))

	suffix := strings.TrimPrefix(ref, "BK-42-")
	assert.Len(t, suffix, 8)
	assert.Equal(t, strings.ToLower(suffix), suffix)
	assert.NotEqual(t, ref, NewMerchantReference("BK-42"))
}

func TestInitiate_ValidationCreatesNothing(t *testing.T) {
	repo := &mockPaymentRepo{}
	proc := &mockProcessor{}
	svc := newTestService(repo, proc, &mockEngine{})

	_, err := svc.Initiate(context.Background(), InitiateRequest{BookingReference: "BK1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, repo.created)
	assert.Nil(t, proc.initReq)
}

func TestInitiate_RetriesDuplicateReference(t *testing.T) {
	repo := &mockPaymentRepo{createErrs: []error{domain.ErrDuplicateReference}}
	proc := &mockProcessor{initResp: &processor.Response{Raw: json.RawMessage(`{}`), CheckoutURL: "https://pay/x"}}
	svc := newTestService(repo, proc, &mockEngine{})

	res, err := svc.Initiate(context.Background(), InitiateRequest{
		BookingReference: "BK1", Amount: decimal.NewFromInt(100), Email: "a@b.com",
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 2)
	assert.Equal(t, repo.created[1].MerchantReference, res.MerchantReference)
	assert.Equal(t, res.MerchantReference, proc.initReq.MerchantReference)
}

func TestInitiate_GivesUpAfterRepeatedCollisions(t *testing.T) {
	dup := domain.ErrDuplicateReference
	repo := &mockPaymentRepo{createErrs: []error{dup, dup, dup}}
	proc := &mockProcessor{}
	svc := newTestService(repo, proc, &mockEngine{})

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		BookingReference: "BK1", Amount: decimal.NewFromInt(100), Email: "a@b.com",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)
	assert.Len(t, repo.created, maxReferenceAttempts)
	assert.Nil(t, proc.initReq)
}

func TestInitiate_SendsCheckoutDetails(t *testing.T) {
	repo := &mockPaymentRepo{}
	proc := &mockProcessor{initResp: &processor.Response{
		Raw:           json.RawMessage(`{"data":{"checkout_url":"https://pay/x","id":"ptx_1"}}`),
		CheckoutURL:   "https://pay/x",
		TransactionID: "ptx_1",
	}}
	engine := &mockEngine{}
	svc := newTestService(repo, proc, engine)

	res, err := svc.Initiate(context.Background(), InitiateRequest{
		BookingReference: "BK1", Amount: decimal.RequireFromString("100"), Email: " a@b.com ",
		FirstName: "Abebe", LastName: "Kebede",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://pay/x", res.CheckoutURL)
	assert.Equal(t, "ETB", proc.initReq.Currency)
	assert.Equal(t, "a@b.com", proc.initReq.Email)
	assert.Equal(t, "Payment for booking BK1", proc.initReq.Description)
	assert.Equal(t, "https://api.example/callback", proc.initReq.CallbackURL)
	assert.Equal(t, "https://app.example/return", proc.initReq.ReturnURL)

	require.Len(t, engine.recorded, 1)
	assert.Equal(t, "ptx_1", engine.recorded[0].ProcessorTransactionID)
	assert.Equal(t, domain.ChannelInitiate, engine.recorded[0].Channel)
	assert.Empty(t, engine.reconciled)
}

func TestInitiate_TransportErrorMarksFailed(t *testing.T) {
	repo := &mockPaymentRepo{}
	proc := &mockProcessor{initErr: &processor.TransportError{Op: "Initialize", Message: "connection refused"}}
	engine := &mockEngine{}
	svc := newTestService(repo, proc, engine)

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		BookingReference: "BK1", Amount: decimal.NewFromInt(100), Email: "a@b.com",
	})

	var te *processor.TransportError
	require.True(t, errors.As(err, &te))
	require.NotNil(t, engine.markedRaw)

	var raw map[string]string
	require.NoError(t, json.Unmarshal(engine.markedRaw, &raw))
	assert.Contains(t, raw["error"], "connection refused")
	assert.Empty(t, engine.recorded)
}

func TestVerify_NotFoundHandling(t *testing.T) {
	tests := []struct {
		name    string
		lookup  domain.PaymentLookup
		wantErr bool
	}{
		{"miss by merchant reference returns processor response", domain.ByMerchantReference("BK1-x"), false},
		{"miss by processor id is not found", domain.ByProcessorTransactionID("ptx_404"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &mockProcessor{verResp: &processor.Response{Raw: json.RawMessage(`{"status":"success"}`), Status: "success"}}
			engine := &mockEngine{err: domain.ErrNotFound}
			svc := newTestService(&mockPaymentRepo{}, proc, engine)

			res, err := svc.Verify(context.Background(), tt.lookup)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrNotFound)
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, res)
			assert.Nil(t, res.Payment)
			assert.JSONEq(t, `{"status":"success"}`, string(res.ProcessorResponse))
		})
	}
}

func TestVerify_ClassifiesStatus(t *testing.T) {
	proc := &mockProcessor{verResp: &processor.Response{Raw: json.RawMessage(`{}`), Status: "SUCCESS", TransactionID: "ptx_9"}}
	engine := &mockEngine{}
	svc := newTestService(&mockPaymentRepo{}, proc, engine)

	_, err := svc.Verify(context.Background(), domain.ByMerchantReference("BK1-x"))
	require.NoError(t, err)

	require.Len(t, engine.reconciled, 1)
	assert.Equal(t, domain.SignalSuccess, engine.reconciled[0].Signal)
	assert.Equal(t, domain.ChannelVerify, engine.reconciled[0].Channel)
	assert.Equal(t, "ptx_9", engine.reconciled[0].ProcessorTransactionID)
	assert.Equal(t, domain.ByMerchantReference("BK1-x"), proc.verifyFor)
}

func TestVerify_ZeroLookup(t *testing.T) {
	proc := &mockProcessor{}
	svc := newTestService(&mockPaymentRepo{}, proc, &mockEngine{})

	_, err := svc.Verify(context.Background(), domain.PaymentLookup{})
	assert.ErrorIs(t, err, domain.ErrAmbiguousIdentifier)
	assert.False(t, proc.verifyFor.Valid())
}

func TestHandleCallback_Validation(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"not json", `tx_ref=abc`, "body"},
		{"missing tx_ref", `{"status":"success"}`, "tx_ref"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{}
			svc := newTestService(&mockPaymentRepo{}, &mockProcessor{}, engine)

			_, err := svc.HandleCallback(context.Background(), json.RawMessage(tt.raw))
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Violations[0].Field)
			assert.Empty(t, engine.reconciled)
		})
	}
}

func TestHandleCallback_UsesReferenceAlias(t *testing.T) {
	engine := &mockEngine{}
	svc := newTestService(&mockPaymentRepo{}, &mockProcessor{}, engine)

	_, err := svc.HandleCallback(context.Background(), json.RawMessage(`{"reference":"BK1-abc","status":"cancelled"}`))
	require.NoError(t, err)

	require.Len(t, engine.lookups, 1)
	assert.Equal(t, domain.ByMerchantReference("BK1-abc"), engine.lookups[0])
	assert.Equal(t, domain.SignalFailedOrCancelled, engine.reconciled[0].Signal)
}
