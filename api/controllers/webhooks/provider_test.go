package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	providerwebhook "github.com/aboudou-cto-bloko/pixelmart-sub001/internal/webhooks/provider"
	pkgerrors "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/errors"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/provider"
)

const testWebhookSecret = "whsec_test"

func TestProviderWebhook_SuccessAndIdempotent(t *testing.T) {
	payload := buildProviderEvent("transaction.updated", "pay_"+uuid.NewString())
	header := provider.SignPayload(testWebhookSecret, payload)
	service := &fakeProviderWebhookService{}
	guard := newTestGuard(t)
	handler := ProviderWebhook(service, &fakeVerifier{secret: testWebhookSecret}, guard, nil)

	rec := postWebhook(handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	rec2 := postWebhook(handler, payload, header)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", rec2.Code)
	}
	if service.calls != 1 {
		t.Fatalf("redelivery should not reach the service, got %d calls", service.calls)
	}
}

func TestProviderWebhook_TamperedPayloadRejected(t *testing.T) {
	payload := buildProviderEvent("transaction.updated", "pay_"+uuid.NewString())
	header := provider.SignPayload(testWebhookSecret, payload)
	tampered := bytes.Replace(payload, []byte(`"amount":1500`), []byte(`"amount":9999`), 1)
	service := &fakeProviderWebhookService{}
	handler := ProviderWebhook(service, &fakeVerifier{secret: testWebhookSecret}, newTestGuard(t), nil)

	rec := postWebhook(handler, tampered, header)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered payload, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not run on a tampered payload")
	}
}

func TestProviderWebhook_MissingSignatureRejected(t *testing.T) {
	payload := buildProviderEvent("transaction.updated", "pay_"+uuid.NewString())
	service := &fakeProviderWebhookService{}
	handler := ProviderWebhook(service, &fakeVerifier{secret: testWebhookSecret}, newTestGuard(t), nil)

	rec := postWebhook(handler, payload, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not run without a signature")
	}
}

func TestProviderWebhook_MalformedBodyRejected(t *testing.T) {
	payload := []byte(`{"id": "evt_1", "entity":`)
	header := provider.SignPayload(testWebhookSecret, payload)
	handler := ProviderWebhook(&fakeProviderWebhookService{}, &fakeVerifier{secret: testWebhookSecret}, newTestGuard(t), nil)

	rec := postWebhook(handler, payload, header)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestProviderWebhook_HandlerFailureReleasesGuard(t *testing.T) {
	payload := buildProviderEvent("transaction.updated", "pay_"+uuid.NewString())
	header := provider.SignPayload(testWebhookSecret, payload)
	service := &fakeProviderWebhookService{
		err: pkgerrors.New(pkgerrors.CodeDependency, "downstream unavailable"),
	}
	handler := ProviderWebhook(service, &fakeVerifier{secret: testWebhookSecret}, newTestGuard(t), nil)

	rec := postWebhook(handler, payload, header)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on handler failure, got %d", rec.Code)
	}

	// The guard mark was rolled back, so the provider's retry must get
	// through to the service.
	service.err = nil
	rec2 := postWebhook(handler, payload, header)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on retry, got %d", rec2.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected retry to reach the service, got %d calls", service.calls)
	}
}

func postWebhook(handler http.HandlerFunc, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/provider", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func buildProviderEvent(name, reference string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_%s","name":%q,"entity":{"reference":%q,"status":"transferred","amount":1500,"currency":"XOF"}}`,
		uuid.NewString(), name, reference,
	))
}

func newTestGuard(t *testing.T) *providerwebhook.IdempotencyGuard {
	t.Helper()
	guard, err := providerwebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "provider-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

type fakeProviderWebhookService struct {
	calls int
	err   error
}

func (f *fakeProviderWebhookService) HandleEvent(ctx context.Context, event *providerwebhook.ProviderWebhookEvent) error {
	f.calls++
	return f.err
}

type fakeVerifier struct {
	secret string
}

func (v *fakeVerifier) VerifyWebhook(payload []byte, signatureHeader string) bool {
	return provider.VerifySignature(v.secret, payload, signatureHeader)
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("pxm:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
