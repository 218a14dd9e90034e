package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/config"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"
)

var (
	errSecretKeyRequired     = errors.New("provider secret key is required")
	errWebhookSecretRequired = errors.New("provider webhook secret is required")
	errBaseURLRequired       = errors.New("provider base url is required")
	errInvalidProviderEnv    = fmt.Errorf("provider environment must be %q or %q", sandboxEnv, liveEnv)
	errLoggerRequired        = errors.New("provider logger is required")
)

// Client talks to the mobile-money/bank disbursement provider with
// centralized auth, logging, idempotency, and error mapping.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	secretKey     string
	environment   string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient initializes the provider wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.ProviderConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       baseURL,
		secretKey:     secretKey,
		environment:   env,
		webhookSecret: webhookSecret,
		logger:        logg,
	}

	logg.Info(ctx, "payment provider client initialized")
	return c, nil
}

// Environment reports the normalized provider environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the provider webhook secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// NewIdempotencyKey returns a unique key for provider operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "pxm"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// CreatePayout submits a disbursement to the provider. Amounts cross the
// boundary in the provider's unit, converted from internal cents.
func (c *Client) CreatePayout(ctx context.Context, params PayoutCreateParams) (*PayoutResult, error) {
	amount, err := ToProviderAmount(params.AmountCents, params.Currency)
	if err != nil {
		return nil, mapProviderError(&APIError{StatusCode: http.StatusBadRequest, Message: err.Error()}, "create payout")
	}

	body := map[string]any{
		"reference": params.Reference,
		"amount":    amount,
		"currency":  string(params.Currency),
		"mode":      payoutMode(params.Method),
	}
	switch params.Method {
	case enums.PayoutMethodMobileMoney:
		body["phone_number"] = params.PhoneNumber
	case enums.PayoutMethodBankTransfer:
		body["bank_name"] = params.BankName
		body["account_number"] = params.AccountNumber
		body["account_name"] = params.AccountName
	}

	c.log(ctx, "request", "create_payout", map[string]any{
		"reference": params.Reference,
		"amount":    amount,
		"currency":  string(params.Currency),
		"mode":      payoutMode(params.Method),
	})

	var resp struct {
		Transaction Transaction `json:"transaction"`
	}
	idemKey := c.ensureIdempotencyKey("payout.create", params.IdempotencyKey)
	if err := c.do(ctx, http.MethodPost, "/v1/payouts", idemKey, body, &resp); err != nil {
		c.log(ctx, "error", "create_payout", map[string]any{"error": err.Error()})
		return nil, mapProviderError(err, "create payout")
	}

	c.log(ctx, "response", "create_payout", map[string]any{
		"provider_reference": resp.Transaction.Reference,
		"status":             string(resp.Transaction.Status),
	})
	return &PayoutResult{
		ProviderReference: resp.Transaction.Reference,
		Status:            resp.Transaction.Status,
	}, nil
}

// InitializePayment opens a hosted checkout session for a customer
// collection and returns the URL the customer completes it at.
func (c *Client) InitializePayment(ctx context.Context, params PaymentCreateParams) (*PaymentSession, error) {
	amount, err := ToProviderAmount(params.AmountCents, params.Currency)
	if err != nil {
		return nil, mapProviderError(&APIError{StatusCode: http.StatusBadRequest, Message: err.Error()}, "initialize payment")
	}

	body := map[string]any{
		"reference":   params.Reference,
		"amount":      amount,
		"currency":    string(params.Currency),
		"description": params.Description,
	}
	if params.CallbackURL != "" {
		body["callback_url"] = params.CallbackURL
	}

	c.log(ctx, "request", "initialize_payment", map[string]any{
		"reference": params.Reference,
		"amount":    amount,
		"currency":  string(params.Currency),
	})

	var resp struct {
		Transaction Transaction `json:"transaction"`
		CheckoutURL string      `json:"checkout_url"`
	}
	idemKey := c.ensureIdempotencyKey("payment.init", params.IdempotencyKey)
	if err := c.do(ctx, http.MethodPost, "/v1/payments", idemKey, body, &resp); err != nil {
		c.log(ctx, "error", "initialize_payment", map[string]any{"error": err.Error()})
		return nil, mapProviderError(err, "initialize payment")
	}

	c.log(ctx, "response", "initialize_payment", map[string]any{
		"provider_reference": resp.Transaction.Reference,
		"status":             string(resp.Transaction.Status),
	})
	return &PaymentSession{
		ProviderReference: resp.Transaction.Reference,
		CheckoutURL:       resp.CheckoutURL,
		Status:            resp.Transaction.Status,
	}, nil
}

// GetTransaction fetches the provider's current view of a transaction.
func (c *Client) GetTransaction(ctx context.Context, reference string) (*Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, mapProviderError(&APIError{StatusCode: http.StatusBadRequest, Message: "reference is required"}, "get transaction")
	}

	c.log(ctx, "request", "get_transaction", map[string]any{"reference": reference})

	var resp struct {
		Transaction Transaction `json:"transaction"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/"+reference, "", nil, &resp); err != nil {
		c.log(ctx, "error", "get_transaction", map[string]any{"error": err.Error()})
		return nil, mapProviderError(err, "get transaction")
	}

	c.log(ctx, "response", "get_transaction", map[string]any{
		"reference": resp.Transaction.Reference,
		"status":    string(resp.Transaction.Status),
	})
	return &resp.Transaction, nil
}

// VerifyWebhook checks the webhook signature against the configured secret.
func (c *Client) VerifyWebhook(payload []byte, signatureHeader string) bool {
	if c == nil {
		return false
	}
	return VerifySignature(c.webhookSecret, payload, signatureHeader)
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if jsonErr := json.Unmarshal(raw, &payload); jsonErr == nil {
			apiErr.Code = payload.Error.Code
			apiErr.Message = payload.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("provider %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("provider %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"phone", "account", "token", "secret", "email"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func payoutMode(method enums.PayoutMethod) string {
	switch method {
	case enums.PayoutMethodBankTransfer:
		return "bank"
	default:
		return "mobile_money"
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidProviderEnv
	}
}
