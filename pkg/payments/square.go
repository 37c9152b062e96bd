package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/charmforge/charmforge-backend/pkg/config"
	"github.com/charmforge/charmforge-backend/pkg/enums"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
	"github.com/charmforge/charmforge-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("payments logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// SquareGateway charges cards through the Square Payments API.
type SquareGateway struct {
	sdk         *sqclient.Client
	environment string
	currency    string
	logger      *logger.Logger
}

var _ Gateway = (*SquareGateway)(nil)

// NewSquareGateway initializes the Square wrapper and validates the credentials.
func NewSquareGateway(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*SquareGateway, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURLs[env]),
		sqoption.WithToken(accessToken),
	)

	g := &SquareGateway{
		sdk:         sdk,
		environment: env,
		currency:    strings.ToUpper(strings.TrimSpace(cfg.CurrencyISO)),
		logger:      logg,
	}
	if g.currency == "" {
		g.currency = "USD"
	}

	logg.Info(ctx, "square gateway initialized")
	return g, nil
}

// Environment reports the normalized Square environment.
func (g *SquareGateway) Environment() string {
	if g == nil {
		return ""
	}
	return g.environment
}

// ProcessPayment charges the tokenized source for the full order amount.
// A decline comes back as a final PAYMENT_FAILED error; transport failures
// map to retryable codes so the caller's retry loop can take another pass.
func (g *SquareGateway) ProcessPayment(ctx context.Context, req ChargeRequest) (*PaymentResult, error) {
	if strings.TrimSpace(req.Payment.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "charge amount must be positive, got %s", req.Amount)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = g.currency
	}
	amountCents := req.Amount.Shift(2).IntPart()

	sqReq := &sq.CreatePaymentRequest{
		IdempotencyKey: g.ensureIdempotencyKey(req.Payment.IdempotencyKey),
		SourceID:       req.Payment.SourceID,
		AmountMoney: &sq.Money{
			Amount:   &amountCents,
			Currency: currencyPtr(currency),
		},
	}
	if trimmed := strings.TrimSpace(req.OrderNumber); trimmed != "" {
		sqReq.ReferenceID = &trimmed
	}

	logCtx := g.logger.WithFields(ctx, map[string]any{
		"order_number": req.OrderNumber,
		"amount_cents": amountCents,
		"currency":     currency,
	})
	g.logger.Info(logCtx, "square charge requested")

	resp, err := g.sdk.Payments.Create(ctx, sqReq)
	if err != nil {
		g.logger.Error(logCtx, "square charge failed", err)
		return nil, g.mapSquareError(err)
	}

	payment := resp.GetPayment()
	result := &PaymentResult{
		Status:          paymentStatusFrom(stringValue(payment.GetStatus())),
		PaymentIntentID: stringValue(payment.GetID()),
	}
	g.logger.Info(g.logger.WithFields(logCtx, map[string]any{
		"payment_intent_id": result.PaymentIntentID,
		"payment_status":    string(result.Status),
	}), "square charge completed")

	if result.Status == enums.PaymentStatusFailed {
		return result, pkgerrors.Newf(pkgerrors.CodePayment, "payment %s was declined", result.PaymentIntentID)
	}
	return result, nil
}

func (g *SquareGateway) ensureIdempotencyKey(provided string) string {
	if trimmed := strings.TrimSpace(provided); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("cf-%s", uuid.NewString())
}

// mapSquareError folds SDK failures into the domain taxonomy. Declines and
// other 4xx responses are final; 5xx and transport errors stay retryable.
func (g *SquareGateway) mapSquareError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return pkgerrors.Wrap(pkgerrors.CodePayment, err, "payment was not accepted")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment processor unavailable")
	}
	return pkgerrors.Wrap(pkgerrors.CodeTransient, err, "payment request did not complete")
}

func paymentStatusFrom(raw string) enums.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETED", "APPROVED":
		return enums.PaymentStatusSucceeded
	case "FAILED", "CANCELED":
		return enums.PaymentStatusFailed
	default:
		return enums.PaymentStatusPending
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func currencyPtr(code string) *sq.Currency {
	c := sq.Currency(code)
	return &c
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	}
	return "", errInvalidSquareEnv
}
