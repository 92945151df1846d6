// Package billing pushes priced custody services to Stripe as invoice items.
package billing

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/invoiceitem"

	"github.com/manuchak/detecta-core/config"
	apperrors "github.com/manuchak/detecta-core/internal/errors"
	"github.com/manuchak/detecta-core/internal/logger"
	"github.com/manuchak/detecta-core/internal/pricing"
)

const defaultCurrency = "mxn"

// InvoiceRequest is a priced service to bill. Amount is in currency units.
type InvoiceRequest struct {
	CustomerID string
	Model      pricing.Model
	Km         float64
	Amount     float64
}

// Invoice is the pending invoice item created in Stripe
type Invoice struct {
	ID          string        `json:"id"`
	CustomerID  string        `json:"customer_id"`
	Model       pricing.Model `json:"model"`
	Km          float64       `json:"km"`
	Amount      float64       `json:"amount"`
	AmountCents int64         `json:"amount_cents"`
	Currency    string        `json:"currency"`
}

// Service creates invoice items with its own Stripe client so the global
// stripe.Key is never touched
type Service struct {
	items    invoiceitem.Client
	currency string
}

// NewService returns nil when no secret key is configured
func NewService(cfg config.BillingConfig) *Service {
	if !cfg.BillingEnabled() {
		return nil
	}
	return NewServiceWithBackend(cfg, stripe.GetBackend(stripe.APIBackend))
}

// NewServiceWithBackend uses the given Stripe backend, e.g. one pointed at a
// local server
func NewServiceWithBackend(cfg config.BillingConfig, backend stripe.Backend) *Service {
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	return &Service{
		items:    invoiceitem.Client{B: backend, Key: cfg.StripeSecretKey},
		currency: currency,
	}
}

// ToCents converts a currency amount to the smallest unit, rounding half away
// from zero. Pricing never rounds, so this is the only rounding point.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (r InvoiceRequest) validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return apperrors.ValidationError{Field: "customer_id", Message: "is required"}
	}
	if _, err := pricing.ParseModel(string(r.Model)); err != nil {
		return err
	}
	if math.IsNaN(r.Amount) || r.Amount <= 0 {
		return apperrors.ValidationError{Field: "amount", Message: "must be positive"}
	}
	return nil
}

// CreateInvoiceItem adds a pending invoice item to the customer's next invoice
func (s *Service) CreateInvoiceItem(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	if s == nil {
		return nil, fmt.Errorf("billing: %w", apperrors.ErrNotConfigured)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	cents := ToCents(req.Amount)
	params := &stripe.InvoiceItemParams{
		Customer:    stripe.String(req.CustomerID),
		Amount:      stripe.Int64(cents),
		Currency:    stripe.String(s.currency),
		Description: stripe.String(fmt.Sprintf("Custodia armada %.1f km (%s)", req.Km, req.Model)),
	}
	params.Context = ctx
	params.AddMetadata("model", string(req.Model))
	params.AddMetadata("km", strconv.FormatFloat(req.Km, 'f', -1, 64))

	item, err := s.items.New(params)
	if err != nil {
		logger.WithContext(ctx).Error("Stripe invoice item failed", "customer_id", req.CustomerID, "error", err)
		return nil, fmt.Errorf("create invoice item: %w", err)
	}

	logger.WithContext(ctx).Info("Invoice item created",
		"invoice_item_id", item.ID,
		"customer_id", req.CustomerID,
		"amount_cents", cents,
		"model", req.Model,
	)

	return &Invoice{
		ID:          item.ID,
		CustomerID:  req.CustomerID,
		Model:       req.Model,
		Km:          req.Km,
		Amount:      req.Amount,
		AmountCents: cents,
		Currency:    s.currency,
	}, nil
}
