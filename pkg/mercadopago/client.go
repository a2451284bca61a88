package mercadopago

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sdkconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/shopspring/decimal"

	"github.com/pixsoft/tienda-backend/pkg/config"
)

// Payment is the provider-side view of a payment, re-fetched by id. The
// reconciliation engine treats this as the source of truth, never the
// webhook payload.
type Payment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	PayerEmail        string
	PaymentMethodID   string
}

// PreferenceItem is one purchasable line on a checkout preference.
type PreferenceItem struct {
	ID        string
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// PreferenceInput carries everything needed to open a checkout.
type PreferenceInput struct {
	ExternalReference string
	PayerEmail        string
	Items             []PreferenceItem
}

// Preference is the created checkout session.
type Preference struct {
	ID        string
	InitPoint string
}

// Client wraps the MercadoPago SDK behind the narrow surface the services use.
type Client struct {
	payments    payment.Client
	preferences preference.Client
	cfg         config.MercadoPagoConfig
}

// New builds a provider client from the configured access token.
func New(cfg config.MercadoPagoConfig) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("mercadopago access token is required")
	}

	sdkCfg, err := sdkconfig.New(cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating mercadopago sdk config: %w", err)
	}

	return &Client{
		payments:    payment.NewClient(sdkCfg),
		preferences: preference.NewClient(sdkCfg),
		cfg:         cfg,
	}, nil
}

// GetPayment re-fetches the authoritative payment record by provider id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return nil, fmt.Errorf("invalid payment id %q: %w", paymentID, err)
	}

	resp, err := c.payments.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching payment %d: %w", id, err)
	}

	return &Payment{
		ID:                strconv.Itoa(resp.ID),
		Status:            resp.Status,
		StatusDetail:      resp.StatusDetail,
		ExternalReference: resp.ExternalReference,
		PayerEmail:        resp.Payer.Email,
		PaymentMethodID:   resp.PaymentMethodID,
	}, nil
}

// CreatePreference opens a checkout session whose external_reference points
// back at the pending order.
func (c *Client) CreatePreference(ctx context.Context, input PreferenceInput) (*Preference, error) {
	if input.ExternalReference == "" {
		return nil, fmt.Errorf("external reference is required")
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("at least one preference item is required")
	}

	items := make([]preference.ItemRequest, 0, len(input.Items))
	for _, item := range input.Items {
		price, _ := item.UnitPrice.Round(2).Float64()
		items = append(items, preference.ItemRequest{
			ID:         item.ID,
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  price,
			CurrencyID: "MXN",
		})
	}

	req := preference.Request{
		Items:               items,
		ExternalReference:   input.ExternalReference,
		NotificationURL:     c.cfg.NotificationURL,
		StatementDescriptor: c.cfg.StatementDescriptor,
	}

	if input.PayerEmail != "" {
		req.Payer = &preference.PayerRequest{Email: input.PayerEmail}
	}

	if c.cfg.SuccessURL != "" || c.cfg.FailureURL != "" || c.cfg.PendingURL != "" {
		req.BackURLs = &preference.BackURLsRequest{
			Success: c.cfg.SuccessURL,
			Failure: c.cfg.FailureURL,
			Pending: c.cfg.PendingURL,
		}
	}

	if c.cfg.PreferenceExpiry > 0 {
		expiry := time.Now().Add(c.cfg.PreferenceExpiry)
		req.Expires = true
		req.ExpirationDateTo = &expiry
	}

	resp, err := c.preferences.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating preference: %w", err)
	}

	return &Preference{
		ID:        resp.ID,
		InitPoint: resp.InitPoint,
	}, nil
}
