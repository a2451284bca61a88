package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pixsoft/tienda-backend/internal/cart"
	"github.com/pixsoft/tienda-backend/internal/orders"
	"github.com/pixsoft/tienda-backend/internal/users"
	"github.com/pixsoft/tienda-backend/pkg/config"
	"github.com/pixsoft/tienda-backend/pkg/enums"
	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
	"github.com/pixsoft/tienda-backend/pkg/logger"
	"github.com/pixsoft/tienda-backend/pkg/mercadopago"
	"github.com/pixsoft/tienda-backend/pkg/shipping"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentProvider is the provider surface the reconciliation and preference
// paths need. The webhook payload is never trusted; GetPayment re-fetches
// the authoritative record.
type PaymentProvider interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
	CreatePreference(ctx context.Context, input mercadopago.PreferenceInput) (*mercadopago.Preference, error)
}

// ShippingQuoter returns a live shipping price for a destination.
type ShippingQuoter interface {
	Quote(ctx context.Context, dest shipping.Destination) (decimal.Decimal, error)
}

// Notification is the parsed webhook body.
type Notification struct {
	Type   string
	DataID string
}

// ErrProviderUnavailable marks a failed re-fetch of the authoritative payment
// record. It is the only reconciliation failure worth a provider retry; every
// other outcome is acknowledged.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// Status is the payment view of an order.
type Status struct {
	OrderID          uuid.UUID              `json:"venta_id"`
	OrderNumber      string                 `json:"numero_orden"`
	PaymentState     enums.PaymentState     `json:"estado_pago"`
	FulfillmentState enums.FulfillmentState `json:"estado_orden"`
	PaymentID        *string                `json:"payment_id,omitempty"`
	MPStatus         *string                `json:"mp_status,omitempty"`
	MPStatusDetail   *string                `json:"mp_status_detail,omitempty"`
}

// SummaryInput asks for a no-side-effect checkout quote.
type SummaryInput struct {
	UserID    uuid.UUID
	AddressID uuid.UUID
}

// Summary is the priced cart plus a live shipping quote.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"envio"`
	Tax      decimal.Decimal `json:"iva"`
	Total    decimal.Decimal `json:"total"`
}

// PreferenceResult links the created order with its checkout session.
type PreferenceResult struct {
	OrderID      uuid.UUID `json:"venta_id"`
	OrderNumber  string    `json:"numero_orden"`
	PreferenceID string    `json:"preference_id"`
	InitPoint    string    `json:"init_point"`
}

// Service defines payment reconciliation and checkout-session operations.
type Service interface {
	ProcessNotification(ctx context.Context, notification Notification) error
	CreateCheckoutPreference(ctx context.Context, input orders.CreateInput) (*PreferenceResult, error)
	StatusByOrder(ctx context.Context, orderID, customerID uuid.UUID) (*Status, error)
	StatusByNumber(ctx context.Context, orderNumber string) (*Status, error)
	CheckoutSummary(ctx context.Context, input SummaryInput) (*Summary, error)
}

type service struct {
	repo      orders.Repository
	orders    orders.Service
	carts     cart.Service
	users     users.Repository
	provider  PaymentProvider
	quoter    ShippingQuoter
	addresses AddressResolver
	tx        txRunner
	pricing   config.CheckoutConfig
	fallback  decimal.Decimal
	logg      *logger.Logger
}

// AddressResolver loads a customer-owned address as a quoting destination.
type AddressResolver interface {
	Destination(ctx context.Context, addressID, userID uuid.UUID) (*shipping.Destination, error)
}

// NewService builds the payments service with the required dependencies.
func NewService(
	repo orders.Repository,
	orderSvc orders.Service,
	cartSvc cart.Service,
	userRepo users.Repository,
	provider PaymentProvider,
	quoter ShippingQuoter,
	addresses AddressResolver,
	tx txRunner,
	pricing config.CheckoutConfig,
	shippingCfg config.ShippingConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if cartSvc == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address resolver required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		orders:    orderSvc,
		carts:     cartSvc,
		users:     userRepo,
		provider:  provider,
		quoter:    quoter,
		addresses: addresses,
		tx:        tx,
		pricing:   pricing,
		fallback:  shippingCfg.FallbackPrice,
		logg:      logg,
	}, nil
}

// ProcessNotification reconciles an order against the provider's view of a
// payment. Business anomalies (unknown order, unmapped status, illegal
// transition) are logged and swallowed so the provider stops retrying.
// Failures surface as errors; a failed provider re-fetch is marked with
// ErrProviderUnavailable so the webhook layer can invite a retry for it.
func (s *service) ProcessNotification(ctx context.Context, notification Notification) error {
	if notification.Type != "payment" {
		s.logg.Info(s.logg.WithField(ctx, "notification_type", notification.Type), "ignoring non-payment notification")
		return nil
	}
	if notification.DataID == "" {
		s.logg.Warn(ctx, "payment notification without data id")
		return nil
	}

	payment, err := s.provider.GetPayment(ctx, notification.DataID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("%w: %v", ErrProviderUnavailable, err), "fetch payment from provider")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"payment_id":      payment.ID,
		"provider_status": payment.Status,
	})

	orderID, err := uuid.Parse(payment.ExternalReference)
	if err != nil {
		s.logg.Warn(ctx, "payment carries no usable external reference")
		return nil
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	outcome, ok := MapProviderStatus(payment.Status)
	if !ok {
		s.logg.Warn(ctx, "unmapped provider payment status")
		return nil
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logg.Warn(ctx, "payment references unknown order")
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		updates := map[string]any{
			"payment_id":        payment.ID,
			"mp_status":         payment.Status,
			"mp_status_detail":  payment.StatusDetail,
			"mp_payer_email":    payment.PayerEmail,
			"mp_payment_method": payment.PaymentMethodID,
		}

		if order.PaymentState == outcome.PaymentState {
			// Redelivery of a state we already hold: refresh metadata only.
			if err := repo.UpdateFields(ctx, order.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh payment metadata")
			}
			s.logg.Info(ctx, "payment notification already reconciled")
			return nil
		}

		if !CanTransition(order.PaymentState, outcome.PaymentState) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"current_state": order.PaymentState,
				"mapped_state":  outcome.PaymentState,
			}), "illegal payment transition ignored")
			return nil
		}

		updates["estado_pago"] = outcome.PaymentState
		updates["estado_orden"] = outcome.FulfillmentState

		applied, err := repo.ApplyReconciliation(ctx, order.ID, order.PaymentState, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply reconciliation")
		}
		if !applied {
			s.logg.Warn(ctx, "payment state changed concurrently, notification dropped")
			return nil
		}

		s.logg.Info(s.logg.WithField(ctx, "payment_state", outcome.PaymentState), "payment reconciled")
		return nil
	})
}

// CreateCheckoutPreference assembles the pending order and opens a provider
// checkout session pointing back at it.
func (s *service) CreateCheckoutPreference(ctx context.Context, input orders.CreateInput) (*PreferenceResult, error) {
	order, err := s.orders.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	payerEmail := ""
	if user, uerr := s.users.FindByID(ctx, input.CustomerID); uerr == nil {
		payerEmail = user.Email
	}

	items := make([]mercadopago.PreferenceItem, 0, len(order.Lines)+1)
	for _, line := range order.Lines {
		items = append(items, mercadopago.PreferenceItem{
			ID:        line.ProductID.String(),
			Title:     line.ProductName,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	if order.Shipping.IsPositive() {
		items = append(items, mercadopago.PreferenceItem{
			ID:        "envio",
			Title:     "Costo de envío",
			Quantity:  1,
			UnitPrice: order.Shipping,
		})
	}

	preference, err := s.provider.CreatePreference(ctx, mercadopago.PreferenceInput{
		ExternalReference: order.ID.String(),
		PayerEmail:        payerEmail,
		Items:             items,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout preference")
	}

	return &PreferenceResult{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		PreferenceID: preference.ID,
		InitPoint:    preference.InitPoint,
	}, nil
}

func (s *service) StatusByOrder(ctx context.Context, orderID, customerID uuid.UUID) (*Status, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOwnedByID(ctx, orderID, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &Status{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		PaymentState:     order.PaymentState,
		FulfillmentState: order.FulfillmentState,
		PaymentID:        order.PaymentID,
		MPStatus:         order.MPStatus,
		MPStatusDetail:   order.MPStatusDetail,
	}, nil
}

func (s *service) StatusByNumber(ctx context.Context, orderNumber string) (*Status, error) {
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &Status{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		PaymentState:     order.PaymentState,
		FulfillmentState: order.FulfillmentState,
	}, nil
}

// CheckoutSummary prices the cart plus a live shipping quote without touching
// any state. Quote failures fall back to the configured flat price.
func (s *service) CheckoutSummary(ctx context.Context, input SummaryInput) (*Summary, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}

	view, err := s.carts.Get(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if len(view.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	dest, err := s.addresses.Destination(ctx, input.AddressID, input.UserID)
	if err != nil {
		return nil, err
	}

	shippingFee := s.fallback
	if s.quoter != nil {
		quote, qerr := s.quoter.Quote(ctx, *dest)
		if qerr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", qerr.Error()), "shipping quote failed, using fallback price")
		} else {
			shippingFee = quote
		}
	}

	tax := view.Subtotal.Mul(s.pricing.TaxRate).Round(2)
	return &Summary{
		Subtotal: view.Subtotal,
		Shipping: shippingFee,
		Tax:      tax,
		Total:    view.Subtotal.Add(tax).Add(shippingFee),
	}, nil
}
