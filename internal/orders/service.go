package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pixsoft/tienda-backend/internal/cart"
	"github.com/pixsoft/tienda-backend/internal/products"
	"github.com/pixsoft/tienda-backend/pkg/config"
	"github.com/pixsoft/tienda-backend/pkg/db/models"
	"github.com/pixsoft/tienda-backend/pkg/enums"
	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
	"github.com/pixsoft/tienda-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type addressLoader interface {
	FindOwnedByUser(ctx context.Context, id, userID uuid.UUID) (*models.Address, error)
}

// StockAdjuster moves stock inside the checkout transaction.
type StockAdjuster interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error
}

// CartClearer wipes a customer's cart as part of the checkout transaction.
type CartClearer interface {
	Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

// CreateLineInput is one requested purchase or lease line.
type CreateLineInput struct {
	ProductID   uuid.UUID
	Quantity    int
	IsLease     bool
	LeasePeriod *enums.LeasePeriod
	LeaseCount  *int
	LeaseStart  *time.Time
}

// CreateInput carries a validated checkout request.
type CreateInput struct {
	CustomerID        uuid.UUID
	ShippingAddressID uuid.UUID
	BillingAddressID  *uuid.UUID
	PaymentMethod     enums.PaymentMethod
	Notes             *string
	Discount          decimal.Decimal
	// ShippingQuote overrides the threshold rule when a live quote was taken.
	ShippingQuote *decimal.Decimal
	Lines         []CreateLineInput
}

// StatusUpdateInput is an operator-side fulfillment change.
type StatusUpdateInput struct {
	OrderID uuid.UUID
	Status  enums.FulfillmentState
}

// Service defines order assembly and lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	List(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	Get(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, input StatusUpdateInput) error
	UpdatePaymentMethod(ctx context.Context, orderID, customerID uuid.UUID, method enums.PaymentMethod) error
	DeletePending(ctx context.Context, orderID, customerID uuid.UUID) error
}

type service struct {
	repo      Repository
	products  products.Repository
	addresses addressLoader
	inventory StockAdjuster
	carts     CartClearer
	tx        txRunner
	numbers   *NumberGenerator
	pricing   config.CheckoutConfig
	logg      *logger.Logger
}

// NewService builds the orders service with the required dependencies.
func NewService(
	repo Repository,
	catalog products.Repository,
	addresses addressLoader,
	inventory StockAdjuster,
	carts CartClearer,
	tx txRunner,
	pricing config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address loader required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("stock adjuster required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart clearer required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		products:  catalog,
		addresses: addresses,
		inventory: inventory,
		carts:     carts,
		tx:        tx,
		numbers:   NewNumberGenerator(),
		pricing:   pricing,
		logg:      logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := s.addresses.FindOwnedByUser(ctx, input.ShippingAddressID, input.CustomerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "shipping address not found for customer")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping address")
		}
		if input.BillingAddressID != nil {
			if _, err := s.addresses.FindOwnedByUser(ctx, *input.BillingAddressID, input.CustomerID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "billing address not found for customer")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing address")
			}
		}

		catalog, err := s.loadCatalog(ctx, tx, input.Lines)
		if err != nil {
			return err
		}

		orderID := uuid.New()
		subtotal := decimal.Zero
		lines := make([]models.OrderLine, 0, len(input.Lines))
		for _, req := range input.Lines {
			product := catalog[req.ProductID]

			if !req.IsLease {
				if err := s.inventory.Reserve(ctx, tx, req.ProductID, req.Quantity); err != nil {
					return err
				}
			}

			unit := product.EffectivePrice()
			lineTotal := unit.Mul(decimal.NewFromInt(int64(req.Quantity)))
			subtotal = subtotal.Add(lineTotal)

			line := models.OrderLine{
				ID:          uuid.New(),
				OrderID:     orderID,
				ProductID:   req.ProductID,
				ProductName: product.Name,
				Quantity:    req.Quantity,
				UnitPrice:   unit,
				LineTotal:   lineTotal,
				IsLease:     req.IsLease,
			}
			if req.IsLease {
				line.LeasePeriod = req.LeasePeriod
				line.LeaseCount = req.LeaseCount
				line.LeaseStart = req.LeaseStart
				line.LeaseEnd = leaseEnd(req.LeaseStart, req.LeasePeriod, req.LeaseCount)
			}
			lines = append(lines, line)
		}

		tax := subtotal.Mul(s.pricing.TaxRate).Round(2)
		shipping := s.shippingFee(subtotal, input.ShippingQuote)
		total := subtotal.Add(tax).Add(shipping).Sub(input.Discount)
		if total.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds order total").
				WithDetails(map[string]any{"descuento": input.Discount})
		}

		order := &models.Order{
			ID:                orderID,
			OrderNumber:       s.numbers.Next(time.Now()),
			CustomerID:        input.CustomerID,
			ShippingAddressID: input.ShippingAddressID,
			BillingAddressID:  input.BillingAddressID,
			Subtotal:          subtotal,
			Discount:          input.Discount,
			Shipping:          shipping,
			Tax:               tax,
			Total:             total,
			PaymentMethod:     input.PaymentMethod,
			PaymentState:      enums.PaymentStatePending,
			FulfillmentState:  enums.FulfillmentStatePending,
			Notes:             input.Notes,
		}

		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := repo.CreateLines(ctx, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order lines")
		}
		if err := s.carts.Clear(ctx, tx, input.CustomerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		order.Lines = lines
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, created.ID.String())
	s.logg.Info(ctx, "order created")
	return created, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orders, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) Get(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error) {
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
	return order, nil
}

// Cancel closes an order on the customer's behalf. Repeated cancellations are
// a no-op; delivered orders cannot be cancelled. Stock for purchase lines
// goes back on the shelf inside the same transaction, and paid orders are
// marked for refund.
func (s *service) Cancel(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOwnedByID(ctx, orderID, customerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.FulfillmentState == enums.FulfillmentStateCancelled {
			cancelled = order
			return nil
		}
		if order.FulfillmentState == enums.FulfillmentStateDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivered orders cannot be cancelled")
		}

		updates := map[string]any{"estado_orden": enums.FulfillmentStateCancelled}
		if order.PaymentState == enums.PaymentStatePaid {
			updates["estado_pago"] = enums.PaymentStateRefunded
		}

		// Keyed on the observed payment state so a reconciliation landing
		// between the read and this write cannot skip the refund bookkeeping.
		applied, err := repo.ApplyReconciliation(ctx, order.ID, order.PaymentState, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment state changed, retry the cancellation")
		}

		for _, line := range order.Lines {
			if line.IsLease {
				continue
			}
			if err := s.inventory.Release(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		order.FulfillmentState = enums.FulfillmentStateCancelled
		if order.PaymentState == enums.PaymentStatePaid {
			order.PaymentState = enums.PaymentStateRefunded
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, cancelled.ID.String())
	s.logg.Info(ctx, "order cancelled")
	return cancelled, nil
}

func (s *service) UpdateStatus(ctx context.Context, input StatusUpdateInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.FulfillmentState == input.Status {
			return nil
		}

		if err := repo.UpdateFields(ctx, order.ID, map[string]any{"estado_orden": input.Status}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return nil
	})
}

func (s *service) UpdatePaymentMethod(ctx context.Context, orderID, customerID uuid.UUID, method enums.PaymentMethod) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOwnedByID(ctx, orderID, customerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.PaymentState != enums.PaymentStatePending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment method can only change while payment is pending")
		}

		if err := repo.UpdateFields(ctx, order.ID, map[string]any{"metodo_pago": method}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment method")
		}
		return nil
	})
}

// DeletePending removes an order that never left the pending state, returning
// its reserved stock.
func (s *service) DeletePending(ctx context.Context, orderID, customerID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOwnedByID(ctx, orderID, customerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.FulfillmentState != enums.FulfillmentStatePending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be deleted")
		}

		for _, line := range order.Lines {
			if line.IsLease {
				continue
			}
			if err := s.inventory.Release(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		if err := repo.DeleteLinesByOrder(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order lines")
		}
		if err := repo.DeleteOrder(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		return nil
	})
}

func (s *service) loadCatalog(ctx context.Context, tx *gorm.DB, lines []CreateLineInput) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	products, err := s.products.WithTx(tx).FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	catalog := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		catalog[product.ID] = product
	}
	for _, id := range ids {
		if _, ok := catalog[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found or inactive").
				WithDetails(map[string]any{"producto_id": id})
		}
	}
	return catalog, nil
}

func (s *service) shippingFee(subtotal decimal.Decimal, quote *decimal.Decimal) decimal.Decimal {
	if quote != nil {
		return quote.Round(2)
	}
	if subtotal.GreaterThan(s.pricing.FreeShippingThreshold) {
		return decimal.Zero
	}
	return s.pricing.FlatShippingFee
}

func validateCreateInput(input CreateInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ShippingAddressID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	if input.Discount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	}
	if input.ShippingQuote != nil && input.ShippingQuote.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping quote cannot be negative")
	}
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required on every line")
		}
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if line.IsLease {
			if line.LeasePeriod == nil || !line.LeasePeriod.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, "lease period required on lease lines")
			}
			if line.LeaseCount == nil || *line.LeaseCount <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "lease period count must be positive")
			}
			if line.LeaseStart == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "lease start date required on lease lines")
			}
		}
	}
	return nil
}

func leaseEnd(start *time.Time, period *enums.LeasePeriod, count *int) *time.Time {
	if start == nil || period == nil || count == nil {
		return nil
	}
	var end time.Time
	switch *period {
	case enums.LeasePeriodDaily:
		end = start.AddDate(0, 0, *count)
	case enums.LeasePeriodWeekly:
		end = start.AddDate(0, 0, 7**count)
	case enums.LeasePeriodMonthly:
		end = start.AddDate(0, *count, 0)
	case enums.LeasePeriodYearly:
		end = start.AddDate(*count, 0, 0)
	default:
		return nil
	}
	return &end
}

type cartClearerImpl struct {
	repo cart.Repository
}

// NewCartClearer adapts the cart repository to the checkout transaction.
func NewCartClearer(repo cart.Repository) CartClearer {
	return cartClearerImpl{repo: repo}
}

func (c cartClearerImpl) Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return c.repo.WithTx(tx).DeleteByUser(ctx, userID)
}
