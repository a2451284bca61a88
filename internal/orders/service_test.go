package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pixsoft/tienda-backend/internal/addresses"
	"github.com/pixsoft/tienda-backend/internal/cart"
	"github.com/pixsoft/tienda-backend/internal/inventory"
	"github.com/pixsoft/tienda-backend/internal/products"
	"github.com/pixsoft/tienda-backend/pkg/config"
	"github.com/pixsoft/tienda-backend/pkg/db/models"
	"github.com/pixsoft/tienda-backend/pkg/enums"
	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
	"github.com/pixsoft/tienda-backend/pkg/logger"
)

type testTxRunner struct {
	db *gorm.DB
}

func (t testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

type testEnv struct {
	db       *gorm.DB
	svc      Service
	customer uuid.UUID
	address  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{},
		&models.Address{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderLine{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	pricing := config.CheckoutConfig{
		TaxRate:               decimal.RequireFromString("0.16"),
		FreeShippingThreshold: decimal.NewFromInt(999),
		FlatShippingFee:       decimal.NewFromInt(50),
	}

	svc, err := NewService(
		NewRepository(db),
		products.NewRepository(db),
		addresses.NewRepository(db),
		inventory.NewAdjuster(),
		NewCartClearer(cart.NewRepository(db)),
		testTxRunner{db: db},
		pricing,
		logg,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	customerID := uuid.New()
	address := models.Address{
		ID:         uuid.New(),
		UserID:     customerID,
		Street:     "Av. Revolución",
		ExtNumber:  "120",
		Suburb:     "Centro",
		City:       "Guadalajara",
		State:      "Jalisco",
		PostalCode: "44100",
		Country:    "MX",
	}
	if err := db.Create(&address).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}

	return &testEnv{db: db, svc: svc, customer: customerID, address: address.ID}
}

func (e *testEnv) seedProduct(t *testing.T, price int64, stock int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:     uuid.New(),
		Name:   "Filamento PLA",
		Price:  decimal.NewFromInt(price),
		Stock:  stock,
		Active: true,
	}
	if err := e.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func (e *testEnv) stock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := e.db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.Stock
}

func TestCreateComputesTotals(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 500, 10)

	order, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !order.Subtotal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("subtotal = %s, want 1000", order.Subtotal)
	}
	if !order.Tax.Equal(decimal.NewFromInt(160)) {
		t.Fatalf("tax = %s, want 160", order.Tax)
	}
	// Subtotal over the free-shipping threshold.
	if !order.Shipping.IsZero() {
		t.Fatalf("shipping = %s, want 0", order.Shipping)
	}
	if !order.Total.Equal(decimal.NewFromInt(1160)) {
		t.Fatalf("total = %s, want 1160", order.Total)
	}
	if order.PaymentState != enums.PaymentStatePending || order.FulfillmentState != enums.FulfillmentStatePending {
		t.Fatalf("unexpected initial states: %s / %s", order.PaymentState, order.FulfillmentState)
	}
	if order.OrderNumber == "" {
		t.Fatal("order number not assigned")
	}
	if got := env.stock(t, productID); got != 8 {
		t.Fatalf("stock = %d, want 8", got)
	}
}

func TestCreateFlatShippingUnderThreshold(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 500, 5)

	order, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCash,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !order.Shipping.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("shipping = %s, want 50", order.Shipping)
	}
	if !order.Total.Equal(decimal.NewFromInt(630)) {
		t.Fatalf("total = %s, want 630", order.Total)
	}
}

func TestCreateShippingQuoteOverride(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 2000, 5)
	quote := decimal.RequireFromString("185.50")

	order, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		ShippingQuote:     &quote,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !order.Shipping.Equal(quote) {
		t.Fatalf("shipping = %s, want %s", order.Shipping, quote)
	}
}

func TestCreateInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	okProduct := env.seedProduct(t, 100, 10)
	scarceProduct := env.seedProduct(t, 100, 1)

	_, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: okProduct, Quantity: 2},
			{ProductID: scarceProduct, Quantity: 5},
		},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	if got := env.stock(t, okProduct); got != 10 {
		t.Fatalf("reservation not rolled back, stock = %d", got)
	}
	var count int64
	if err := env.db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no orders, found %d", count)
	}
}

func TestCreateExcessiveDiscountRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 100, 5)

	_, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.NewFromInt(10000),
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 1},
		},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	if got := env.stock(t, productID); got != 5 {
		t.Fatalf("reservation not rolled back, stock = %d", got)
	}
	var count int64
	if err := env.db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no orders, found %d", count)
	}
}

func TestCreateCompetingCheckoutsLastUnit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 100, 1)

	input := CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 1},
		},
	}

	// The conditional stock update lets exactly one checkout claim the unit.
	if _, err := env.svc.Create(ctx, input); err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	_, err := env.svc.Create(ctx, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for the losing checkout, got %v", err)
	}

	if got := env.stock(t, productID); got != 0 {
		t.Fatalf("stock = %d, want 0", got)
	}
	var count int64
	if err := env.db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one order, found %d", count)
	}
}

func TestCreateLeaseLineSkipsStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 300, 2)
	period := enums.LeasePeriodMonthly
	count := 3
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	order, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodBankTransfer,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 1, IsLease: true, LeasePeriod: &period, LeaseCount: &count, LeaseStart: &start},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if got := env.stock(t, productID); got != 2 {
		t.Fatalf("lease line must not touch stock, got %d", got)
	}
	line := order.Lines[0]
	if line.LeaseEnd == nil || !line.LeaseEnd.Equal(start.AddDate(0, 3, 0)) {
		t.Fatalf("lease end = %v, want %v", line.LeaseEnd, start.AddDate(0, 3, 0))
	}
}

func TestCreateUnknownProduct(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: uuid.New(), Quantity: 1},
		},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateForeignAddressRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 100, 5)

	otherAddress := models.Address{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Street:     "Calle Falsa",
		ExtNumber:  "1",
		Suburb:     "Centro",
		City:       "CDMX",
		State:      "CDMX",
		PostalCode: "01000",
		Country:    "MX",
	}
	if err := env.db.Create(&otherAddress).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}

	_, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: otherAddress.ID,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 1},
		},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateClearsCart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 100, 5)

	item := models.CartItem{
		ID:        uuid.New(),
		UserID:    env.customer,
		ProductID: productID,
		Quantity:  2,
	}
	if err := env.db.Create(&item).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}

	if _, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 2},
		},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	var count int64
	if err := env.db.Model(&models.CartItem{}).Where("usuario_id = ?", env.customer).Count(&count).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	if count != 0 {
		t.Fatalf("cart not cleared, %d items left", count)
	}
}

func TestCancelRestoresStockAndIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 100, 5)

	order, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := env.stock(t, productID); got != 2 {
		t.Fatalf("stock after create = %d, want 2", got)
	}

	cancelled, err := env.svc.Cancel(ctx, order.ID, env.customer)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.FulfillmentState != enums.FulfillmentStateCancelled {
		t.Fatalf("state = %s, want cancelled", cancelled.FulfillmentState)
	}
	if got := env.stock(t, productID); got != 5 {
		t.Fatalf("stock after cancel = %d, want 5", got)
	}

	// A repeated cancel must not release stock again.
	if _, err := env.svc.Cancel(ctx, order.ID, env.customer); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if got := env.stock(t, productID); got != 5 {
		t.Fatalf("stock after second cancel = %d, want 5", got)
	}
}

func TestCancelPaidOrderMarksRefund(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 100, 5)

	order, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("estado_pago", enums.PaymentStatePaid).Error; err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	cancelled, err := env.svc.Cancel(ctx, order.ID, env.customer)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.PaymentState != enums.PaymentStateRefunded {
		t.Fatalf("payment state = %s, want refunded", cancelled.PaymentState)
	}
}

func TestCancelDeliveredOrderRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 100, 5)

	order, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("estado_orden", enums.FulfillmentStateDelivered).Error; err != nil {
		t.Fatalf("mark delivered: %v", err)
	}

	_, err = env.svc.Cancel(ctx, order.ID, env.customer)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

// The cancel write is conditioned on the payment state it observed; a
// reconciliation sneaking in between the read and the write must make the
// cancellation lose instead of silently dropping the refund bookkeeping.
func TestCancelWriteConditionedOnObservedPaymentState(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 100, 5)

	order, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	repo := NewRepository(env.db)
	applied, err := repo.ApplyReconciliation(ctx, order.ID, enums.PaymentStatePending,
		map[string]any{"estado_pago": enums.PaymentStatePaid})
	if err != nil || !applied {
		t.Fatalf("mark paid: applied=%v err=%v", applied, err)
	}

	// A write still keyed on the stale pending state must not land.
	applied, err = repo.ApplyReconciliation(ctx, order.ID, enums.PaymentStatePending,
		map[string]any{"estado_orden": enums.FulfillmentStateCancelled})
	if err != nil {
		t.Fatalf("stale write: %v", err)
	}
	if applied {
		t.Fatal("write keyed on a stale payment state must not apply")
	}

	// Cancel re-reads the paid state and keeps the refund bookkeeping.
	cancelled, err := env.svc.Cancel(ctx, order.ID, env.customer)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.PaymentState != enums.PaymentStateRefunded {
		t.Fatalf("payment state = %s, want refunded", cancelled.PaymentState)
	}
}

func TestUpdatePaymentMethodAfterPaymentRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 100, 5)

	order, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.svc.UpdatePaymentMethod(ctx, order.ID, env.customer, enums.PaymentMethodCash); err != nil {
		t.Fatalf("update while pending: %v", err)
	}

	if err := env.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("estado_pago", enums.PaymentStatePaid).Error; err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	err = env.svc.UpdatePaymentMethod(ctx, order.ID, env.customer, enums.PaymentMethodPayPal)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestDeletePendingRestoresStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 100, 5)

	order, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.svc.DeletePending(ctx, order.ID, env.customer); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got := env.stock(t, productID); got != 5 {
		t.Fatalf("stock = %d, want 5", got)
	}
	var count int64
	if err := env.db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("order not deleted, found %d", count)
	}
}

func TestDeleteNonPendingRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 100, 5)

	order, err := env.svc.Create(ctx, CreateInput{
		CustomerID:        env.customer,
		ShippingAddressID: env.address,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		Discount:          decimal.Zero,
		Lines: []CreateLineInput{
			{ProductID: productID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("estado_orden", enums.FulfillmentStateShipped).Error; err != nil {
		t.Fatalf("mark shipped: %v", err)
	}

	err = env.svc.DeletePending(ctx, order.ID, env.customer)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
