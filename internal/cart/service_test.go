package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pixsoft/tienda-backend/internal/products"
	"github.com/pixsoft/tienda-backend/pkg/db/models"
	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
)

type testTxRunner struct {
	db *gorm.DB
}

func (t testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.CartItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc, err := NewService(NewRepository(db), products.NewRepository(db), testTxRunner{db: db})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func seedProduct(t *testing.T, db *gorm.DB, price int64, discount *decimal.Decimal, active bool) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:            uuid.New(),
		Name:          "Kit Arduino",
		Price:         decimal.NewFromInt(price),
		DiscountPrice: discount,
		Stock:         10,
		Active:        active,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func TestAddItemCreatesRow(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := seedProduct(t, db, 250, nil, true)

	if err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: productID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	view, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if !view.Subtotal.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("subtotal = %s, want 500", view.Subtotal)
	}
}

func TestAddItemAccumulatesQuantity(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := seedProduct(t, db, 100, nil, true)

	if err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: productID, Quantity: 1}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: productID, Quantity: 3}); err != nil {
		t.Fatalf("second add: %v", err)
	}

	view, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("expected one accumulated line, got %d", len(view.Lines))
	}
	if view.Lines[0].Quantity != 4 {
		t.Fatalf("quantity = %d, want 4", view.Lines[0].Quantity)
	}
}

func TestAddItemInactiveProduct(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 100, nil, false)

	err := svc.AddItem(ctx, AddItemInput{UserID: uuid.New(), ProductID: productID, Quantity: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: uuid.New(), Quantity: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetPricesWithDiscount(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	discount := decimal.NewFromInt(80)
	productID := seedProduct(t, db, 100, &discount, true)

	if err := svc.AddItem(ctx, AddItemInput{UserID: userID, ProductID: productID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	view, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !view.Lines[0].UnitPrice.Equal(discount) {
		t.Fatalf("unit price = %s, want discount 80", view.Lines[0].UnitPrice)
	}
	if !view.Subtotal.Equal(decimal.NewFromInt(160)) {
		t.Fatalf("subtotal = %s, want 160", view.Subtotal)
	}
}
