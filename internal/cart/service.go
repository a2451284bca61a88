package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pixsoft/tienda-backend/pkg/db/models"
	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Line is a priced cart row ready for display.
type Line struct {
	ProductID   uuid.UUID       `json:"producto_id"`
	ProductName string          `json:"nombre_producto"`
	Quantity    int             `json:"cantidad"`
	UnitPrice   decimal.Decimal `json:"precio_unitario"`
	LineTotal   decimal.Decimal `json:"total_linea"`
	Stock       int             `json:"stock"`
}

// View is the full cart with its running subtotal.
type View struct {
	Lines    []Line          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// AddItemInput captures a product being added to the cart.
type AddItemInput struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// Service defines cart operations.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, input AddItemInput) error
}

type service struct {
	repo     Repository
	products productLoader
	tx       txRunner
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, products productLoader, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, products: products, tx: tx}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	items, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	view := &View{Lines: make([]Line, 0, len(items)), Subtotal: decimal.Zero}
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		unit := item.Product.EffectivePrice()
		lineTotal := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
		view.Lines = append(view.Lines, Line{
			ProductID:   item.ProductID,
			ProductName: item.Product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   unit,
			LineTotal:   lineTotal,
			Stock:       item.Product.Stock,
		})
		view.Subtotal = view.Subtotal.Add(lineTotal)
	}
	return view, nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Active {
		return pkgerrors.New(pkgerrors.CodeConflict, "product is not available")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindItem(ctx, input.UserID, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				item := &models.CartItem{
					ID:        uuid.New(),
					UserID:    input.UserID,
					ProductID: input.ProductID,
					Quantity:  input.Quantity,
				}
				if cerr := repo.Create(ctx, item); cerr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "create cart item")
				}
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		if err := repo.IncrementQuantity(ctx, existing.ID, input.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accumulate cart quantity")
		}
		return nil
	})
}
