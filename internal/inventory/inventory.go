package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
)

// Adjuster applies stock movements with conditional updates so concurrent
// checkouts can never drive stock negative. Both operations run on the
// caller's transaction handle; the caller owns commit and rollback.
type Adjuster struct{}

// NewAdjuster builds the stock adjuster.
func NewAdjuster() *Adjuster {
	return &Adjuster{}
}

// Reserve decrements stock for a purchase line. The update only lands when
// enough stock remains; zero rows affected means the product is missing or
// the shelf is short.
func (a *Adjuster) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction handle is required")
	}
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be positive")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE productos
		SET stock = stock - ?,
			fecha_actualizacion = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, quantity, productID, quantity)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserving stock")
	}
	if res.RowsAffected == 0 {
		exists, err := productExists(ctx, tx, productID)
		if err != nil {
			return err
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{"producto_id": productID, "cantidad": quantity})
	}
	return nil
}

// Release returns stock for a cancelled purchase line.
func (a *Adjuster) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction handle is required")
	}
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release quantity must be positive")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE productos
		SET stock = stock + ?,
			fecha_actualizacion = CURRENT_TIMESTAMP
		WHERE id = ?
	`, quantity, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "releasing stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func productExists(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Table("productos").Where("id = ?", productID).Count(&count).Error; err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking product existence")
	}
	return count > 0, nil
}
