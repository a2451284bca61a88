package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog row. Stock is mutated only through the inventory
// adjuster's conditional updates.
type Product struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name          string           `gorm:"column:nombre;not null"`
	Description   *string          `gorm:"column:descripcion"`
	Price         decimal.Decimal  `gorm:"column:precio;type:numeric(12,2);not null"`
	DiscountPrice *decimal.Decimal `gorm:"column:precio_descuento;type:numeric(12,2)"`
	Stock         int              `gorm:"column:stock;not null;default:0"`
	Active        bool             `gorm:"column:activo;not null;default:true"`
	Leasable      bool             `gorm:"column:arrendable;not null;default:false"`
	CreatedAt     time.Time        `gorm:"column:fecha_creacion;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:fecha_actualizacion;autoUpdateTime"`
}

// TableName keeps the legacy table name.
func (Product) TableName() string {
	return "productos"
}

// EffectivePrice returns the discount price when one is set, otherwise the
// list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.IsPositive() {
		return *p.DiscountPrice
	}
	return p.Price
}
