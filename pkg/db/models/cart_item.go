package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one (customer, product) row in the carrito table. Adding the
// same product again accumulates quantity on the existing row.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:usuario_id;type:uuid;not null;uniqueIndex:idx_carrito_usuario_producto"`
	ProductID uuid.UUID `gorm:"column:producto_id;type:uuid;not null;uniqueIndex:idx_carrito_usuario_producto"`
	Quantity  int       `gorm:"column:cantidad;not null"`
	Product   *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `gorm:"column:fecha_creacion;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:fecha_actualizacion;autoUpdateTime"`
}

// TableName keeps the legacy table name.
func (CartItem) TableName() string {
	return "carrito"
}
