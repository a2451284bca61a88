package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pixsoft/tienda-backend/pkg/enums"
)

// OrderLine snapshots a purchased or leased product at checkout time.
type OrderLine struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID          `gorm:"column:venta_id;type:uuid;not null;index"`
	ProductID   uuid.UUID          `gorm:"column:producto_id;type:uuid;not null"`
	ProductName string             `gorm:"column:nombre_producto;not null"`
	Quantity    int                `gorm:"column:cantidad;not null"`
	UnitPrice   decimal.Decimal    `gorm:"column:precio_unitario;type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal    `gorm:"column:total_linea;type:numeric(12,2);not null"`
	IsLease     bool               `gorm:"column:es_arrendamiento;not null;default:false"`
	LeasePeriod *enums.LeasePeriod `gorm:"column:periodo_arrendamiento"`
	LeaseCount  *int               `gorm:"column:cantidad_periodos"`
	LeaseStart  *time.Time         `gorm:"column:fecha_inicio_arrendamiento"`
	LeaseEnd    *time.Time         `gorm:"column:fecha_fin_arrendamiento"`
	CreatedAt   time.Time          `gorm:"column:fecha_creacion;autoCreateTime"`
}

// TableName keeps the legacy table name.
func (OrderLine) TableName() string {
	return "venta_detalles"
}
