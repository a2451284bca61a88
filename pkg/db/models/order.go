package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pixsoft/tienda-backend/pkg/enums"
)

// Order is a venta row: a confirmed checkout with its payment bookkeeping.
// Column names follow the legacy schema the storefront reports against.
type Order struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string                 `gorm:"column:numero_orden;uniqueIndex;not null"`
	CustomerID        uuid.UUID              `gorm:"column:cliente_id;type:uuid;not null"`
	ShippingAddressID uuid.UUID              `gorm:"column:direccion_envio_id;type:uuid;not null"`
	BillingAddressID  *uuid.UUID             `gorm:"column:direccion_facturacion_id;type:uuid"`
	Subtotal          decimal.Decimal        `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount          decimal.Decimal        `gorm:"column:descuento;type:numeric(12,2);not null;default:0"`
	Shipping          decimal.Decimal        `gorm:"column:envio;type:numeric(12,2);not null;default:0"`
	Tax               decimal.Decimal        `gorm:"column:iva;type:numeric(12,2);not null;default:0"`
	Total             decimal.Decimal        `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod     enums.PaymentMethod    `gorm:"column:metodo_pago;not null"`
	PaymentState      enums.PaymentState     `gorm:"column:estado_pago;not null;default:'pendiente'"`
	FulfillmentState  enums.FulfillmentState `gorm:"column:estado_orden;not null;default:'pendiente'"`
	Notes             *string                `gorm:"column:notas"`
	PaymentID         *string                `gorm:"column:payment_id"`
	MPStatus          *string                `gorm:"column:mp_status"`
	MPStatusDetail    *string                `gorm:"column:mp_status_detail"`
	MPPayerEmail      *string                `gorm:"column:mp_payer_email"`
	MPPaymentMethod   *string                `gorm:"column:mp_payment_method"`
	Lines             []OrderLine            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time              `gorm:"column:fecha_creacion;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:fecha_actualizacion;autoUpdateTime"`
}

// TableName keeps the legacy table name.
func (Order) TableName() string {
	return "ventas"
}
