package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a customer-owned shipping or billing address.
type Address struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:usuario_id;type:uuid;not null;index"`
	Street     string    `gorm:"column:calle;not null"`
	ExtNumber  string    `gorm:"column:numero_exterior;not null"`
	IntNumber  *string   `gorm:"column:numero_interior"`
	Suburb     string    `gorm:"column:colonia;not null"`
	City       string    `gorm:"column:ciudad;not null"`
	State      string    `gorm:"column:estado;not null"`
	PostalCode string    `gorm:"column:codigo_postal;not null"`
	Country    string    `gorm:"column:pais;not null;default:'MX'"`
	CreatedAt  time.Time `gorm:"column:fecha_creacion;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:fecha_actualizacion;autoUpdateTime"`
}

// TableName keeps the legacy table name.
func (Address) TableName() string {
	return "direcciones"
}
