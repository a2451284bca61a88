package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pixsoft/tienda-backend/pkg/enums"
)

// User is an authenticated actor. Credentials live with the identity
// provider; this row carries the profile fields the store needs.
type User struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email     string     `gorm:"column:email;uniqueIndex;not null"`
	FirstName string     `gorm:"column:nombre;not null"`
	LastName  string     `gorm:"column:apellido;not null"`
	Phone     *string    `gorm:"column:telefono"`
	Role      enums.Role `gorm:"column:rol;not null;default:'cliente'"`
	CreatedAt time.Time  `gorm:"column:fecha_creacion;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:fecha_actualizacion;autoUpdateTime"`
}

// TableName keeps the legacy table name.
func (User) TableName() string {
	return "usuarios"
}
