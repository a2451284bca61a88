package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pixsoft/tienda-backend/internal/addresses"
	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
	"github.com/pixsoft/tienda-backend/pkg/shipping"
)

type addressResolverImpl struct {
	repo addresses.Repository
}

// NewAddressResolver adapts the addresses repository into a quoting
// destination lookup with ownership enforced.
func NewAddressResolver(repo addresses.Repository) AddressResolver {
	return addressResolverImpl{repo: repo}
}

func (a addressResolverImpl) Destination(ctx context.Context, addressID, userID uuid.UUID) (*shipping.Destination, error) {
	address, err := a.repo.FindOwnedByUser(ctx, addressID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found for customer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return &shipping.Destination{
		PostalCode: address.PostalCode,
		City:       address.City,
		State:      address.State,
	}, nil
}
