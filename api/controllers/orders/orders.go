package orders

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pixsoft/tienda-backend/api/middleware"
	"github.com/pixsoft/tienda-backend/api/responses"
	"github.com/pixsoft/tienda-backend/api/validators"
	internalorders "github.com/pixsoft/tienda-backend/internal/orders"
	"github.com/pixsoft/tienda-backend/pkg/enums"
	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
	"github.com/pixsoft/tienda-backend/pkg/logger"
)

type checkoutLineRequest struct {
	ProductID   uuid.UUID  `json:"producto_id" validate:"required"`
	Quantity    int        `json:"cantidad" validate:"required,min=1"`
	IsLease     bool       `json:"es_arrendamiento"`
	LeasePeriod *string    `json:"periodo_arrendamiento,omitempty"`
	LeaseCount  *int       `json:"cantidad_periodos,omitempty"`
	LeaseStart  *time.Time `json:"fecha_inicio,omitempty"`
	// Accepted for compatibility; the end date is always derived from the
	// period and count.
	LeaseEnd *time.Time `json:"fecha_fin,omitempty"`
}

type checkoutRequest struct {
	ShippingAddressID uuid.UUID             `json:"direccion_envio_id" validate:"required"`
	BillingAddressID  *uuid.UUID            `json:"direccion_facturacion_id,omitempty"`
	PaymentMethod     string                `json:"metodo_pago" validate:"required"`
	Notes             *string               `json:"notas,omitempty"`
	Discount          *decimal.Decimal      `json:"descuento,omitempty"`
	ShippingQuote     *decimal.Decimal      `json:"costo_envio,omitempty"`
	Lines             []checkoutLineRequest `json:"items" validate:"required,min=1,dive"`
}

type statusUpdateRequest struct {
	Status string `json:"estado_orden" validate:"required"`
}

type paymentMethodRequest struct {
	PaymentMethod string `json:"metodo_pago" validate:"required"`
}

// Create assembles an order from the checkout payload.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := buildCreateInput(customerID, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// List returns the caller's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.List(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

// Get returns one of the caller's orders with its lines.
func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Cancel closes an order on the owner's behalf.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), orderID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateStatus lets operators advance fulfillment.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req statusUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseFulfillmentState(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		if err := svc.UpdateStatus(r.Context(), internalorders.StatusUpdateInput{OrderID: orderID, Status: status}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"venta_id": orderID, "estado_orden": status})
	}
}

// UpdatePaymentMethod swaps the method while payment is still pending.
func UpdatePaymentMethod(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req paymentMethodRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		if err := svc.UpdatePaymentMethod(r.Context(), orderID, customerID, method); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"venta_id": orderID, "metodo_pago": method})
	}
}

// Delete removes an order that never left the pending state.
func Delete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeletePending(r.Context(), orderID, customerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"venta_id": orderID, "eliminada": true})
	}
}

func buildCreateInput(customerID uuid.UUID, req checkoutRequest) (internalorders.CreateInput, error) {
	method, err := enums.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return internalorders.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	discount := decimal.Zero
	if req.Discount != nil {
		discount = *req.Discount
	}

	lines := make([]internalorders.CreateLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		item := internalorders.CreateLineInput{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			IsLease:    line.IsLease,
			LeaseCount: line.LeaseCount,
			LeaseStart: line.LeaseStart,
		}
		if line.LeasePeriod != nil {
			period, perr := enums.ParseLeasePeriod(*line.LeasePeriod)
			if perr != nil {
				return internalorders.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, perr, "invalid lease period")
			}
			item.LeasePeriod = &period
		}
		lines = append(lines, item)
	}

	return internalorders.CreateInput{
		CustomerID:        customerID,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		PaymentMethod:     method,
		Notes:             req.Notes,
		Discount:          discount,
		ShippingQuote:     req.ShippingQuote,
		Lines:             lines,
	}, nil
}

func currentUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	return id, nil
}
