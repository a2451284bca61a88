package payments

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pixsoft/tienda-backend/api/middleware"
	"github.com/pixsoft/tienda-backend/api/responses"
	"github.com/pixsoft/tienda-backend/api/validators"
	internalorders "github.com/pixsoft/tienda-backend/internal/orders"
	internalpayments "github.com/pixsoft/tienda-backend/internal/payments"
	"github.com/pixsoft/tienda-backend/pkg/enums"
	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
	"github.com/pixsoft/tienda-backend/pkg/logger"
)

type preferenceLineRequest struct {
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

type preferenceRequest struct {
	ShippingAddressID uuid.UUID               `json:"direccion_envio_id" validate:"required"`
	BillingAddressID  *uuid.UUID              `json:"direccion_facturacion_id,omitempty"`
	Notes             *string                 `json:"notas,omitempty"`
	Discount          *decimal.Decimal        `json:"descuento,omitempty"`
	ShippingQuote     *decimal.Decimal        `json:"costo_envio,omitempty"`
	Lines             []preferenceLineRequest `json:"items" validate:"required,min=1,dive"`
}

type summaryRequest struct {
	AddressID uuid.UUID `json:"direccion_id" validate:"required"`
}

// CreatePreference creates a pending order and opens a provider checkout
// session for it. Card payment is implied; the provider collects the method.
func CreatePreference(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req preferenceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := buildCreateInput(customerID, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateCheckoutPreference(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutSummary prices the caller's cart with a live shipping quote.
func CheckoutSummary(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req summaryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.CheckoutSummary(r.Context(), internalpayments.SummaryInput{
			UserID:    userID,
			AddressID: req.AddressID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// StatusByOrder returns the payment view of one of the caller's orders.
func StatusByOrder(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
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

		status, err := svc.StatusByOrder(r.Context(), orderID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// StatusByNumber is the unauthenticated lookup used by the provider's
// return pages. It exposes states only, never payment metadata.
func StatusByNumber(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := chi.URLParam(r, "orderNumber")

		status, err := svc.StatusByNumber(r.Context(), orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func buildCreateInput(customerID uuid.UUID, req preferenceRequest) (internalorders.CreateInput, error) {
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
		PaymentMethod:     enums.PaymentMethodCreditCard,
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
