package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pixsoft/tienda-backend/api/responses"
	internalpayments "github.com/pixsoft/tienda-backend/internal/payments"
	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
	"github.com/pixsoft/tienda-backend/pkg/logger"
)

// NotificationProcessor reconciles an order from a provider notification.
type NotificationProcessor interface {
	ProcessNotification(ctx context.Context, notification internalpayments.Notification) error
}

// DuplicateGuard short-circuits redelivered events.
type DuplicateGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type notificationBody struct {
	ID   json.Number `json:"id"`
	Type string      `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// MercadoPago receives provider webhooks. Every business or storage outcome
// is acknowledged with 200 so the provider stops retrying; only a failed
// re-fetch of the payment record returns a non-2xx and invites a retry.
//
// Deduplication keys on the notification's own id (or the request id header
// when the payload carries none), never on data.id: the provider reuses the
// payment id for every status change, so keying on it would drop the later
// approved notification of a payment first seen pending. Notifications with
// no event identity skip the guard; the compare-and-swap in the
// reconciliation path absorbs true redeliveries.
func MercadoPago(svc NotificationProcessor, guard DuplicateGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handler misconfigured"))
			return
		}

		notification, eventID, err := parseNotification(r)
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "unreadable webhook payload")
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if notification.Type != "payment" || notification.DataID == "" {
			responses.WriteSuccess(w, nil)
			return
		}

		if eventID == "" {
			eventID = r.Header.Get("X-Request-Id")
		}

		marked := false
		if eventID != "" {
			seen, err := guard.CheckAndMark(ctx, eventID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if seen {
				if logg != nil {
					logg.Info(logg.WithField(ctx, "event_id", eventID), "webhook already processed")
				}
				responses.WriteSuccess(w, nil)
				return
			}
			marked = true
		}

		if err := svc.ProcessNotification(ctx, notification); err != nil {
			// Release the mark so a redelivery gets another attempt.
			if marked {
				if derr := guard.Delete(ctx, eventID); derr != nil && logg != nil {
					logg.Warn(logg.WithField(ctx, "error", derr.Error()), "failed to release webhook mark")
				}
			}
			if errors.Is(err, internalpayments.ErrProviderUnavailable) {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Error(ctx, "webhook reconciliation failed", err)
			}
			responses.WriteSuccess(w, nil)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

// parseNotification accepts both the JSON body form and the legacy
// query-parameter form (topic/id) of provider notifications. The second
// return value is the notification's own id when the payload carries one.
func parseNotification(r *http.Request) (internalpayments.Notification, string, error) {
	if topic := r.URL.Query().Get("topic"); topic != "" {
		return internalpayments.Notification{
			Type:   topic,
			DataID: r.URL.Query().Get("id"),
		}, "", nil
	}
	if qtype := r.URL.Query().Get("type"); qtype != "" && r.ContentLength == 0 {
		return internalpayments.Notification{
			Type:   qtype,
			DataID: r.URL.Query().Get("data.id"),
		}, "", nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return internalpayments.Notification{}, "", err
	}
	var parsed notificationBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return internalpayments.Notification{}, "", err
	}
	return internalpayments.Notification{Type: parsed.Type, DataID: parsed.Data.ID}, parsed.ID.String(), nil
}
