package webhooks

import (
	"io"
	"net/http"
	"time"

	"github.com/davemejos/mediasync/pkg/assetstore"
	"github.com/davemejos/mediasync/pkg/config"
	"github.com/davemejos/mediasync/pkg/errcodes"
	"github.com/davemejos/mediasync/pkg/media"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/davemejos/mediasync/pkg/realtime"
	"github.com/davemejos/mediasync/pkg/syncops"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	echologger "github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

type handler struct {
	config       *config.Config
	mediaService *media.Service
	opService    *syncops.Service
	broadcaster  realtime.Broadcaster
}

// receive applies one provider notification. The whole handler is
// idempotent: redelivery of a payload the catalog has already applied
// returns 200 without mutating anything.
func (h *handler) receive(c echo.Context) error {
	ctx := c.Request().Context()
	log := echologger.FromEchoContext(c)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errcodes.MalformedPayload()
	}

	err = verifySignature(
		h.config.WebhookSecret,
		c.Request().Header.Get(TimestampHeader),
		c.Request().Header.Get(SignatureHeader),
		body,
		time.Now().UTC(),
		h.config.WebhookMaxSkew,
	)
	if err != nil {
		return errors.WithStack(err)
	}

	notification := Notification{}
	if err := json.Unmarshal(body, &notification); err != nil {
		return errcodes.MalformedPayload()
	}
	if notification.ExternalID == "" {
		return errcodes.ValidationError("public_id is required.")
	}

	var asset *models.MediaAsset
	var changed bool
	var event string
	opType := models.OperationTypeWebhook

	switch notification.NotificationType {
	case NotificationUpload:
		asset, changed, err = h.mediaService.ConfirmRemote(ctx, remoteFrom(&notification), notification.CorrelationID)
		event = realtime.EventMediaSynced
	case NotificationUpdate:
		asset, changed, err = h.mediaService.ConfirmRemote(ctx, remoteFrom(&notification), notification.CorrelationID)
		event = realtime.EventMediaUpdated
	case NotificationDelete:
		asset, changed, err = h.mediaService.RemoveRemote(ctx, notification.ExternalID, notification.Version)
		event = realtime.EventMediaDeleted
		// Deletions are audited as delete operations, including the
		// no-op case where no catalog row matches the external id.
		opType = models.OperationTypeDelete
	default:
		log.Warn("unhandled webhook notification type", logger.Data{
			"notification_type": notification.NotificationType,
			"external_id":       notification.ExternalID,
		})
		return errors.WithStack(c.JSON(http.StatusOK, ackResponse(false)))
	}
	if err != nil {
		// The payload was authentic and well-formed; only the catalog
		// write failed. A retryable status makes the provider redeliver.
		log.Err(err).Error("apply webhook error")
		return errcodes.Transient("Temporarily unable to apply webhook.")
	}

	op := &models.SyncOperation{
		Type:   opType,
		Status: models.OperationStatusCompleted,
		Source: models.OperationSourceWebhook,
		DetailParsed: map[string]interface{}{
			"notification_type": notification.NotificationType,
			"external_id":       notification.ExternalID,
			"version":           notification.Version,
			"applied":           changed,
		},
	}
	if err := h.opService.CreateOperation(ctx, op); err != nil {
		log.Err(err).Error("record webhook operation error")
		return errcodes.Transient("Temporarily unable to apply webhook.")
	}

	if changed && asset != nil {
		h.broadcaster.Broadcast(realtime.NewEvent(event, asset))
	}

	return errors.WithStack(c.JSON(http.StatusOK, ackResponse(changed)))
}

func ackResponse(applied bool) map[string]interface{} {
	return map[string]interface{}{
		"received": true,
		"applied":  applied,
	}
}

func remoteFrom(n *Notification) *assetstore.RemoteAsset {
	return &assetstore.RemoteAsset{
		ExternalID:   n.ExternalID,
		Filename:     n.Filename,
		Folder:       n.Folder,
		ResourceType: n.ResourceType,
		MimeType:     n.MimeType,
		SizeBytes:    n.SizeBytes,
		Checksum:     n.Checksum,
		Version:      n.Version,
	}
}
