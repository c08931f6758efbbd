package uploads

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/davemejos/mediasync/pkg/assetstore"
	"github.com/davemejos/mediasync/pkg/cleanup"
	"github.com/davemejos/mediasync/pkg/config"
	"github.com/davemejos/mediasync/pkg/media"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/davemejos/mediasync/pkg/realtime"
	"github.com/davemejos/mediasync/pkg/syncops"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

type SubmitParams struct {
	Filename string
	Folder   string
	Data     []byte
	Source   string
}

// Coordinator runs the optimistic upload flow. Submit writes a pending
// catalog row and returns immediately; the asset store call happens off
// the request path and the caller observes confirmation (or failure)
// through the realtime event stream, matched by correlation id.
type Coordinator struct {
	config *config.Config
	log    logger.Logger

	store        assetstore.Client
	mediaService *media.Service
	opService    *syncops.Service
	queue        *cleanup.Queue
	broadcaster  realtime.Broadcaster

	wg sync.WaitGroup
}

func NewCoordinator(cfg *config.Config, db *bun.DB, store assetstore.Client, broadcaster realtime.Broadcaster) *Coordinator {
	return &Coordinator{
		config:       cfg,
		log:          logger.New(),
		store:        store,
		mediaService: media.NewService(db),
		opService:    syncops.NewService(db),
		queue:        cleanup.NewQueue(db),
		broadcaster:  broadcaster,
	}
}

// Submit creates the pending row and kicks off the confirmation in the
// background. The returned asset carries the correlation id the caller
// uses to match the eventual confirmation event.
func (co *Coordinator) Submit(ctx context.Context, params SubmitParams) (*models.MediaAsset, *models.SyncOperation, error) {
	correlationID := uuid.NewString()
	mime := mimetype.Detect(params.Data)

	asset := &models.MediaAsset{
		CorrelationID: &correlationID,
		Filename:      params.Filename,
		Folder:        params.Folder,
		ResourceType:  resourceTypeFor(mime.String()),
		SizeBytes:     int64(len(params.Data)),
		SyncStatus:    models.SyncStatusPending,
	}
	mimeStr := mime.String()
	asset.MimeType = &mimeStr

	if err := co.mediaService.CreateAsset(ctx, asset); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	source := params.Source
	if source == "" {
		source = models.OperationSourceAPI
	}
	op := &models.SyncOperation{
		Type:       models.OperationTypeUpload,
		Status:     models.OperationStatusInProgress,
		Source:     source,
		TotalItems: 1,
		DetailParsed: map[string]interface{}{
			"correlation_id": correlationID,
			"filename":       params.Filename,
			"folder":         params.Folder,
			"size_bytes":     len(params.Data),
		},
	}
	if err := co.opService.CreateOperation(ctx, op); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	// Stage the payload so a transient store failure can be retried
	// from disk later. If staging fails the submission never happened:
	// no confirmation goroutine will run, so the pending row and the
	// in-progress operation are rolled back before returning.
	if err := co.stagePayload(correlationID, params.Data); err != nil {
		co.rollbackSubmit(ctx, asset, op, err)
		return nil, nil, errors.WithStack(err)
	}

	co.broadcaster.Broadcast(realtime.NewEvent(realtime.EventMediaCreated, asset))

	co.wg.Add(1)
	go co.confirm(asset, op, params.Data)

	return asset, op, nil
}

// Wait blocks until all in-flight confirmations have finished. Called
// during shutdown so no upload is abandoned between the store call and
// the catalog update.
func (co *Coordinator) Wait() {
	co.wg.Wait()
}

func (co *Coordinator) confirm(asset *models.MediaAsset, op *models.SyncOperation, data []byte) {
	defer co.wg.Done()

	storeCtx, cancel := context.WithTimeout(context.Background(), co.config.AssetStoreTimeout)

	op.Progress = 50
	if err := co.opService.UpdateOperation(storeCtx, op, syncops.UpdateOperationOptions{
		Columns: []string{"progress"},
	}); err != nil {
		co.log.Err(err).Error("update upload operation progress error")
	}

	remote, err := co.store.Upload(storeCtx, assetstore.UploadParams{
		Filename: asset.Filename,
		Folder:   asset.Folder,
		MimeType: mimeOrEmpty(asset),
		Data:     data,
	})
	cancel()
	if err != nil {
		co.fail(asset, op, err)
		return
	}

	// The store deadline only covers the upload itself; the catalog
	// writes below get their own, so a slow upload can't starve them.
	ctx, cancel := context.WithTimeout(context.Background(), co.config.AssetStoreTimeout)
	defer cancel()

	confirmed, _, err := co.mediaService.ConfirmRemote(ctx, remote, asset.CorrelationID)
	if err != nil {
		co.fail(asset, op, err)
		return
	}

	op.Status = models.OperationStatusCompleted
	op.ProcessedItems = 1
	if err := co.opService.UpdateOperation(ctx, op, syncops.UpdateOperationOptions{
		Columns: []string{"status", "processed_items"},
	}); err != nil {
		co.log.Err(err).Error("complete upload operation error")
	}

	co.discardPayload(*asset.CorrelationID)
	co.broadcaster.Broadcast(realtime.NewEvent(realtime.EventMediaSynced, confirmed))
}

func (co *Coordinator) fail(asset *models.MediaAsset, op *models.SyncOperation, cause error) {
	// The store call's context may already be past its deadline when we
	// get here, so the rollback writes run on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), co.config.AssetStoreTimeout)
	defer cancel()

	transient := assetstore.IsTransient(cause)
	co.log.Err(cause).Error("upload confirmation error", logger.Data{
		"asset_id":  asset.ID,
		"transient": transient,
	})

	if err := co.mediaService.MarkSyncError(ctx, asset, cause.Error()); err != nil {
		co.log.Err(err).Error("mark sync error error")
	}

	op.Status = models.OperationStatusFailed
	op.FailedItems = 1
	msg := cause.Error()
	op.ErrorDetail = &msg
	if err := co.opService.UpdateOperation(ctx, op, syncops.UpdateOperationOptions{
		Columns: []string{"status", "failed_items", "error_detail"},
	}); err != nil {
		co.log.Err(err).Error("fail upload operation error")
	}

	if transient {
		err := co.queue.Enqueue(ctx, &models.CleanupItem{
			Type:        models.CleanupTypeRetryUpload,
			AssetID:     &asset.ID,
			Reason:      "transient upload failure: " + msg,
			MaxAttempts: co.config.Scheduler.MaxRetries,
		})
		if err != nil {
			co.log.Err(err).Error("enqueue upload retry error")
		}
	} else {
		// No retry will ever succeed, so the staged payload is dead
		// weight.
		co.discardPayload(*asset.CorrelationID)
	}

	co.broadcaster.Broadcast(realtime.NewEvent(realtime.EventMediaError, asset))
}

func (co *Coordinator) rollbackSubmit(ctx context.Context, asset *models.MediaAsset, op *models.SyncOperation, cause error) {
	if err := co.mediaService.HardDeleteAsset(ctx, asset); err != nil {
		co.log.Err(err).Error("roll back pending asset error", logger.Data{"asset_id": asset.ID})
	}

	op.Status = models.OperationStatusFailed
	op.FailedItems = 1
	msg := cause.Error()
	op.ErrorDetail = &msg
	if err := co.opService.UpdateOperation(ctx, op, syncops.UpdateOperationOptions{
		Columns: []string{"status", "failed_items", "error_detail"},
	}); err != nil {
		co.log.Err(err).Error("fail upload operation error")
	}
}

func (co *Coordinator) stagePayload(correlationID string, data []byte) error {
	if err := os.MkdirAll(co.config.UploadStagingDir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	path := StagingPath(co.config.UploadStagingDir, correlationID)
	return errors.WithStack(os.WriteFile(path, data, 0o644))
}

func (co *Coordinator) discardPayload(correlationID string) {
	path := StagingPath(co.config.UploadStagingDir, correlationID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		co.log.Err(err).Error("remove staged payload error")
	}
}

// StagingPath is where a submission's payload sits between the initial
// request and a confirmed (or permanently failed) upload. The scheduler
// uses the same layout to retry from disk.
func StagingPath(dir, correlationID string) string {
	return filepath.Join(dir, correlationID)
}

func resourceTypeFor(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	default:
		return "raw"
	}
}

func mimeOrEmpty(asset *models.MediaAsset) string {
	if asset.MimeType == nil {
		return ""
	}
	return *asset.MimeType
}
