// Package worker implements the queue-driven processor (spec §4.9): an
// HTTP endpoint that claims a Document, downloads its PDF, runs the
// detection pipeline, and persists the resulting FieldRegions, in the
// gin route-registration style the example pack's PDF services use for
// their own job endpoints.
package worker

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docfields/hybriddetect/internal/bbox"
	"github.com/docfields/hybriddetect/internal/pdferr"
	"github.com/docfields/hybriddetect/internal/pdftext"
	"github.com/docfields/hybriddetect/internal/pipeline"
	"github.com/docfields/hybriddetect/internal/storage"
	"github.com/docfields/hybriddetect/internal/store"
)

// Worker ties the persistence, blob-storage, and detection collaborators
// together behind the HTTP surface described in spec §6.
type Worker struct {
	store    store.Store
	blobs    storage.Blobs
	pipeline *pipeline.Pipeline
	log      *zap.SugaredLogger
}

// New constructs a Worker. pl may be nil only in tests that exercise
// request parsing without running a real scan.
func New(st store.Store, blobs storage.Blobs, pl *pipeline.Pipeline, log *zap.SugaredLogger) *Worker {
	return &Worker{store: st, blobs: blobs, pipeline: pl, log: log}
}

// RegisterRoutes wires the worker's endpoints onto router.
func (w *Worker) RegisterRoutes(router *gin.Engine) {
	router.POST("/process", w.handleProcess)
	router.GET("/healthz", w.handleHealthz)
	router.DELETE("/process/:document_id", w.handleCancel)
}

type processRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
	Force      bool   `json:"force"`
}

type processResponse struct {
	DocumentID  string `json:"document_id"`
	Status      string `json:"status"`
	FieldsFound int    `json:"fields_found"`
	PageCount   int    `json:"page_count"`
	Acroform    bool   `json:"acroform"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (w *Worker) handleProcess(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	}

	documentID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "malformed document_id"})
		return
	}

	doc, fieldsFound, err := w.Process(c.Request.Context(), documentID, req.Force)
	if err != nil {
		c.JSON(statusFor(err), errorResponse{Detail: err.Error()})
		return
	}

	c.JSON(http.StatusOK, processResponse{
		DocumentID:  doc.ID.String(),
		Status:      string(doc.Status),
		FieldsFound: fieldsFound,
		PageCount:   doc.PageCount,
		Acroform:    doc.Acroform,
	})
}

func (w *Worker) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleCancel is a best-effort release: it marks a document `failed` so a
// stuck `processing` row can be retried, rather than attempting to
// interrupt an in-flight scan (the core does not own cancellation, §5).
func (w *Worker) handleCancel(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "malformed document_id"})
		return
	}
	if err := w.store.MarkFailed(documentID, "cancelled by operator"); err != nil {
		c.JSON(statusFor(err), errorResponse{Detail: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": documentID.String(), "status": "failed"})
}

// statusFor maps an error kind to the HTTP status the queue collaborator
// expects (§6: 5xx on failure, with NotFound/InvalidInput surfaced more
// specifically).
func statusFor(err error) int {
	switch pdferr.KindOf(err) {
	case pdferr.KindNotFound:
		return http.StatusNotFound
	case pdferr.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Process runs one document through the full §4.9 lifecycle: claim,
// download, scan, persist, and status transition. It returns the
// document's final state and the number of fields persisted.
func (w *Worker) Process(ctx context.Context, documentID uuid.UUID, force bool) (*store.Document, int, error) {
	doc, err := w.store.GetDocument(documentID)
	if err != nil {
		return nil, 0, err
	}

	if !doc.Processable() && !force {
		return doc, 0, nil
	}

	claimed, ok, err := w.store.ClaimForProcessing(documentID, force)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		// Another worker won the race; report current state as a no-op.
		return doc, 0, nil
	}

	fieldsFound, runErr := w.runAndPersist(ctx, claimed, force)
	if runErr != nil {
		w.fail(documentID, runErr)
		return nil, 0, runErr
	}

	final, err := w.store.GetDocument(documentID)
	if err != nil {
		return nil, 0, err
	}
	return final, fieldsFound, nil
}

func (w *Worker) runAndPersist(ctx context.Context, doc *store.Document, force bool) (int, error) {
	if w.pipeline == nil {
		return 0, errNilPipeline
	}

	tmpDir, err := os.MkdirTemp("", "hybriddetect-"+doc.ID.String())
	if err != nil {
		return 0, pdferr.Wrap(pdferr.KindStorageFailure, "create temp directory", err)
	}
	defer os.RemoveAll(tmpDir)

	localPath := filepath.Join(tmpDir, "original.pdf")
	if err := w.blobs.Download(doc.StorageKeyOriginal, localPath); err != nil {
		return 0, pdferr.Wrap(pdferr.KindStorageFailure, "download original pdf", err)
	}

	if force {
		if err := w.store.DeleteFieldRegions(doc.ID); err != nil {
			return 0, err
		}
	}

	detections := w.pipeline.Run(ctx, localPath)

	pageCount, err := pdftext.PageCount(localPath)
	if err != nil {
		return 0, pdferr.Wrap(pdferr.KindRenderFailure, "count pages", err)
	}

	regions := make([]store.FieldRegion, 0, len(detections))
	acroform := false
	for _, d := range detections {
		if d.Source == bbox.SourceStructure {
			acroform = true
		}
		regions = append(regions, toFieldRegion(doc.ID, d))
	}

	if err := w.store.ReplaceFieldRegions(doc.ID, regions); err != nil {
		return 0, err
	}
	if err := w.store.MarkReady(doc.ID, pageCount, acroform); err != nil {
		return 0, err
	}
	return len(regions), nil
}

func (w *Worker) fail(documentID uuid.UUID, cause error) {
	kind := pdferr.KindOf(cause)
	msg := kind.String() + ": " + cause.Error()
	if markErr := w.store.MarkFailed(documentID, msg); markErr != nil && w.log != nil {
		w.log.Errorw("failed to mark document failed", "document_id", documentID, "mark_error", markErr, "cause", cause)
	}
}

func toFieldRegion(documentID uuid.UUID, d bbox.FieldDetection) store.FieldRegion {
	return store.FieldRegion{
		ID:          newUUID(),
		DocumentID:  documentID,
		PageIndex:   d.PageIndex,
		X:           d.BBox.X,
		Y:           d.BBox.Y,
		Width:       d.BBox.Width,
		Height:      d.BBox.Height,
		FieldType:   string(d.FieldType),
		Label:       d.Label,
		Confidence:  d.Confidence,
		TemplateKey: d.TemplateKey,
	}
}

// newUUID mints a fresh random id for each persisted FieldRegion.
func newUUID() uuid.UUID {
	return uuid.New()
}

var errNilPipeline = errors.New("worker: pipeline is not configured")
