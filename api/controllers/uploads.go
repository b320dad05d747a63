package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/api/validators"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/storage/objectstore"
)

var prescriptionContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"application/pdf": {},
}

// PrescriptionPresigner signs direct uploads to the bucket.
type PrescriptionPresigner interface {
	PresignPrescriptionUpload(ctx context.Context, patientID uuid.UUID, fileName, contentType string) (*objectstore.Upload, error)
}

type prescriptionUploadRequest struct {
	FileName    string `json:"file_name" validate:"required,max=200"`
	ContentType string `json:"content_type" validate:"required"`
}

// PrescriptionUpload returns a presigned PUT; the resulting public URL is what
// clients send as the order prescription.
func PrescriptionUpload(store PrescriptionPresigner, logg *logger.Logger) http.HandlerFunc {
	var down error
	if store == nil {
		down = pkgerrors.New(pkgerrors.CodeDependency, "object storage not configured")
	}
	return asCaller(logg, down, createdResult, func(r *http.Request, patientID uuid.UUID) (any, error) {
		var payload prescriptionUploadRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		contentType := strings.ToLower(strings.TrimSpace(payload.ContentType))
		if _, ok := prescriptionContentTypes[contentType]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported content type").WithDetails(map[string]any{"field": "content_type"})
		}
		upload, err := store.PresignPrescriptionUpload(r.Context(), patientID, payload.FileName, contentType)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presign prescription upload")
		}
		return upload, nil
	})
}
