// Package documents stores uploaded onboarding documents and validates
// captured signature images. Sessions only ever hold the descriptor.
package documents

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
)

// MaxUploadBytes bounds a single document upload.
const MaxUploadBytes = 10 << 20

var allowedContentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
}

// Upload is a document received from the applicant.
type Upload struct {
	Type        models.DocumentType
	Filename    string
	ContentType string
	Data        []byte
	OCR         map[string]string
}

// Storage persists raw document bytes.
type Storage interface {
	Store(ctx context.Context, sessionID id.SessionID, upload Upload, now time.Time) (models.Document, error)
	Delete(ctx context.Context, storageKey string) error
	URL(ctx context.Context, storageKey string, ttl time.Duration) (string, error)
}

// Validate checks type, size and content type. The sniffed content type wins
// over the declared one when the sniffer recognizes the bytes.
func (u *Upload) Validate() error {
	fields := map[string]string{}
	if !u.Type.IsValid() {
		fields["type"] = "unsupported document type"
	}
	if strings.TrimSpace(u.Filename) == "" {
		fields["filename"] = "is required"
	}
	switch {
	case len(u.Data) == 0:
		fields["file"] = "is empty"
	case len(u.Data) > MaxUploadBytes:
		fields["file"] = fmt.Sprintf("exceeds %d bytes", MaxUploadBytes)
	}

	declared := normalizeContentType(u.ContentType)
	if len(u.Data) > 0 {
		if sniffed := normalizeContentType(http.DetectContentType(u.Data)); allowedContentTypes[sniffed] != "" {
			declared = sniffed
		}
	}
	if _, ok := allowedContentTypes[declared]; !ok {
		fields["contentType"] = "must be pdf, png, jpeg, webp or heic"
	}
	if len(fields) > 0 {
		return dErrors.WithFields(dErrors.CodeStepValidationFailed, "invalid document upload", fields)
	}
	u.ContentType = declared
	return nil
}

func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// objectKey lays documents out per session so they can be purged together.
func objectKey(sessionID id.SessionID, docID id.DocumentID, contentType string) string {
	return path.Join("sessions", sessionID.String(), "documents", docID.String()+allowedContentTypes[contentType])
}

func descriptor(sessionID id.SessionID, upload Upload, now time.Time) models.Document {
	docID := id.NewDocumentID()
	return models.Document{
		ID:          docID,
		Type:        upload.Type,
		Filename:    path.Base(upload.Filename),
		ContentType: upload.ContentType,
		Size:        int64(len(upload.Data)),
		StorageKey:  objectKey(sessionID, docID, upload.ContentType),
		UploadedAt:  now,
		OCR:         upload.OCR,
	}
}
