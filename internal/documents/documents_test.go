package documents

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestParseSignature(t *testing.T) {
	t.Run("accepts png data url", func(t *testing.T) {
		data := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 200, 60))
		sig, err := ParseSignature(data)
		require.NoError(t, err)
		assert.Equal(t, "png", sig.Format)
		assert.Equal(t, 200, sig.Width)
	})

	t.Run("accepts raw base64", func(t *testing.T) {
		_, err := ParseSignature(base64.StdEncoding.EncodeToString(pngBytes(t, 50, 20)))
		require.NoError(t, err)
	})

	t.Run("rejects tiny image", func(t *testing.T) {
		_, err := ParseSignature(base64.StdEncoding.EncodeToString(pngBytes(t, 10, 10)))
		require.Error(t, err)
	})

	t.Run("rejects unsupported mime", func(t *testing.T) {
		_, err := ParseSignature("data:image/gif;base64,R0lGOD==")
		require.Error(t, err)
	})

	t.Run("rejects non image bytes", func(t *testing.T) {
		_, err := ParseSignature(base64.StdEncoding.EncodeToString([]byte("hello world")))
		require.Error(t, err)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseSignature("  ")
		require.Error(t, err)
	})
}

func TestUploadValidate(t *testing.T) {
	t.Run("sniffed content type wins", func(t *testing.T) {
		u := Upload{Type: models.DocDriversLicense, Filename: "front.png", ContentType: "application/octet-stream", Data: pngBytes(t, 60, 60)}
		require.NoError(t, u.Validate())
		assert.Equal(t, "image/png", u.ContentType)
	})

	t.Run("heic relies on declared type", func(t *testing.T) {
		u := Upload{Type: models.DocStateID, Filename: "id.heic", ContentType: "image/heic", Data: []byte("....ftypheic")}
		require.NoError(t, u.Validate())
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		u := Upload{Type: "library_card", ContentType: "text/plain"}
		err := u.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStepValidationFailed))
		fields := dErrors.FieldsOf(err)
		assert.Contains(t, fields, "type")
		assert.Contains(t, fields, "filename")
		assert.Contains(t, fields, "file")
		assert.Contains(t, fields, "contentType")
	})

	t.Run("rejects oversize file", func(t *testing.T) {
		u := Upload{Type: models.DocUSPassport, Filename: "p.pdf", ContentType: "application/pdf", Data: make([]byte, MaxUploadBytes+1)}
		err := u.Validate()
		require.Error(t, err)
		assert.Contains(t, dErrors.FieldsOf(err), "file")
	})
}

func TestInMemoryStorage(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStorage()
	sessionID := id.NewSessionID()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	doc, err := store.Store(ctx, sessionID, Upload{
		Type:        models.DocUSPassport,
		Filename:    "../../passport.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.7 test"),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "passport.pdf", doc.Filename)
	assert.Equal(t, now, doc.UploadedAt)
	assert.Contains(t, doc.StorageKey, sessionID.String())
	assert.EqualValues(t, len("%PDF-1.7 test"), doc.Size)

	b, ok := store.Object(doc.StorageKey)
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.7 test", string(b))

	url, err := store.URL(ctx, doc.StorageKey, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "memory://"+doc.StorageKey, url)

	require.NoError(t, store.Delete(ctx, doc.StorageKey))
	_, err = store.URL(ctx, doc.StorageKey, time.Minute)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
