package documents

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/webp"
)

const (
	MinSignatureWidth  = 50
	MinSignatureHeight = 20
	maxSignatureBytes  = 2 << 20
)

var allowedSignatureMimes = []string{"image/png", "image/jpeg", "image/webp"}

// SignatureImage is a decoded signature capture.
type SignatureImage struct {
	Format string
	Width  int
	Height int
}

// ParseSignature accepts a base64 data URL or raw base64 image and checks
// that it decodes as PNG, JPEG or WebP with usable dimensions.
func ParseSignature(value string) (SignatureImage, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return SignatureImage{}, errors.New("signature is required")
	}

	payload := raw
	if strings.HasPrefix(raw, "data:") {
		comma := strings.Index(raw, ",")
		if comma <= 5 {
			return SignatureImage{}, errors.New("invalid data url payload")
		}
		meta := raw[5:comma]
		if !strings.HasSuffix(strings.ToLower(meta), ";base64") {
			return SignatureImage{}, errors.New("data url must be base64")
		}
		mime := strings.ToLower(strings.TrimSpace(meta[:len(meta)-len(";base64")]))
		supported := false
		for _, allowed := range allowedSignatureMimes {
			if mime == allowed {
				supported = true
				break
			}
		}
		if !supported {
			return SignatureImage{}, errors.New("signature must be png, jpeg or webp")
		}
		payload = raw[comma+1:]
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return SignatureImage{}, errors.New("unable to decode signature")
	}
	if len(decoded) > maxSignatureBytes {
		return SignatureImage{}, errors.New("signature image is too large")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(decoded))
	if err != nil {
		webpCfg, webpErr := webp.DecodeConfig(bytes.NewReader(decoded))
		if webpErr != nil {
			return SignatureImage{}, errors.New("signature is not a png, jpeg or webp image")
		}
		cfg, format = webpCfg, "webp"
	}
	if cfg.Width < MinSignatureWidth || cfg.Height < MinSignatureHeight {
		return SignatureImage{}, errors.New("signature image is too small")
	}
	return SignatureImage{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
