package domain

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const DefaultMaxUploadBytes = 5 << 20

// Asset is an uploaded object and the product it is attached to, if any.
type Asset struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	ObjectKey  string    `json:"objectKey"`
	MimeType   string    `json:"mimeType"`
	UploaderID string    `json:"uploaderId"`
	ProductID  string    `json:"productId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DecodeImage validates the mime type and decodes a standard or data-URL
// base64 body, enforcing maxBytes on the decoded size.
func DecodeImage(mimeType, body string, maxBytes int64) ([]byte, error) {
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return nil, fmt.Errorf("%w: mimeType must be an image type", ErrInvalidInput)
	}
	if i := strings.Index(body, ";base64,"); i >= 0 && strings.HasPrefix(body, "data:") {
		body = body[i+len(";base64,"):]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: base64 is empty", ErrInvalidInput)
	}
	if maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(body))) > maxBytes+2 {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, maxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(body); err != nil {
			return nil, fmt.Errorf("%w: base64 is malformed", ErrInvalidInput)
		}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// ObjectKey places an upload under products/ keeping a sanitised extension
// from the original file name.
func ObjectKey(id, fileName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(fileName)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return "products/" + id + ext
}
