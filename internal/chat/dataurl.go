package chat

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// defaultImageMIME is assumed when a data URL carries no usable header.
const defaultImageMIME = "image/png"

// ParseDataURL splits a data-URL-encoded image into its MIME type and
// decoded payload. The MIME type comes from the "data:<mime>;base64,"
// header and falls back to image/png when the header names no image
// type.
func ParseDataURL(s string) (string, []byte, error) {
	comma := strings.Index(s, ",")
	if comma == -1 {
		return "", nil, fmt.Errorf("not a data URL: missing payload separator")
	}

	header := s[:comma]
	payload := s[comma+1:]

	mime := defaultImageMIME
	if strings.HasPrefix(header, "data:") {
		meta := strings.TrimPrefix(header, "data:")
		if semi := strings.Index(meta, ";"); semi != -1 {
			meta = meta[:semi]
		}
		if strings.HasPrefix(meta, "image/") {
			mime = meta
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL payload: %w", err)
	}
	return mime, data, nil
}
