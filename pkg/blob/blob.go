// Package blob offloads message image payloads to object storage. Clients
// post images inline as data URLs; persisting megabytes of base64 inside
// the message store would bloat every conversation scan, so images are
// uploaded once and the message keeps only the resulting URL.
package blob

import (
	"context"
	"encoding/base64"
	"strings"

	"chatrelay/pkg/config"
	"chatrelay/pkg/errs"
)

// Store uploads binary payloads and returns a retrievable URL.
type Store interface {
	Upload(ctx context.Context, contentType string, data []byte) (string, error)
}

// NewFromConfig returns an S3-backed store when a bucket is configured,
// otherwise a disabled store that rejects uploads.
func NewFromConfig(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	if cfg.Bucket == "" {
		return disabled{}, nil
	}
	return newS3Store(ctx, cfg)
}

type disabled struct{}

func (disabled) Upload(context.Context, string, []byte) (string, error) {
	return "", errs.Upstreamf("blob storage not configured")
}

// ResolveImage normalizes an inbound image reference. Data URLs are
// decoded and uploaded through st; http(s) URLs pass through untouched;
// empty stays empty. Anything else is a validation error.
func ResolveImage(ctx context.Context, st Store, image string) (string, error) {
	switch {
	case image == "":
		return "", nil
	case strings.HasPrefix(image, "http://"), strings.HasPrefix(image, "https://"):
		return image, nil
	case strings.HasPrefix(image, "data:"):
		contentType, data, err := decodeDataURL(image)
		if err != nil {
			return "", err
		}
		url, err := st.Upload(ctx, contentType, data)
		if err != nil {
			return "", err
		}
		return url, nil
	default:
		return "", errs.Validationf("image must be a data URL or http(s) URL")
	}
}

// decodeDataURL parses "data:<mediatype>;base64,<payload>". Only base64
// encoded bodies are accepted.
func decodeDataURL(u string) (string, []byte, error) {
	rest := strings.TrimPrefix(u, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errs.Validationf("malformed data URL")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, errs.Validationf("data URL must be base64 encoded")
	}
	contentType := strings.TrimSuffix(meta, ";base64")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errs.Validationf("invalid base64 in data URL: %v", err)
	}
	if len(data) == 0 {
		return "", nil, errs.Validationf("empty image payload")
	}
	return contentType, data, nil
}
