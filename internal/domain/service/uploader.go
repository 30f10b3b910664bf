package service

import "context"

// ImageUploader is the blob store boundary: it accepts compressed image bytes
// plus naming metadata and returns a publicly addressable URL. Implementations
// classify failures via pkg/errors (configuration, network, http, format).
type ImageUploader interface {
	UploadImage(ctx context.Context, data []byte, fileName, folder string) (string, error)
}
