package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"chatkit/pkg/errors"
	"chatkit/pkg/logger"
)

// CloudinaryClient uploads images through Cloudinary's unsigned upload API.
type CloudinaryClient struct {
	cloudName    string
	uploadPreset string
	apiKey       string
	httpClient   *http.Client
}

func NewCloudinaryClient(cloudName, uploadPreset, apiKey string) *CloudinaryClient {
	return &CloudinaryClient{
		cloudName:    cloudName,
		uploadPreset: uploadPreset,
		apiKey:       apiKey,
		httpClient:   &http.Client{},
	}
}

func (c *CloudinaryClient) isConfigured() bool {
	return c.cloudName != "" && c.uploadPreset != ""
}

type cloudinaryUploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// UploadImage posts the JPEG bytes as a multipart form and returns the secure
// URL. The caller bounds the attempt through ctx; deadline expiry surfaces as
// a TIMEOUT error, other transport failures as NETWORK_ERROR.
func (c *CloudinaryClient) UploadImage(ctx context.Context, data []byte, fileName, folder string) (string, error) {
	if !c.isConfigured() {
		return "", errors.Configuration("Cloudinary cloud name or upload preset is not set", nil)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"upload_preset": c.uploadPreset,
		"public_id":     fileName,
	}
	if folder != "" {
		fields["folder"] = folder
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", errors.Internal("Failed to build upload form", err)
		}
	}

	part, err := writer.CreateFormFile("file", fileName+".jpg")
	if err != nil {
		return "", errors.Internal("Failed to build upload form", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", errors.Internal("Failed to build upload form", err)
	}
	if err := writer.Close(); err != nil {
		return "", errors.Internal("Failed to build upload form", err)
	}

	uploadURL := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return "", errors.Internal("Failed to create upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.Timeout("Image upload timed out", err)
		}
		return "", errors.Network("Image upload failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Network("Failed to read upload response", err)
	}

	var parsed cloudinaryUploadResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.SecureURL == "" {
			return "", errors.ResponseFormat("Cloudinary response missing secure_url", err)
		}
		logger.Debug("Cloudinary upload succeeded: %s", parsed.SecureURL)
		return parsed.SecureURL, nil
	}

	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error != nil {
		return "", errors.HTTP(resp.StatusCode, parsed.Error.Message)
	}
	return "", errors.HTTP(resp.StatusCode, "Cloudinary upload failed")
}
