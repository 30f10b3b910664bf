package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"chatkit/pkg/errors"
)

// CloudStorageClient is the GCS-backed image uploader, for deployments that
// keep chat images in the same Google Cloud project as the store.
type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
}

func NewCloudStorageClient(ctx context.Context, bucketName, credentialsPath string) (*CloudStorageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

func (c *CloudStorageClient) UploadImage(ctx context.Context, data []byte, fileName, folder string) (string, error) {
	if c.bucketName == "" {
		return "", errors.Configuration("Storage bucket is not set", nil)
	}

	objectName := fileName + ".jpg"
	if folder != "" {
		objectName = folder + "/" + objectName
	}

	obj := c.client.Bucket(c.bucketName).Object(objectName)
	wc := obj.NewWriter(ctx)
	wc.ContentType = "image/jpeg"
	wc.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		wc.Close()
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.Timeout("Image upload timed out", err)
		}
		return "", errors.Network("Failed to copy image to GCS", err)
	}

	if err := wc.Close(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.Timeout("Image upload timed out", err)
		}
		return "", errors.Network("Failed to finalize GCS object", err)
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return "", errors.Network("Failed to set ACL", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucketName, objectName), nil
}

// DeleteImage removes a previously uploaded object by its public URL.
func (c *CloudStorageClient) DeleteImage(ctx context.Context, fileURL string) error {
	prefix := fmt.Sprintf("https://storage.googleapis.com/%s/", c.bucketName)
	if !strings.HasPrefix(fileURL, prefix) {
		return errors.BadRequest("Invalid GCS URL format or bucket mismatch", nil)
	}

	objectName := fileURL[len(prefix):]
	if err := c.client.Bucket(c.bucketName).Object(objectName).Delete(ctx); err != nil {
		return errors.Network("Failed to delete file", err)
	}
	return nil
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}
