package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/pixelle-ai/mcp-broker/internal/config"
	"github.com/pixelle-ai/mcp-broker/internal/model"
)

// OSS stores files in an S3-compatible object store. Public links go
// through the CDN domain when one is configured.
type OSS struct {
	client *minio.Client
	cfg    config.OSSConfig
	log    zerolog.Logger
}

// NewOSS creates the object-store backend. Missing credentials or endpoint
// fail fast here rather than on the first upload.
func NewOSS(cfg config.OSSConfig, log zerolog.Logger) (*OSS, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: OSS_ENDPOINT, OSS_ACCESS_KEY and OSS_SECRET_KEY must be set", model.ErrStorageNotConfigured)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return &OSS{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "storage").Str("backend", "oss").Logger(),
	}, nil
}

func (o *OSS) key(fileID string) string {
	return o.cfg.Prefix + fileID
}

func (o *OSS) url(fileID string) string {
	if o.cfg.CDNDomain != "" {
		return fmt.Sprintf("https://%s/%s", o.cfg.CDNDomain, o.key(fileID))
	}
	return fmt.Sprintf("https://%s/%s/%s", o.cfg.Endpoint, o.cfg.Bucket, o.key(fileID))
}

// Upload stores the content under a fresh file id.
func (o *OSS) Upload(ctx context.Context, r io.Reader, filename, contentType string) (FileInfo, error) {
	fileID := NewFileID(filename)

	// Buffer to learn the size; uploads here are bounded tool artifacts,
	// not arbitrary streams.
	content, err := io.ReadAll(r)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to read upload: %w", err)
	}

	_, err = o.client.PutObject(ctx, o.cfg.Bucket, o.key(fileID),
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return FileInfo{}, fmt.Errorf("object store upload failed: %w", err)
	}

	o.log.Debug().Str("file_id", fileID).Int("size", len(content)).Msg("file stored")
	return FileInfo{
		FileID:      fileID,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(content)),
		URL:         o.url(fileID),
	}, nil
}

// Download returns the object content, or ErrFileNotFound.
func (o *OSS) Download(ctx context.Context, fileID string) ([]byte, error) {
	obj, err := o.client.GetObject(ctx, o.cfg.Bucket, o.key(fileID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("object store download failed: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, model.ErrFileNotFound
		}
		return nil, fmt.Errorf("object store read failed: %w", err)
	}
	return data, nil
}

// Delete removes the object. Returns false when it did not exist.
func (o *OSS) Delete(ctx context.Context, fileID string) (bool, error) {
	exists, err := o.Exists(ctx, fileID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := o.client.RemoveObject(ctx, o.cfg.Bucket, o.key(fileID), minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("object store delete failed: %w", err)
	}
	return true, nil
}

// Exists reports whether the object is present.
func (o *OSS) Exists(ctx context.Context, fileID string) (bool, error) {
	_, err := o.client.StatObject(ctx, o.cfg.Bucket, o.key(fileID), minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("object store stat failed: %w", err)
	}
	return true, nil
}

// Info returns the object's metadata.
func (o *OSS) Info(ctx context.Context, fileID string) (FileInfo, error) {
	stat, err := o.client.StatObject(ctx, o.cfg.Bucket, o.key(fileID), minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return FileInfo{}, model.ErrFileNotFound
		}
		return FileInfo{}, fmt.Errorf("object store stat failed: %w", err)
	}
	return FileInfo{
		FileID:      fileID,
		Filename:    fileID,
		ContentType: stat.ContentType,
		Size:        stat.Size,
		URL:         o.url(fileID),
	}, nil
}
