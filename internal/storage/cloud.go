package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	awscredentials "github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/minio/minio-go/v7"
	miniocredentials "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kelvinpraises/vidrune/internal/config"
	"github.com/kelvinpraises/vidrune/internal/logger"
)

// ArchiveUploader pushes a finished artifact archive to object storage.
type ArchiveUploader interface {
	UploadArchive(ctx context.Context, key string, archive io.Reader, size int64) error
}

// NewArchiveUploader picks the backend from config. An empty CloudType
// yields a no-op uploader: artifacts stay local.
func NewArchiveUploader(cfg config.Config, log logger.Logger) (ArchiveUploader, error) {
	switch cfg.CloudType {
	case "":
		return NoopUploader{}, nil
	case "minio":
		client, err := minio.New(cfg.CloudEndpoint, &minio.Options{
			Creds:  miniocredentials.NewStaticV4(cfg.CloudAccessKey, cfg.CloudSecretKey, ""),
			Secure: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		return &MinioUploader{client: client, bucket: cfg.CloudBucket, log: log}, nil
	case "s3":
		awsCfg := &aws.Config{
			Region:      aws.String(cfg.CloudRegion),
			Credentials: awscredentials.NewStaticCredentials(cfg.CloudAccessKey, cfg.CloudSecretKey, ""),
		}
		if cfg.CloudEndpoint != "" {
			awsCfg.Endpoint = aws.String(cfg.CloudEndpoint)
		}
		sess, err := session.NewSession(awsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create aws session: %w", err)
		}
		return &S3Uploader{uploader: s3manager.NewUploader(sess), bucket: cfg.CloudBucket, log: log}, nil
	}
	return nil, fmt.Errorf("unsupported cloud storage type: %s", cfg.CloudType)
}

// NoopUploader discards uploads. Used when no object storage is configured.
type NoopUploader struct{}

func (NoopUploader) UploadArchive(context.Context, string, io.Reader, int64) error {
	return nil
}

// MinioUploader pushes archives to a minio-compatible endpoint.
type MinioUploader struct {
	client *minio.Client
	bucket string
	log    logger.Logger
}

func (u *MinioUploader) UploadArchive(ctx context.Context, key string, archive io.Reader, size int64) error {
	u.log.Info("uploading archive to minio",
		logger.String("bucket", u.bucket), logger.String("key", key))

	_, err := u.client.PutObject(ctx, u.bucket, key, archive, size, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}
	return nil
}

// S3Uploader pushes archives to S3.
type S3Uploader struct {
	uploader *s3manager.Uploader
	bucket   string
	log      logger.Logger
}

func (u *S3Uploader) UploadArchive(ctx context.Context, key string, archive io.Reader, _ int64) error {
	u.log.Info("uploading archive to s3",
		logger.String("bucket", u.bucket), logger.String("key", key))

	_, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        archive,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}
	return nil
}
