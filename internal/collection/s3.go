package collection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Object storage access for s3://bucket/key collection paths. The endpoint
// and credentials come from the environment: S3_ENDPOINT, S3_ACCESS_KEY,
// S3_SECRET_KEY, and optionally S3_REGION and S3_USE_SSL=true.

// IsObjectURL reports whether path names an object in S3-compatible
// storage rather than a local file.
func IsObjectURL(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

func splitObjectURL(url string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(url, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("object URL must look like s3://bucket/key, got %q", url)
	}
	return bucket, key, nil
}

func newObjectClient() (*minio.Client, string, error) {
	endpoint := strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	if endpoint == "" {
		return nil, "", fmt.Errorf("S3_ENDPOINT is required for s3:// paths")
	}
	access := strings.TrimSpace(os.Getenv("S3_ACCESS_KEY"))
	secret := strings.TrimSpace(os.Getenv("S3_SECRET_KEY"))
	if access == "" || secret == "" {
		return nil, "", fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required for s3:// paths")
	}
	region := strings.TrimSpace(os.Getenv("S3_REGION"))
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: os.Getenv("S3_USE_SSL") == "true",
		Region: region,
	})
	if err != nil {
		return nil, "", fmt.Errorf("init s3 client: %w", err)
	}
	return client, region, nil
}

func s3Read(ctx context.Context, url string) ([]byte, error) {
	bucket, key, err := splitObjectURL(url)
	if err != nil {
		return nil, err
	}
	client, _, err := newObjectClient()
	if err != nil {
		return nil, err
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("object %s does not exist", url)
		}
		return nil, err
	}
	return data, nil
}

func s3Write(ctx context.Context, url string, data []byte) error {
	bucket, key, err := splitObjectURL(url)
	if err != nil {
		return err
	}
	client, region, err := newObjectClient()
	if err != nil {
		return err
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return fmt.Errorf("creating bucket %s: %w", bucket, err)
		}
	}

	_, err = client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/x-yaml",
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", url, err)
	}
	return nil
}
