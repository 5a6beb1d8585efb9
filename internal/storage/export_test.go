package storage

import (
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// newOffline builds a storage client without ensuring the bucket, with a fixed
// region so presigning never needs a location lookup.
func newOffline(endpoint, bucket string) (*MinIOStorage, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minio", "minio123", ""),
		Region: "us-east-1",
	})
	if err != nil {
		return nil, err
	}
	return &MinIOStorage{client: mc, bucket: bucket, ttl: time.Minute}, nil
}
