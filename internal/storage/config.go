package storage

import (
	"time"

	"github.com/spf13/viper"
)

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	Bucket     string
	PresignTTL time.Duration
}

// Enabled reports whether an endpoint was configured.
func (c *MinIOConfig) Enabled() bool { return c != nil && c.Endpoint != "" }

// LoadMinIOConfig reads the MINIO_* keys through viper.
func LoadMinIOConfig() *MinIOConfig {
	viper.AutomaticEnv()
	viper.SetDefault("MINIO_BUCKET", "propgate-assets")
	viper.SetDefault("MINIO_PRESIGN_TTL", 900)
	return &MinIOConfig{
		Endpoint:   viper.GetString("MINIO_ENDPOINT"),
		AccessKey:  viper.GetString("MINIO_ACCESS_KEY"),
		SecretKey:  viper.GetString("MINIO_SECRET_KEY"),
		UseSSL:     viper.GetBool("MINIO_USE_SSL"),
		Bucket:     viper.GetString("MINIO_BUCKET"),
		PresignTTL: time.Duration(viper.GetInt("MINIO_PRESIGN_TTL")) * time.Second,
	}
}
