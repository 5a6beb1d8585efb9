package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	k := ObjectKey("l1", "pdf_plan_url", "../../etc/plan.pdf")
	require.True(t, strings.HasPrefix(k, "listings/l1/pdf_plan_url/"))
	require.True(t, strings.HasSuffix(k, "-plan.pdf"))
	require.NotContains(t, k, "..")

	k = ObjectKey("l1", "photos", `C:\photos\front.jpg`)
	require.True(t, strings.HasSuffix(k, "-front.jpg"))
}

func TestIsAbsoluteURL(t *testing.T) {
	require.True(t, IsAbsoluteURL("https://cdn.example/plan.pdf"))
	require.True(t, IsAbsoluteURL("http://cdn.example/plan.pdf"))
	require.False(t, IsAbsoluteURL("listings/l1/photos/a.jpg"))
}

func TestLoadMinIOConfig(t *testing.T) {
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("MINIO_PRESIGN_TTL", "60")
	cfg := LoadMinIOConfig()
	require.True(t, cfg.Enabled())
	require.True(t, cfg.UseSSL)
	require.Equal(t, "propgate-assets", cfg.Bucket)
	require.Equal(t, time.Minute, cfg.PresignTTL)
}

func TestNewMinIOStorage_RequiresEndpoint(t *testing.T) {
	_, err := NewMinIOStorage(context.Background(), &MinIOConfig{})
	require.Error(t, err)
	var nilCfg *MinIOConfig
	require.False(t, nilCfg.Enabled())
}

func TestPresign_OfflineSigning(t *testing.T) {
	// presigning is computed locally; no server round trip for a known region
	s, err := newOffline("localhost:9000", "propgate-assets")
	require.NoError(t, err)

	u, err := s.Presign(context.Background(), "listings/l1/pdf_plan_url/plan.pdf")
	require.NoError(t, err)
	require.Contains(t, u, "listings/l1/pdf_plan_url/plan.pdf")
	require.Contains(t, u, "X-Amz-Signature=")

	u, err = s.Presign(context.Background(), "https://cdn.example/plan.pdf")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/plan.pdf", u)
}
